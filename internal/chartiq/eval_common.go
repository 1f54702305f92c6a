package chartiq

import "encoding/json"

const jsPreamble = `
var ciq = window.CIQ || null;
var stx = window.stxx || null;
if (!stx && window.stxc) stx = window.stxc;
if (!stx && ciq && ciq.ChartEngine && ciq.ChartEngine.registeredContainers && ciq.ChartEngine.registeredContainers.length) {
  try { stx = ciq.ChartEngine.registeredContainers[0].stx; } catch(_) {}
}`

// jsStudyDescHelper provides _studyDesc(sd) — normalizes a study descriptor
// from stx.layout.studies into the envelope shape shared by all study ops.

const jsStudyDescHelper = `
function _studyDesc(sd) {
  if (!sd) return null;
  return {
    name: String(sd.name || ""),
    full_name: String(sd.inputs && sd.inputs.display || sd.name || ""),
    overlay: Boolean(sd.overlay || (sd.parameters && sd.parameters.chartName === "chart"))
  };
}
`

// jsSerializeHelper provides _plain(v) — strips functions and cyclic engine
// references so study/drawing parameter maps survive JSON.stringify.

const jsSerializeHelper = `
function _plain(v) {
  if (v === null || v === undefined) return null;
  if (typeof v === "string" || typeof v === "number" || typeof v === "boolean") return v;
  if (Array.isArray(v)) { var a = []; for (var i = 0; i < v.length; i++) a.push(_plain(v[i])); return a; }
  if (typeof v === "object") {
    var o = {};
    var ks = Object.keys(v);
    for (var ki = 0; ki < ks.length; ki++) {
      var k = ks[ki]; var val = v[k];
      if (typeof val === "function") continue;
      if (k === "stx" || k === "sd" || k === "chart" || k === "panel") continue;
      o[k] = _plain(val);
    }
    return o;
  }
  return null;
}
`

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(async bool, body string) string {
	prefix := "(function(){\n"
	if async {
		prefix = "(async function(){\n"
	}
	return prefix + `try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

func wrapJSEval(body string) string      { return buildIIFE(false, body) }
func wrapJSEvalAsync(body string) string { return buildIIFE(true, body) }

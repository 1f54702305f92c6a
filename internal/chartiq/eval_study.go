package chartiq

import "fmt"

func jsListStudies() string {
	return wrapJSEval(jsPreamble + jsStudyDescHelper + `
if (!stx || !stx.layout) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
var out = [];
var studies = stx.layout.studies || {};
var keys = Object.keys(studies);
for (var i = 0; i < keys.length; i++) {
  var d = _studyDesc(studies[keys[i]]);
  if (d) out.push(d);
}
return JSON.stringify({ok:true,data:{studies:out}});
`)
}

func jsAvailableStudies() string {
	return wrapJSEval(jsPreamble + `
if (!ciq || !ciq.Studies || !ciq.Studies.studyLibrary)
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"study library unavailable"});
var out = [];
var lib = ciq.Studies.studyLibrary;
var keys = Object.keys(lib);
for (var i = 0; i < keys.length; i++) {
  out.push({name: keys[i], full_name: String(lib[keys[i]].name || keys[i]), overlay: Boolean(lib[keys[i]].overlay)});
}
return JSON.stringify({ok:true,data:{studies:out}});
`)
}

func jsAddStudy(name string, inputs, outputs, parameters map[string]any) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+jsStudyDescHelper+`
var name = %s;
var inputs = %s;
var outputs = %s;
var parameters = %s;
if (!stx || !ciq || !ciq.Studies || typeof ciq.Studies.addStudy !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"addStudy unavailable"});
if (!ciq.Studies.studyLibrary || !ciq.Studies.studyLibrary[name])
  return JSON.stringify({ok:false,error_code:"VALIDATION",error_message:"unknown study: " + name});
var sd = ciq.Studies.addStudy(stx, name, inputs, outputs, parameters);
return JSON.stringify({ok:true,data:{study:_studyDesc(sd)}});
`, jsString(name), jsJSON(inputs), jsJSON(outputs), jsJSON(parameters)))
}

func jsGetStudyDetail(name string) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+jsSerializeHelper+`
var name = %s;
if (!stx || !stx.layout) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
var sd = (stx.layout.studies || {})[name];
if (!sd) return JSON.stringify({ok:false,error_code:"CHART_NOT_FOUND",error_message:"study not found: " + name});
return JSON.stringify({ok:true,data:{study:{
  name: String(sd.name || name),
  inputs: _plain(sd.inputs || {}),
  outputs: _plain(sd.outputs || {}),
  parameters: _plain(sd.parameters || {})
}}});
`, jsString(name)))
}

func jsModifyStudy(name string, inputs, outputs, parameters map[string]any) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+jsSerializeHelper+`
var name = %s;
var inputs = %s;
var outputs = %s;
var parameters = %s;
if (!stx || !ciq || !ciq.Studies) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"study api unavailable"});
var sd = (stx.layout.studies || {})[name];
if (!sd) return JSON.stringify({ok:false,error_code:"CHART_NOT_FOUND",error_message:"study not found: " + name});
if (typeof ciq.Studies.replaceStudy === "function") {
  sd = ciq.Studies.replaceStudy(stx, sd.inputs.id || name, sd.type || sd.name, inputs, outputs, parameters);
} else if (typeof ciq.Studies.addStudy === "function") {
  sd = ciq.Studies.addStudy(stx, sd.type || sd.name, inputs, outputs, parameters, null, sd);
} else {
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"study modification unavailable"});
}
return JSON.stringify({ok:true,data:{study:{
  name: String(sd && sd.name || name),
  inputs: _plain(sd && sd.inputs || {}),
  outputs: _plain(sd && sd.outputs || {}),
  parameters: _plain(sd && sd.parameters || {})
}}});
`, jsString(name), jsJSON(inputs), jsJSON(outputs), jsJSON(parameters)))
}

func jsRemoveStudy(name string) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var name = %s;
if (!stx || !ciq || !ciq.Studies || typeof ciq.Studies.removeStudy !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"removeStudy unavailable"});
var sd = (stx.layout.studies || {})[name];
if (!sd) return JSON.stringify({ok:false,error_code:"CHART_NOT_FOUND",error_message:"study not found: " + name});
ciq.Studies.removeStudy(stx, sd);
return JSON.stringify({ok:true,data:{}});
`, jsString(name)))
}

func jsRemoveAllStudies() string {
	return wrapJSEval(jsPreamble + `
if (!stx || !ciq || !ciq.Studies || typeof ciq.Studies.removeStudy !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"removeStudy unavailable"});
var studies = stx.layout.studies || {};
var keys = Object.keys(studies);
for (var i = 0; i < keys.length; i++) ciq.Studies.removeStudy(stx, studies[keys[i]]);
return JSON.stringify({ok:true,data:{removed:keys.length}});
`)
}

package chartiq

import "fmt"

// DrawingTools lists the vector types the engine accepts for
// currentVectorParameters.vectorType.
var DrawingTools = []string{
	"annotation", "arrow", "average", "callout", "channel", "continuous",
	"crossline", "doodle", "ellipse", "fibarc", "fibfan", "fibonacci",
	"fibprojection", "fibtimezone", "gannfan", "gartley", "horizontal",
	"line", "measure", "pitchfork", "quadrant", "ray", "rectangle",
	"regression", "segment", "speedarc", "speedline", "timecycle", "tirone",
	"trendline", "vertical",
}

// KnownDrawingTool reports whether tool is a recognized vector type. The
// empty string deselects the current tool and is allowed.
func KnownDrawingTool(tool string) bool {
	if tool == "" {
		return true
	}
	for _, t := range DrawingTools {
		if t == tool {
			return true
		}
	}
	return false
}

func jsGetDrawingTool() string {
	return wrapJSEval(jsPreamble + `
if (!stx || !stx.currentVectorParameters)
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"drawing api unavailable"});
return JSON.stringify({ok:true,data:{tool:String(stx.currentVectorParameters.vectorType || "")}});
`)
}

func jsSetDrawingTool(tool string) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var tool = %s;
if (!stx) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
if (typeof stx.changeVectorType === "function") stx.changeVectorType(tool);
else if (stx.currentVectorParameters) stx.currentVectorParameters.vectorType = tool;
else return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"drawing api unavailable"});
return JSON.stringify({ok:true,data:{tool:tool}});
`, jsString(tool)))
}

func jsListDrawings() string {
	return wrapJSEval(jsPreamble + jsSerializeHelper + `
if (!stx || typeof stx.exportDrawings !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"exportDrawings unavailable"});
var raw = stx.exportDrawings() || [];
var out = [];
for (var i = 0; i < raw.length; i++) {
  var d = _plain(raw[i]) || {};
  out.push({tool: String(d.name || ""), symbol: String(d.symbol || ""), fields: d});
}
return JSON.stringify({ok:true,data:{drawings:out}});
`)
}

// jsExportDrawings returns the engine's raw serialized drawing state so the
// native side can persist and later reimport it verbatim.
func jsExportDrawings() string {
	return wrapJSEval(jsPreamble + jsSerializeHelper + `
if (!stx || typeof stx.exportDrawings !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"exportDrawings unavailable"});
return JSON.stringify({ok:true,data:{state:_plain(stx.exportDrawings() || [])}});
`)
}

func jsImportDrawings(state any) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var state = %s;
if (!stx || typeof stx.importDrawings !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"importDrawings unavailable"});
stx.importDrawings(state);
if (typeof stx.draw === "function") stx.draw();
if (typeof stx.changeOccurred === "function") stx.changeOccurred("vector");
return JSON.stringify({ok:true,data:{}});
`, jsJSON(state)))
}

func jsClearDrawings() string {
	return wrapJSEval(jsPreamble + `
if (!stx || typeof stx.clearDrawings !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"clearDrawings unavailable"});
var count = (stx.drawingObjects || []).length;
stx.clearDrawings(false);
return JSON.stringify({ok:true,data:{removed:count}});
`)
}

func jsUndoDrawing() string {
	return wrapJSEval(jsPreamble + `
if (!stx) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
if (typeof stx.undoLast === "function") { stx.undoLast(); return JSON.stringify({ok:true,data:{}}); }
if (typeof stx.undo === "function") { stx.undo(); return JSON.stringify({ok:true,data:{}}); }
return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"undo unavailable"});
`)
}

func jsRedoDrawing() string {
	return wrapJSEval(jsPreamble + `
if (!stx || typeof stx.redo !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"redo unavailable"});
stx.redo();
return JSON.stringify({ok:true,data:{}});
`)
}

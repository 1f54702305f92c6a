package chartiq

import "fmt"

func jsEngineInfo() string {
	return wrapJSEval(jsPreamble + `
if (!ciq) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"CIQ namespace unavailable"});
var version = "";
if (ciq.packageInfo && ciq.packageInfo.version) version = String(ciq.packageInfo.version);
if (!version && ciq.version) version = String(ciq.version);
var symbol = "";
if (stx && stx.chart && stx.chart.symbol) symbol = String(stx.chart.symbol);
return JSON.stringify({ok:true,data:{version:version,symbol:symbol}});
`)
}

func jsGetSymbol() string {
	return wrapJSEval(jsPreamble + `
if (!stx || !stx.chart) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
return JSON.stringify({ok:true,data:{symbol:String(stx.chart.symbol || "")}});
`)
}

// jsLoadChart starts a full chart load for the symbol. The completion
// callback reports back over the bridge; the script only confirms the call
// was accepted.
func jsLoadChart(symbol string) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var requested = %s;
if (!stx) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
var done = function() {
  if (window.__ciqBridge) window.__ciqBridge.post("chart_ready", {symbol: requested});
};
if (typeof stx.loadChart === "function") stx.loadChart(requested, {}, done);
else if (typeof stx.newChart === "function") stx.newChart(requested, null, null, done);
else return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"loadChart unavailable"});
return JSON.stringify({ok:true,data:{symbol:requested}});
`, jsString(symbol)))
}

func jsSetSymbol(symbol string) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var requested = %s;
if (!stx) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
if (typeof stx.loadChart === "function") stx.loadChart(requested);
else if (typeof stx.newChart === "function") stx.newChart(requested);
else return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"symbol change unavailable"});
var current = String(stx.chart && stx.chart.symbol || requested);
return JSON.stringify({ok:true,data:{symbol:current}});
`, jsString(symbol)))
}

func jsGetPeriodicity() string {
	return wrapJSEval(jsPreamble + `
if (!stx || !stx.layout) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
return JSON.stringify({ok:true,data:{
  period: Number(stx.layout.periodicity || stx.layout.period || 1),
  interval: String(stx.layout.interval),
  time_unit: stx.layout.timeUnit ? String(stx.layout.timeUnit) : ""
}});
`)
}

func jsSetPeriodicity(p Periodicity) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var req = %s;
if (!stx || typeof stx.setPeriodicity !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"setPeriodicity unavailable"});
var params = {period: req.period, interval: req.interval};
if (req.time_unit) params.timeUnit = req.time_unit;
var n = Number(req.interval);
if (!isNaN(n) && String(n) === String(req.interval)) params.interval = n;
stx.setPeriodicity(params);
return JSON.stringify({ok:true,data:{}});
`, jsJSON(p)))
}

func jsGetChartType() string {
	return wrapJSEval(jsPreamble + `
if (!stx || !stx.layout) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
var ct = String(stx.layout.chartType || "");
if (stx.layout.aggregationType && stx.layout.aggregationType !== "ohlc") ct = String(stx.layout.aggregationType);
return JSON.stringify({ok:true,data:{chart_type:ct}});
`)
}

func jsSetChartType(chartType string) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var requested = %s;
if (!stx) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
var aggregations = ["heikinashi","kagi","linebreak","pandf","rangebars","renko"];
if (aggregations.indexOf(requested) >= 0) {
  if (typeof stx.setAggregationType !== "function")
    return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"setAggregationType unavailable"});
  stx.setAggregationType(requested);
} else {
  if (typeof stx.setChartType !== "function")
    return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"setChartType unavailable"});
  stx.setChartType(requested);
}
return JSON.stringify({ok:true,data:{chart_type:requested}});
`, jsString(chartType)))
}

func jsGetChartScale() string {
	return wrapJSEval(jsPreamble + `
if (!stx || !stx.layout) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
return JSON.stringify({ok:true,data:{scale:String(stx.layout.chartScale || "linear")}});
`)
}

func jsSetChartScale(scale string) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var requested = %s;
if (!stx || typeof stx.setChartScale !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"setChartScale unavailable"});
stx.setChartScale(requested);
return JSON.stringify({ok:true,data:{scale:requested}});
`, jsString(scale)))
}

func jsSetCrosshair(enabled bool) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var enabled = %t;
if (!stx || !stx.layout) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
stx.layout.crosshair = enabled;
if (typeof stx.changeOccurred === "function") stx.changeOccurred("layout");
if (typeof stx.doDisplayCrosshairs === "function" && enabled) stx.doDisplayCrosshairs();
if (typeof stx.undisplayCrosshairs === "function" && !enabled) stx.undisplayCrosshairs();
return JSON.stringify({ok:true,data:{crosshair:enabled}});
`, enabled))
}

func jsGetCrosshair() string {
	return wrapJSEval(jsPreamble + `
if (!stx || !stx.layout) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
return JSON.stringify({ok:true,data:{crosshair:Boolean(stx.layout.crosshair)}});
`)
}

func jsSetTheme(theme ThemePreset) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var requested = %s;
if (!stx) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});
if (typeof window.setTheme === "function") { window.setTheme(requested); }
else if (ciq && ciq.ThemeHelper) {
  var helper = new ciq.ThemeHelper({stx: stx});
  helper.settings = requested === "night"
    ? {chart:{"Background":{color:"#151f28"},"Grid Lines":{color:"#2a3442"},"Axis Text":{color:"#8a9ba8"}}}
    : {chart:{"Background":{color:"#ffffff"},"Grid Lines":{color:"#efefef"},"Axis Text":{color:"#666666"}}};
  if (requested !== "none") helper.update();
} else {
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"theme helper unavailable"});
}
return JSON.stringify({ok:true,data:{theme:requested}});
`, jsString(string(theme))))
}

// jsGetLayout serializes the full chart layout (periodicity, studies,
// chart type, ranges) for persistence on the native side.
func jsGetLayout() string {
	return wrapJSEval(jsPreamble + jsSerializeHelper + `
if (!stx || typeof stx.exportLayout !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"exportLayout unavailable"});
return JSON.stringify({ok:true,data:{layout:_plain(stx.exportLayout(true))}});
`)
}

func jsSetLayout(layout map[string]any) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var layout = %s;
if (!stx || typeof stx.importLayout !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"importLayout unavailable"});
stx.importLayout(layout, {managePeriodicity: true, preserveTicksAndCandleWidth: true});
return JSON.stringify({ok:true,data:{}});
`, jsJSON(layout)))
}

// jsInvoke calls an arbitrary engine method by name. Escape hatch for
// engine surface the typed API does not cover.
func jsInvoke(method string, args []any) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+jsSerializeHelper+`
var method = %s;
var args = %s;
if (!stx || typeof stx[method] !== "function")
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"method " + method + " unavailable"});
var result = stx[method].apply(stx, args);
return JSON.stringify({ok:true,data:{result:_plain(result)}});
`, jsString(method), jsJSON(args)))
}

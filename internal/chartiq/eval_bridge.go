package chartiq

import "fmt"

// BridgeBinding is the name of the CDP binding the page-side bridge posts
// through (Runtime.addBinding must be called with this name before the
// bootstrap script runs).
const BridgeBinding = "ciqNative"

// jsInstallBridge installs window.__ciqBridge: a small observer layer that
// forwards engine callbacks to the native side as {kind, payload} messages
// over the CDP binding. Idempotent; reinstalling after a navigation is the
// owner's responsibility.
func jsInstallBridge() string {
	return wrapJSEval(jsPreamble + `
if (window.__ciqBridge && window.__ciqBridge.installed)
  return JSON.stringify({ok:true,data:{installed:true,already:true}});
if (typeof window.` + BridgeBinding + ` !== "function")
  return JSON.stringify({ok:false,error_code:"CDP_UNAVAILABLE",error_message:"native binding not registered"});
if (!stx) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"chart engine unavailable"});

var bridge = {
  installed: true,
  seq: 0,
  callbacks: {},
  post: function(kind, payload) {
    try { window.` + BridgeBinding + `(JSON.stringify({kind: kind, payload: payload || {}})); } catch(_) {}
  },
  keep: function(fn) {
    var id = "cb_" + (++bridge.seq);
    bridge.callbacks[id] = fn;
    return id;
  }
};
window.__ciqBridge = bridge;

// Engine observers -> native events.
if (typeof stx.addEventListener === "function") {
  stx.addEventListener("symbolChange", function(ev) {
    bridge.post("symbol_change", {symbol: String(ev.symbol || ""), action: String(ev.action || "")});
  });
  stx.addEventListener("layout", function() {
    bridge.post("layout", {layout: stx.exportLayout ? stx.exportLayout(true) : null});
  });
  stx.addEventListener("drawing", function() {
    bridge.post("drawing", {drawings: stx.exportDrawings ? stx.exportDrawings() : null});
  });
  stx.addEventListener("studyOverlayEdit", function(ev) {
    bridge.post("study_edit", {study: String(ev.sd && ev.sd.name || "")});
  });
}

// Quote-feed pulls -> native. The engine keeps driving its own quote feed;
// this attaches one whose fetches are answered by the native side.
if (ciq && typeof stx.attachQuoteFeed === "function" && !stx.quoteDriver) {
  stx.attachQuoteFeed({
    fetchInitialData: function(symbol, suggestedStartDate, suggestedEndDate, params, cb) {
      bridge.post("pull", {kind: "initial", cb: bridge.keep(cb), symbol: symbol,
        period: params.period, interval: String(params.interval),
        time_unit: params.timeUnit ? String(params.timeUnit) : "",
        start: suggestedStartDate.toISOString(), end: suggestedEndDate.toISOString()});
    },
    fetchUpdateData: function(symbol, startDate, params, cb) {
      bridge.post("pull", {kind: "update", cb: bridge.keep(cb), symbol: symbol,
        period: params.period, interval: String(params.interval),
        time_unit: params.timeUnit ? String(params.timeUnit) : "",
        start: startDate.toISOString()});
    },
    fetchPaginationData: function(symbol, startDate, endDate, params, cb) {
      bridge.post("pull", {kind: "pagination", cb: bridge.keep(cb), symbol: symbol,
        period: params.period, interval: String(params.interval),
        time_unit: params.timeUnit ? String(params.timeUnit) : "",
        start: startDate.toISOString(), end: endDate.toISOString()});
    }
  }, {refreshInterval: 1});
}

// Console log lines -> native, preserving the original console behavior.
var origError = console.error.bind(console);
console.error = function() {
  var parts = [];
  for (var i = 0; i < arguments.length; i++) parts.push(String(arguments[i]));
  bridge.post("log", {level: "error", line: parts.join(" ")});
  origError.apply(null, arguments);
};

// Load-progress signals consumed by the loading tracker.
bridge.post("measure", {stage: "bridge_installed"});
var version = "";
if (ciq && ciq.packageInfo && ciq.packageInfo.version) version = String(ciq.packageInfo.version);
else if (ciq && ciq.version) version = String(ciq.version);
bridge.post("engine_version", {version: version});

return JSON.stringify({ok:true,data:{installed:true}});
`)
}

// jsSignalStudiesLoaded is evaluated after saved studies were reapplied so
// the tracker can close its studiesLoaded interval.
func jsSignalStudiesLoaded() string {
	return wrapJSEval(`
if (!window.__ciqBridge) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"bridge not installed"});
window.__ciqBridge.post("measure", {stage: "studies_loaded"});
return JSON.stringify({ok:true,data:{}});
`)
}

// jsRaiseInternalError is a diagnostics helper that reports an engine-side
// condition through the bridge as if the page had raised it.
func jsRaiseInternalError(detail string) string {
	return wrapJSEval(fmt.Sprintf(`
if (!window.__ciqBridge) return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"bridge not installed"});
window.__ciqBridge.post("fatal", {detail: %s});
return JSON.stringify({ok:true,data:{}});
`, jsString(detail)))
}

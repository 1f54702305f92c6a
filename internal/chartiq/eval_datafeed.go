package chartiq

import "fmt"

// jsPushQuoteData resolves one pending quote-feed pull by invoking the
// stored engine callback with the fetched bars. moreAvailable drives the
// engine's pagination behavior.
func jsPushQuoteData(callbackID string, bars []OHLCVBar, moreAvailable bool) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var cb = %s;
var bars = %s;
var more = %t;
if (!window.__ciqBridge || !window.__ciqBridge.callbacks)
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"bridge not installed"});
var fn = window.__ciqBridge.callbacks[cb];
if (!fn) return JSON.stringify({ok:false,error_code:"CHART_NOT_FOUND",error_message:"no pending quote callback: " + cb});
delete window.__ciqBridge.callbacks[cb];
for (var i = 0; i < bars.length; i++) bars[i].DT = new Date(bars[i].DT);
fn({quotes: bars, moreAvailable: more});
return JSON.stringify({ok:true,data:{delivered:bars.length}});
`, jsString(callbackID), jsJSON(bars), moreAvailable))
}

// jsFailQuoteData resolves a pending pull with an error so the engine stops
// waiting for data.
func jsFailQuoteData(callbackID, message string) string {
	return wrapJSEval(fmt.Sprintf(jsPreamble+`
var cb = %s;
var message = %s;
if (!window.__ciqBridge || !window.__ciqBridge.callbacks)
  return JSON.stringify({ok:false,error_code:"API_UNAVAILABLE",error_message:"bridge not installed"});
var fn = window.__ciqBridge.callbacks[cb];
if (!fn) return JSON.stringify({ok:false,error_code:"CHART_NOT_FOUND",error_message:"no pending quote callback: " + cb});
delete window.__ciqBridge.callbacks[cb];
fn({error: message});
return JSON.stringify({ok:true,data:{}});
`, jsString(callbackID), jsString(message)))
}

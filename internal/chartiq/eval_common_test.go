package chartiq

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSStringAndJSONHelpers(t *testing.T) {
	if got := jsString("AAPL\n\"US\""); got != "\"AAPL\\n\\\"US\\\"\"" {
		t.Fatalf("jsString = %q, want %q", got, "\"AAPL\\n\\\"US\\\"\"")
	}

	got := jsJSON(Periodicity{Period: 5, Interval: "1", TimeUnit: "minute"})
	var p Periodicity
	if err := json.Unmarshal([]byte(got), &p); err != nil {
		t.Fatalf("jsJSON returned invalid JSON: %v", err)
	}
	if p.Period != 5 || p.Interval != "1" || p.TimeUnit != "minute" {
		t.Fatalf("jsJSON round trip = %+v", p)
	}
}

func TestJSEvalWrappers(t *testing.T) {
	syncExpr := wrapJSEval("return 1;")
	if !strings.Contains(syncExpr, "(function(){\ntry {") {
		t.Fatalf("unexpected sync wrapper: %s", syncExpr)
	}
	if strings.Contains(syncExpr, "(async function") {
		t.Fatalf("sync wrapper should not be async: %s", syncExpr)
	}

	asyncExpr := wrapJSEvalAsync("await Promise.resolve(1);")
	if !strings.Contains(asyncExpr, "(async function(){\ntry {") {
		t.Fatalf("unexpected async wrapper: %s", asyncExpr)
	}
	if !strings.Contains(asyncExpr, "await Promise.resolve(1);") {
		t.Fatalf("async wrapper lost body: %s", asyncExpr)
	}
}

func TestScriptsEmbedArguments(t *testing.T) {
	js := jsAddStudy("macd", map[string]any{"Fast": 12}, nil, nil)
	if !strings.Contains(js, `"macd"`) {
		t.Fatalf("jsAddStudy missing study name: %s", js)
	}
	if !strings.Contains(js, `"Fast":12`) {
		t.Fatalf("jsAddStudy missing inputs: %s", js)
	}

	js = jsPushQuoteData("cb_7", []OHLCVBar{{DT: "2026-01-02T00:00:00Z", Close: 101.5}}, true)
	if !strings.Contains(js, `"cb_7"`) || !strings.Contains(js, "101.5") {
		t.Fatalf("jsPushQuoteData missing arguments: %s", js)
	}
}

func TestKnownDrawingTool(t *testing.T) {
	cases := []struct {
		tool string
		want bool
	}{
		{"line", true},
		{"fibonacci", true},
		{"", true},
		{"scribble", false},
	}
	for _, tc := range cases {
		if got := KnownDrawingTool(tc.tool); got != tc.want {
			t.Fatalf("KnownDrawingTool(%q) = %t; want %t", tc.tool, got, tc.want)
		}
	}
}

func TestCodedErrorRendering(t *testing.T) {
	err := NewError(CodeValidation, "symbol is required", nil)
	if got, want := err.Error(), "VALIDATION: symbol is required"; got != want {
		t.Fatalf("Error() = %q; want %q", got, want)
	}
}

// Package chartiq generates the JavaScript evaluated against an embedded
// ChartIQ charting engine and defines the typed results decoded from it.
// Every script returns a JSON envelope {ok,data,error_code,error_message}
// so the native side never has to scrape free-form values.
package chartiq

import "fmt"

const (
	CodeValidation       = "VALIDATION"
	CodeChartNotFound    = "CHART_NOT_FOUND"
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	CodeAPIUnavailable   = "API_UNAVAILABLE"
	CodeEvalFailure      = "EVAL_FAILURE"
	CodeEvalTimeout      = "EVAL_TIMEOUT"
	CodeCDPUnavailable   = "CDP_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError with an optional cause.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// ChartInfo describes a chart tab mapped from a browser target.
type ChartInfo struct {
	TargetID string `json:"target_id"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
}

// EngineInfo describes the loaded charting library.
type EngineInfo struct {
	Version string `json:"version"`
	Symbol  string `json:"symbol,omitempty"`
}

// Periodicity is the chart's bar aggregation: Period candles of Interval
// units, with TimeUnit qualifying numeric intervals ("minute", "day", ...).
type Periodicity struct {
	Period   int    `json:"period"`
	Interval string `json:"interval"`
	TimeUnit string `json:"time_unit,omitempty"`
}

// Study describes an active study on the chart.
type Study struct {
	Name     string `json:"name"`
	FullName string `json:"full_name,omitempty"`
	Overlay  bool   `json:"overlay,omitempty"`
}

// StudyDetail is a study with its resolved parameter maps.
type StudyDetail struct {
	Name       string         `json:"name"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Drawing is one serialized drawing object from the engine.
type Drawing struct {
	Tool   string         `json:"tool"`
	Symbol string         `json:"symbol,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// ThemePreset selects one of the engine's built-in themes.
type ThemePreset string

const (
	ThemeDay   ThemePreset = "day"
	ThemeNight ThemePreset = "night"
	ThemeNone  ThemePreset = "none"
)

// OHLCVBar is one quote row pushed to the engine's data layer.
type OHLCVBar struct {
	DT     string  `json:"DT"`
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume float64 `json:"Volume"`
}

// QuotePull is a quote-feed request raised by the engine over the bridge.
// Kind is "initial", "update" or "pagination"; CallbackID keys the response
// the native side must push back.
type QuotePull struct {
	Kind       string         `json:"kind"`
	CallbackID string         `json:"cb"`
	Symbol     string         `json:"symbol"`
	Period     int            `json:"period"`
	Interval   string         `json:"interval"`
	TimeUnit   string         `json:"time_unit,omitempty"`
	Start      string         `json:"start,omitempty"`
	End        string         `json:"end,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Package bridge is the passive side of the chart integration: it listens
// to the chart tab over CDP, turns page lifecycle events and engine
// callbacks into typed Events, and fans them out to subscribers.
package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/trading-point/chartiq-agent/internal/chartiq"
)

// EventKind classifies a bridge event.
type EventKind string

const (
	// Page lifecycle, derived from CDP events.
	EventNavigationCommit  EventKind = "navigation_commit"
	EventHTMLLoaded        EventKind = "html_loaded"
	EventContentTerminated EventKind = "content_terminated"

	// Engine callbacks, posted by the in-page bridge.
	EventSymbolChange  EventKind = "symbol_change"
	EventLayout        EventKind = "layout"
	EventDrawing       EventKind = "drawing"
	EventStudyEdit     EventKind = "study_edit"
	EventLog           EventKind = "log"
	EventMeasure       EventKind = "measure"
	EventEngineVersion EventKind = "engine_version"
	EventPull          EventKind = "pull"
	EventChartReady    EventKind = "chart_ready"
	EventFatal         EventKind = "fatal"
)

// Event is one message delivered from the chart tab.
type Event struct {
	Kind     EventKind       `json:"kind"`
	TargetID string          `json:"target_id"`
	Time     time.Time       `json:"time"`
	URL      string          `json:"url,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// parseBridgeMessage decodes the {kind,payload} JSON the in-page bridge
// posts through the CDP binding.
func parseBridgeMessage(raw string) (EventKind, json.RawMessage, error) {
	var msg struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return "", nil, fmt.Errorf("bridge: invalid message: %w", err)
	}
	if msg.Kind == "" {
		return "", nil, fmt.Errorf("bridge: message without kind")
	}
	return EventKind(msg.Kind), msg.Payload, nil
}

// LogLine is the payload of an EventLog event.
type LogLine struct {
	Level string `json:"level"`
	Line  string `json:"line"`
}

// Measure is the payload of an EventMeasure load-progress signal.
type Measure struct {
	Stage string `json:"stage"`
}

// EngineVersion is the payload of an EventEngineVersion event.
type EngineVersion struct {
	Version string `json:"version"`
}

// SymbolChange is the payload of an EventSymbolChange event.
type SymbolChange struct {
	Symbol string `json:"symbol"`
	Action string `json:"action,omitempty"`
}

// Fatal is the payload of an EventFatal event raised by the engine.
type Fatal struct {
	Detail string `json:"detail,omitempty"`
}

// DecodePull extracts the quote-feed request from an EventPull event.
func DecodePull(ev Event) (chartiq.QuotePull, error) {
	var pull chartiq.QuotePull
	if err := json.Unmarshal(ev.Payload, &pull); err != nil {
		return chartiq.QuotePull{}, fmt.Errorf("bridge: invalid pull payload: %w", err)
	}
	if pull.CallbackID == "" {
		return chartiq.QuotePull{}, fmt.Errorf("bridge: pull without callback id")
	}
	return pull, nil
}

// DecodeLog extracts the log line from an EventLog event.
func DecodeLog(ev Event) (LogLine, error) {
	var line LogLine
	if err := json.Unmarshal(ev.Payload, &line); err != nil {
		return LogLine{}, fmt.Errorf("bridge: invalid log payload: %w", err)
	}
	return line, nil
}

// DecodeMeasure extracts the load-progress stage from an EventMeasure event.
func DecodeMeasure(ev Event) (Measure, error) {
	var m Measure
	if err := json.Unmarshal(ev.Payload, &m); err != nil {
		return Measure{}, fmt.Errorf("bridge: invalid measure payload: %w", err)
	}
	return m, nil
}

// DecodeEngineVersion extracts the version string from an
// EventEngineVersion event.
func DecodeEngineVersion(ev Event) (EngineVersion, error) {
	var v EngineVersion
	if err := json.Unmarshal(ev.Payload, &v); err != nil {
		return EngineVersion{}, fmt.Errorf("bridge: invalid engine version payload: %w", err)
	}
	return v, nil
}

// DecodeSymbolChange extracts the symbol change from an EventSymbolChange
// event.
func DecodeSymbolChange(ev Event) (SymbolChange, error) {
	var s SymbolChange
	if err := json.Unmarshal(ev.Payload, &s); err != nil {
		return SymbolChange{}, fmt.Errorf("bridge: invalid symbol change payload: %w", err)
	}
	return s, nil
}

// DecodeFatal extracts the detail from an EventFatal event.
func DecodeFatal(ev Event) (Fatal, error) {
	var f Fatal
	if err := json.Unmarshal(ev.Payload, &f); err != nil {
		return Fatal{}, fmt.Errorf("bridge: invalid fatal payload: %w", err)
	}
	return f, nil
}

// Package chartview owns the chart lifecycle: it drives navigation and
// engine setup through the eval client, folds bridge events into a
// per-attempt load tracker, and answers quote pulls from a pluggable feed.
package chartview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trading-point/chartiq-agent/internal/bridge"
	"github.com/trading-point/chartiq-agent/internal/chartiq"
	"github.com/trading-point/chartiq-agent/internal/loadtrack"
)

// Delegate is notified exactly once per load attempt, on success or failure.
// Callbacks run on the view's event path while its lock is held; they must
// not call back into the view synchronously.
type Delegate interface {
	ChartLoaded(report Report)
	ChartFailed(err *loadtrack.LoadError, report Report)
}

// QuoteFeed serves quote pulls raised by the engine. A nil feed leaves the
// engine on its own data source.
type QuoteFeed interface {
	Fetch(ctx context.Context, pull chartiq.QuotePull) (bars []chartiq.OHLCVBar, moreAvailable bool, err error)
}

// Engine is the slice of the eval client the view drives during a load.
type Engine interface {
	Navigate(ctx context.Context, url string) error
	InstallBridge(ctx context.Context) error
	AddStudy(ctx context.Context, name string, inputs, outputs, parameters map[string]any) (chartiq.Study, error)
	SetTheme(ctx context.Context, theme chartiq.ThemePreset) error
	SignalStudiesLoaded(ctx context.Context) error
	LoadChart(ctx context.Context, symbol string) error
	PushQuoteData(ctx context.Context, callbackID string, bars []chartiq.OHLCVBar, moreAvailable bool) error
	FailQuoteData(ctx context.Context, callbackID, message string) error
}

// Config carries the static view setup.
type Config struct {
	ChartURL    string
	Symbol      string
	Studies     []string
	Theme       chartiq.ThemePreset
	MaxReloads  int
	LoadTimeout time.Duration
}

// Report is a point-in-time summary of the current load attempt.
type Report struct {
	Stage         string                `json:"stage"`
	Finished      bool                  `json:"finished"`
	TotalTime     float64               `json:"total_time"`
	Steps         string                `json:"steps"`
	Transitions   []loadtrack.Transition `json:"transitions"`
	EngineVersion string                `json:"engine_version"`
	Retries       int                   `json:"retries"`
	Error         string                `json:"error,omitempty"`
}

// View binds the eval client and the bridge listener into one chart: the
// client mutates the engine, HandleEvent consumes everything the page
// reports back. All tracker access is serialized under mu; bridge events
// already arrive on a single goroutine, the mutex covers Load/Reload and
// API callers racing it.
type View struct {
	client Engine
	cfg    Config

	mu       sync.Mutex
	tracker  *loadtrack.Tracker
	attempt  uint64
	retries  int
	version  string
	delegate Delegate
	feed     QuoteFeed
}

func New(client Engine, cfg Config) *View {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 60 * time.Second
	}
	if cfg.Theme == "" {
		// An unset theme leaves the page as shipped; only an explicit
		// preset restyles the chart.
		cfg.Theme = chartiq.ThemeNone
	}
	return &View{client: client, cfg: cfg}
}

func (v *View) SetDelegate(d Delegate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.delegate = d
}

func (v *View) SetQuoteFeed(f QuoteFeed) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.feed = f
}

// EngineVersion reports the engine version announced by the page, or the
// undefined sentinel before the bridge has spoken.
func (v *View) EngineVersion() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.version == "" {
		return loadtrack.UndefinedVersion
	}
	return v.version
}

// Load starts a fresh attempt: new tracker, crash counter reset, navigate
// to the chart page. Progress past the commit is event-driven.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	v.retries = 0
	v.mu.Unlock()
	return v.beginAttempt(ctx)
}

// Reload restarts the page keeping the crash counter, so repeated content
// process terminations eventually surface as a failure instead of looping.
func (v *View) Reload(ctx context.Context) error {
	return v.beginAttempt(ctx)
}

func (v *View) beginAttempt(ctx context.Context) error {
	v.mu.Lock()
	v.attempt++
	attempt := v.attempt
	v.tracker = loadtrack.New(v)
	url := v.cfg.ChartURL
	v.mu.Unlock()

	slog.Info("chart load starting", "url", url, "attempt", attempt)

	if err := v.client.Navigate(ctx, url); err != nil {
		v.failAttempt(attempt, loadtrack.NewProvisionalError(url, v.EngineVersion(), err))
		return err
	}
	return nil
}

// LoadReport snapshots the current attempt.
func (v *View) LoadReport() Report {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reportLocked()
}

func (v *View) reportLocked() Report {
	r := Report{
		Stage:         loadtrack.StageStart.String(),
		EngineVersion: v.version,
		Retries:       v.retries,
	}
	if r.EngineVersion == "" {
		r.EngineVersion = loadtrack.UndefinedVersion
	}
	if v.tracker == nil {
		return r
	}
	records := v.tracker.Records()
	r.Stage = v.tracker.Stage().String()
	r.Finished = v.tracker.Finished()
	r.TotalTime = loadtrack.TotalTime(records)
	r.Steps = loadtrack.Steps(records)
	r.Transitions = records
	if err := v.tracker.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

// HandleEvent is the bridge handler. It must not block: engine setup and
// quote fetches fork off, tracker transitions happen inline.
func (v *View) HandleEvent(evt bridge.Event) {
	switch evt.Kind {
	case bridge.EventNavigationCommit:
		v.onCommit(evt)
	case bridge.EventHTMLLoaded:
		v.onHTMLLoaded()
	case bridge.EventContentTerminated:
		v.onContentTerminated()
	case bridge.EventMeasure:
		v.onMeasure(evt)
	case bridge.EventChartReady:
		v.onChartReady()
	case bridge.EventEngineVersion:
		v.onEngineVersion(evt)
	case bridge.EventFatal:
		v.onFatal(evt)
	case bridge.EventPull:
		v.onPull(evt)
	case bridge.EventLog:
		v.onEngineLog(evt)
	case bridge.EventSymbolChange:
		if sc, err := bridge.DecodeSymbolChange(evt); err == nil {
			slog.Info("chart symbol changed", "symbol", sc.Symbol, "action", sc.Action)
		}
	case bridge.EventLayout, bridge.EventDrawing, bridge.EventStudyEdit:
		slog.Debug("chart state changed", "kind", evt.Kind)
	}
}

func (v *View) onCommit(evt bridge.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tracker == nil || v.tracker.Finished() {
		return
	}
	if v.tracker.Stage() != loadtrack.StageStart {
		// In-page navigations after the initial commit are the engine's
		// business, not a lifecycle step.
		slog.Debug("ignoring late navigation commit", "url", evt.URL)
		return
	}
	v.tracker.Commit()
}

func (v *View) onHTMLLoaded() {
	v.mu.Lock()
	if v.tracker == nil || v.tracker.Finished() || v.tracker.Stage() != loadtrack.StageCommit {
		v.mu.Unlock()
		return
	}
	v.tracker.HTMLLoaded()
	attempt := v.attempt
	v.mu.Unlock()

	go v.completeLoad(attempt)
}

// completeLoad runs the post-DOM setup: install the in-page bridge, apply
// the configured studies and theme, then kick off the chart load. The
// engine answers with studies_loaded and chart_ready over the bridge.
func (v *View) completeLoad(attempt uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), v.cfg.LoadTimeout)
	defer cancel()

	if err := v.client.InstallBridge(ctx); err != nil {
		v.failAttempt(attempt, loadtrack.NewInternalError(v.cfg.ChartURL, v.EngineVersion(), fmt.Sprintf("bridge install: %v", err)))
		return
	}
	for _, study := range v.cfg.Studies {
		if _, err := v.client.AddStudy(ctx, study, nil, nil, nil); err != nil {
			slog.Warn("initial study not applied", "study", study, "error", err)
		}
	}
	if v.cfg.Theme != chartiq.ThemeNone {
		if err := v.client.SetTheme(ctx, v.cfg.Theme); err != nil {
			slog.Warn("initial theme not applied", "theme", v.cfg.Theme, "error", err)
		}
	}
	if err := v.client.SignalStudiesLoaded(ctx); err != nil {
		v.failAttempt(attempt, loadtrack.NewInternalError(v.cfg.ChartURL, v.EngineVersion(), fmt.Sprintf("studies signal: %v", err)))
		return
	}
	if err := v.client.LoadChart(ctx, v.cfg.Symbol); err != nil {
		v.failAttempt(attempt, loadtrack.NewNavigationError(v.cfg.ChartURL, v.EngineVersion(), err))
		return
	}
}

func (v *View) onMeasure(evt bridge.Event) {
	m, err := bridge.DecodeMeasure(evt)
	if err != nil {
		slog.Warn("bad measure payload", "error", err)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tracker == nil || v.tracker.Finished() {
		return
	}
	switch m.Stage {
	case "studies_loaded":
		v.tracker.StudiesLoaded()
	case "bridge_installed":
		slog.Debug("bridge installed in page")
	default:
		slog.Debug("measure", "stage", m.Stage)
	}
}

func (v *View) onChartReady() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tracker == nil || v.tracker.Finished() {
		return
	}
	v.tracker.Loaded()
}

func (v *View) onEngineVersion(evt bridge.Event) {
	ver, err := bridge.DecodeEngineVersion(evt)
	if err != nil {
		slog.Warn("bad engine version payload", "error", err)
		return
	}
	v.mu.Lock()
	v.version = ver.Version
	v.mu.Unlock()
	slog.Info("engine version", "version", ver.Version)
}

func (v *View) onContentTerminated() {
	v.mu.Lock()
	v.retries++
	retries := v.retries
	finished := v.tracker != nil && v.tracker.Finished()
	v.mu.Unlock()

	if retries <= v.cfg.MaxReloads {
		slog.Warn("web content terminated, reloading", "retry", retries, "max", v.cfg.MaxReloads)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), v.cfg.LoadTimeout)
			defer cancel()
			if err := v.Reload(ctx); err != nil {
				slog.Error("reload after termination failed", "error", err)
			}
		}()
		return
	}

	termErr := loadtrack.NewTerminationError(v.cfg.ChartURL, v.EngineVersion(), retries)
	if finished {
		// The attempt already concluded; a crash afterwards is an alert,
		// not a lifecycle transition.
		slog.Error("web content terminated after load completed", "error", termErr)
		return
	}
	v.mu.Lock()
	if v.tracker != nil {
		v.tracker.Failed(termErr)
	}
	v.mu.Unlock()
}

func (v *View) onFatal(evt bridge.Event) {
	f, err := bridge.DecodeFatal(evt)
	if err != nil {
		slog.Warn("bad fatal payload", "error", err)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tracker == nil || v.tracker.Finished() {
		slog.Error("engine error after load settled", "detail", f.Detail)
		return
	}
	version := v.version
	if version == "" {
		version = loadtrack.UndefinedVersion
	}
	v.tracker.Failed(loadtrack.NewInternalError(v.cfg.ChartURL, version, f.Detail))
}

func (v *View) onPull(evt bridge.Event) {
	pull, err := bridge.DecodePull(evt)
	if err != nil {
		slog.Warn("bad quote pull payload", "error", err)
		return
	}
	v.mu.Lock()
	feed := v.feed
	v.mu.Unlock()
	if feed == nil {
		slog.Debug("quote pull ignored, no feed", "symbol", pull.Symbol, "kind", pull.Kind)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.cfg.LoadTimeout)
		defer cancel()
		bars, more, err := feed.Fetch(ctx, pull)
		if err != nil {
			slog.Warn("quote fetch failed", "symbol", pull.Symbol, "kind", pull.Kind, "error", err)
			if perr := v.client.FailQuoteData(ctx, pull.CallbackID, err.Error()); perr != nil {
				slog.Error("quote failure not delivered", "error", perr)
			}
			return
		}
		if perr := v.client.PushQuoteData(ctx, pull.CallbackID, bars, more); perr != nil {
			slog.Error("quote data not delivered", "symbol", pull.Symbol, "error", perr)
		}
	}()
}

func (v *View) onEngineLog(evt bridge.Event) {
	line, err := bridge.DecodeLog(evt)
	if err != nil {
		return
	}
	switch line.Level {
	case "error":
		slog.Error("engine console", "line", line.Line)
	case "warn":
		slog.Warn("engine console", "line", line.Line)
	default:
		slog.Debug("engine console", "line", line.Line)
	}
}

// failAttempt fails the tracker for the given attempt. Stale goroutines
// from a superseded attempt must not touch the current tracker.
func (v *View) failAttempt(attempt uint64, lerr *loadtrack.LoadError) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.attempt != attempt || v.tracker == nil || v.tracker.Finished() {
		slog.Debug("stale attempt failure dropped", "attempt", attempt, "error", lerr)
		return
	}
	v.tracker.Failed(lerr)
}

// Finished implements loadtrack.Listener.
func (v *View) Finished(records []loadtrack.Transition) {
	v.retries = 0
	slog.Info("chart loaded",
		"total_time", loadtrack.TotalTime(records),
		"steps", loadtrack.Steps(records),
	)
	if v.delegate != nil {
		v.delegate.ChartLoaded(v.reportLocked())
	}
}

// FailedLoad implements loadtrack.Listener.
func (v *View) FailedLoad(lerr *loadtrack.LoadError, records []loadtrack.Transition) {
	slog.Error("chart load failed",
		"error", lerr,
		"kind", lerr.Kind.String(),
		"steps", loadtrack.Steps(records),
	)
	if v.delegate != nil {
		v.delegate.ChartFailed(lerr, v.reportLocked())
	}
}

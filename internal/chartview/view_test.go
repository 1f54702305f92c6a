package chartview

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trading-point/chartiq-agent/internal/bridge"
	"github.com/trading-point/chartiq-agent/internal/chartiq"
	"github.com/trading-point/chartiq-agent/internal/loadtrack"
)

type fakeEngine struct {
	mu          sync.Mutex
	navigates   []string
	navErr      error
	installed   int
	signaled    int
	themes      []chartiq.ThemePreset
	loaded      []string
	pushed      []string
	failed      []string
	loadChartCh chan struct{}
	navigateCh  chan struct{}
	pushCh      chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		loadChartCh: make(chan struct{}, 8),
		navigateCh:  make(chan struct{}, 8),
		pushCh:      make(chan struct{}, 8),
	}
}

func (f *fakeEngine) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	f.navigates = append(f.navigates, url)
	err := f.navErr
	f.mu.Unlock()
	f.navigateCh <- struct{}{}
	return err
}

func (f *fakeEngine) InstallBridge(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed++
	return nil
}

func (f *fakeEngine) AddStudy(_ context.Context, name string, _, _, _ map[string]any) (chartiq.Study, error) {
	return chartiq.Study{Name: name}, nil
}

func (f *fakeEngine) SetTheme(_ context.Context, theme chartiq.ThemePreset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.themes = append(f.themes, theme)
	return nil
}

func (f *fakeEngine) SignalStudiesLoaded(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled++
	return nil
}

func (f *fakeEngine) LoadChart(_ context.Context, symbol string) error {
	f.mu.Lock()
	f.loaded = append(f.loaded, symbol)
	f.mu.Unlock()
	f.loadChartCh <- struct{}{}
	return nil
}

func (f *fakeEngine) PushQuoteData(_ context.Context, callbackID string, _ []chartiq.OHLCVBar, _ bool) error {
	f.mu.Lock()
	f.pushed = append(f.pushed, callbackID)
	f.mu.Unlock()
	f.pushCh <- struct{}{}
	return nil
}

func (f *fakeEngine) FailQuoteData(_ context.Context, callbackID, _ string) error {
	f.mu.Lock()
	f.failed = append(f.failed, callbackID)
	f.mu.Unlock()
	f.pushCh <- struct{}{}
	return nil
}

type recordingDelegate struct {
	loaded []Report
	fails  []*loadtrack.LoadError
}

func (d *recordingDelegate) ChartLoaded(r Report) { d.loaded = append(d.loaded, r) }
func (d *recordingDelegate) ChartFailed(err *loadtrack.LoadError, _ Report) {
	d.fails = append(d.fails, err)
}

func wait(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func testConfig() Config {
	return Config{
		ChartURL:    "http://127.0.0.1:8080/chartiq/index.html",
		Symbol:      "AAPL",
		MaxReloads:  1,
		LoadTimeout: 2 * time.Second,
	}
}

func TestFullLoadSequence(t *testing.T) {
	eng := newFakeEngine()
	del := &recordingDelegate{}
	v := New(eng, testConfig())
	v.SetDelegate(del)

	if err := v.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	wait(t, eng.navigateCh, "navigate")

	v.HandleEvent(bridge.Event{Kind: bridge.EventNavigationCommit, URL: testConfig().ChartURL})
	v.HandleEvent(bridge.Event{Kind: bridge.EventHTMLLoaded})
	wait(t, eng.loadChartCh, "loadChart")

	v.HandleEvent(bridge.Event{Kind: bridge.EventEngineVersion, Payload: json.RawMessage(`{"version":"9.5.1"}`)})
	v.HandleEvent(bridge.Event{Kind: bridge.EventMeasure, Payload: json.RawMessage(`{"stage":"studies_loaded"}`)})
	v.HandleEvent(bridge.Event{Kind: bridge.EventChartReady})

	report := v.LoadReport()
	if report.Stage != "loaded" || !report.Finished {
		t.Fatalf("report = %+v; want loaded/finished", report)
	}
	if len(report.Transitions) != 4 {
		t.Fatalf("transitions = %d; want 4", len(report.Transitions))
	}
	if !strings.HasPrefix(report.Steps, "start -> commit") {
		t.Fatalf("steps = %q; want start -> commit prefix", report.Steps)
	}
	if got := v.EngineVersion(); got != "9.5.1" {
		t.Fatalf("EngineVersion = %q; want 9.5.1", got)
	}
	if len(del.loaded) != 1 || len(del.fails) != 0 {
		t.Fatalf("delegate loaded=%d fails=%d; want 1/0", len(del.loaded), len(del.fails))
	}
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.installed != 1 || eng.signaled != 1 {
		t.Fatalf("installed=%d signaled=%d; want 1/1", eng.installed, eng.signaled)
	}
	if len(eng.loaded) != 1 || eng.loaded[0] != "AAPL" {
		t.Fatalf("loaded = %v; want [AAPL]", eng.loaded)
	}
	if len(eng.themes) != 0 {
		t.Fatalf("SetTheme calls = %v; want none without a configured theme", eng.themes)
	}
}

func TestConfiguredThemeApplied(t *testing.T) {
	eng := newFakeEngine()
	cfg := testConfig()
	cfg.Theme = chartiq.ThemeNight
	v := New(eng, cfg)

	if err := v.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v.HandleEvent(bridge.Event{Kind: bridge.EventNavigationCommit})
	v.HandleEvent(bridge.Event{Kind: bridge.EventHTMLLoaded})
	wait(t, eng.loadChartCh, "loadChart")

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if len(eng.themes) != 1 || eng.themes[0] != chartiq.ThemeNight {
		t.Fatalf("themes = %v; want [night]", eng.themes)
	}
}

func TestTerminalEventsAfterLoadIgnored(t *testing.T) {
	eng := newFakeEngine()
	del := &recordingDelegate{}
	v := New(eng, testConfig())
	v.SetDelegate(del)

	if err := v.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v.HandleEvent(bridge.Event{Kind: bridge.EventNavigationCommit})
	v.HandleEvent(bridge.Event{Kind: bridge.EventHTMLLoaded})
	wait(t, eng.loadChartCh, "loadChart")
	v.HandleEvent(bridge.Event{Kind: bridge.EventMeasure, Payload: json.RawMessage(`{"stage":"studies_loaded"}`)})
	v.HandleEvent(bridge.Event{Kind: bridge.EventChartReady})

	// Duplicates and late failures after the terminal stage change nothing.
	v.HandleEvent(bridge.Event{Kind: bridge.EventChartReady})
	v.HandleEvent(bridge.Event{Kind: bridge.EventFatal, Payload: json.RawMessage(`{"detail":"late"}`)})

	if len(del.loaded) != 1 || len(del.fails) != 0 {
		t.Fatalf("delegate loaded=%d fails=%d; want 1/0", len(del.loaded), len(del.fails))
	}
	if got := v.LoadReport().Stage; got != "loaded" {
		t.Fatalf("stage = %q; want loaded", got)
	}
}

func TestNavigateFailureReportsProvisionalError(t *testing.T) {
	eng := newFakeEngine()
	eng.navErr = errors.New("connection refused")
	del := &recordingDelegate{}
	v := New(eng, testConfig())
	v.SetDelegate(del)

	if err := v.Load(context.Background()); err == nil {
		t.Fatal("Load should surface navigate error")
	}
	if len(del.fails) != 1 {
		t.Fatalf("fails = %d; want 1", len(del.fails))
	}
	lerr := del.fails[0]
	if lerr.Kind != loadtrack.ErrProvisionalNavigation {
		t.Fatalf("kind = %v; want provisional navigation", lerr.Kind)
	}
	if lerr.Version != loadtrack.UndefinedVersion {
		t.Fatalf("version = %q; want %q", lerr.Version, loadtrack.UndefinedVersion)
	}
	report := v.LoadReport()
	if report.Stage != "failed" || !report.Finished {
		t.Fatalf("report = %+v; want failed/finished", report)
	}
}

func TestContentTerminationRetriesThenFails(t *testing.T) {
	eng := newFakeEngine()
	del := &recordingDelegate{}
	v := New(eng, testConfig()) // MaxReloads: 1
	v.SetDelegate(del)

	if err := v.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	wait(t, eng.navigateCh, "initial navigate")

	// First crash triggers a reload.
	v.HandleEvent(bridge.Event{Kind: bridge.EventContentTerminated})
	wait(t, eng.navigateCh, "reload navigate")
	if len(del.fails) != 0 {
		t.Fatalf("fails = %d before budget exhausted; want 0", len(del.fails))
	}

	// Second crash exhausts the budget and fails the attempt.
	v.HandleEvent(bridge.Event{Kind: bridge.EventContentTerminated})
	if len(del.fails) != 1 {
		t.Fatalf("fails = %d; want 1", len(del.fails))
	}
	lerr := del.fails[0]
	if lerr.Kind != loadtrack.ErrWebContentTerminated {
		t.Fatalf("kind = %v; want content terminated", lerr.Kind)
	}
	if lerr.Retries != 2 {
		t.Fatalf("retries = %d; want 2", lerr.Retries)
	}
}

func TestQuotePullRoundTrip(t *testing.T) {
	eng := newFakeEngine()
	v := New(eng, testConfig())

	bars := []chartiq.OHLCVBar{{DT: "2026-08-26T00:00:00.000Z", Close: 101.5}}
	v.SetQuoteFeed(feedFunc(func(_ context.Context, pull chartiq.QuotePull) ([]chartiq.OHLCVBar, bool, error) {
		if pull.Symbol != "AAPL" {
			return nil, false, errors.New("unknown symbol")
		}
		return bars, false, nil
	}))

	v.HandleEvent(bridge.Event{
		Kind:    bridge.EventPull,
		Payload: json.RawMessage(`{"kind":"initial","cb":"cb-7","symbol":"AAPL"}`),
	})
	wait(t, eng.pushCh, "quote push")

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if len(eng.pushed) != 1 || eng.pushed[0] != "cb-7" {
		t.Fatalf("pushed = %v; want [cb-7]", eng.pushed)
	}
}

func TestQuotePullFailureForwarded(t *testing.T) {
	eng := newFakeEngine()
	v := New(eng, testConfig())
	v.SetQuoteFeed(feedFunc(func(context.Context, chartiq.QuotePull) ([]chartiq.OHLCVBar, bool, error) {
		return nil, false, errors.New("upstream down")
	}))

	v.HandleEvent(bridge.Event{
		Kind:    bridge.EventPull,
		Payload: json.RawMessage(`{"kind":"update","cb":"cb-9","symbol":"AAPL"}`),
	})
	wait(t, eng.pushCh, "quote failure")

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if len(eng.failed) != 1 || eng.failed[0] != "cb-9" {
		t.Fatalf("failed = %v; want [cb-9]", eng.failed)
	}
}

func TestEngineVersionSentinel(t *testing.T) {
	v := New(newFakeEngine(), testConfig())
	if got := v.EngineVersion(); got != loadtrack.UndefinedVersion {
		t.Fatalf("EngineVersion = %q; want %q", got, loadtrack.UndefinedVersion)
	}
}

type feedFunc func(ctx context.Context, pull chartiq.QuotePull) ([]chartiq.OHLCVBar, bool, error)

func (f feedFunc) Fetch(ctx context.Context, pull chartiq.QuotePull) ([]chartiq.OHLCVBar, bool, error) {
	return f(ctx, pull)
}

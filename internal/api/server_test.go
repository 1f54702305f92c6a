package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/trading-point/chartiq-agent/internal/bridge"
	"github.com/trading-point/chartiq-agent/internal/chartiq"
	"github.com/trading-point/chartiq-agent/internal/chartview"
	"github.com/trading-point/chartiq-agent/internal/snapshot"
)

type fakeService struct {
	symbol    string
	setSymbol string
	report    chartview.Report
	err       error
}

func (f *fakeService) LoadChart(context.Context) error   { return f.err }
func (f *fakeService) ReloadChart(context.Context) error { return f.err }
func (f *fakeService) LoadReport() chartview.Report      { return f.report }
func (f *fakeService) Chart(context.Context) (chartiq.ChartInfo, error) {
	return chartiq.ChartInfo{TargetID: "TAB1", URL: "http://charts.local"}, f.err
}
func (f *fakeService) EngineInfo(context.Context) (chartiq.EngineInfo, error) {
	return chartiq.EngineInfo{Version: "9.5.1"}, f.err
}
func (f *fakeService) GetSymbol(context.Context) (string, error) { return f.symbol, f.err }
func (f *fakeService) SetSymbol(_ context.Context, symbol string) (string, error) {
	f.setSymbol = symbol
	return symbol, f.err
}
func (f *fakeService) GetPeriodicity(context.Context) (chartiq.Periodicity, error) {
	return chartiq.Periodicity{Period: 1, Interval: "5", TimeUnit: "minute"}, f.err
}
func (f *fakeService) SetPeriodicity(context.Context, chartiq.Periodicity) error { return f.err }
func (f *fakeService) GetChartType(context.Context) (string, error)              { return "candle", f.err }
func (f *fakeService) SetChartType(context.Context, string) error                { return f.err }
func (f *fakeService) GetChartScale(context.Context) (string, error)             { return "linear", f.err }
func (f *fakeService) SetChartScale(context.Context, string) error               { return f.err }
func (f *fakeService) GetCrosshair(context.Context) (bool, error)                { return true, f.err }
func (f *fakeService) SetCrosshair(context.Context, bool) error                  { return f.err }
func (f *fakeService) SetTheme(context.Context, string) error                    { return f.err }
func (f *fakeService) GetLayout(context.Context) (map[string]any, error) {
	return map[string]any{"chartType": "candle"}, f.err
}
func (f *fakeService) SetLayout(context.Context, map[string]any) error { return f.err }
func (f *fakeService) Invoke(context.Context, string, []any) (any, error) {
	return "ok", f.err
}
func (f *fakeService) RaiseEngineError(context.Context, string) error { return f.err }
func (f *fakeService) ListStudies(context.Context) ([]chartiq.Study, error) {
	return []chartiq.Study{{Name: "rsi"}}, f.err
}
func (f *fakeService) AvailableStudies(context.Context) ([]chartiq.Study, error) {
	return nil, f.err
}
func (f *fakeService) AddStudy(context.Context, string, map[string]any, map[string]any, map[string]any) (chartiq.Study, error) {
	return chartiq.Study{Name: "rsi"}, f.err
}
func (f *fakeService) GetStudyDetail(context.Context, string) (chartiq.StudyDetail, error) {
	return chartiq.StudyDetail{Name: "rsi"}, f.err
}
func (f *fakeService) ModifyStudy(context.Context, string, map[string]any, map[string]any, map[string]any) (chartiq.StudyDetail, error) {
	return chartiq.StudyDetail{Name: "rsi"}, f.err
}
func (f *fakeService) RemoveStudy(context.Context, string) error      { return f.err }
func (f *fakeService) RemoveAllStudies(context.Context) (int, error)  { return 2, f.err }
func (f *fakeService) GetDrawingTool(context.Context) (string, error) { return "line", f.err }
func (f *fakeService) SetDrawingTool(context.Context, string) error   { return f.err }
func (f *fakeService) ListDrawings(context.Context) ([]chartiq.Drawing, error) {
	return nil, f.err
}
func (f *fakeService) ExportDrawings(context.Context) (any, error)   { return nil, f.err }
func (f *fakeService) ImportDrawings(context.Context, any) error     { return f.err }
func (f *fakeService) ClearDrawings(context.Context) (int, error)    { return 0, f.err }
func (f *fakeService) UndoDrawing(context.Context) error             { return f.err }
func (f *fakeService) RedoDrawing(context.Context) error             { return f.err }
func (f *fakeService) CaptureSnapshot(context.Context, string, int, string) (snapshot.Meta, error) {
	return snapshot.Meta{ID: "123e4567-e89b-12d3-a456-426614174000"}, f.err
}
func (f *fakeService) ListSnapshots() ([]snapshot.Meta, error)      { return nil, f.err }
func (f *fakeService) GetSnapshot(string) (snapshot.Meta, error)    { return snapshot.Meta{}, f.err }
func (f *fakeService) ReadSnapshotImage(string) ([]byte, string, error) {
	return []byte{1}, "png", f.err
}
func (f *fakeService) DeleteSnapshot(string) error { return f.err }

func TestHealthReflectsLoadReport(t *testing.T) {
	svc := &fakeService{report: chartview.Report{Stage: "loaded", Finished: true, TotalTime: 1.75, EngineVersion: "9.5.1"}}
	srv := httptest.NewServer(NewServer(svc, nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	var body struct {
		Status        string  `json:"status"`
		Stage         string  `json:"stage"`
		TotalTime     float64 `json:"total_time"`
		EngineVersion string  `json:"engine_version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Stage != "loaded" || body.TotalTime != 1.75 {
		t.Fatalf("body = %+v", body)
	}
}

func TestHealthDegradedAfterFailure(t *testing.T) {
	svc := &fakeService{report: chartview.Report{Stage: "failed", Finished: true}}
	srv := httptest.NewServer(NewServer(svc, nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("status = %q; want degraded", body.Status)
	}
}

func TestSetSymbolRoundTrip(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(NewServer(svc, nil))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/chart/symbol", strings.NewReader(`{"symbol":"MSFT"}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT symbol: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d; body = %s", resp.StatusCode, raw)
	}
	if svc.setSymbol != "MSFT" {
		t.Fatalf("setSymbol = %q; want MSFT", svc.setSymbol)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{chartiq.CodeValidation, http.StatusBadRequest},
		{chartiq.CodeChartNotFound, http.StatusNotFound},
		{chartiq.CodeSnapshotNotFound, http.StatusNotFound},
		{chartiq.CodeEvalTimeout, http.StatusGatewayTimeout},
		{chartiq.CodeAPIUnavailable, http.StatusBadGateway},
		{chartiq.CodeCDPUnavailable, http.StatusBadGateway},
		{chartiq.CodeEvalFailure, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := mapErr(&chartiq.CodedError{Code: tc.code, Message: "x"})
		var status huma.StatusError
		if ok := asStatusError(err, &status); !ok {
			t.Fatalf("mapErr(%s) did not return a status error: %v", tc.code, err)
		}
		if status.GetStatus() != tc.want {
			t.Fatalf("mapErr(%s) status = %d; want %d", tc.code, status.GetStatus(), tc.want)
		}
	}
}

func asStatusError(err error, target *huma.StatusError) bool {
	se, ok := err.(huma.StatusError)
	if ok {
		*target = se
	}
	return ok
}

func TestSSEStreamsBridgeEvents(t *testing.T) {
	broker := bridge.NewBroker()
	srv := httptest.NewServer(NewServer(&fakeService{}, broker))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/events?kinds=chart_ready")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q; want text/event-stream", got)
	}

	// Wait for the subscriber before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for broker.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("SSE client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.Publish(bridge.Event{Kind: bridge.EventHTMLLoaded, TargetID: "TAB1"}) // filtered out
	broker.Publish(bridge.Event{Kind: bridge.EventChartReady, TargetID: "TAB1"})

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	payload := string(buf[:n])
	if !strings.Contains(payload, "event: chart_ready") {
		t.Fatalf("payload = %q; want chart_ready event", payload)
	}
	if strings.Contains(payload, "html_loaded") {
		t.Fatalf("payload = %q; filtered event leaked", payload)
	}
}

package chartiq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
)

// transientHints are substrings in error causes that indicate a transient
// failure worth retrying (e.g. broken connection, closed session).
var transientHints = []string{
	"context canceled",
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
}

// Client drives the embedded chart page: it owns the raw CDP connection,
// the flat session attached to the chart tab, and every script evaluation.
// One Client manages exactly one chart tab, selected by URL filter.
type Client struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration

	mu        sync.Mutex
	cdp       *rawCDP
	info      ChartInfo
	sessionID string

	evalMu sync.Mutex
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func NewClient(cdpURL, tabFilter string, evalTimeout time.Duration) *Client {
	return &Client{
		cdpURL:      cdpURL,
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return NewError(CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("chartiq connect start", "cdp_url", c.cdpURL)
	c.cleanupLocked()

	c.cdp = newRawCDP(c.cdpURL)
	if err := c.cdp.connect(ctx); err != nil {
		c.cdp = nil
		return NewError(CodeCDPUnavailable, "connect to CDP failed", err)
	}

	if err := c.syncTabLocked(ctx); err != nil {
		slog.Error("chartiq chart tab discovery failed", "error", err)
		c.cleanupLocked()
		return err
	}

	slog.Info("chartiq connect ok", "cdp_url", c.cdpURL, "chart_url", c.info.URL)
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	return nil
}

func (c *Client) cleanupLocked() {
	if c.cdp != nil {
		if c.sessionID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = c.cdp.detachFromTarget(ctx, c.sessionID)
			cancel()
		}
		c.cdp.close()
		c.cdp = nil
	}
	c.sessionID = ""
	c.info = ChartInfo{}
}

// syncTabLocked finds the chart tab matching the URL filter. The first
// matching page target wins.
func (c *Client) syncTabLocked(ctx context.Context) error {
	if c.cdp == nil {
		return NewError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return NewError(CodeCDPUnavailable, "failed to list targets", err)
	}

	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if c.tabFilter != "" && !strings.Contains(strings.ToLower(t.URL), c.tabFilter) {
			continue
		}
		if string(t.TargetID) != c.info.TargetID {
			// New or replaced tab; any old session is stale.
			c.sessionID = ""
		}
		c.info = ChartInfo{TargetID: string(t.TargetID), URL: t.URL, Title: t.Title}
		slog.Debug("chartiq chart tab", "target_id", c.info.TargetID, "url", c.info.URL)
		return nil
	}
	return NewError(CodeChartNotFound, "no chart tab matches filter: "+c.tabFilter, nil)
}

// Chart returns the chart tab currently tracked by the client.
func (c *Client) Chart(ctx context.Context) (ChartInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.syncTabLocked(ctx); err != nil {
		return ChartInfo{}, err
	}
	return c.info, nil
}

// TargetID returns the tracked tab's target ID, empty before discovery.
func (c *Client) TargetID() target.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return target.ID(c.info.TargetID)
}

// ensureSession attaches a flat session to the chart tab if needed and
// enables the Page domain so navigation commands behave predictably.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cdp == nil {
		return "", NewError(CodeCDPUnavailable, "CDP client not connected", nil)
	}
	if c.sessionID != "" {
		return c.sessionID, nil
	}
	if c.info.TargetID == "" {
		if err := c.syncTabLocked(ctx); err != nil {
			return "", err
		}
	}

	sessionID, err := c.cdp.attachToTarget(ctx, c.info.TargetID)
	if err != nil {
		return "", NewError(CodeCDPUnavailable, "attach to chart tab failed", err)
	}
	if err := c.cdp.enablePageDomain(ctx, sessionID); err != nil {
		slog.Warn("chartiq Page.enable failed", "error", err)
	}
	c.sessionID = sessionID
	return sessionID, nil
}

// resetSession drops the cached session so the next call re-attaches.
func (c *Client) resetSession() {
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()
}

// Navigate points the chart tab at url. A navigation refused by the browser
// (net::ERR_*) surfaces as a CDP_UNAVAILABLE coded error with the cause.
func (c *Client) Navigate(ctx context.Context, url string) error {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}
	if err := c.cdp.navigate(ctx, sessionID, url); err != nil {
		return NewError(CodeCDPUnavailable, "navigation failed", err)
	}
	return nil
}

// eval runs one generated script against the chart tab, decodes the
// envelope into out, and retries once after transient transport failures.
// Calls are serialized; the engine's JS API is not reentrant.
func (c *Client) eval(ctx context.Context, js string, out any) error {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	err := c.evalOnce(ctx, js, out)
	if err == nil {
		return nil
	}
	if !c.shouldRetry(err) {
		return err
	}

	slog.Warn("chartiq eval retry after transient failure", "error", err)
	if c.asCode(err, CodeCDPUnavailable) {
		if recErr := c.reconnect(ctx); recErr != nil {
			slog.Error("chartiq reconnect failed during retry", "error", recErr)
			return recErr
		}
	} else {
		c.resetSession()
	}
	return c.evalOnce(ctx, js, out)
}

func (c *Client) evalOnce(ctx context.Context, js string, out any) error {
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil {
		return NewError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	evalCtx, evalCancel := context.WithTimeout(ctx, c.evalTimeout)
	defer evalCancel()

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		slog.Warn("chartiq eval failed", "error", err)
		c.resetSession()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return NewError(CodeEvalTimeout, "evaluation timed out", err)
		}
		return NewError(CodeEvalFailure, "evaluation failed", err)
	}

	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return NewError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return NewError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return NewError(CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) shouldRetry(err error) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}

	switch coded.Code {
	case CodeCDPUnavailable:
		return true
	case CodeChartNotFound:
		return false
	case CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range transientHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}

func (c *Client) asCode(err error, code string) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == code
}

// --- typed chart operations ---

func (c *Client) EngineInfo(ctx context.Context) (EngineInfo, error) {
	var out EngineInfo
	if err := c.eval(ctx, jsEngineInfo(), &out); err != nil {
		return EngineInfo{}, err
	}
	return out, nil
}

func (c *Client) GetSymbol(ctx context.Context) (string, error) {
	var out struct {
		Symbol string `json:"symbol"`
	}
	if err := c.eval(ctx, jsGetSymbol(), &out); err != nil {
		return "", err
	}
	return out.Symbol, nil
}

// LoadChart kicks off a full chart load; completion is reported over the
// bridge as a chart_ready event rather than in the eval result.
func (c *Client) LoadChart(ctx context.Context, symbol string) error {
	return c.eval(ctx, jsLoadChart(symbol), nil)
}

func (c *Client) SetSymbol(ctx context.Context, symbol string) (string, error) {
	var out struct {
		Symbol string `json:"symbol"`
	}
	if err := c.eval(ctx, jsSetSymbol(symbol), &out); err != nil {
		return "", err
	}
	return out.Symbol, nil
}

func (c *Client) GetPeriodicity(ctx context.Context) (Periodicity, error) {
	var out Periodicity
	if err := c.eval(ctx, jsGetPeriodicity(), &out); err != nil {
		return Periodicity{}, err
	}
	return out, nil
}

func (c *Client) SetPeriodicity(ctx context.Context, p Periodicity) error {
	return c.eval(ctx, jsSetPeriodicity(p), nil)
}

func (c *Client) GetChartType(ctx context.Context) (string, error) {
	var out struct {
		ChartType string `json:"chart_type"`
	}
	if err := c.eval(ctx, jsGetChartType(), &out); err != nil {
		return "", err
	}
	return out.ChartType, nil
}

func (c *Client) SetChartType(ctx context.Context, chartType string) error {
	return c.eval(ctx, jsSetChartType(chartType), nil)
}

func (c *Client) GetChartScale(ctx context.Context) (string, error) {
	var out struct {
		Scale string `json:"scale"`
	}
	if err := c.eval(ctx, jsGetChartScale(), &out); err != nil {
		return "", err
	}
	return out.Scale, nil
}

func (c *Client) SetChartScale(ctx context.Context, scale string) error {
	return c.eval(ctx, jsSetChartScale(scale), nil)
}

func (c *Client) GetCrosshair(ctx context.Context) (bool, error) {
	var out struct {
		Crosshair bool `json:"crosshair"`
	}
	if err := c.eval(ctx, jsGetCrosshair(), &out); err != nil {
		return false, err
	}
	return out.Crosshair, nil
}

func (c *Client) SetCrosshair(ctx context.Context, enabled bool) error {
	return c.eval(ctx, jsSetCrosshair(enabled), nil)
}

func (c *Client) SetTheme(ctx context.Context, theme ThemePreset) error {
	return c.eval(ctx, jsSetTheme(theme), nil)
}

func (c *Client) GetLayout(ctx context.Context) (map[string]any, error) {
	var out struct {
		Layout map[string]any `json:"layout"`
	}
	if err := c.eval(ctx, jsGetLayout(), &out); err != nil {
		return nil, err
	}
	return out.Layout, nil
}

func (c *Client) SetLayout(ctx context.Context, layout map[string]any) error {
	return c.eval(ctx, jsSetLayout(layout), nil)
}

// Invoke calls an arbitrary engine method by name. Results come back as
// loosely typed JSON.
func (c *Client) Invoke(ctx context.Context, method string, args []any) (any, error) {
	var out struct {
		Result any `json:"result"`
	}
	if err := c.eval(ctx, jsInvoke(method, args), &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// --- studies ---

func (c *Client) ListStudies(ctx context.Context) ([]Study, error) {
	var out struct {
		Studies []Study `json:"studies"`
	}
	if err := c.eval(ctx, jsListStudies(), &out); err != nil {
		return nil, err
	}
	if out.Studies == nil {
		return []Study{}, nil
	}
	return out.Studies, nil
}

func (c *Client) AvailableStudies(ctx context.Context) ([]Study, error) {
	var out struct {
		Studies []Study `json:"studies"`
	}
	if err := c.eval(ctx, jsAvailableStudies(), &out); err != nil {
		return nil, err
	}
	if out.Studies == nil {
		return []Study{}, nil
	}
	return out.Studies, nil
}

func (c *Client) AddStudy(ctx context.Context, name string, inputs, outputs, parameters map[string]any) (Study, error) {
	var out struct {
		Study Study `json:"study"`
	}
	if err := c.eval(ctx, jsAddStudy(name, inputs, outputs, parameters), &out); err != nil {
		return Study{}, err
	}
	return out.Study, nil
}

func (c *Client) GetStudyDetail(ctx context.Context, name string) (StudyDetail, error) {
	var out struct {
		Study StudyDetail `json:"study"`
	}
	if err := c.eval(ctx, jsGetStudyDetail(name), &out); err != nil {
		return StudyDetail{}, err
	}
	return out.Study, nil
}

func (c *Client) ModifyStudy(ctx context.Context, name string, inputs, outputs, parameters map[string]any) (StudyDetail, error) {
	var out struct {
		Study StudyDetail `json:"study"`
	}
	if err := c.eval(ctx, jsModifyStudy(name, inputs, outputs, parameters), &out); err != nil {
		return StudyDetail{}, err
	}
	return out.Study, nil
}

func (c *Client) RemoveStudy(ctx context.Context, name string) error {
	return c.eval(ctx, jsRemoveStudy(name), nil)
}

func (c *Client) RemoveAllStudies(ctx context.Context) (int, error) {
	var out struct {
		Removed int `json:"removed"`
	}
	if err := c.eval(ctx, jsRemoveAllStudies(), &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// --- drawings ---

func (c *Client) GetDrawingTool(ctx context.Context) (string, error) {
	var out struct {
		Tool string `json:"tool"`
	}
	if err := c.eval(ctx, jsGetDrawingTool(), &out); err != nil {
		return "", err
	}
	return out.Tool, nil
}

func (c *Client) SetDrawingTool(ctx context.Context, tool string) error {
	return c.eval(ctx, jsSetDrawingTool(tool), nil)
}

func (c *Client) ListDrawings(ctx context.Context) ([]Drawing, error) {
	var out struct {
		Drawings []Drawing `json:"drawings"`
	}
	if err := c.eval(ctx, jsListDrawings(), &out); err != nil {
		return nil, err
	}
	if out.Drawings == nil {
		return []Drawing{}, nil
	}
	return out.Drawings, nil
}

func (c *Client) ExportDrawings(ctx context.Context) (any, error) {
	var out struct {
		State any `json:"state"`
	}
	if err := c.eval(ctx, jsExportDrawings(), &out); err != nil {
		return nil, err
	}
	return out.State, nil
}

func (c *Client) ImportDrawings(ctx context.Context, state any) error {
	return c.eval(ctx, jsImportDrawings(state), nil)
}

func (c *Client) ClearDrawings(ctx context.Context) (int, error) {
	var out struct {
		Removed int `json:"removed"`
	}
	if err := c.eval(ctx, jsClearDrawings(), &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) UndoDrawing(ctx context.Context) error {
	return c.eval(ctx, jsUndoDrawing(), nil)
}

func (c *Client) RedoDrawing(ctx context.Context) error {
	return c.eval(ctx, jsRedoDrawing(), nil)
}

// --- bridge and quote feed ---

func (c *Client) InstallBridge(ctx context.Context) error {
	return c.eval(ctx, jsInstallBridge(), nil)
}

func (c *Client) SignalStudiesLoaded(ctx context.Context) error {
	return c.eval(ctx, jsSignalStudiesLoaded(), nil)
}

// RaiseInternalError makes the page report a fatal condition over the
// bridge, exercising the failure path end to end.
func (c *Client) RaiseInternalError(ctx context.Context, detail string) error {
	return c.eval(ctx, jsRaiseInternalError(detail), nil)
}

func (c *Client) PushQuoteData(ctx context.Context, callbackID string, bars []OHLCVBar, moreAvailable bool) error {
	return c.eval(ctx, jsPushQuoteData(callbackID, bars, moreAvailable), nil)
}

func (c *Client) FailQuoteData(ctx context.Context, callbackID, message string) error {
	return c.eval(ctx, jsFailQuoteData(callbackID, message), nil)
}

// Screenshot captures the chart tab as a base64-encoded image.
func (c *Client) Screenshot(ctx context.Context, format string, quality int, fullPage bool) (string, error) {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil {
		return "", NewError(CodeCDPUnavailable, "CDP client not connected", nil)
	}
	data, err := cdp.captureScreenshot(ctx, sessionID, format, quality, fullPage)
	if err != nil {
		return "", NewError(CodeEvalFailure, "screenshot failed", err)
	}
	return data, nil
}

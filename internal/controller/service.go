// Package controller validates and orchestrates chart operations for the
// control API, sitting between the HTTP layer and the eval client.
package controller

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trading-point/chartiq-agent/internal/chartiq"
	"github.com/trading-point/chartiq-agent/internal/chartview"
	"github.com/trading-point/chartiq-agent/internal/snapshot"
)

// Service wraps the chart view and eval client with input validation.
type Service struct {
	cdp   *chartiq.Client
	view  *chartview.View
	snaps *snapshot.Store
}

func NewService(cdp *chartiq.Client, view *chartview.View, snaps *snapshot.Store) *Service {
	return &Service{cdp: cdp, view: view, snaps: snaps}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &chartiq.CodedError{Code: chartiq.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// --- Lifecycle ---

func (s *Service) LoadChart(ctx context.Context) error {
	return s.view.Load(ctx)
}

func (s *Service) ReloadChart(ctx context.Context) error {
	return s.view.Reload(ctx)
}

func (s *Service) LoadReport() chartview.Report {
	return s.view.LoadReport()
}

func (s *Service) Chart(ctx context.Context) (chartiq.ChartInfo, error) {
	return s.cdp.Chart(ctx)
}

func (s *Service) EngineInfo(ctx context.Context) (chartiq.EngineInfo, error) {
	info, err := s.cdp.EngineInfo(ctx)
	if err != nil {
		return chartiq.EngineInfo{}, err
	}
	if info.Version == "" {
		info.Version = s.view.EngineVersion()
	}
	return info, nil
}

// --- Symbol and layout ---

func (s *Service) GetSymbol(ctx context.Context) (string, error) {
	return s.cdp.GetSymbol(ctx)
}

func (s *Service) SetSymbol(ctx context.Context, symbol string) (string, error) {
	if err := s.requireNonEmpty(symbol, "symbol"); err != nil {
		return "", err
	}
	return s.cdp.SetSymbol(ctx, strings.TrimSpace(symbol))
}

func (s *Service) GetPeriodicity(ctx context.Context) (chartiq.Periodicity, error) {
	return s.cdp.GetPeriodicity(ctx)
}

func (s *Service) SetPeriodicity(ctx context.Context, p chartiq.Periodicity) error {
	if p.Period < 1 {
		return &chartiq.CodedError{Code: chartiq.CodeValidation, Message: "period must be >= 1"}
	}
	if err := s.requireNonEmpty(p.Interval, "interval"); err != nil {
		return err
	}
	return s.cdp.SetPeriodicity(ctx, p)
}

func (s *Service) GetChartType(ctx context.Context) (string, error) {
	return s.cdp.GetChartType(ctx)
}

func (s *Service) SetChartType(ctx context.Context, chartType string) error {
	if err := s.requireNonEmpty(chartType, "chart_type"); err != nil {
		return err
	}
	return s.cdp.SetChartType(ctx, strings.TrimSpace(chartType))
}

func (s *Service) GetChartScale(ctx context.Context) (string, error) {
	return s.cdp.GetChartScale(ctx)
}

func (s *Service) SetChartScale(ctx context.Context, scale string) error {
	scale = strings.ToLower(strings.TrimSpace(scale))
	if scale != "linear" && scale != "log" {
		return &chartiq.CodedError{Code: chartiq.CodeValidation, Message: `scale must be "linear" or "log"`}
	}
	return s.cdp.SetChartScale(ctx, scale)
}

func (s *Service) GetCrosshair(ctx context.Context) (bool, error) {
	return s.cdp.GetCrosshair(ctx)
}

func (s *Service) SetCrosshair(ctx context.Context, enabled bool) error {
	return s.cdp.SetCrosshair(ctx, enabled)
}

func (s *Service) SetTheme(ctx context.Context, theme string) error {
	preset := chartiq.ThemePreset(strings.ToLower(strings.TrimSpace(theme)))
	switch preset {
	case chartiq.ThemeDay, chartiq.ThemeNight, chartiq.ThemeNone:
	default:
		return &chartiq.CodedError{Code: chartiq.CodeValidation, Message: fmt.Sprintf("unknown theme %q", theme)}
	}
	return s.cdp.SetTheme(ctx, preset)
}

func (s *Service) GetLayout(ctx context.Context) (map[string]any, error) {
	return s.cdp.GetLayout(ctx)
}

func (s *Service) SetLayout(ctx context.Context, layout map[string]any) error {
	if len(layout) == 0 {
		return &chartiq.CodedError{Code: chartiq.CodeValidation, Message: "layout must not be empty"}
	}
	return s.cdp.SetLayout(ctx, layout)
}

// Invoke is the raw engine escape hatch.
func (s *Service) Invoke(ctx context.Context, method string, args []any) (any, error) {
	if err := s.requireNonEmpty(method, "method"); err != nil {
		return nil, err
	}
	return s.cdp.Invoke(ctx, strings.TrimSpace(method), args)
}

// RaiseEngineError makes the page report a fatal condition over the bridge,
// driving the load-failure path end to end for diagnostics.
func (s *Service) RaiseEngineError(ctx context.Context, detail string) error {
	if err := s.requireNonEmpty(detail, "detail"); err != nil {
		return err
	}
	return s.cdp.RaiseInternalError(ctx, strings.TrimSpace(detail))
}

// --- Studies ---

func (s *Service) ListStudies(ctx context.Context) ([]chartiq.Study, error) {
	return s.cdp.ListStudies(ctx)
}

func (s *Service) AvailableStudies(ctx context.Context) ([]chartiq.Study, error) {
	return s.cdp.AvailableStudies(ctx)
}

func (s *Service) AddStudy(ctx context.Context, name string, inputs, outputs, parameters map[string]any) (chartiq.Study, error) {
	if err := s.requireNonEmpty(name, "study name"); err != nil {
		return chartiq.Study{}, err
	}
	return s.cdp.AddStudy(ctx, strings.TrimSpace(name), inputs, outputs, parameters)
}

func (s *Service) GetStudyDetail(ctx context.Context, name string) (chartiq.StudyDetail, error) {
	if err := s.requireNonEmpty(name, "study name"); err != nil {
		return chartiq.StudyDetail{}, err
	}
	return s.cdp.GetStudyDetail(ctx, strings.TrimSpace(name))
}

func (s *Service) ModifyStudy(ctx context.Context, name string, inputs, outputs, parameters map[string]any) (chartiq.StudyDetail, error) {
	if err := s.requireNonEmpty(name, "study name"); err != nil {
		return chartiq.StudyDetail{}, err
	}
	if len(inputs) == 0 && len(outputs) == 0 && len(parameters) == 0 {
		return chartiq.StudyDetail{}, &chartiq.CodedError{Code: chartiq.CodeValidation, Message: "at least one of inputs, outputs, parameters must be set"}
	}
	return s.cdp.ModifyStudy(ctx, strings.TrimSpace(name), inputs, outputs, parameters)
}

func (s *Service) RemoveStudy(ctx context.Context, name string) error {
	if err := s.requireNonEmpty(name, "study name"); err != nil {
		return err
	}
	return s.cdp.RemoveStudy(ctx, strings.TrimSpace(name))
}

func (s *Service) RemoveAllStudies(ctx context.Context) (int, error) {
	return s.cdp.RemoveAllStudies(ctx)
}

// --- Drawings ---

func (s *Service) GetDrawingTool(ctx context.Context) (string, error) {
	return s.cdp.GetDrawingTool(ctx)
}

func (s *Service) SetDrawingTool(ctx context.Context, tool string) error {
	tool = strings.TrimSpace(tool)
	if !chartiq.KnownDrawingTool(tool) {
		return &chartiq.CodedError{Code: chartiq.CodeValidation, Message: fmt.Sprintf("unknown drawing tool %q", tool)}
	}
	return s.cdp.SetDrawingTool(ctx, tool)
}

func (s *Service) ListDrawings(ctx context.Context) ([]chartiq.Drawing, error) {
	return s.cdp.ListDrawings(ctx)
}

func (s *Service) ExportDrawings(ctx context.Context) (any, error) {
	return s.cdp.ExportDrawings(ctx)
}

func (s *Service) ImportDrawings(ctx context.Context, state any) error {
	if state == nil {
		return &chartiq.CodedError{Code: chartiq.CodeValidation, Message: "drawing state is required"}
	}
	return s.cdp.ImportDrawings(ctx, state)
}

func (s *Service) ClearDrawings(ctx context.Context) (int, error) {
	return s.cdp.ClearDrawings(ctx)
}

func (s *Service) UndoDrawing(ctx context.Context) error {
	return s.cdp.UndoDrawing(ctx)
}

func (s *Service) RedoDrawing(ctx context.Context) error {
	return s.cdp.RedoDrawing(ctx)
}

// --- Snapshots ---

// CaptureSnapshot screenshots the chart tab and stores it alongside the
// engine state at capture time.
func (s *Service) CaptureSnapshot(ctx context.Context, format string, quality int, description string) (snapshot.Meta, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "jpeg" {
		return snapshot.Meta{}, &chartiq.CodedError{Code: chartiq.CodeValidation, Message: `format must be "png" or "jpeg"`}
	}
	if quality < 0 || quality > 100 {
		return snapshot.Meta{}, &chartiq.CodedError{Code: chartiq.CodeValidation, Message: "quality must be 0..100"}
	}

	b64, err := s.cdp.Screenshot(ctx, format, quality, false)
	if err != nil {
		return snapshot.Meta{}, err
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return snapshot.Meta{}, &chartiq.CodedError{Code: chartiq.CodeEvalFailure, Message: "screenshot payload is not valid base64", Cause: err}
	}

	meta := snapshot.Meta{
		ID:            uuid.NewString(),
		TargetID:      string(s.cdp.TargetID()),
		Format:        format,
		SizeBytes:     len(raw),
		CreatedAt:     time.Now().UTC(),
		EngineVersion: s.view.EngineVersion(),
		Description:   strings.TrimSpace(description),
	}
	if symbol, err := s.cdp.GetSymbol(ctx); err == nil {
		meta.Symbol = symbol
	}
	if p, err := s.cdp.GetPeriodicity(ctx); err == nil {
		meta.Periodicity = fmt.Sprintf("%d x %s %s", p.Period, p.Interval, p.TimeUnit)
	}
	if ct, err := s.cdp.GetChartType(ctx); err == nil {
		meta.ChartType = ct
	}

	if err := s.snaps.Save(meta, raw); err != nil {
		return snapshot.Meta{}, &chartiq.CodedError{Code: chartiq.CodeEvalFailure, Message: "snapshot save failed", Cause: err}
	}
	return meta, nil
}

func (s *Service) ListSnapshots() ([]snapshot.Meta, error) {
	return s.snaps.List()
}

func (s *Service) GetSnapshot(id string) (snapshot.Meta, error) {
	if err := s.requireNonEmpty(id, "snapshot id"); err != nil {
		return snapshot.Meta{}, err
	}
	meta, err := s.snaps.Get(strings.TrimSpace(id))
	return meta, snapErr(err)
}

func (s *Service) ReadSnapshotImage(id string) ([]byte, string, error) {
	if err := s.requireNonEmpty(id, "snapshot id"); err != nil {
		return nil, "", err
	}
	data, format, err := s.snaps.ReadImage(strings.TrimSpace(id))
	return data, format, snapErr(err)
}

func (s *Service) DeleteSnapshot(id string) error {
	if err := s.requireNonEmpty(id, "snapshot id"); err != nil {
		return err
	}
	return snapErr(s.snaps.Delete(strings.TrimSpace(id)))
}

// snapErr maps store misses onto the stable code the API layer translates
// to 404.
func snapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, snapshot.ErrNotFound) {
		return &chartiq.CodedError{Code: chartiq.CodeSnapshotNotFound, Message: err.Error(), Cause: err}
	}
	return err
}

// Package api exposes the chart agent over HTTP: a Huma-described REST
// surface plus an SSE stream of bridge events.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/trading-point/chartiq-agent/internal/bridge"
	"github.com/trading-point/chartiq-agent/internal/chartiq"
	"github.com/trading-point/chartiq-agent/internal/chartview"
	"github.com/trading-point/chartiq-agent/internal/snapshot"
)

// Service is the controller surface the HTTP layer drives.
type Service interface {
	LoadChart(ctx context.Context) error
	ReloadChart(ctx context.Context) error
	LoadReport() chartview.Report
	Chart(ctx context.Context) (chartiq.ChartInfo, error)
	EngineInfo(ctx context.Context) (chartiq.EngineInfo, error)

	GetSymbol(ctx context.Context) (string, error)
	SetSymbol(ctx context.Context, symbol string) (string, error)
	GetPeriodicity(ctx context.Context) (chartiq.Periodicity, error)
	SetPeriodicity(ctx context.Context, p chartiq.Periodicity) error
	GetChartType(ctx context.Context) (string, error)
	SetChartType(ctx context.Context, chartType string) error
	GetChartScale(ctx context.Context) (string, error)
	SetChartScale(ctx context.Context, scale string) error
	GetCrosshair(ctx context.Context) (bool, error)
	SetCrosshair(ctx context.Context, enabled bool) error
	SetTheme(ctx context.Context, theme string) error
	GetLayout(ctx context.Context) (map[string]any, error)
	SetLayout(ctx context.Context, layout map[string]any) error
	Invoke(ctx context.Context, method string, args []any) (any, error)
	RaiseEngineError(ctx context.Context, detail string) error

	ListStudies(ctx context.Context) ([]chartiq.Study, error)
	AvailableStudies(ctx context.Context) ([]chartiq.Study, error)
	AddStudy(ctx context.Context, name string, inputs, outputs, parameters map[string]any) (chartiq.Study, error)
	GetStudyDetail(ctx context.Context, name string) (chartiq.StudyDetail, error)
	ModifyStudy(ctx context.Context, name string, inputs, outputs, parameters map[string]any) (chartiq.StudyDetail, error)
	RemoveStudy(ctx context.Context, name string) error
	RemoveAllStudies(ctx context.Context) (int, error)

	GetDrawingTool(ctx context.Context) (string, error)
	SetDrawingTool(ctx context.Context, tool string) error
	ListDrawings(ctx context.Context) ([]chartiq.Drawing, error)
	ExportDrawings(ctx context.Context) (any, error)
	ImportDrawings(ctx context.Context, state any) error
	ClearDrawings(ctx context.Context) (int, error)
	UndoDrawing(ctx context.Context) error
	RedoDrawing(ctx context.Context) error

	CaptureSnapshot(ctx context.Context, format string, quality int, description string) (snapshot.Meta, error)
	ListSnapshots() ([]snapshot.Meta, error)
	GetSnapshot(id string) (snapshot.Meta, error)
	ReadSnapshotImage(id string) ([]byte, string, error)
	DeleteSnapshot(id string) error
}

// NewServer builds the HTTP handler. broker feeds the /api/v1/events SSE
// stream; pass nil to disable it.
func NewServer(svc Service, broker *bridge.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("ChartIQ Agent API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	if broker != nil {
		router.Get("/api/v1/events", sseHandler(broker))
	}

	registerChartHandlers(api, svc)
	registerStudyHandlers(api, svc)
	registerDrawingHandlers(api, svc)
	registerMiscHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *chartiq.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case chartiq.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case chartiq.CodeChartNotFound, chartiq.CodeSnapshotNotFound:
			return huma.Error404NotFound(coded.Message)
		case chartiq.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case chartiq.CodeAPIUnavailable, chartiq.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/trading-point/chartiq-agent/internal/chartiq"
	"github.com/trading-point/chartiq-agent/internal/chartview"
	"github.com/trading-point/chartiq-agent/internal/snapshot"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type statusOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "load-chart", Method: http.MethodPost, Path: "/api/v1/chart/load", Summary: "Start a fresh chart load", Tags: []string{"Lifecycle"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.LoadChart(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "loading"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reload-chart", Method: http.MethodPost, Path: "/api/v1/chart/reload", Summary: "Reload the chart page", Tags: []string{"Lifecycle"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ReloadChart(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "reloading"
			return out, nil
		})

	type loadReportOutput struct {
		Body chartview.Report
	}

	huma.Register(api, huma.Operation{OperationID: "load-report", Method: http.MethodGet, Path: "/api/v1/chart/load-report", Summary: "Get load progress and stage timings", Tags: []string{"Lifecycle"}},
		func(ctx context.Context, input *struct{}) (*loadReportOutput, error) {
			return &loadReportOutput{Body: svc.LoadReport()}, nil
		})

	type chartInfoOutput struct {
		Body chartiq.ChartInfo
	}

	huma.Register(api, huma.Operation{OperationID: "get-chart", Method: http.MethodGet, Path: "/api/v1/chart", Summary: "Get chart tab info", Tags: []string{"Lifecycle"}},
		func(ctx context.Context, input *struct{}) (*chartInfoOutput, error) {
			info, err := svc.Chart(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &chartInfoOutput{Body: info}, nil
		})

	type engineInfoOutput struct {
		Body chartiq.EngineInfo
	}

	huma.Register(api, huma.Operation{OperationID: "engine-info", Method: http.MethodGet, Path: "/api/v1/chart/engine", Summary: "Get charting engine version and symbol", Tags: []string{"Lifecycle"}},
		func(ctx context.Context, input *struct{}) (*engineInfoOutput, error) {
			info, err := svc.EngineInfo(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &engineInfoOutput{Body: info}, nil
		})

	type healthOutput struct {
		Body struct {
			Status        string  `json:"status"`
			Stage         string  `json:"stage"`
			Finished      bool    `json:"finished"`
			TotalTime     float64 `json:"total_time"`
			EngineVersion string  `json:"engine_version"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Agent health and load state", Tags: []string{"Lifecycle"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			report := svc.LoadReport()
			out := &healthOutput{}
			out.Body.Status = "ok"
			if report.Stage == "failed" {
				out.Body.Status = "degraded"
			}
			out.Body.Stage = report.Stage
			out.Body.Finished = report.Finished
			out.Body.TotalTime = report.TotalTime
			out.Body.EngineVersion = report.EngineVersion
			return out, nil
		})

	type raiseErrorInput struct {
		Body struct {
			Detail string `json:"detail" doc:"Description reported through the bridge"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "raise-engine-error", Method: http.MethodPost, Path: "/api/v1/diagnostics/engine-error", Summary: "Make the page report a fatal engine error", Tags: []string{"Diagnostics"}},
		func(ctx context.Context, input *raiseErrorInput) (*statusOutput, error) {
			if err := svc.RaiseEngineError(ctx, input.Body.Detail); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "raised"
			return out, nil
		})

	// --- Snapshots ---

	type captureSnapshotInput struct {
		Body struct {
			Format      string `json:"format,omitempty" doc:"png (default) or jpeg"`
			Quality     int    `json:"quality,omitempty" doc:"JPEG quality 0-100"`
			Description string `json:"description,omitempty"`
		}
	}
	type snapshotMetaOutput struct {
		Body snapshot.Meta
	}

	huma.Register(api, huma.Operation{OperationID: "capture-snapshot", Method: http.MethodPost, Path: "/api/v1/snapshots", Summary: "Capture a chart screenshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *captureSnapshotInput) (*snapshotMetaOutput, error) {
			meta, err := svc.CaptureSnapshot(ctx, input.Body.Format, input.Body.Quality, input.Body.Description)
			if err != nil {
				return nil, mapErr(err)
			}
			return &snapshotMetaOutput{Body: meta}, nil
		})

	type snapshotListOutput struct {
		Body struct {
			Snapshots []snapshot.Meta `json:"snapshots"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List snapshots", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct{}) (*snapshotListOutput, error) {
			metas, err := svc.ListSnapshots()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &snapshotListOutput{}
			out.Body.Snapshots = metas
			return out, nil
		})

	type snapshotIDInput struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{OperationID: "get-snapshot", Method: http.MethodGet, Path: "/api/v1/snapshots/{id}", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*snapshotMetaOutput, error) {
			meta, err := svc.GetSnapshot(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &snapshotMetaOutput{Body: meta}, nil
		})

	type snapshotImageOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}

	huma.Register(api, huma.Operation{OperationID: "get-snapshot-image", Method: http.MethodGet, Path: "/api/v1/snapshots/{id}/image", Summary: "Download snapshot image", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*snapshotImageOutput, error) {
			data, format, err := svc.ReadSnapshotImage(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &snapshotImageOutput{ContentType: "image/" + format, Body: data}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-snapshot", Method: http.MethodDelete, Path: "/api/v1/snapshots/{id}", Summary: "Delete snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*struct{}, error) {
			if err := svc.DeleteSnapshot(input.ID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/trading-point/chartiq-agent/internal/chartiq"
)

func registerDrawingHandlers(api huma.API, svc Service) {
	type toolOutput struct {
		Body struct {
			Tool string `json:"tool"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-drawing-tool", Method: http.MethodGet, Path: "/api/v1/chart/drawings/tool", Summary: "Get active drawing tool", Tags: []string{"Drawings"}},
		func(ctx context.Context, input *struct{}) (*toolOutput, error) {
			tool, err := svc.GetDrawingTool(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &toolOutput{}
			out.Body.Tool = tool
			return out, nil
		})

	type setToolInput struct {
		Body struct {
			Tool string `json:"tool" required:"true" doc:"Vector type, e.g. line, segment, fibonacci, annotation"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "set-drawing-tool", Method: http.MethodPut, Path: "/api/v1/chart/drawings/tool", Summary: "Select drawing tool", Tags: []string{"Drawings"}},
		func(ctx context.Context, input *setToolInput) (*toolOutput, error) {
			if err := svc.SetDrawingTool(ctx, input.Body.Tool); err != nil {
				return nil, mapErr(err)
			}
			out := &toolOutput{}
			out.Body.Tool = input.Body.Tool
			return out, nil
		})

	type drawingListOutput struct {
		Body struct {
			Drawings []chartiq.Drawing `json:"drawings"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-drawings", Method: http.MethodGet, Path: "/api/v1/chart/drawings", Summary: "List drawings", Tags: []string{"Drawings"}},
		func(ctx context.Context, input *struct{}) (*drawingListOutput, error) {
			drawings, err := svc.ListDrawings(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &drawingListOutput{}
			out.Body.Drawings = drawings
			return out, nil
		})

	type drawingStateOutput struct {
		Body struct {
			State any `json:"state"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "export-drawings", Method: http.MethodGet, Path: "/api/v1/chart/drawings/export", Summary: "Export drawing state", Tags: []string{"Drawings"}},
		func(ctx context.Context, input *struct{}) (*drawingStateOutput, error) {
			state, err := svc.ExportDrawings(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &drawingStateOutput{}
			out.Body.State = state
			return out, nil
		})

	type importDrawingsInput struct {
		Body struct {
			State any `json:"state" required:"true"`
		}
	}
	type statusOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "import-drawings", Method: http.MethodPost, Path: "/api/v1/chart/drawings/import", Summary: "Import drawing state", Tags: []string{"Drawings"}},
		func(ctx context.Context, input *importDrawingsInput) (*statusOutput, error) {
			if err := svc.ImportDrawings(ctx, input.Body.State); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "imported"
			return out, nil
		})

	type clearedOutput struct {
		Body struct {
			Removed int `json:"removed"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "clear-drawings", Method: http.MethodDelete, Path: "/api/v1/chart/drawings", Summary: "Remove all drawings", Tags: []string{"Drawings"}},
		func(ctx context.Context, input *struct{}) (*clearedOutput, error) {
			removed, err := svc.ClearDrawings(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &clearedOutput{}
			out.Body.Removed = removed
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "undo-drawing", Method: http.MethodPost, Path: "/api/v1/chart/drawings/undo", Summary: "Undo last drawing change", Tags: []string{"Drawings"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.UndoDrawing(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "undone"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "redo-drawing", Method: http.MethodPost, Path: "/api/v1/chart/drawings/redo", Summary: "Redo last drawing change", Tags: []string{"Drawings"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.RedoDrawing(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "redone"
			return out, nil
		})
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/trading-point/chartiq-agent/internal/chartiq"
)

func registerStudyHandlers(api huma.API, svc Service) {
	type studyListOutput struct {
		Body struct {
			Studies []chartiq.Study `json:"studies"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-studies", Method: http.MethodGet, Path: "/api/v1/chart/studies", Summary: "List active studies", Tags: []string{"Studies"}},
		func(ctx context.Context, input *struct{}) (*studyListOutput, error) {
			studies, err := svc.ListStudies(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &studyListOutput{}
			out.Body.Studies = studies
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "available-studies", Method: http.MethodGet, Path: "/api/v1/chart/studies/available", Summary: "List studies in the engine library", Tags: []string{"Studies"}},
		func(ctx context.Context, input *struct{}) (*studyListOutput, error) {
			studies, err := svc.AvailableStudies(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &studyListOutput{}
			out.Body.Studies = studies
			return out, nil
		})

	type addStudyInput struct {
		Body struct {
			Name       string         `json:"name" required:"true"`
			Inputs     map[string]any `json:"inputs,omitempty"`
			Outputs    map[string]any `json:"outputs,omitempty"`
			Parameters map[string]any `json:"parameters,omitempty"`
		}
	}
	type addStudyOutput struct {
		Body struct {
			Study  chartiq.Study `json:"study"`
			Status string        `json:"status"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "add-study", Method: http.MethodPost, Path: "/api/v1/chart/studies", Summary: "Add study", Tags: []string{"Studies"}},
		func(ctx context.Context, input *addStudyInput) (*addStudyOutput, error) {
			study, err := svc.AddStudy(ctx, input.Body.Name, input.Body.Inputs, input.Body.Outputs, input.Body.Parameters)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &addStudyOutput{}
			out.Body.Study = study
			out.Body.Status = "added"
			return out, nil
		})

	type studyPathInput struct {
		Name string `path:"name"`
	}
	type studyDetailOutput struct {
		Body struct {
			Study chartiq.StudyDetail `json:"study"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-study", Method: http.MethodGet, Path: "/api/v1/chart/studies/{name}", Summary: "Get study detail", Tags: []string{"Studies"}},
		func(ctx context.Context, input *studyPathInput) (*studyDetailOutput, error) {
			detail, err := svc.GetStudyDetail(ctx, input.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &studyDetailOutput{}
			out.Body.Study = detail
			return out, nil
		})

	type modifyStudyInput struct {
		Name string `path:"name"`
		Body struct {
			Inputs     map[string]any `json:"inputs,omitempty"`
			Outputs    map[string]any `json:"outputs,omitempty"`
			Parameters map[string]any `json:"parameters,omitempty"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "modify-study", Method: http.MethodPatch, Path: "/api/v1/chart/studies/{name}", Summary: "Modify study parameters", Tags: []string{"Studies"}},
		func(ctx context.Context, input *modifyStudyInput) (*studyDetailOutput, error) {
			detail, err := svc.ModifyStudy(ctx, input.Name, input.Body.Inputs, input.Body.Outputs, input.Body.Parameters)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &studyDetailOutput{}
			out.Body.Study = detail
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "remove-study", Method: http.MethodDelete, Path: "/api/v1/chart/studies/{name}", Summary: "Remove study", Tags: []string{"Studies"}},
		func(ctx context.Context, input *studyPathInput) (*struct{}, error) {
			if err := svc.RemoveStudy(ctx, input.Name); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	type removedOutput struct {
		Body struct {
			Removed int `json:"removed"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "remove-all-studies", Method: http.MethodDelete, Path: "/api/v1/chart/studies", Summary: "Remove all studies", Tags: []string{"Studies"}},
		func(ctx context.Context, input *struct{}) (*removedOutput, error) {
			removed, err := svc.RemoveAllStudies(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &removedOutput{}
			out.Body.Removed = removed
			return out, nil
		})
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/trading-point/chartiq-agent/internal/chartiq"
)

func registerChartHandlers(api huma.API, svc Service) {
	type symbolOutput struct {
		Body struct {
			Symbol string `json:"symbol"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-symbol", Method: http.MethodGet, Path: "/api/v1/chart/symbol", Summary: "Get current symbol", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*symbolOutput, error) {
			symbol, err := svc.GetSymbol(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &symbolOutput{}
			out.Body.Symbol = symbol
			return out, nil
		})

	type setSymbolInput struct {
		Body struct {
			Symbol string `json:"symbol" required:"true"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "set-symbol", Method: http.MethodPut, Path: "/api/v1/chart/symbol", Summary: "Change chart symbol", Tags: []string{"Chart"}},
		func(ctx context.Context, input *setSymbolInput) (*symbolOutput, error) {
			symbol, err := svc.SetSymbol(ctx, input.Body.Symbol)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &symbolOutput{}
			out.Body.Symbol = symbol
			return out, nil
		})

	type periodicityOutput struct {
		Body chartiq.Periodicity
	}

	huma.Register(api, huma.Operation{OperationID: "get-periodicity", Method: http.MethodGet, Path: "/api/v1/chart/periodicity", Summary: "Get bar periodicity", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*periodicityOutput, error) {
			p, err := svc.GetPeriodicity(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &periodicityOutput{Body: p}, nil
		})

	type setPeriodicityInput struct {
		Body struct {
			Period   int    `json:"period" required:"true" doc:"Candles per bar, >= 1"`
			Interval string `json:"interval" required:"true" doc:"Interval value, e.g. \"5\" or \"day\""`
			TimeUnit string `json:"time_unit,omitempty" doc:"Qualifies numeric intervals: minute, second, day, ..."`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "set-periodicity", Method: http.MethodPut, Path: "/api/v1/chart/periodicity", Summary: "Set bar periodicity", Tags: []string{"Chart"}},
		func(ctx context.Context, input *setPeriodicityInput) (*periodicityOutput, error) {
			p := chartiq.Periodicity{Period: input.Body.Period, Interval: input.Body.Interval, TimeUnit: input.Body.TimeUnit}
			if err := svc.SetPeriodicity(ctx, p); err != nil {
				return nil, mapErr(err)
			}
			return &periodicityOutput{Body: p}, nil
		})

	type chartTypeOutput struct {
		Body struct {
			ChartType string `json:"chart_type"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-chart-type", Method: http.MethodGet, Path: "/api/v1/chart/type", Summary: "Get chart type", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*chartTypeOutput, error) {
			ct, err := svc.GetChartType(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &chartTypeOutput{}
			out.Body.ChartType = ct
			return out, nil
		})

	type setChartTypeInput struct {
		Body struct {
			ChartType string `json:"chart_type" required:"true" doc:"candle, line, bar, mountain, heikinashi, kagi, ..."`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "set-chart-type", Method: http.MethodPut, Path: "/api/v1/chart/type", Summary: "Set chart type", Tags: []string{"Chart"}},
		func(ctx context.Context, input *setChartTypeInput) (*chartTypeOutput, error) {
			if err := svc.SetChartType(ctx, input.Body.ChartType); err != nil {
				return nil, mapErr(err)
			}
			out := &chartTypeOutput{}
			out.Body.ChartType = input.Body.ChartType
			return out, nil
		})

	type scaleOutput struct {
		Body struct {
			Scale string `json:"scale"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-chart-scale", Method: http.MethodGet, Path: "/api/v1/chart/scale", Summary: "Get y-axis scale", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*scaleOutput, error) {
			scale, err := svc.GetChartScale(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &scaleOutput{}
			out.Body.Scale = scale
			return out, nil
		})

	type setScaleInput struct {
		Body struct {
			Scale string `json:"scale" required:"true" doc:"linear or log"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "set-chart-scale", Method: http.MethodPut, Path: "/api/v1/chart/scale", Summary: "Set y-axis scale", Tags: []string{"Chart"}},
		func(ctx context.Context, input *setScaleInput) (*scaleOutput, error) {
			if err := svc.SetChartScale(ctx, input.Body.Scale); err != nil {
				return nil, mapErr(err)
			}
			out := &scaleOutput{}
			out.Body.Scale = input.Body.Scale
			return out, nil
		})

	type crosshairOutput struct {
		Body struct {
			Enabled bool `json:"enabled"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-crosshair", Method: http.MethodGet, Path: "/api/v1/chart/crosshair", Summary: "Get crosshair state", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*crosshairOutput, error) {
			enabled, err := svc.GetCrosshair(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &crosshairOutput{}
			out.Body.Enabled = enabled
			return out, nil
		})

	type setCrosshairInput struct {
		Body struct {
			Enabled bool `json:"enabled"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "set-crosshair", Method: http.MethodPut, Path: "/api/v1/chart/crosshair", Summary: "Toggle crosshair", Tags: []string{"Chart"}},
		func(ctx context.Context, input *setCrosshairInput) (*crosshairOutput, error) {
			if err := svc.SetCrosshair(ctx, input.Body.Enabled); err != nil {
				return nil, mapErr(err)
			}
			out := &crosshairOutput{}
			out.Body.Enabled = input.Body.Enabled
			return out, nil
		})

	type setThemeInput struct {
		Body struct {
			Theme string `json:"theme" required:"true" doc:"day, night or none"`
		}
	}
	type statusOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "set-theme", Method: http.MethodPut, Path: "/api/v1/chart/theme", Summary: "Apply a theme preset", Tags: []string{"Chart"}},
		func(ctx context.Context, input *setThemeInput) (*statusOutput, error) {
			if err := svc.SetTheme(ctx, input.Body.Theme); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "applied"
			return out, nil
		})

	type layoutOutput struct {
		Body map[string]any
	}

	huma.Register(api, huma.Operation{OperationID: "get-layout", Method: http.MethodGet, Path: "/api/v1/chart/layout", Summary: "Export chart layout", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*layoutOutput, error) {
			layout, err := svc.GetLayout(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &layoutOutput{Body: layout}, nil
		})

	type setLayoutInput struct {
		Body map[string]any
	}

	huma.Register(api, huma.Operation{OperationID: "set-layout", Method: http.MethodPut, Path: "/api/v1/chart/layout", Summary: "Import chart layout", Tags: []string{"Chart"}},
		func(ctx context.Context, input *setLayoutInput) (*statusOutput, error) {
			if err := svc.SetLayout(ctx, input.Body); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "applied"
			return out, nil
		})

	type invokeInput struct {
		Body struct {
			Method string `json:"method" required:"true" doc:"Engine method name, e.g. setPeriodicity"`
			Args   []any  `json:"args,omitempty"`
		}
	}
	type invokeOutput struct {
		Body struct {
			Result any `json:"result"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "invoke", Method: http.MethodPost, Path: "/api/v1/chart/invoke", Summary: "Invoke a raw engine method (escape hatch)", Tags: []string{"Chart"}},
		func(ctx context.Context, input *invokeInput) (*invokeOutput, error) {
			result, err := svc.Invoke(ctx, input.Body.Method, input.Body.Args)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &invokeOutput{}
			out.Body.Result = result
			return out, nil
		})
}

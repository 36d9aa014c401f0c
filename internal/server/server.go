package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"workobs/internal/domain"
	"workobs/internal/events"
	"workobs/internal/export"
	"workobs/internal/rollup"
)

// Config for the HTTP API handler.
type Config struct {
	Engine      rollup.Engine
	Store       events.Store
	ExportDir   string
	BasePath    string
	CORSOrigins []string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"max 5 intents allowed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Work Observability API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors surface as 400 bad_request.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	hcfg := huma.DefaultConfig("Work Observability API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerIntents(group, cfg.Engine)
	registerBlocks(group, cfg.Engine)
	registerRecovery(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerExport(group, cfg.Engine, cfg.ExportDir)
	registerEvents(group, cfg.Store)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve rollup.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Work Observability API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerIntents(api huma.API, e rollup.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "set-daily-intents",
		Method:      http.MethodPost,
		Path:        "/intents/daily",
		Summary:     "Set daily intents",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DailyIntentsRequest `json:"body"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		if err := e.SetDailyIntents(ctx, input.Body.Date, input.Body.Intents); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{OK: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-daily-intents",
		Method:      http.MethodGet,
		Path:        "/intents/daily/{date}",
		Summary:     "Get daily intents",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Date string `path:"date"`
	}) (*struct {
		Body DailyIntentsResponse `json:"body"`
	}, error) {
		day, err := e.Day(ctx, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DailyIntentsResponse `json:"body"`
		}{Body: DailyIntentsResponse{Date: input.Date, Intents: day.Intents}}, nil
	})
}

func registerBlocks(api huma.API, e rollup.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "start-block",
		Method:      http.MethodPost,
		Path:        "/blocks/start",
		Summary:     "Start a work block",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body StartBlockRequest `json:"body"`
	}) (*struct {
		Body BlockIDResponse `json:"body"`
	}, error) {
		blockID, err := e.StartBlock(ctx, input.Body.Date, input.Body.Intent, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BlockIDResponse `json:"body"`
		}{Body: BlockIDResponse{BlockID: blockID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "interrupt-block",
		Method:      http.MethodPost,
		Path:        "/blocks/interrupt",
		Summary:     "Record a block interruption",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body InterruptBlockRequest `json:"body"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		if err := e.InterruptBlock(ctx, input.Body.BlockID, input.Body.ReasonCode); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{OK: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-block",
		Method:      http.MethodPost,
		Path:        "/blocks/end",
		Summary:     "End a work block",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body EndBlockRequest `json:"body"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		if err := e.EndBlock(ctx, input.Body.BlockID, input.Body.ActualOutcome, input.Body.DurationMinutes); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{OK: true}}, nil
	})
}

func registerRecovery(api huma.API, e rollup.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "start-recovery",
		Method:      http.MethodPost,
		Path:        "/recovery/start",
		Summary:     "Start a recovery block",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body StartRecoveryRequest `json:"body"`
	}) (*struct {
		Body BlockIDResponse `json:"body"`
	}, error) {
		blockID, err := e.StartRecovery(ctx, input.Body.Date, input.Body.Kind)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BlockIDResponse `json:"body"`
		}{Body: BlockIDResponse{BlockID: blockID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-recovery",
		Method:      http.MethodPost,
		Path:        "/recovery/end",
		Summary:     "End a recovery block",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body EndRecoveryRequest `json:"body"`
	}) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		if err := e.EndRecovery(ctx, input.Body.BlockID, input.Body.DurationMinutes); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: StatusResponse{Status: "ok"}}, nil
	})
}

func registerReports(api huma.API, e rollup.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "day-rollup",
		Method:      http.MethodGet,
		Path:        "/days/{date}",
		Summary:     "Day rollup",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Date string `path:"date"`
	}) (*struct {
		Body domain.DayRollup `json:"body"`
	}, error) {
		day, err := e.Day(ctx, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DayRollup `json:"body"`
		}{Body: day}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "week-rollup",
		Method:      http.MethodGet,
		Path:        "/weeks/{yearWeek}",
		Summary:     "Week rollup",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		YearWeek string `path:"yearWeek"`
	}) (*struct {
		Body domain.WeekRollup `json:"body"`
	}, error) {
		week, err := e.Week(ctx, input.YearWeek)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WeekRollup `json:"body"`
		}{Body: week}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-weekly-summary",
		Method:      http.MethodPost,
		Path:        "/weeks/{yearWeek}/summary",
		Summary:     "Save weekly reflection",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		YearWeek string               `path:"yearWeek"`
		Body     WeeklySummaryRequest `json:"body"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		reflection := domain.Reflection{
			TopFragmenters:       input.Body.TopFragmenters,
			NotPerformanceIssues: input.Body.NotPerformanceIssues,
			OneChangeNextWeek:    input.Body.OneChangeNextWeek,
		}
		if err := e.SaveWeeklySummary(ctx, input.YearWeek, reflection); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{OK: true}}, nil
	})
}

func registerExport(api huma.API, e rollup.Engine, exportDir string) {
	huma.Register(api, huma.Operation{
		OperationID: "export-day",
		Method:      http.MethodPost,
		Path:        "/export/day/{date}",
		Summary:     "Export a day rollup to Markdown",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Date string `path:"date"`
	}) (*struct {
		Body PathResponse `json:"body"`
	}, error) {
		day, err := e.Day(ctx, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		path, err := export.Day(day, exportDir)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PathResponse `json:"body"`
		}{Body: PathResponse{Path: path}}, nil
	})
}

func registerEvents(api huma.API, store events.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List raw events",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Type  string `query:"type"`
		After string `query:"after"`
		Limit int    `query:"limit" default:"100"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		filter := events.Filter{Limit: input.Limit}
		if input.Type != "" {
			filter.Types = []string{input.Type}
		}
		if input.After != "" {
			after, err := time.Parse(time.RFC3339, input.After)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid after timestamp", map[string]any{"after": input.After})
			}
			filter.After = &after
		}
		evts, err := store.Query(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]EventResponse, 0, len(evts))
		for _, evt := range evts {
			res = append(res, eventResponse(evt))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: res}, nil
	})
}

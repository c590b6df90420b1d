package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"qualityline/internal/domain"
	"qualityline/internal/engine"
)

func registerCatalog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-catalog-functions",
		Method:      http.MethodGet,
		Path:        "/catalog/functions",
		Summary:     "List standard functions",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Category    string `query:"category" enum:"context,leadership,support,operation,performance,improvement"`
		Rule        string `query:"rule" enum:"unique,per_process"`
		ProcessType string `query:"process_type" enum:"management,operational,support"`
	}) (*struct {
		Body []domain.StandardFunction `json:"body"`
	}, error) {
		items := e.Catalog.Functions()
		if input.ProcessType != "" {
			items = e.Catalog.FunctionsForProcessType(input.ProcessType)
		}
		res := []domain.StandardFunction{}
		for _, fn := range items {
			if input.Category != "" && fn.Category != input.Category {
				continue
			}
			if input.Rule != "" && fn.DuplicationRule != input.Rule {
				continue
			}
			res = append(res, fn)
		}
		return &struct {
			Body []domain.StandardFunction `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-catalog-function",
		Method:      http.MethodGet,
		Path:        "/catalog/functions/{function_id}",
		Summary:     "Get standard function",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FunctionID string `path:"function_id"`
	}) (*struct {
		Body domain.StandardFunction `json:"body"`
	}, error) {
		fn, ok := e.Catalog.FunctionByID(input.FunctionID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "function "+input.FunctionID+" not found", nil)
		}
		return &struct {
			Body domain.StandardFunction `json:"body"`
		}{Body: fn}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-catalog-clauses",
		Method:      http.MethodGet,
		Path:        "/catalog/clauses",
		Summary:     "List ISO 9001 clauses",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.ClauseReference `json:"body"`
	}, error) {
		return &struct {
			Body []domain.ClauseReference `json:"body"`
		}{Body: e.Catalog.Clauses()}, nil
	})
}

func registerProcesses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-process",
		Method:        http.MethodPost,
		Path:          "/processes",
		Summary:       "Create process",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateProcessRequest `json:"body"`
	}) (*struct {
		Body domain.Process `json:"body"`
	}, error) {
		p := input.Body.toDomain()
		if err := engine.ValidateProcessForm(&p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Process `json:"body"`
		}{Body: e.CreateProcess(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/processes",
		Summary:     "List processes",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"draft,active,archived"`
		Type   string `query:"type" enum:"management,operational,support"`
	}) (*struct {
		Body []domain.Process `json:"body"`
	}, error) {
		items := e.ListProcesses(engine.ProcessFilters{Status: input.Status, Type: input.Type})
		return &struct {
			Body []domain.Process `json:"body"`
		}{Body: emptyIfNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/processes/{process_id}",
		Summary:     "Get process",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct {
		Body domain.Process `json:"body"`
	}, error) {
		p, err := e.GetProcess(input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Process `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-process",
		Method:      http.MethodPatch,
		Path:        "/processes/{process_id}",
		Summary:     "Update process",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string               `path:"process_id"`
		Body      UpdateProcessRequest `json:"body"`
	}) (*struct {
		Body domain.Process `json:"body"`
	}, error) {
		patch := input.Body.toPatch()
		if err := engine.ValidateProcessPatch(&patch); err != nil {
			return nil, handleError(err)
		}
		p, err := e.UpdateProcess(input.ProcessID, patch, input.Body.RevisionNote)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Process `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-process",
		Method:      http.MethodPost,
		Path:        "/processes/{process_id}/archive",
		Summary:     "Archive process",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct {
		Body domain.Process `json:"body"`
	}, error) {
		p, err := e.ArchiveProcess(input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Process `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-applicability",
		Method:      http.MethodGet,
		Path:        "/processes/{process_id}/functions",
		Summary:     "Resolve applicable standard functions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct {
		Body domain.Applicability `json:"body"`
	}, error) {
		res, err := e.Applicability(input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Applicability `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "attach-function",
		Method:        http.MethodPost,
		Path:          "/processes/{process_id}/functions",
		Summary:       "Attach a standard function to a process",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProcessID string                `path:"process_id"`
		Body      AttachFunctionRequest `json:"body"`
	}) (*struct {
		Body domain.FunctionInstance `json:"body"`
	}, error) {
		if input.Body.FunctionID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "function_id is required", nil)
		}
		fi, err := e.AttachFunction(input.ProcessID, input.Body.FunctionID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.FunctionInstance `json:"body"`
		}{Body: fi}, nil
	})
}

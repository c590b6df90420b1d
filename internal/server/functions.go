package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"qualityline/internal/domain"
	"qualityline/internal/engine"
)

type instanceOutput struct {
	Body domain.FunctionInstance `json:"body"`
}

func registerFunctionInstances(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-function-instances",
		Method:      http.MethodGet,
		Path:        "/function-instances",
		Summary:     "List function instances",
	}, func(ctx context.Context, input *struct {
		ProcessID  string `query:"process_id"`
		FunctionID string `query:"function_id"`
	}) (*struct {
		Body []domain.FunctionInstance `json:"body"`
	}, error) {
		var items []domain.FunctionInstance
		switch {
		case input.ProcessID != "":
			items = e.Instances.ByProcess(input.ProcessID)
		case input.FunctionID != "":
			items = e.Instances.ByFunction(input.FunctionID)
		default:
			items = e.Instances.List()
		}
		res := []domain.FunctionInstance{}
		for _, fi := range items {
			if input.FunctionID != "" && fi.FunctionID != input.FunctionID {
				continue
			}
			res = append(res, fi)
		}
		return &struct {
			Body []domain.FunctionInstance `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-function-instance",
		Method:      http.MethodGet,
		Path:        "/function-instances/{instance_id}",
		Summary:     "Get function instance",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
	}) (*instanceOutput, error) {
		fi, err := e.GetFunctionInstance(input.InstanceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &instanceOutput{Body: fi}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-function-status",
		Method:      http.MethodPost,
		Path:        "/function-instances/{instance_id}/status",
		Summary:     "Change function instance status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID string                `path:"instance_id"`
		Body       FunctionStatusRequest `json:"body"`
	}) (*instanceOutput, error) {
		fi, err := e.SetFunctionStatus(input.InstanceID, input.Body.Status, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &instanceOutput{Body: fi}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-function-evidence",
		Method:      http.MethodPost,
		Path:        "/function-instances/{instance_id}/evidence",
		Summary:     "Add evidence to a function instance",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID string          `path:"instance_id"`
		Body       EvidenceRequest `json:"body"`
	}) (*instanceOutput, error) {
		fi, err := e.AddEvidence(input.InstanceID, domain.Evidence{
			Type:        input.Body.Type,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Reference:   input.Body.Reference,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &instanceOutput{Body: fi}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "link-function-action",
		Method:      http.MethodPost,
		Path:        "/function-instances/{instance_id}/actions",
		Summary:     "Link an action to a function instance",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID string            `path:"instance_id"`
		Body       LinkActionRequest `json:"body"`
	}) (*instanceOutput, error) {
		if input.Body.ActionID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "action_id is required", nil)
		}
		fi, err := e.LinkAction(input.InstanceID, input.Body.ActionID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &instanceOutput{Body: fi}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-function-data",
		Method:      http.MethodPatch,
		Path:        "/function-instances/{instance_id}/data",
		Summary:     "Merge function working data",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID string              `path:"instance_id"`
		Body       FunctionDataRequest `json:"body"`
	}) (*instanceOutput, error) {
		if len(input.Body.Data) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "data must not be empty", nil)
		}
		fi, err := e.UpdateFunctionData(input.InstanceID, input.Body.Data, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &instanceOutput{Body: fi}, nil
	})
}

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"qualityline/internal/domain"
	"qualityline/internal/engine"
)

func registerIssues(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-issue",
		Method:        http.MethodPost,
		Path:          "/issues",
		Summary:       "Record a context issue",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateIssueRequest `json:"body"`
	}) (*struct {
		Body domain.ContextIssue `json:"body"`
	}, error) {
		issue := input.Body.toDomain()
		if err := engine.ValidateIssueForm(&issue); err != nil {
			return nil, handleError(err)
		}
		if err := knownProcesses(e, issue.ProcessID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContextIssue `json:"body"`
		}{Body: e.CreateIssue(issue)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/issues",
		Summary:     "List context issues",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProcessID string `query:"process_id"`
		Quadrant  string `query:"quadrant" enum:"strength,weakness,opportunity,threat"`
		Type      string `query:"type" enum:"risk,opportunity"`
	}) (*struct {
		Body []domain.ContextIssue `json:"body"`
	}, error) {
		items := e.ListIssues(engine.IssueFilters{ProcessID: input.ProcessID, Quadrant: input.Quadrant, Type: input.Type})
		return &struct {
			Body []domain.ContextIssue `json:"body"`
		}{Body: emptyIfNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-risks",
		Method:      http.MethodGet,
		Path:        "/issues/risks",
		Summary:     "List scored risks by criticality",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.ContextIssue `json:"body"`
	}, error) {
		return &struct {
			Body []domain.ContextIssue `json:"body"`
		}{Body: emptyIfNil(e.Issues.RisksByPriority())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/issues/{issue_id}",
		Summary:     "Get context issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct {
		Body domain.ContextIssue `json:"body"`
	}, error) {
		issue, err := e.GetIssue(input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContextIssue `json:"body"`
		}{Body: issue}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-issue",
		Method:      http.MethodPatch,
		Path:        "/issues/{issue_id}",
		Summary:     "Update context issue",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string             `path:"issue_id"`
		Body    UpdateIssueRequest `json:"body"`
	}) (*struct {
		Body domain.ContextIssue `json:"body"`
	}, error) {
		patch := input.Body.toPatch(ctx)
		if err := engine.ValidateIssuePatch(&patch); err != nil {
			return nil, handleError(err)
		}
		if patch.ProcessID != nil {
			if err := knownProcesses(e, *patch.ProcessID); err != nil {
				return nil, handleError(err)
			}
		}
		issue, err := e.UpdateIssue(input.IssueID, patch, input.Body.RevisionNote)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContextIssue `json:"body"`
		}{Body: issue}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-issue",
		Method:        http.MethodDelete,
		Path:          "/issues/{issue_id}",
		Summary:       "Delete context issue",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct{}, error) {
		if err := e.DeleteIssue(input.IssueID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerActions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-action",
		Method:        http.MethodPost,
		Path:          "/actions",
		Summary:       "Create action",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateActionRequest `json:"body"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		a := input.Body.toDomain()
		if err := engine.ValidateActionForm(&a); err != nil {
			return nil, handleError(err)
		}
		if err := knownProcesses(e, a.ProcessID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: e.CreateAction(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/actions",
		Summary:     "List actions",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProcessID string `query:"process_id"`
		Status    string `query:"status" enum:"planned,in_progress,completed,cancelled"`
	}) (*struct {
		Body []domain.Action `json:"body"`
	}, error) {
		items := e.ListActions(engine.ActionFilters{ProcessID: input.ProcessID, Status: input.Status})
		return &struct {
			Body []domain.Action `json:"body"`
		}{Body: emptyIfNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-overdue-actions",
		Method:      http.MethodGet,
		Path:        "/actions/overdue",
		Summary:     "List open actions past their due date",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Action `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Action `json:"body"`
		}{Body: emptyIfNil(e.OverdueActions())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-action",
		Method:      http.MethodGet,
		Path:        "/actions/{action_id}",
		Summary:     "Get action",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActionID string `path:"action_id"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		a, err := e.GetAction(input.ActionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-action",
		Method:      http.MethodPatch,
		Path:        "/actions/{action_id}",
		Summary:     "Update action",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActionID string              `path:"action_id"`
		Body     UpdateActionRequest `json:"body"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		patch := input.Body.toPatch(ctx)
		if err := engine.ValidateActionPatch(&patch); err != nil {
			return nil, handleError(err)
		}
		if patch.ProcessID != nil {
			if err := knownProcesses(e, *patch.ProcessID); err != nil {
				return nil, handleError(err)
			}
		}
		a, err := e.UpdateAction(input.ActionID, patch, input.Body.RevisionNote)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-document",
		Method:        http.MethodPost,
		Path:          "/documents",
		Summary:       "Register document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateDocumentRequest `json:"body"`
	}) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		d := domain.Document{
			Title:               input.Body.Title,
			Type:                input.Body.Type,
			Description:         input.Body.Description,
			ProcessIDs:          input.Body.ProcessIDs,
			ISOClauseReferences: clauseRefs(e.Catalog.Clauses(), input.Body.Clauses),
			Status:              input.Body.Status,
		}
		if d.ISOClauseReferences == nil {
			d.ISOClauseReferences = []domain.ClauseReference{}
		}
		if err := engine.ValidateDocumentForm(&d); err != nil {
			return nil, handleError(err)
		}
		if err := knownProcesses(e, d.ProcessIDs...); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: e.CreateDocument(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List documents",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProcessID string `query:"process_id" doc:"Archived documents are excluded when set"`
		Status    string `query:"status" enum:"draft,active,archived"`
	}) (*struct {
		Body []domain.Document `json:"body"`
	}, error) {
		items := e.ListDocuments(engine.DocumentFilters{ProcessID: input.ProcessID, Status: input.Status})
		return &struct {
			Body []domain.Document `json:"body"`
		}{Body: emptyIfNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{document_id}",
		Summary:     "Get document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocumentID string `path:"document_id"`
	}) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		d, err := e.GetDocument(input.DocumentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-document",
		Method:      http.MethodPatch,
		Path:        "/documents/{document_id}",
		Summary:     "Update document",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocumentID string                `path:"document_id"`
		Body       UpdateDocumentRequest `json:"body"`
	}) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		patch := domain.DocumentPatch{
			Title:               input.Body.Title,
			Type:                input.Body.Type,
			Description:         input.Body.Description,
			ProcessIDs:          input.Body.ProcessIDs,
			ISOClauseReferences: clauseRefs(e.Catalog.Clauses(), input.Body.Clauses),
			Status:              input.Body.Status,
		}
		if err := engine.ValidateDocumentPatch(&patch); err != nil {
			return nil, handleError(err)
		}
		if err := knownProcesses(e, patch.ProcessIDs...); err != nil {
			return nil, handleError(err)
		}
		d, err := e.UpdateDocument(input.DocumentID, patch, input.Body.RevisionNote)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-document",
		Method:      http.MethodPost,
		Path:        "/documents/{document_id}/archive",
		Summary:     "Archive document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocumentID string `path:"document_id"`
	}) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		d, err := e.ArchiveDocument(input.DocumentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: d}, nil
	})
}

// knownProcesses fails with not found for the first id with no process.
func knownProcesses(e engine.Engine, ids ...string) error {
	for _, id := range ids {
		if _, err := e.GetProcess(id); err != nil {
			return err
		}
	}
	return nil
}

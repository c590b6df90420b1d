package server

import (
	"context"

	"qualityline/internal/domain"
)

// Request payloads

type CreateProcessRequest struct {
	Name         string              `json:"name"`
	Type         string              `json:"type" enum:"management,operational,support"`
	Purpose      string              `json:"purpose"`
	Inputs       []string            `json:"inputs"`
	Outputs      []string            `json:"outputs"`
	PilotName    string              `json:"pilot_name,omitempty"`
	Activities   []domain.Activity   `json:"activities,omitempty"`
	Regulations  []domain.Regulation `json:"regulations,omitempty"`
	Status       string              `json:"status,omitempty" enum:"draft,active,archived"`
	IndicatorIDs []string            `json:"indicator_ids,omitempty"`
}

type UpdateProcessRequest struct {
	Name         *string             `json:"name,omitempty"`
	Type         *string             `json:"type,omitempty" enum:"management,operational,support"`
	Purpose      *string             `json:"purpose,omitempty"`
	Inputs       []string            `json:"inputs,omitempty"`
	Outputs      []string            `json:"outputs,omitempty"`
	PilotName    *string             `json:"pilot_name,omitempty"`
	Activities   []domain.Activity   `json:"activities,omitempty"`
	Regulations  []domain.Regulation `json:"regulations,omitempty"`
	Status       *string             `json:"status,omitempty" enum:"draft,active,archived"`
	RiskIDs      []string            `json:"risk_ids,omitempty"`
	ActionIDs    []string            `json:"action_ids,omitempty"`
	IndicatorIDs []string            `json:"indicator_ids,omitempty"`
	RevisionNote string              `json:"revision_note,omitempty"`
}

type CreateIssueRequest struct {
	ProcessID   string `json:"process_id"`
	Quadrant    string `json:"quadrant" enum:"strength,weakness,opportunity,threat"`
	Description string `json:"description"`
	Origin      string `json:"origin,omitempty" enum:"internal,external"`
	Severity    *int   `json:"severity,omitempty"`
	Probability *int   `json:"probability,omitempty"`
}

type UpdateIssueRequest struct {
	ProcessID    *string `json:"process_id,omitempty"`
	Quadrant     *string `json:"quadrant,omitempty" enum:"strength,weakness,opportunity,threat"`
	Description  *string `json:"description,omitempty"`
	Origin       *string `json:"origin,omitempty" enum:"internal,external"`
	Severity     *int    `json:"severity,omitempty" nullable:"true" doc:"null or 0 clears the score"`
	Probability  *int    `json:"probability,omitempty" nullable:"true" doc:"null or 0 clears the score"`
	RevisionNote string  `json:"revision_note,omitempty"`
}

type CreateActionRequest struct {
	ProcessID       string `json:"process_id"`
	Title           string `json:"title,omitempty"`
	Description     string `json:"description"`
	SourceType      string `json:"source_type,omitempty" enum:"issue,function,audit,other"`
	SourceID        string `json:"source_id,omitempty"`
	ResponsibleName string `json:"responsible_name,omitempty"`
	Status          string `json:"status,omitempty" enum:"planned,in_progress,completed,cancelled"`
	DueDate         string `json:"due_date,omitempty"`
}

type UpdateActionRequest struct {
	ProcessID       *string `json:"process_id,omitempty"`
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	SourceType      *string `json:"source_type,omitempty" enum:"issue,function,audit,other"`
	SourceID        *string `json:"source_id,omitempty"`
	ResponsibleName *string `json:"responsible_name,omitempty"`
	Status          *string `json:"status,omitempty" enum:"planned,in_progress,completed,cancelled"`
	DueDate         *string `json:"due_date,omitempty" nullable:"true" doc:"null or empty clears the due date"`
	RevisionNote    string  `json:"revision_note,omitempty"`
}

type CreateDocumentRequest struct {
	Title       string   `json:"title"`
	Type        string   `json:"type" enum:"procedure,form,instruction,record,policy"`
	Description string   `json:"description,omitempty"`
	ProcessIDs  []string `json:"process_ids"`
	Clauses     []string `json:"clauses,omitempty" doc:"ISO clause numbers, e.g. 7.5"`
	Status      string   `json:"status,omitempty" enum:"draft,active,archived"`
}

type UpdateDocumentRequest struct {
	Title        *string  `json:"title,omitempty"`
	Type         *string  `json:"type,omitempty" enum:"procedure,form,instruction,record,policy"`
	Description  *string  `json:"description,omitempty"`
	ProcessIDs   []string `json:"process_ids,omitempty"`
	Clauses      []string `json:"clauses,omitempty"`
	Status       *string  `json:"status,omitempty" enum:"draft,active,archived"`
	RevisionNote string   `json:"revision_note,omitempty"`
}

type AttachFunctionRequest struct {
	FunctionID string `json:"function_id"`
}

type FunctionStatusRequest struct {
	Status string `json:"status" enum:"pending,active,completed"`
}

type EvidenceRequest struct {
	Type        string `json:"type" enum:"file,link,note"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

type LinkActionRequest struct {
	ActionID string `json:"action_id"`
}

type FunctionDataRequest struct {
	Data map[string]any `json:"data" doc:"Keys to merge; null removes a key"`
}

// Responses

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Conversion helpers

func (r CreateProcessRequest) toDomain() domain.Process {
	return domain.Process{
		Name:         r.Name,
		Type:         r.Type,
		Purpose:      r.Purpose,
		Inputs:       r.Inputs,
		Outputs:      r.Outputs,
		PilotName:    r.PilotName,
		Activities:   r.Activities,
		Regulations:  r.Regulations,
		Status:       r.Status,
		IndicatorIDs: r.IndicatorIDs,
	}
}

func (r UpdateProcessRequest) toPatch() domain.ProcessPatch {
	return domain.ProcessPatch{
		Name:         r.Name,
		Type:         r.Type,
		Purpose:      r.Purpose,
		Inputs:       r.Inputs,
		Outputs:      r.Outputs,
		PilotName:    r.PilotName,
		Activities:   r.Activities,
		Regulations:  r.Regulations,
		Status:       r.Status,
		RiskIDs:      r.RiskIDs,
		ActionIDs:    r.ActionIDs,
		IndicatorIDs: r.IndicatorIDs,
	}
}

func (r CreateIssueRequest) toDomain() domain.ContextIssue {
	origin := r.Origin
	if origin == "" {
		origin = domain.OriginInternal
	}
	return domain.ContextIssue{
		ProcessID:   r.ProcessID,
		Quadrant:    r.Quadrant,
		Description: r.Description,
		Origin:      origin,
		Severity:    r.Severity,
		Probability: r.Probability,
	}
}

// toPatch maps an explicit null severity or probability onto zero, which
// clears the score.
func (r UpdateIssueRequest) toPatch(ctx context.Context) domain.IssuePatch {
	patch := domain.IssuePatch{
		ProcessID:   r.ProcessID,
		Quadrant:    r.Quadrant,
		Description: r.Description,
		Origin:      r.Origin,
		Severity:    r.Severity,
		Probability: r.Probability,
	}
	zero := 0
	if nullField(ctx, "severity") {
		patch.Severity = &zero
	}
	if nullField(ctx, "probability") {
		patch.Probability = &zero
	}
	return patch
}

func (r CreateActionRequest) toDomain() domain.Action {
	a := domain.Action{
		ProcessID:       r.ProcessID,
		Title:           r.Title,
		Description:     r.Description,
		SourceType:      r.SourceType,
		SourceID:        r.SourceID,
		ResponsibleName: r.ResponsibleName,
		Status:          r.Status,
	}
	if r.DueDate != "" {
		due := r.DueDate
		a.DueDate = &due
	}
	return a
}

// toPatch maps an explicit null due_date onto "", which clears it.
func (r UpdateActionRequest) toPatch(ctx context.Context) domain.ActionPatch {
	patch := domain.ActionPatch{
		ProcessID:       r.ProcessID,
		Title:           r.Title,
		Description:     r.Description,
		SourceType:      r.SourceType,
		SourceID:        r.SourceID,
		ResponsibleName: r.ResponsibleName,
		Status:          r.Status,
		DueDate:         r.DueDate,
	}
	if nullField(ctx, "due_date") {
		empty := ""
		patch.DueDate = &empty
	}
	return patch
}

func clauseRefs(clauses []domain.ClauseReference, numbers []string) []domain.ClauseReference {
	if numbers == nil {
		return nil
	}
	titles := make(map[string]string, len(clauses))
	for _, c := range clauses {
		titles[c.ClauseNumber] = c.ClauseTitle
	}
	refs := []domain.ClauseReference{}
	for _, n := range numbers {
		refs = append(refs, domain.ClauseReference{ClauseNumber: n, ClauseTitle: titles[n]})
	}
	return refs
}

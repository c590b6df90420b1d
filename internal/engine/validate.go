package engine

import (
	"errors"
	"fmt"
	"strings"

	"qualityline/internal/domain"
	"qualityline/internal/store"
)

var (
	// ErrAlreadyAttached is returned when a function already has an instance
	// on the target process.
	ErrAlreadyAttached = errors.New("function already attached")
	// ErrNotEligible is returned when the process type cannot host a function.
	ErrNotEligible = errors.New("function not eligible for process type")
)

// BlockedError reports a unique function hosted by another process.
type BlockedError struct {
	FunctionID    string
	HostProcessID string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("function %s is unique and already hosted by process %s", e.FunctionID, e.HostProcessID)
}

// ValidationError is a form-level rejection of user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ValidateProcessForm trims the process in place, drops empty inputs and
// outputs, and checks required fields.
func ValidateProcessForm(p *domain.Process) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Purpose = strings.TrimSpace(p.Purpose)
	p.Inputs = compact(p.Inputs)
	p.Outputs = compact(p.Outputs)
	if p.Name == "" {
		return invalid("name", "Process name is required")
	}
	if !validProcessType(p.Type) {
		return invalid("type", fmt.Sprintf("invalid process type %q", p.Type))
	}
	if p.Purpose == "" {
		return invalid("purpose", "Process purpose is required")
	}
	if len(p.Inputs) == 0 {
		return invalid("inputs", "At least one input is required")
	}
	if len(p.Outputs) == 0 {
		return invalid("outputs", "At least one output is required")
	}
	if p.Status != "" && !validRecordStatus(p.Status) {
		return invalid("status", fmt.Sprintf("invalid status %q", p.Status))
	}
	return nil
}

// ValidateProcessPatch applies the form rules to the fields a patch sets.
func ValidateProcessPatch(patch *domain.ProcessPatch) error {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return invalid("name", "Process name is required")
		}
		patch.Name = &name
	}
	if patch.Type != nil && !validProcessType(*patch.Type) {
		return invalid("type", fmt.Sprintf("invalid process type %q", *patch.Type))
	}
	if patch.Purpose != nil {
		purpose := strings.TrimSpace(*patch.Purpose)
		if purpose == "" {
			return invalid("purpose", "Process purpose is required")
		}
		patch.Purpose = &purpose
	}
	if patch.Inputs != nil {
		patch.Inputs = compact(patch.Inputs)
		if len(patch.Inputs) == 0 {
			return invalid("inputs", "At least one input is required")
		}
	}
	if patch.Outputs != nil {
		patch.Outputs = compact(patch.Outputs)
		if len(patch.Outputs) == 0 {
			return invalid("outputs", "At least one output is required")
		}
	}
	if patch.Status != nil && !validRecordStatus(*patch.Status) {
		return invalid("status", fmt.Sprintf("invalid status %q", *patch.Status))
	}
	return nil
}

// ValidateIssueForm checks a new issue. Opportunity-side quadrants carry no
// scores, so any given are dropped.
func ValidateIssueForm(issue *domain.ContextIssue) error {
	issue.Description = strings.TrimSpace(issue.Description)
	if issue.ProcessID == "" {
		return invalid("process_id", "Please select a process")
	}
	if !validQuadrant(issue.Quadrant) {
		return invalid("quadrant", "Please select a quadrant type")
	}
	if issue.Description == "" {
		return invalid("description", "Description is required")
	}
	if domain.TypeForQuadrant(issue.Quadrant) != domain.IssueRisk {
		issue.Severity = nil
		issue.Probability = nil
	}
	if !validScore(issue.Severity) {
		return invalid("severity", "Severity must be between 1 and 5")
	}
	if !validScore(issue.Probability) {
		return invalid("probability", "Probability must be between 1 and 5")
	}
	return nil
}

func ValidateIssuePatch(patch *domain.IssuePatch) error {
	if patch.Quadrant != nil && !validQuadrant(*patch.Quadrant) {
		return invalid("quadrant", "Please select a quadrant type")
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if desc == "" {
			return invalid("description", "Description is required")
		}
		patch.Description = &desc
	}
	if patch.Severity != nil && *patch.Severity != 0 && !validScore(patch.Severity) {
		return invalid("severity", "Severity must be between 1 and 5")
	}
	if patch.Probability != nil && *patch.Probability != 0 && !validScore(patch.Probability) {
		return invalid("probability", "Probability must be between 1 and 5")
	}
	return nil
}

func ValidateActionForm(a *domain.Action) error {
	a.Title = strings.TrimSpace(a.Title)
	a.Description = strings.TrimSpace(a.Description)
	if a.ProcessID == "" {
		return invalid("process_id", "Please select a process")
	}
	if a.Description == "" {
		return invalid("description", "Action description is required")
	}
	if a.Status != "" && !validActionStatus(a.Status) {
		return invalid("status", fmt.Sprintf("invalid action status %q", a.Status))
	}
	if a.DueDate != nil && *a.DueDate != "" {
		if _, ok := store.ParseDueDate(*a.DueDate); !ok {
			return invalid("due_date", "Due date must be YYYY-MM-DD or RFC 3339")
		}
	}
	return nil
}

func ValidateActionPatch(patch *domain.ActionPatch) error {
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if desc == "" {
			return invalid("description", "Action description is required")
		}
		patch.Description = &desc
	}
	if patch.Status != nil && !validActionStatus(*patch.Status) {
		return invalid("status", fmt.Sprintf("invalid action status %q", *patch.Status))
	}
	if patch.DueDate != nil && *patch.DueDate != "" {
		if _, ok := store.ParseDueDate(*patch.DueDate); !ok {
			return invalid("due_date", "Due date must be YYYY-MM-DD or RFC 3339")
		}
	}
	return nil
}

func ValidateDocumentForm(d *domain.Document) error {
	d.Title = strings.TrimSpace(d.Title)
	d.ProcessIDs = compact(d.ProcessIDs)
	if d.Title == "" {
		return invalid("title", "Document title is required")
	}
	if len(d.ProcessIDs) == 0 {
		return invalid("process_ids", "Select at least one process")
	}
	if d.Type != "" && !validDocumentType(d.Type) {
		return invalid("type", fmt.Sprintf("invalid document type %q", d.Type))
	}
	if d.Status != "" && !validRecordStatus(d.Status) {
		return invalid("status", fmt.Sprintf("invalid status %q", d.Status))
	}
	return nil
}

func ValidateDocumentPatch(patch *domain.DocumentPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return invalid("title", "Document title is required")
		}
		patch.Title = &title
	}
	if patch.ProcessIDs != nil {
		patch.ProcessIDs = compact(patch.ProcessIDs)
		if len(patch.ProcessIDs) == 0 {
			return invalid("process_ids", "Select at least one process")
		}
	}
	if patch.Type != nil && !validDocumentType(*patch.Type) {
		return invalid("type", fmt.Sprintf("invalid document type %q", *patch.Type))
	}
	if patch.Status != nil && !validRecordStatus(*patch.Status) {
		return invalid("status", fmt.Sprintf("invalid status %q", *patch.Status))
	}
	return nil
}

func compact(values []string) []string {
	out := []string{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func validProcessType(t string) bool {
	return oneOf(t, domain.ProcessManagement, domain.ProcessOperational, domain.ProcessSupport)
}

func validRecordStatus(s string) bool {
	return oneOf(s, domain.StatusDraft, domain.StatusActive, domain.StatusArchived)
}

func validQuadrant(q string) bool {
	return oneOf(q, domain.QuadrantStrength, domain.QuadrantWeakness, domain.QuadrantOpportunity, domain.QuadrantThreat)
}

func validActionStatus(s string) bool {
	return oneOf(s, domain.ActionPlanned, domain.ActionInProgress, domain.ActionCompleted, domain.ActionCancelled)
}

func validDocumentType(t string) bool {
	return oneOf(t, domain.DocProcedure, domain.DocForm, domain.DocInstruction, domain.DocRecord, domain.DocPolicy)
}

func validInstanceStatus(s string) bool {
	return oneOf(s, domain.InstancePending, domain.InstanceActive, domain.InstanceCompleted)
}

func validScore(v *int) bool {
	return v == nil || (*v >= 1 && *v <= 5)
}

package engine

import (
	"fmt"
	"sort"
	"strings"

	"qualityline/internal/catalog"
	"qualityline/internal/domain"
	"qualityline/internal/events"
)

// AttachContext carries what the attach guard needs to decide.
type AttachContext struct {
	Function domain.StandardFunction
	Process  domain.Process
	// Existing holds the instances of Function on non-archived processes.
	Existing []domain.FunctionInstance
}

// CanAttach evaluates whether Function may be attached to Process.
// Rules:
// - process must not be archived
// - process type must be eligible
// - no instance may exist on the same process
// - unique functions may not be hosted by another process
func CanAttach(ctx AttachContext) error {
	fn, p := ctx.Function, ctx.Process
	if p.Status == domain.StatusArchived {
		return invalid("process_id", fmt.Sprintf("process %s is archived", p.ID))
	}
	if !catalog.Eligible(fn, p.Type) {
		return fmt.Errorf("%s on %s process %s: %w", fn.ID, p.Type, p.ID, ErrNotEligible)
	}
	for _, fi := range ctx.Existing {
		if fi.ProcessID == p.ID {
			return fmt.Errorf("%s on process %s: %w", fn.ID, p.ID, ErrAlreadyAttached)
		}
	}
	if fn.DuplicationRule == domain.RuleUnique && len(ctx.Existing) > 0 {
		return &BlockedError{FunctionID: fn.ID, HostProcessID: ctx.Existing[0].ProcessID}
	}
	return nil
}

// AttachFunction creates a pending instance of functionID on processID.
func (e Engine) AttachFunction(processID, functionID, changedBy string) (domain.FunctionInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.Processes.Get(processID)
	if !ok {
		return domain.FunctionInstance{}, notFound("process", processID)
	}
	fn, ok := e.Catalog.FunctionByID(functionID)
	if !ok {
		return domain.FunctionInstance{}, notFound("function", functionID)
	}
	existing := LiveInstances(e.Processes.List(), e.Instances.ByFunction(functionID))
	if err := CanAttach(AttachContext{Function: fn, Process: p, Existing: existing}); err != nil {
		e.Logger.Debug("attach rejected", "function_id", functionID, "process_id", processID, "err", err)
		return domain.FunctionInstance{}, err
	}
	fi := e.Instances.Create(functionID, processID, changedBy)
	e.record("function.attached", "function_instance", fi.ID, changedBy, events.EventPayload{
		"function_id": functionID,
		"process_id":  processID,
		"rule":        fn.DuplicationRule,
	})
	return fi, nil
}

func (e Engine) GetFunctionInstance(id string) (domain.FunctionInstance, error) {
	fi, ok := e.Instances.Get(id)
	if !ok {
		return domain.FunctionInstance{}, notFound("function instance", id)
	}
	return fi, nil
}

// SetFunctionStatus moves an instance between pending, active and completed.
// Setting the current status again records nothing.
func (e Engine) SetFunctionStatus(instanceID, status, changedBy string) (domain.FunctionInstance, error) {
	if !validInstanceStatus(status) {
		return domain.FunctionInstance{}, invalid("status", fmt.Sprintf("invalid function status %q", status))
	}
	var from string
	fi, ok := e.Instances.Mutate(instanceID, func(fi *domain.FunctionInstance) *domain.HistoryEntry {
		from = fi.Status
		if fi.Status == status {
			return nil
		}
		fi.Status = status
		return &domain.HistoryEntry{
			Action:        domain.HistoryStatusChanged,
			Description:   fmt.Sprintf("Status changed from %s to %s", from, status),
			ChangedBy:     changedBy,
			PreviousValue: from,
			NewValue:      status,
		}
	})
	if !ok {
		return domain.FunctionInstance{}, notFound("function instance", instanceID)
	}
	if from != status {
		e.record("function.status_changed", "function_instance", instanceID, changedBy, events.EventPayload{"from": from, "to": status})
	}
	return fi, nil
}

// UpdateFunctionData merges data into the instance's working data. A nil
// value removes the key.
func (e Engine) UpdateFunctionData(instanceID string, data map[string]any, changedBy string) (domain.FunctionInstance, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fi, ok := e.Instances.Mutate(instanceID, func(fi *domain.FunctionInstance) *domain.HistoryEntry {
		for k, v := range data {
			if v == nil {
				delete(fi.Data, k)
				continue
			}
			fi.Data[k] = v
		}
		return &domain.HistoryEntry{
			Action:      domain.HistoryUpdated,
			Description: "Function data updated",
			ChangedBy:   changedBy,
			NewValue:    strings.Join(keys, ","),
		}
	})
	if !ok {
		return domain.FunctionInstance{}, notFound("function instance", instanceID)
	}
	e.record("function.data_updated", "function_instance", instanceID, changedBy, events.EventPayload{"keys": keys})
	return fi, nil
}

// AddEvidence attaches a file, link or note to an instance.
func (e Engine) AddEvidence(instanceID string, ev domain.Evidence, changedBy string) (domain.FunctionInstance, error) {
	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Title == "" {
		return domain.FunctionInstance{}, invalid("title", "Evidence title is required")
	}
	if !oneOf(ev.Type, domain.EvidenceFile, domain.EvidenceLink, domain.EvidenceNote) {
		return domain.FunctionInstance{}, invalid("type", fmt.Sprintf("invalid evidence type %q", ev.Type))
	}
	ev.ID = e.Instances.NewID()
	ev.AddedAt = e.Instances.Now()
	ev.AddedBy = changedBy
	fi, ok := e.Instances.Mutate(instanceID, func(fi *domain.FunctionInstance) *domain.HistoryEntry {
		fi.Evidence = append(fi.Evidence, ev)
		return &domain.HistoryEntry{
			Action:      domain.HistoryEvidenceAdded,
			Description: fmt.Sprintf("Evidence added: %s", ev.Title),
			ChangedBy:   changedBy,
			NewValue:    ev.ID,
		}
	})
	if !ok {
		return domain.FunctionInstance{}, notFound("function instance", instanceID)
	}
	e.record("function.evidence_added", "function_instance", instanceID, changedBy, events.EventPayload{"evidence_id": ev.ID, "type": ev.Type})
	return fi, nil
}

// LinkAction records an existing action against an instance. Linking the
// same action twice is a no-op.
func (e Engine) LinkAction(instanceID, actionID, changedBy string) (domain.FunctionInstance, error) {
	if _, ok := e.Actions.Get(actionID); !ok {
		return domain.FunctionInstance{}, notFound("action", actionID)
	}
	linked := false
	fi, ok := e.Instances.Mutate(instanceID, func(fi *domain.FunctionInstance) *domain.HistoryEntry {
		for _, id := range fi.LinkedActionIDs {
			if id == actionID {
				return nil
			}
		}
		linked = true
		fi.LinkedActionIDs = append(fi.LinkedActionIDs, actionID)
		return &domain.HistoryEntry{
			Action:      domain.HistoryActionLinked,
			Description: "Action linked",
			ChangedBy:   changedBy,
			NewValue:    actionID,
		}
	})
	if !ok {
		return domain.FunctionInstance{}, notFound("function instance", instanceID)
	}
	if linked {
		e.record("function.action_linked", "function_instance", instanceID, changedBy, events.EventPayload{"action_id": actionID})
	}
	return fi, nil
}

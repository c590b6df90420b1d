package store

import (
	"time"

	"qualityline/internal/domain"
)

// ActionStore owns corrective and improvement actions.
type ActionStore struct {
	opts  Options
	items *collection[domain.Action]
}

func NewActionStore(opts Options) *ActionStore {
	return &ActionStore{
		opts:  opts,
		items: newCollection(func(a domain.Action) string { return a.ID }, cloneAction),
	}
}

func (s *ActionStore) Create(a domain.Action) domain.Action {
	return s.items.add(func(int) domain.Action {
		now := s.opts.now()
		if a.ID == "" {
			a.ID = s.opts.id()
		}
		if a.Status == "" {
			a.Status = domain.ActionPlanned
		}
		if a.DueDate != nil && *a.DueDate == "" {
			a.DueDate = nil
		}
		if a.Status == domain.ActionCompleted {
			a.CompletedAt = &now
		}
		a.Version = 1
		a.CreatedAt = now
		a.UpdatedAt = now
		a.RevisionDate = now
		return a
	})
}

func (s *ActionStore) Update(id string, patch domain.ActionPatch, note string) (domain.Action, bool) {
	return s.items.replace(id, func(a domain.Action) domain.Action {
		now := s.opts.now()
		if patch.ProcessID != nil {
			a.ProcessID = *patch.ProcessID
		}
		if patch.Title != nil {
			a.Title = *patch.Title
		}
		if patch.Description != nil {
			a.Description = *patch.Description
		}
		if patch.SourceType != nil {
			a.SourceType = *patch.SourceType
		}
		if patch.SourceID != nil {
			a.SourceID = *patch.SourceID
		}
		if patch.ResponsibleName != nil {
			a.ResponsibleName = *patch.ResponsibleName
		}
		if patch.DueDate != nil {
			if *patch.DueDate == "" {
				a.DueDate = nil
			} else {
				a.DueDate = cloneString(patch.DueDate)
			}
		}
		if patch.Status != nil && *patch.Status != a.Status {
			a.Status = *patch.Status
			if a.Status == domain.ActionCompleted {
				a.CompletedAt = &now
			} else {
				a.CompletedAt = nil
			}
		}
		a.Version++
		a.UpdatedAt = now
		a.RevisionDate = now
		a.RevisionNote = note
		return a
	})
}

func (s *ActionStore) Get(id string) (domain.Action, bool) {
	return s.items.get(id)
}

func (s *ActionStore) List() []domain.Action {
	return s.items.list(nil)
}

func (s *ActionStore) ByProcess(processID string) []domain.Action {
	return s.items.list(func(a domain.Action) bool { return a.ProcessID == processID })
}

func (s *ActionStore) ByStatus(status string) []domain.Action {
	return s.items.list(func(a domain.Action) bool { return a.Status == status })
}

// Open returns actions that are neither completed nor cancelled.
func (s *ActionStore) Open() []domain.Action {
	return s.items.list(func(a domain.Action) bool { return !a.IsClosed() })
}

// Overdue returns open actions whose due date is strictly before now.
func (s *ActionStore) Overdue(now time.Time) []domain.Action {
	return s.items.list(func(a domain.Action) bool { return IsOverdue(a, now) })
}

// IsOverdue reports whether a is open with a due date before now. Due dates
// without a parseable RFC 3339 timestamp or calendar date never count.
func IsOverdue(a domain.Action, now time.Time) bool {
	if a.IsClosed() || a.DueDate == nil {
		return false
	}
	due, ok := ParseDueDate(*a.DueDate)
	if !ok {
		return false
	}
	return due.Before(now)
}

// ParseDueDate accepts RFC 3339 timestamps and YYYY-MM-DD dates (UTC midnight).
func ParseDueDate(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func cloneAction(a domain.Action) domain.Action {
	a.DueDate = cloneString(a.DueDate)
	a.CompletedAt = cloneString(a.CompletedAt)
	return a
}

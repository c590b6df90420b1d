package store

import (
	"sort"

	"qualityline/internal/domain"
)

// IssueStore owns SWOT/risk ContextIssue entities.
type IssueStore struct {
	opts  Options
	items *collection[domain.ContextIssue]
}

func NewIssueStore(opts Options) *IssueStore {
	return &IssueStore{
		opts:  opts,
		items: newCollection(func(i domain.ContextIssue) string { return i.ID }, cloneIssue),
	}
}

// Create stores a new issue. The type follows the quadrant and criticality
// is derived from severity and probability.
func (s *IssueStore) Create(issue domain.ContextIssue) domain.ContextIssue {
	return s.items.add(func(int) domain.ContextIssue {
		now := s.opts.now()
		if issue.ID == "" {
			issue.ID = s.opts.id()
		}
		issue.Severity = normalizeScore(issue.Severity)
		issue.Probability = normalizeScore(issue.Probability)
		issue.Type = domain.TypeForQuadrant(issue.Quadrant)
		issue.Criticality = Criticality(issue.Severity, issue.Probability)
		issue.Version = 1
		issue.CreatedAt = now
		issue.UpdatedAt = now
		issue.RevisionDate = now
		return issue
	})
}

// Update merges patch into the issue. A zero severity or probability clears
// the score.
func (s *IssueStore) Update(id string, patch domain.IssuePatch, note string) (domain.ContextIssue, bool) {
	return s.items.replace(id, func(issue domain.ContextIssue) domain.ContextIssue {
		if patch.ProcessID != nil {
			issue.ProcessID = *patch.ProcessID
		}
		if patch.Quadrant != nil {
			issue.Quadrant = *patch.Quadrant
			issue.Type = domain.TypeForQuadrant(issue.Quadrant)
		}
		if patch.Description != nil {
			issue.Description = *patch.Description
		}
		if patch.Origin != nil {
			issue.Origin = *patch.Origin
		}
		if patch.Severity != nil {
			issue.Severity = normalizeScore(patch.Severity)
		}
		if patch.Probability != nil {
			issue.Probability = normalizeScore(patch.Probability)
		}
		issue.Criticality = Criticality(issue.Severity, issue.Probability)
		now := s.opts.now()
		issue.Version++
		issue.UpdatedAt = now
		issue.RevisionDate = now
		issue.RevisionNote = note
		return issue
	})
}

func (s *IssueStore) Delete(id string) bool {
	return s.items.remove(id)
}

func (s *IssueStore) Get(id string) (domain.ContextIssue, bool) {
	return s.items.get(id)
}

func (s *IssueStore) List() []domain.ContextIssue {
	return s.items.list(nil)
}

func (s *IssueStore) ByProcess(processID string) []domain.ContextIssue {
	return s.items.list(func(i domain.ContextIssue) bool { return i.ProcessID == processID })
}

func (s *IssueStore) ByQuadrant(processID, quadrant string) []domain.ContextIssue {
	return s.items.list(func(i domain.ContextIssue) bool {
		return i.ProcessID == processID && i.Quadrant == quadrant
	})
}

// RisksByPriority returns scored risks, highest criticality first.
func (s *IssueStore) RisksByPriority() []domain.ContextIssue {
	risks := s.items.list(func(i domain.ContextIssue) bool {
		return i.Type == domain.IssueRisk && i.Criticality != nil
	})
	sort.SliceStable(risks, func(a, b int) bool {
		return *risks[a].Criticality > *risks[b].Criticality
	})
	return risks
}

// Criticality is severity × probability, or nil unless both are set.
func Criticality(severity, probability *int) *int {
	if severity == nil || probability == nil {
		return nil
	}
	c := *severity * *probability
	return &c
}

func normalizeScore(v *int) *int {
	if v == nil || *v == 0 {
		return nil
	}
	return cloneInt(v)
}

func cloneIssue(i domain.ContextIssue) domain.ContextIssue {
	i.Severity = cloneInt(i.Severity)
	i.Probability = cloneInt(i.Probability)
	i.Criticality = cloneInt(i.Criticality)
	return i
}

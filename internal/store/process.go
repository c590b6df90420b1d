package store

import "qualityline/internal/domain"

// ProcessStore owns Process entities.
type ProcessStore struct {
	opts   Options
	prefix string
	width  int
	items  *collection[domain.Process]
}

// NewProcessStore returns an empty store issuing codes like PRC-001.
func NewProcessStore(opts Options, codePrefix string, codeWidth int) *ProcessStore {
	if codePrefix == "" {
		codePrefix = "PRC"
	}
	return &ProcessStore{
		opts:   opts,
		prefix: codePrefix,
		width:  codeWidth,
		items:  newCollection(func(p domain.Process) string { return p.ID }, cloneProcess),
	}
}

// Create assigns id, code, timestamps and version 1.
func (s *ProcessStore) Create(p domain.Process) domain.Process {
	return s.items.add(func(size int) domain.Process {
		now := s.opts.now()
		if p.ID == "" {
			p.ID = s.opts.id()
		}
		p.Code = sequenceCode(s.prefix, s.width, size+1)
		if p.Status == "" {
			p.Status = domain.StatusDraft
		}
		if p.Standard == "" {
			p.Standard = domain.StandardISO9001
		}
		p.Version = 1
		p.CreatedAt = now
		p.UpdatedAt = now
		p.RevisionDate = now
		return p
	})
}

// Update merges patch into the process, bumps its version and stamps the
// revision.
func (s *ProcessStore) Update(id string, patch domain.ProcessPatch, note string) (domain.Process, bool) {
	return s.items.replace(id, func(p domain.Process) domain.Process {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Type != nil {
			p.Type = *patch.Type
		}
		if patch.Purpose != nil {
			p.Purpose = *patch.Purpose
		}
		if patch.Inputs != nil {
			p.Inputs = patch.Inputs
		}
		if patch.Outputs != nil {
			p.Outputs = patch.Outputs
		}
		if patch.PilotName != nil {
			p.PilotName = *patch.PilotName
		}
		if patch.Activities != nil {
			p.Activities = patch.Activities
		}
		if patch.Regulations != nil {
			p.Regulations = patch.Regulations
		}
		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.RiskIDs != nil {
			p.RiskIDs = patch.RiskIDs
		}
		if patch.ActionIDs != nil {
			p.ActionIDs = patch.ActionIDs
		}
		if patch.IndicatorIDs != nil {
			p.IndicatorIDs = patch.IndicatorIDs
		}
		now := s.opts.now()
		p.Version++
		p.UpdatedAt = now
		p.RevisionDate = now
		p.RevisionNote = note
		return p
	})
}

// Archive moves the process to archived status.
func (s *ProcessStore) Archive(id string) (domain.Process, bool) {
	status := domain.StatusArchived
	return s.Update(id, domain.ProcessPatch{Status: &status}, "Process archived")
}

func (s *ProcessStore) Get(id string) (domain.Process, bool) {
	return s.items.get(id)
}

func (s *ProcessStore) List() []domain.Process {
	return s.items.list(nil)
}

func (s *ProcessStore) ByStatus(status string) []domain.Process {
	return s.items.list(func(p domain.Process) bool { return p.Status == status })
}

func (s *ProcessStore) Active() []domain.Process {
	return s.ByStatus(domain.StatusActive)
}

func (s *ProcessStore) Len() int { return s.items.len() }

func cloneProcess(p domain.Process) domain.Process {
	p.Inputs = cloneStrings(p.Inputs)
	p.Outputs = cloneStrings(p.Outputs)
	p.RiskIDs = cloneStrings(p.RiskIDs)
	p.ActionIDs = cloneStrings(p.ActionIDs)
	p.IndicatorIDs = cloneStrings(p.IndicatorIDs)
	if p.Activities != nil {
		p.Activities = append([]domain.Activity{}, p.Activities...)
	}
	if p.Regulations != nil {
		p.Regulations = append([]domain.Regulation{}, p.Regulations...)
	}
	return p
}

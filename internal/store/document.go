package store

import "qualityline/internal/domain"

// DocumentStore owns controlled documents.
type DocumentStore struct {
	opts   Options
	prefix string
	width  int
	items  *collection[domain.Document]
}

// NewDocumentStore returns an empty store issuing codes like DOC-001.
func NewDocumentStore(opts Options, codePrefix string, codeWidth int) *DocumentStore {
	if codePrefix == "" {
		codePrefix = "DOC"
	}
	return &DocumentStore{
		opts:   opts,
		prefix: codePrefix,
		width:  codeWidth,
		items:  newCollection(func(d domain.Document) string { return d.ID }, cloneDocument),
	}
}

// Create assigns id, a DOC-### code from the sequence length, timestamps and
// version 1.
func (s *DocumentStore) Create(d domain.Document) domain.Document {
	return s.items.add(func(size int) domain.Document {
		now := s.opts.now()
		if d.ID == "" {
			d.ID = s.opts.id()
		}
		d.Code = sequenceCode(s.prefix, s.width, size+1)
		if d.Status == "" {
			d.Status = domain.StatusDraft
		}
		d.Version = 1
		d.CreatedAt = now
		d.UpdatedAt = now
		d.RevisionDate = now
		return d
	})
}

func (s *DocumentStore) Update(id string, patch domain.DocumentPatch, note string) (domain.Document, bool) {
	return s.items.replace(id, func(d domain.Document) domain.Document {
		if patch.Title != nil {
			d.Title = *patch.Title
		}
		if patch.Type != nil {
			d.Type = *patch.Type
		}
		if patch.Description != nil {
			d.Description = *patch.Description
		}
		if patch.ProcessIDs != nil {
			d.ProcessIDs = patch.ProcessIDs
		}
		if patch.ISOClauseReferences != nil {
			d.ISOClauseReferences = patch.ISOClauseReferences
		}
		if patch.Status != nil {
			d.Status = *patch.Status
		}
		now := s.opts.now()
		d.Version++
		d.UpdatedAt = now
		d.RevisionDate = now
		d.RevisionNote = note
		return d
	})
}

func (s *DocumentStore) Archive(id string) (domain.Document, bool) {
	status := domain.StatusArchived
	return s.Update(id, domain.DocumentPatch{Status: &status}, "Document archived")
}

func (s *DocumentStore) Get(id string) (domain.Document, bool) {
	return s.items.get(id)
}

func (s *DocumentStore) List() []domain.Document {
	return s.items.list(nil)
}

// ByProcess returns the non-archived documents linked to a process.
func (s *DocumentStore) ByProcess(processID string) []domain.Document {
	return s.items.list(func(d domain.Document) bool {
		if d.Status == domain.StatusArchived {
			return false
		}
		for _, id := range d.ProcessIDs {
			if id == processID {
				return true
			}
		}
		return false
	})
}

func (s *DocumentStore) Active() []domain.Document {
	return s.items.list(func(d domain.Document) bool { return d.Status == domain.StatusActive })
}

func cloneDocument(d domain.Document) domain.Document {
	d.ProcessIDs = cloneStrings(d.ProcessIDs)
	if d.ISOClauseReferences == nil {
		d.ISOClauseReferences = []domain.ClauseReference{}
	} else {
		d.ISOClauseReferences = append([]domain.ClauseReference{}, d.ISOClauseReferences...)
	}
	return d
}

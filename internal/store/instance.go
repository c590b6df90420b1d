package store

import "qualityline/internal/domain"

// InstanceStore owns FunctionInstance records. Duplication rules are enforced
// by the caller; the store only records attachments.
type InstanceStore struct {
	opts  Options
	items *collection[domain.FunctionInstance]
}

func NewInstanceStore(opts Options) *InstanceStore {
	return &InstanceStore{
		opts:  opts,
		items: newCollection(func(fi domain.FunctionInstance) string { return fi.ID }, cloneInstance),
	}
}

// Create records a pending instance of functionID on processID with a
// "created" history entry.
func (s *InstanceStore) Create(functionID, processID, changedBy string) domain.FunctionInstance {
	return s.items.add(func(int) domain.FunctionInstance {
		now := s.opts.now()
		return domain.FunctionInstance{
			ID:              s.opts.id(),
			FunctionID:      functionID,
			ProcessID:       processID,
			Status:          domain.InstancePending,
			Data:            map[string]any{},
			LinkedActionIDs: []string{},
			Evidence:        []domain.Evidence{},
			History: []domain.HistoryEntry{{
				ID:          s.opts.id(),
				Date:        now,
				Action:      domain.HistoryCreated,
				Description: "Function attached to process",
				ChangedBy:   changedBy,
				NewValue:    domain.InstancePending,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
	})
}

// Mutate applies change to a copy of the instance and appends entry (when
// non-nil) to its history.
func (s *InstanceStore) Mutate(id string, change func(*domain.FunctionInstance) *domain.HistoryEntry) (domain.FunctionInstance, bool) {
	return s.items.replace(id, func(fi domain.FunctionInstance) domain.FunctionInstance {
		entry := change(&fi)
		now := s.opts.now()
		if entry != nil {
			if entry.ID == "" {
				entry.ID = s.opts.id()
			}
			entry.Date = now
			fi.History = append(fi.History, *entry)
		}
		fi.UpdatedAt = now
		return fi
	})
}

// NewID hands out an id from the store's id source.
func (s *InstanceStore) NewID() string { return s.opts.id() }

// Now returns the store clock as an RFC 3339 string.
func (s *InstanceStore) Now() string { return s.opts.now() }

func (s *InstanceStore) Get(id string) (domain.FunctionInstance, bool) {
	return s.items.get(id)
}

func (s *InstanceStore) List() []domain.FunctionInstance {
	return s.items.list(nil)
}

func (s *InstanceStore) ByProcess(processID string) []domain.FunctionInstance {
	return s.items.list(func(fi domain.FunctionInstance) bool { return fi.ProcessID == processID })
}

func (s *InstanceStore) ByFunction(functionID string) []domain.FunctionInstance {
	return s.items.list(func(fi domain.FunctionInstance) bool { return fi.FunctionID == functionID })
}

// Find returns the instance of functionID attached to processID.
func (s *InstanceStore) Find(functionID, processID string) (domain.FunctionInstance, bool) {
	matches := s.items.list(func(fi domain.FunctionInstance) bool {
		return fi.FunctionID == functionID && fi.ProcessID == processID
	})
	if len(matches) == 0 {
		return domain.FunctionInstance{}, false
	}
	return matches[0], true
}

func cloneInstance(fi domain.FunctionInstance) domain.FunctionInstance {
	data := make(map[string]any, len(fi.Data))
	for k, v := range fi.Data {
		data[k] = v
	}
	fi.Data = data
	fi.LinkedActionIDs = cloneStrings(fi.LinkedActionIDs)
	fi.Evidence = append([]domain.Evidence{}, fi.Evidence...)
	fi.History = append([]domain.HistoryEntry{}, fi.History...)
	return fi
}

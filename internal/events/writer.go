package events

import (
	"sync"
	"time"

	"qualityline/internal/domain"
)

// Log is the session's append-only event journal.
type Log struct {
	Now func() time.Time

	mu     sync.RWMutex
	nextID int64
	items  []domain.Event
}

type EventPayload map[string]any

func (l *Log) Append(evtType, entityKind, entityID, actorID string, payload EventPayload) domain.Event {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	if actorID == "" {
		actorID = "local-user"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	evt := domain.Event{
		ID:         l.nextID,
		TS:         now().UTC().Format(time.RFC3339),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    map[string]any(payload),
	}
	next := make([]domain.Event, len(l.items), len(l.items)+1)
	copy(next, l.items)
	l.items = append(next, evt)
	return evt
}

// Filter narrows Latest results; empty fields match everything. BeforeID,
// when set, only matches events older than that id.
type Filter struct {
	Type       string
	EntityKind string
	EntityID   string
	BeforeID   int64
}

// Latest returns up to limit matching events, newest first. A limit of zero
// or less returns every match.
func (l *Log) Latest(limit int, f Filter) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var res []domain.Event
	for i := len(l.items) - 1; i >= 0; i-- {
		evt := l.items[i]
		if f.BeforeID > 0 && evt.ID >= f.BeforeID {
			continue
		}
		if f.Type != "" && evt.Type != f.Type {
			continue
		}
		if f.EntityKind != "" && evt.EntityKind != f.EntityKind {
			continue
		}
		if f.EntityID != "" && evt.EntityID != f.EntityID {
			continue
		}
		res = append(res, evt)
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

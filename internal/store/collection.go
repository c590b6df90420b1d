// Package store keeps the session's entities in memory. Every write swaps in
// a fresh slice holding a fresh entity value; readers never observe a
// collection being modified in place.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options carries the clock and id source shared by the stores.
type Options struct {
	Now   func() time.Time
	NewID func() string
}

func (o Options) now() string {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return now().UTC().Format(time.RFC3339)
}

func (o Options) id() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

// collection is an ordered, replace-on-write list of entities keyed by id.
type collection[T any] struct {
	mu    sync.RWMutex
	items []T
	idOf  func(T) string
	clone func(T) T
}

func newCollection[T any](idOf func(T) string, clone func(T) T) *collection[T] {
	return &collection[T]{idOf: idOf, clone: clone}
}

func (c *collection[T]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *collection[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if c.idOf(item) == id {
			return c.clone(item), true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) list(keep func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if keep == nil || keep(item) {
			res = append(res, c.clone(item))
		}
	}
	return res
}

// add appends the value built by build; build sees the collection size
// before the append so sequence-based codes stay consistent.
func (c *collection[T]) add(build func(size int) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := build(len(c.items))
	next := make([]T, len(c.items), len(c.items)+1)
	copy(next, c.items)
	c.items = append(next, c.clone(item))
	return c.clone(item)
}

// replace swaps the entity with the given id for the value returned by
// change, which receives a private copy.
func (c *collection[T]) replace(id string, change func(T) T) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, item := range c.items {
		if c.idOf(item) != id {
			continue
		}
		updated := change(c.clone(item))
		next := make([]T, len(c.items))
		copy(next, c.items)
		next[i] = c.clone(updated)
		c.items = next
		return c.clone(updated), true
	}
	var zero T
	return zero, false
}

func (c *collection[T]) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]T, 0, len(c.items))
	found := false
	for _, item := range c.items {
		if c.idOf(item) == id {
			found = true
			continue
		}
		next = append(next, item)
	}
	if found {
		c.items = next
	}
	return found
}

func sequenceCode(prefix string, width, n int) string {
	if width <= 0 {
		width = 3
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

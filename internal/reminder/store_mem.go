package reminder

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore is a thread-safe, in-memory Store implementation used in
// tests and throwaway deployments.
type InMemoryStore struct {
	mu        sync.RWMutex
	reminders map[string]Reminder
}

// NewInMemoryStore creates an empty in-memory reminder store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reminders: make(map[string]Reminder)}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// Put inserts or replaces a reminder.
func (s *InMemoryStore) Put(_ context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[r.ID] = r
	return nil
}

// Get returns a reminder by ID.
func (s *InMemoryStore) Get(_ context.Context, id string) (Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reminders[id]
	if !ok {
		return Reminder{}, ErrReminderNotFound
	}
	return r, nil
}

// List returns reminders matching the filter, ordered by due date.
func (s *InMemoryStore) List(_ context.Context, f Filter) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Reminder
	for _, r := range s.reminders {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out, nil
}

// UpdateIf atomically applies mutate when predicate holds. The write lock
// spans check and mutation, so concurrent callers serialize.
func (s *InMemoryStore) UpdateIf(_ context.Context, id string, predicate func(Reminder) bool, mutate func(*Reminder)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reminders[id]
	if !ok {
		return false, ErrReminderNotFound
	}
	if !predicate(r) {
		return false, nil
	}
	mutate(&r)
	s.reminders[id] = r
	return true, nil
}

// Delete removes a reminder by ID.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reminders[id]; !ok {
		return ErrReminderNotFound
	}
	delete(s.reminders, id)
	return nil
}

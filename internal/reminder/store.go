package reminder

import (
	"context"
	"errors"
	"time"
)

// ErrReminderNotFound indicates the requested reminder does not exist.
var ErrReminderNotFound = errors.New("reminder: not found")

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	// Status matches reminders in the given state.
	Status Status

	// DueBy matches reminders whose due date is at or before the time.
	DueBy *time.Time

	// SnoozeElapsedBy matches reminders whose snooze deadline is at or
	// before the time.
	SnoozeElapsedBy *time.Time

	// RecurringDueBy matches recurring reminders whose NextOccurrence is
	// set and at or before the time.
	RecurringDueBy *time.Time

	// Tag matches reminders carrying the tag.
	Tag string
}

// Matches reports whether the reminder satisfies every set field.
func (f Filter) Matches(r Reminder) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.DueBy != nil && r.DueDate.After(*f.DueBy) {
		return false
	}
	if f.SnoozeElapsedBy != nil {
		if r.SnoozeUntil == nil || r.SnoozeUntil.After(*f.SnoozeElapsedBy) {
			return false
		}
	}
	if f.RecurringDueBy != nil {
		if !r.IsRecurring() || r.NextOccurrence == nil || r.NextOccurrence.After(*f.RecurringDueBy) {
			return false
		}
	}
	if f.Tag != "" {
		found := false
		for _, t := range r.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Store persists reminders. Implementations must be safe for concurrent
// use, and UpdateIf must be atomic per document: the predicate check and
// the mutation happen as one unit with no interleaved writer, which is what
// keeps overlapping scheduler ticks from double-materializing a reminder.
type Store interface {
	// Put inserts or replaces a reminder.
	Put(ctx context.Context, r Reminder) error

	// Get returns a reminder by ID, or ErrReminderNotFound.
	Get(ctx context.Context, id string) (Reminder, error)

	// List returns reminders matching the filter, ordered by due date.
	List(ctx context.Context, f Filter) ([]Reminder, error)

	// UpdateIf atomically applies mutate to the reminder when predicate
	// holds. Returns true when the mutation was applied, false when the
	// predicate rejected it, and ErrReminderNotFound for unknown IDs.
	UpdateIf(ctx context.Context, id string, predicate func(Reminder) bool, mutate func(*Reminder)) (bool, error)

	// Delete removes a reminder by ID, or returns ErrReminderNotFound.
	Delete(ctx context.Context, id string) error
}

// Package reminder implements reminders with recurrence rules: date
// arithmetic for computing future occurrences, a persistence contract with
// atomic conditional updates, and the periodic jobs that detect due items
// and materialize recurring ones.
package reminder

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a reminder. "Due" is a derived
// condition (pending with an elapsed due date), not a stored status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSnoozed   Status = "snoozed"
	StatusCancelled Status = "cancelled"
)

// Priority orders reminders for presentation; it has no scheduling effect.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// RecurrenceType selects the calendar semantics of a recurrence rule.
type RecurrenceType string

const (
	RecurrenceNone     RecurrenceType = "none"
	RecurrenceMinutely RecurrenceType = "minutely"
	RecurrenceHourly   RecurrenceType = "hourly"
	RecurrenceDaily    RecurrenceType = "daily"
	RecurrenceWeekly   RecurrenceType = "weekly"
	RecurrenceMonthly  RecurrenceType = "monthly"
)

// Recurrence is a declarative rule for generating future occurrences from a
// base date.
type Recurrence struct {
	Type     RecurrenceType `json:"type" yaml:"type"`
	Interval int            `json:"interval" yaml:"interval"`

	// EndDate, when set, caps the sequence: no occurrence past it.
	EndDate *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`

	// Count, when positive, caps how many additional instances a
	// recurring reminder spawns.
	Count int `json:"count,omitempty" yaml:"count,omitempty"`

	// DaysOfWeek restricts weekly recurrence to specific weekdays
	// (time.Weekday: Sunday = 0).
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty"`

	// DayOfMonth targets a specific day for monthly recurrence (1–31),
	// clamped to the last day of shorter months. 0 = keep the base day.
	DayOfMonth int `json:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`
}

// IsRecurring reports whether the rule produces occurrences at all.
func (r Recurrence) IsRecurring() bool {
	return r.Type != "" && r.Type != RecurrenceNone
}

// Validate checks the rule's fields for structural sanity.
func (r Recurrence) Validate() error {
	switch r.Type {
	case "", RecurrenceNone:
		return nil
	case RecurrenceMinutely, RecurrenceHourly, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return fmt.Errorf("reminder: unknown recurrence type %q", r.Type)
	}
	if r.Interval < 1 {
		return fmt.Errorf("reminder: recurrence interval must be >= 1, got %d", r.Interval)
	}
	if r.DayOfMonth < 0 || r.DayOfMonth > 31 {
		return fmt.Errorf("reminder: day_of_month must be in 1..31, got %d", r.DayOfMonth)
	}
	for _, d := range r.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("reminder: invalid weekday %d", d)
		}
	}
	if r.Count < 0 {
		return fmt.Errorf("reminder: recurrence count must not be negative, got %d", r.Count)
	}
	return nil
}

// Reminder is a scheduled item, optionally recurring. NextOccurrence, when
// set, is always strictly after DueDate as of the time it was computed.
type Reminder struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     time.Time  `json:"due_date"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Tags        []string   `json:"tags,omitempty"`
	Recurrence  Recurrence `json:"recurrence"`

	NextOccurrence  *time.Time `json:"next_occurrence,omitempty"`
	OccurrenceCount int        `json:"occurrence_count"`

	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a pending reminder with sane defaults and, for recurring
// rules, a computed first NextOccurrence.
func New(title string, due time.Time, priority Priority, rule Recurrence) (Reminder, error) {
	if title == "" {
		return Reminder{}, errors.New("reminder: title is required")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if rule.Type == "" {
		rule.Type = RecurrenceNone
	}
	if rule.IsRecurring() && rule.Interval == 0 {
		rule.Interval = 1
	}
	if err := rule.Validate(); err != nil {
		return Reminder{}, err
	}

	now := time.Now().UTC()
	r := Reminder{
		ID:         uuid.NewString(),
		Title:      title,
		DueDate:    due,
		Status:     StatusPending,
		Priority:   priority,
		Recurrence: rule,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.RefreshNextOccurrence()
	return r, nil
}

// IsRecurring reports whether this reminder spawns future instances.
func (r *Reminder) IsRecurring() bool {
	return r.Recurrence.IsRecurring()
}

// RefreshNextOccurrence recomputes NextOccurrence from the current due date
// and rule. Call after any change to DueDate or the recurrence fields.
func (r *Reminder) RefreshNextOccurrence() {
	if next, ok := NextOccurrence(r.DueDate, r.Recurrence); ok {
		r.NextOccurrence = &next
	} else {
		r.NextOccurrence = nil
	}
}

// SpawnNext builds the next instance of a recurring reminder: same title,
// description, priority, tags, and rule, due at the parent's elapsed
// NextOccurrence. The child gets its own identity and occurrence chain.
func (r *Reminder) SpawnNext(due time.Time, now time.Time) Reminder {
	tags := make([]string, len(r.Tags))
	copy(tags, r.Tags)

	child := Reminder{
		ID:          uuid.NewString(),
		Title:       r.Title,
		Description: r.Description,
		DueDate:     due,
		Status:      StatusPending,
		Priority:    r.Priority,
		Tags:        tags,
		Recurrence:  r.Recurrence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// The child carries the recurrence config for display but no
	// NextOccurrence: the parent owns the chain, so children never
	// materialize instances of their own.
	return child
}

package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []NotificationKind
	ids    []string
	err    error
}

func (n *captureNotifier) Notify(_ context.Context, r Reminder, kind NotificationKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, kind)
	n.ids = append(n.ids, r.ID)
	return nil
}

func (n *captureNotifier) count(kind NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.events {
		if k == kind {
			c++
		}
	}
	return c
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustPut(t *testing.T, store Store, r Reminder) {
	t.Helper()
	if err := store.Put(context.Background(), r); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func TestDueCheckNotifiesDueReminders(t *testing.T) {
	t.Parallel()

	now := date(2025, time.June, 1)
	store := NewInMemoryStore()
	notifier := &captureNotifier{}

	due, _ := New("pay rent", now.Add(-time.Hour), PriorityHigh, Recurrence{})
	future, _ := New("dentist", now.Add(48*time.Hour), PriorityMedium, Recurrence{})
	done, _ := New("old", now.Add(-time.Hour), PriorityLow, Recurrence{})
	done.Status = StatusCompleted
	mustPut(t, store, due)
	mustPut(t, store, future)
	mustPut(t, store, done)

	job := &DueCheckJob{Store: store, Notifier: notifier, Now: fixedClock(now)}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := notifier.count(KindDue); got != 1 {
		t.Fatalf("due notifications = %d, want 1", got)
	}
	if notifier.ids[0] != due.ID {
		t.Fatalf("notified %q, want %q", notifier.ids[0], due.ID)
	}
}

func TestDueCheckWakesSnoozeExactlyOnce(t *testing.T) {
	t.Parallel()

	now := date(2025, time.June, 1)
	store := NewInMemoryStore()
	notifier := &captureNotifier{}

	r, _ := New("water plants", now.Add(-2*time.Hour), PriorityLow, Recurrence{})
	snoozeUntil := now.Add(-time.Minute)
	r.Status = StatusSnoozed
	r.SnoozeUntil = &snoozeUntil
	mustPut(t, store, r)

	job := &DueCheckJob{Store: store, Notifier: notifier, Now: fixedClock(now)}

	// Repeated ticks must produce exactly one wake-up event.
	for i := 0; i < 3; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	if got := notifier.count(KindSnoozeElapsed); got != 1 {
		t.Fatalf("snooze notifications = %d, want 1", got)
	}

	woken, err := store.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if woken.Status != StatusPending {
		t.Fatalf("status = %q, want %q", woken.Status, StatusPending)
	}
	if woken.SnoozeUntil != nil {
		t.Fatal("snooze deadline should be cleared on wake")
	}

	// Once pending again the reminder is due, so subsequent ticks still
	// notified it as due.
	if got := notifier.count(KindDue); got == 0 {
		t.Fatal("woken reminder should surface as due")
	}
}

func TestDueCheckTolerantOfNotifierFailure(t *testing.T) {
	t.Parallel()

	now := date(2025, time.June, 1)
	store := NewInMemoryStore()
	notifier := &captureNotifier{err: errors.New("webhook down")}

	r, _ := New("call mom", now.Add(-time.Hour), PriorityMedium, Recurrence{})
	mustPut(t, store, r)

	job := &DueCheckJob{Store: store, Notifier: notifier, Now: fixedClock(now)}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("a failing notifier must not fail the tick: %v", err)
	}
}

func TestMaterializeSpawnsInstanceAndAdvancesChain(t *testing.T) {
	t.Parallel()

	now := date(2025, time.June, 1)
	store := NewInMemoryStore()

	parent, err := New("standup", now.Add(-time.Hour), PriorityMedium,
		Recurrence{Type: RecurrenceDaily, Interval: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if parent.NextOccurrence == nil {
		t.Fatal("recurring reminder must start with a NextOccurrence")
	}
	firstDue := *parent.NextOccurrence
	mustPut(t, store, parent)

	job := &MaterializeJob{Store: store, Now: fixedClock(firstDue.Add(time.Minute))}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	all, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d reminders, want parent plus one instance", len(all))
	}

	updated, err := store.Get(context.Background(), parent.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.OccurrenceCount != 1 {
		t.Fatalf("occurrence count = %d, want 1", updated.OccurrenceCount)
	}
	if updated.NextOccurrence == nil {
		t.Fatal("uncapped rule must keep the chain alive")
	}
	// The chain advances from the elapsed occurrence, not from now.
	if want := firstDue.AddDate(0, 0, 1); !updated.NextOccurrence.Equal(want) {
		t.Fatalf("next occurrence = %v, want %v", updated.NextOccurrence, want)
	}

	var child Reminder
	for _, r := range all {
		if r.ID != parent.ID {
			child = r
		}
	}
	if !child.DueDate.Equal(firstDue) {
		t.Fatalf("instance due = %v, want %v", child.DueDate, firstDue)
	}
	if child.Title != parent.Title || child.Status != StatusPending {
		t.Fatalf("instance %+v does not mirror the parent", child)
	}
	if child.NextOccurrence != nil {
		t.Fatal("instances must not materialize chains of their own")
	}
}

func TestMaterializeHonorsCountCap(t *testing.T) {
	t.Parallel()

	now := date(2025, time.June, 1)
	store := NewInMemoryStore()

	parent, err := New("weekly report", now, PriorityMedium,
		Recurrence{Type: RecurrenceDaily, Interval: 1, Count: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	mustPut(t, store, parent)

	// Drive the job far past every occurrence, many times over.
	clock := now.AddDate(1, 0, 0)
	job := &MaterializeJob{Store: store, Now: fixedClock(clock)}
	for i := 0; i < 10; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	all, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Parent plus exactly the capped number of instances.
	if len(all) != 4 {
		t.Fatalf("got %d reminders, want parent plus 3 instances", len(all))
	}

	updated, err := store.Get(context.Background(), parent.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.OccurrenceCount != 3 {
		t.Fatalf("occurrence count = %d, want 3", updated.OccurrenceCount)
	}
	if updated.NextOccurrence != nil {
		t.Fatal("exhausted chain must clear NextOccurrence")
	}
}

func TestMaterializeStopsAtEndDate(t *testing.T) {
	t.Parallel()

	now := date(2025, time.June, 1)
	end := now.AddDate(0, 0, 2)
	store := NewInMemoryStore()

	parent, err := New("short run", now, PriorityMedium,
		Recurrence{Type: RecurrenceDaily, Interval: 1, EndDate: &end})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	mustPut(t, store, parent)

	job := &MaterializeJob{Store: store, Now: fixedClock(now.AddDate(0, 1, 0))}
	for i := 0; i < 5; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	all, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Occurrences at +1d and +2d are within the end date; +3d is not.
	if len(all) != 3 {
		t.Fatalf("got %d reminders, want parent plus 2 instances", len(all))
	}
}

// failingPutStore wraps InMemoryStore and fails Put for one reminder title,
// exercising the job's per-item error tolerance.
type failingPutStore struct {
	*InMemoryStore
	failTitle string
}

func (s *failingPutStore) Put(ctx context.Context, r Reminder) error {
	if r.Title == s.failTitle {
		return errors.New("disk full")
	}
	return s.InMemoryStore.Put(ctx, r)
}

func TestMaterializeContinuesPastFailures(t *testing.T) {
	t.Parallel()

	now := date(2025, time.June, 1)
	inner := NewInMemoryStore()
	store := &failingPutStore{InMemoryStore: inner, failTitle: "broken"}

	bad, err := New("broken", now, PriorityMedium, Recurrence{Type: RecurrenceDaily, Interval: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	good, err := New("fine", now, PriorityMedium, Recurrence{Type: RecurrenceDaily, Interval: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	mustPut(t, inner, bad)
	mustPut(t, inner, good)

	job := &MaterializeJob{Store: store, Now: fixedClock(now.AddDate(0, 0, 1))}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("one failing reminder must not fail the tick: %v", err)
	}

	all, err := inner.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	spawned := 0
	for _, r := range all {
		if r.ID != bad.ID && r.ID != good.ID {
			spawned++
		}
	}
	if spawned != 1 {
		t.Fatalf("spawned %d instances, want 1 for the healthy reminder", spawned)
	}
}

func TestCleanupListsCompleted(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	r, _ := New("archived", date(2025, time.January, 1), PriorityLow, Recurrence{})
	r.Status = StatusCompleted
	mustPut(t, store, r)

	job := &CleanupJob{Store: store}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestJobSchedules(t *testing.T) {
	t.Parallel()

	if got := (&DueCheckJob{}).Schedule(); got != "* * * * *" {
		t.Fatalf("due check schedule = %q", got)
	}
	if got := (&MaterializeJob{}).Schedule(); got != "0 * * * *" {
		t.Fatalf("materialize schedule = %q", got)
	}
	if got := (&CleanupJob{}).Schedule(); got != "0 3 * * *" {
		t.Fatalf("cleanup schedule = %q", got)
	}
	if got := (&DueCheckJob{ScheduleExpr: "*/5 * * * *"}).Schedule(); got != "*/5 * * * *" {
		t.Fatalf("schedule override = %q", got)
	}
}

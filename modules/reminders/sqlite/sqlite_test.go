package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/reminder"
)

func newTestStore(t *testing.T) *store {
	t.Helper()

	dir := t.TempDir()
	m := &Module{
		config: Config{
			Path:        filepath.Join(dir, "test.db"),
			BusyTimeout: defaultBusyTimeout,
		},
	}
	m.config.defaults()

	if err := m.Provision(core.NewAppContext(slog.Default(), dir)); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})

	return m.store
}

func mkReminder(t *testing.T, title string, due time.Time, rule reminder.Recurrence) reminder.Reminder {
	t.Helper()
	r, err := reminder.New(title, due, reminder.PriorityMedium, rule)
	if err != nil {
		t.Fatalf("new reminder: %v", err)
	}
	return r
}

func TestModuleInfo(t *testing.T) {
	t.Parallel()

	info := (&Module{}).ModuleInfo()
	if info.ID != "reminders.sqlite" {
		t.Errorf("module ID = %q, want reminders.sqlite", info.ID)
	}
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkReminder(t, "buy milk", time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC), reminder.Recurrence{})
	r.Tags = []string{"errand"}

	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "buy milk" || len(got.Tags) != 1 || got.Tags[0] != "errand" {
		t.Fatalf("round-trip lost fields: %+v", got)
	}
	if !got.DueDate.Equal(r.DueDate) {
		t.Fatalf("due date = %v, want %v", got.DueDate, r.DueDate)
	}

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, reminder.ErrReminderNotFound) {
		t.Fatalf("get missing = %v, want ErrReminderNotFound", err)
	}

	if err := s.Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, r.ID); !errors.Is(err, reminder.ErrReminderNotFound) {
		t.Fatalf("delete missing = %v, want ErrReminderNotFound", err)
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2025, 4, d, 9, 0, 0, 0, time.UTC) }

	later := mkReminder(t, "later", day(3), reminder.Recurrence{})
	sooner := mkReminder(t, "sooner", day(1), reminder.Recurrence{})
	sooner.Tags = []string{"errand"}
	done := mkReminder(t, "done", day(2), reminder.Recurrence{})
	done.Status = reminder.StatusCompleted
	recurring := mkReminder(t, "recurring", day(1),
		reminder.Recurrence{Type: reminder.RecurrenceDaily, Interval: 1})

	for _, r := range []reminder.Reminder{later, sooner, done, recurring} {
		if err := s.Put(ctx, r); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	pending, err := s.List(ctx, reminder.Filter{Status: reminder.StatusPending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].DueDate.Before(pending[i-1].DueDate) {
			t.Fatal("list not ordered by due date")
		}
	}

	cutoff := day(2)
	due, err := s.List(ctx, reminder.Filter{Status: reminder.StatusPending, DueBy: &cutoff})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d, want 2", len(due))
	}

	tagged, err := s.List(ctx, reminder.Filter{Tag: "errand"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tagged) != 1 || tagged[0].Title != "sooner" {
		t.Fatalf("tag filter returned %v", tagged)
	}

	horizon := day(30)
	rec, err := s.List(ctx, reminder.Filter{RecurringDueBy: &horizon})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rec) != 1 || rec[0].Title != "recurring" {
		t.Fatalf("recurring filter returned %v", rec)
	}
}

func TestUpdateIfConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkReminder(t, "ticket", time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC), reminder.Recurrence{})
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("put: %v", err)
	}

	applied, err := s.UpdateIf(ctx, r.ID,
		func(cur reminder.Reminder) bool { return cur.Status == reminder.StatusPending },
		func(cur *reminder.Reminder) { cur.Status = reminder.StatusCompleted },
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !applied {
		t.Fatal("predicate held, mutation should apply")
	}

	applied, err = s.UpdateIf(ctx, r.ID,
		func(cur reminder.Reminder) bool { return cur.Status == reminder.StatusPending },
		func(cur *reminder.Reminder) { cur.Status = reminder.StatusCancelled },
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if applied {
		t.Fatal("predicate failed, mutation must not apply")
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != reminder.StatusCompleted {
		t.Fatalf("status = %q, want %q", got.Status, reminder.StatusCompleted)
	}

	if _, err := s.UpdateIf(ctx, "nope", func(reminder.Reminder) bool { return true }, func(*reminder.Reminder) {}); !errors.Is(err, reminder.ErrReminderNotFound) {
		t.Fatalf("update missing = %v, want ErrReminderNotFound", err)
	}
}

func TestUpdateIfSerializes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkReminder(t, "contended", time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC), reminder.Recurrence{})
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("put: %v", err)
	}

	var wg sync.WaitGroup
	wins := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := s.UpdateIf(ctx, r.ID,
				func(cur reminder.Reminder) bool { return cur.Status == reminder.StatusPending },
				func(cur *reminder.Reminder) { cur.Status = reminder.StatusCompleted },
			)
			if err != nil {
				t.Errorf("update: %v", err)
				return
			}
			if applied {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("%d transactions applied the transition, want exactly 1", won)
	}
}

func TestFilterColumnsStayInSync(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mkReminder(t, "standup", time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC),
		reminder.Recurrence{Type: reminder.RecurrenceDaily, Interval: 1})
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Clearing NextOccurrence through UpdateIf must also clear the filter
	// column, or the materialize job would keep seeing the reminder.
	if _, err := s.UpdateIf(ctx, r.ID,
		func(reminder.Reminder) bool { return true },
		func(cur *reminder.Reminder) { cur.NextOccurrence = nil },
	); err != nil {
		t.Fatalf("update: %v", err)
	}

	horizon := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err := s.List(ctx, reminder.Filter{RecurringDueBy: &horizon})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rec) != 0 {
		t.Fatalf("recurring filter returned %v, want none", rec)
	}
}

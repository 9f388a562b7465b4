package reminder

import (
	"context"
	"log/slog"
	"time"
)

// The three periodic jobs below implement the cron.Job interface. Each one
// tolerates partial failure: an error on one reminder is logged and the
// tick moves on to the next.

// DueCheckJob scans for pending reminders whose due date has elapsed and
// snoozed reminders whose snooze deadline has passed. Elapsed snoozes flip
// back to pending exactly once (conditional update); both cases emit a
// notification.
type DueCheckJob struct {
	Store    Store
	Notifier Notifier
	Logger   *slog.Logger

	// ScheduleExpr overrides the default "* * * * *" schedule.
	ScheduleExpr string

	// Now overrides the clock for tests. Nil means time.Now.
	Now func() time.Time
}

// Name implements cron.Job.
func (j *DueCheckJob) Name() string { return "reminders_due_check" }

// Schedule implements cron.Job.
func (j *DueCheckJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run implements cron.Job.
func (j *DueCheckJob) Run(ctx context.Context) error {
	now := j.now()

	// Wake elapsed snoozes first so they count as due in the same tick.
	snoozed, err := j.Store.List(ctx, Filter{Status: StatusSnoozed, SnoozeElapsedBy: &now})
	if err != nil {
		return err
	}
	for _, r := range snoozed {
		applied, err := j.Store.UpdateIf(ctx, r.ID,
			func(cur Reminder) bool {
				return cur.Status == StatusSnoozed && cur.SnoozeUntil != nil && !cur.SnoozeUntil.After(now)
			},
			func(cur *Reminder) {
				cur.Status = StatusPending
				cur.SnoozeUntil = nil
				cur.UpdatedAt = now
			},
		)
		if err != nil {
			j.logger().Error("due check: waking snoozed reminder failed", "id", r.ID, "error", err)
			continue
		}
		if !applied {
			continue // another tick got there first
		}
		j.notify(ctx, r, KindSnoozeElapsed)
	}

	due, err := j.Store.List(ctx, Filter{Status: StatusPending, DueBy: &now})
	if err != nil {
		return err
	}
	for _, r := range due {
		j.notify(ctx, r, KindDue)
	}

	if len(snoozed) > 0 || len(due) > 0 {
		j.logger().Debug("due check tick", "due", len(due), "woken", len(snoozed))
	}
	return nil
}

func (j *DueCheckJob) notify(ctx context.Context, r Reminder, kind NotificationKind) {
	if j.Notifier == nil {
		return
	}
	if err := j.Notifier.Notify(ctx, r, kind); err != nil {
		j.logger().Error("due check: notification failed", "id", r.ID, "kind", string(kind), "error", err)
	}
}

func (j *DueCheckJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *DueCheckJob) now() time.Time {
	if j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}

// MaterializeJob scans recurring reminders whose NextOccurrence has
// elapsed and spawns the next instance for each. The parent's chain
// advances from the old NextOccurrence, not from now, so a delayed tick
// doesn't drift the schedule. Spawning stops once the rule's count or end
// date binds.
type MaterializeJob struct {
	Store  Store
	Logger *slog.Logger

	// ScheduleExpr overrides the default "0 * * * *" schedule.
	ScheduleExpr string

	// Now overrides the clock for tests. Nil means time.Now.
	Now func() time.Time
}

// Name implements cron.Job.
func (j *MaterializeJob) Name() string { return "reminders_materialize" }

// Schedule implements cron.Job.
func (j *MaterializeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run implements cron.Job.
func (j *MaterializeJob) Run(ctx context.Context) error {
	now := j.now()

	recurring, err := j.Store.List(ctx, Filter{RecurringDueBy: &now})
	if err != nil {
		return err
	}

	spawned := 0
	for _, r := range recurring {
		child, ok, err := j.materialize(ctx, r.ID, now)
		if err != nil {
			j.logger().Error("materialize: reminder failed", "id", r.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := j.Store.Put(ctx, child); err != nil {
			j.logger().Error("materialize: storing instance failed", "parent", r.ID, "error", err)
			continue
		}
		spawned++
	}

	if spawned > 0 {
		j.logger().Info("materialized recurring reminders", "count", spawned)
	}
	return nil
}

// materialize advances one parent's chain under a conditional update and
// returns the child instance to insert. The predicate re-checks the elapsed
// NextOccurrence and the spawn cap inside the atomic update, so two
// overlapping ticks cannot both claim the same occurrence.
func (j *MaterializeJob) materialize(ctx context.Context, id string, now time.Time) (Reminder, bool, error) {
	var child Reminder

	applied, err := j.Store.UpdateIf(ctx, id,
		func(cur Reminder) bool {
			if cur.NextOccurrence == nil || cur.NextOccurrence.After(now) {
				return false
			}
			if cur.Recurrence.Count > 0 && cur.OccurrenceCount >= cur.Recurrence.Count {
				return false
			}
			return true
		},
		func(cur *Reminder) {
			due := *cur.NextOccurrence
			child = cur.SpawnNext(due, now)
			cur.OccurrenceCount++
			cur.UpdatedAt = now

			// Chain from the elapsed occurrence, then re-check the cap.
			if next, ok := NextOccurrence(due, cur.Recurrence); ok &&
				(cur.Recurrence.Count == 0 || cur.OccurrenceCount < cur.Recurrence.Count) {
				cur.NextOccurrence = &next
			} else {
				cur.NextOccurrence = nil
			}
		},
	)
	if err != nil {
		return Reminder{}, false, err
	}
	return child, applied, nil
}

func (j *MaterializeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *MaterializeJob) now() time.Time {
	if j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}

// CleanupJob is the daily maintenance hook. Retention policy is
// deliberately unimplemented; the job logs what it would prune so the
// schedule slot and wiring stay exercised.
type CleanupJob struct {
	Store        Store
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 3 * * *"
}

// Name implements cron.Job.
func (j *CleanupJob) Name() string { return "reminders_cleanup" }

// Schedule implements cron.Job.
func (j *CleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run implements cron.Job.
func (j *CleanupJob) Run(ctx context.Context) error {
	completed, err := j.Store.List(ctx, Filter{Status: StatusCompleted})
	if err != nil {
		return err
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("cleanup tick", "completed_reminders", len(completed))
	return nil
}

package reminder

import (
	"context"
	"log/slog"
)

// NotificationKind labels why a notification fired.
type NotificationKind string

const (
	// KindDue fires for pending reminders whose due date has elapsed.
	KindDue NotificationKind = "due"

	// KindSnoozeElapsed fires when a snoozed reminder wakes back up.
	KindSnoozeElapsed NotificationKind = "snooze_elapsed"
)

// Notifier delivers reminder notifications. Delivery transport (webhooks,
// channels) is a separate concern; the scheduler only emits the event.
type Notifier interface {
	Notify(ctx context.Context, r Reminder, kind NotificationKind) error
}

// LogNotifier writes notifications to the log. The default when no
// delivery module is wired.
type LogNotifier struct {
	Logger *slog.Logger
}

// Compile-time interface check.
var _ Notifier = (*LogNotifier)(nil)

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, r Reminder, kind NotificationKind) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("reminder notification",
		"kind", string(kind),
		"id", r.ID,
		"title", r.Title,
		"due", r.DueDate,
		"priority", string(r.Priority),
	)
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mnemohq/mnemo/internal/reminder"
)

// store implements reminder.Store backed by SQLite.
type store struct {
	db *sql.DB
}

// Put inserts or replaces a reminder.
func (s *store) Put(ctx context.Context, r reminder.Reminder) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("sqlite: marshal reminder: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reminders
			(id, status, due_date, snooze_until, next_occurrence, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Status), r.DueDate.UTC().Format(time.RFC3339Nano),
		timePtr(r.SnoozeUntil), timePtr(r.NextOccurrence),
		string(payload), r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put reminder: %w", err)
	}
	return nil
}

// Get returns a reminder by ID.
func (s *store) Get(ctx context.Context, id string) (reminder.Reminder, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM reminders WHERE id = ?", id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Reminder{}, reminder.ErrReminderNotFound
	}
	if err != nil {
		return reminder.Reminder{}, fmt.Errorf("sqlite: get reminder: %w", err)
	}
	return decode(payload)
}

// List returns reminders matching the filter, ordered by due date. The
// typed columns narrow the scan; the full filter runs on the decoded
// document so SQL and in-memory behavior stay identical.
func (s *store) List(ctx context.Context, f reminder.Filter) ([]reminder.Reminder, error) {
	query := "SELECT payload FROM reminders"
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.DueBy != nil {
		clauses = append(clauses, "due_date <= ?")
		args = append(args, f.DueBy.UTC().Format(time.RFC3339Nano))
	}
	if f.RecurringDueBy != nil {
		clauses = append(clauses, "next_occurrence IS NOT NULL AND next_occurrence <= ?")
		args = append(args, f.RecurringDueBy.UTC().Format(time.RFC3339Nano))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY due_date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []reminder.Reminder
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlite: scan reminder: %w", err)
		}
		r, err := decode(payload)
		if err != nil {
			return nil, err
		}
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

// UpdateIf atomically applies mutate when predicate holds. The read, the
// predicate check, and the write all happen inside one immediate
// transaction, so concurrent callers serialize on the database lock.
func (s *store) UpdateIf(ctx context.Context, id string, predicate func(reminder.Reminder) bool, mutate func(*reminder.Reminder)) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload string
	err = tx.QueryRowContext(ctx,
		"SELECT payload FROM reminders WHERE id = ?", id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, reminder.ErrReminderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: read reminder: %w", err)
	}

	r, err := decode(payload)
	if err != nil {
		return false, err
	}
	if !predicate(r) {
		return false, nil
	}
	mutate(&r)

	updated, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("sqlite: marshal reminder: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reminders
		SET status = ?, due_date = ?, snooze_until = ?, next_occurrence = ?,
		    payload = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Status), r.DueDate.UTC().Format(time.RFC3339Nano),
		timePtr(r.SnoozeUntil), timePtr(r.NextOccurrence),
		string(updated), r.UpdatedAt.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: update reminder: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: commit: %w", err)
	}
	return true, nil
}

// Delete removes a reminder by ID.
func (s *store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return reminder.ErrReminderNotFound
	}
	return nil
}

func decode(payload string) (reminder.Reminder, error) {
	var r reminder.Reminder
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return reminder.Reminder{}, fmt.Errorf("sqlite: unmarshal reminder: %w", err)
	}
	return r, nil
}

// timePtr formats an optional time for a nullable column.
func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mnemohq/mnemo/internal/reminder"
)

// CreateReminderRequest is the JSON body for POST /api/reminders.
type CreateReminderRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	DueDate     time.Time           `json:"due_date"`
	Priority    reminder.Priority   `json:"priority,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Recurrence  reminder.Recurrence `json:"recurrence,omitempty"`
}

// UpdateReminderRequest is the JSON body for PATCH /api/reminders/{id}.
// Nil fields are left untouched. Status accepts only "pending" and
// "cancelled"; completing and snoozing have their own endpoints.
type UpdateReminderRequest struct {
	Title       *string              `json:"title,omitempty"`
	Description *string              `json:"description,omitempty"`
	DueDate     *time.Time           `json:"due_date,omitempty"`
	Priority    *reminder.Priority   `json:"priority,omitempty"`
	Tags        *[]string            `json:"tags,omitempty"`
	Recurrence  *reminder.Recurrence `json:"recurrence,omitempty"`
	Status      *reminder.Status     `json:"status,omitempty"`
}

// SnoozeRequest is the JSON body for POST /api/reminders/{id}/snooze.
type SnoozeRequest struct {
	Until time.Time `json:"until"`
}

// PreviewResponse is the JSON response for GET /api/reminders/{id}/preview.
type PreviewResponse struct {
	Occurrences []time.Time `json:"occurrences"`
}

func (g *Gateway) requireReminders(w http.ResponseWriter) bool {
	if g.reminders == nil {
		errorJSON(w, http.StatusServiceUnavailable, "reminder store not configured")
		return false
	}
	return true
}

// handleCreateReminder returns an http.HandlerFunc for POST /api/reminders.
func (g *Gateway) handleCreateReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireReminders(w) {
			return
		}

		var req CreateReminderRequest
		if err := readJSON(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.DueDate.IsZero() {
			errorJSON(w, http.StatusBadRequest, "due_date is required")
			return
		}

		rem, err := reminder.New(req.Title, req.DueDate, req.Priority, req.Recurrence)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		rem.Description = req.Description
		rem.Tags = req.Tags

		if err := g.reminders.Put(r.Context(), rem); err != nil {
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordReminderOp()

		writeJSON(w, http.StatusCreated, rem)
	}
}

// handleListReminders returns an http.HandlerFunc for GET /api/reminders.
// Supported query parameters: status, tag, due_by (RFC 3339).
func (g *Gateway) handleListReminders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireReminders(w) {
			return
		}

		f := reminder.Filter{
			Status: reminder.Status(r.URL.Query().Get("status")),
			Tag:    r.URL.Query().Get("tag"),
		}
		if raw := r.URL.Query().Get("due_by"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				errorJSON(w, http.StatusBadRequest, "due_by must be RFC 3339")
				return
			}
			f.DueBy = &t
		}

		items, err := g.reminders.List(r.Context(), f)
		if err != nil {
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if items == nil {
			items = []reminder.Reminder{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// handleGetReminder returns an http.HandlerFunc for GET /api/reminders/{id}.
func (g *Gateway) handleGetReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireReminders(w) {
			return
		}

		rem, err := g.reminders.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, reminder.ErrReminderNotFound) {
				errorJSON(w, http.StatusNotFound, "reminder not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rem)
	}
}

// handleUpdateReminder returns an http.HandlerFunc for
// PATCH /api/reminders/{id}. Changes to the due date or the rule recompute
// NextOccurrence inside the same conditional update.
func (g *Gateway) handleUpdateReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireReminders(w) {
			return
		}

		var req UpdateReminderRequest
		if err := readJSON(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Status != nil && *req.Status != reminder.StatusPending && *req.Status != reminder.StatusCancelled {
			errorJSON(w, http.StatusBadRequest, "status must be pending or cancelled")
			return
		}
		if req.Recurrence != nil {
			if err := req.Recurrence.Validate(); err != nil {
				errorJSON(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		id := chi.URLParam(r, "id")
		_, err := g.reminders.UpdateIf(r.Context(), id,
			func(reminder.Reminder) bool { return true },
			func(cur *reminder.Reminder) {
				if req.Title != nil {
					cur.Title = *req.Title
				}
				if req.Description != nil {
					cur.Description = *req.Description
				}
				if req.DueDate != nil {
					cur.DueDate = *req.DueDate
				}
				if req.Priority != nil {
					cur.Priority = *req.Priority
				}
				if req.Tags != nil {
					cur.Tags = *req.Tags
				}
				if req.Recurrence != nil {
					cur.Recurrence = *req.Recurrence
				}
				if req.Status != nil {
					cur.Status = *req.Status
					cur.SnoozeUntil = nil
				}
				if req.DueDate != nil || req.Recurrence != nil {
					cur.RefreshNextOccurrence()
				}
				cur.UpdatedAt = time.Now().UTC()
			},
		)
		if err != nil {
			if errors.Is(err, reminder.ErrReminderNotFound) {
				errorJSON(w, http.StatusNotFound, "reminder not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordReminderOp()

		rem, err := g.reminders.Get(r.Context(), id)
		if err != nil {
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rem)
	}
}

// handleDeleteReminder returns an http.HandlerFunc for
// DELETE /api/reminders/{id}.
func (g *Gateway) handleDeleteReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireReminders(w) {
			return
		}

		err := g.reminders.Delete(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, reminder.ErrReminderNotFound) {
				errorJSON(w, http.StatusNotFound, "reminder not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordReminderOp()
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSnoozeReminder returns an http.HandlerFunc for
// POST /api/reminders/{id}/snooze. Only pending and snoozed reminders can
// be snoozed; re-snoozing just moves the deadline.
func (g *Gateway) handleSnoozeReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireReminders(w) {
			return
		}

		var req SnoozeRequest
		if err := readJSON(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Until.IsZero() || !req.Until.After(time.Now()) {
			errorJSON(w, http.StatusBadRequest, "until must be in the future")
			return
		}

		applied, err := g.reminders.UpdateIf(r.Context(), chi.URLParam(r, "id"),
			func(cur reminder.Reminder) bool {
				return cur.Status == reminder.StatusPending || cur.Status == reminder.StatusSnoozed
			},
			func(cur *reminder.Reminder) {
				until := req.Until.UTC()
				cur.Status = reminder.StatusSnoozed
				cur.SnoozeUntil = &until
				cur.UpdatedAt = time.Now().UTC()
			},
		)
		if err != nil {
			if errors.Is(err, reminder.ErrReminderNotFound) {
				errorJSON(w, http.StatusNotFound, "reminder not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !applied {
			errorJSON(w, http.StatusConflict, "only pending or snoozed reminders can be snoozed")
			return
		}
		g.metrics.RecordReminderOp()
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleCompleteReminder returns an http.HandlerFunc for
// POST /api/reminders/{id}/complete. Completion is idempotent at the HTTP
// level but the timestamp is only written once.
func (g *Gateway) handleCompleteReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireReminders(w) {
			return
		}

		_, err := g.reminders.UpdateIf(r.Context(), chi.URLParam(r, "id"),
			func(cur reminder.Reminder) bool {
				return cur.Status != reminder.StatusCompleted
			},
			func(cur *reminder.Reminder) {
				now := time.Now().UTC()
				cur.Status = reminder.StatusCompleted
				cur.CompletedAt = &now
				cur.SnoozeUntil = nil
				cur.UpdatedAt = now
			},
		)
		if err != nil {
			if errors.Is(err, reminder.ErrReminderNotFound) {
				errorJSON(w, http.StatusNotFound, "reminder not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordReminderOp()
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePreviewReminder returns an http.HandlerFunc for
// GET /api/reminders/{id}/preview. The n query parameter caps the number
// of occurrences (default 5, max 50).
func (g *Gateway) handlePreviewReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireReminders(w) {
			return
		}

		n := 5
		if raw := r.URL.Query().Get("n"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				errorJSON(w, http.StatusBadRequest, "n must be a positive integer")
				return
			}
			n = min(parsed, 50)
		}

		rem, err := g.reminders.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, reminder.ErrReminderNotFound) {
				errorJSON(w, http.StatusNotFound, "reminder not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		occurrences := reminder.Preview(rem.DueDate, rem.Recurrence, n)
		if occurrences == nil {
			occurrences = []time.Time{}
		}
		writeJSON(w, http.StatusOK, PreviewResponse{Occurrences: occurrences})
	}
}

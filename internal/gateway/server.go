package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())

	// API and status: behind auth when configured, open otherwise.
	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth))
		}
		if g.config.RateLimit.IsConfigured() {
			r.Use(rateLimitMiddleware(newRateLimiter(g.config.RateLimit)))
		}

		r.Get("/status", g.handleStatus())

		r.Route("/api", func(r chi.Router) {
			r.Post("/search", g.handleSearch())

			r.Route("/memory", func(r chi.Router) {
				r.Post("/", g.handleAddChunks())
				r.Post("/bulk_delete", g.handleBulkDeleteChunks())
				r.Get("/{id}", g.handleGetChunk())
				r.Patch("/{id}", g.handleUpdateChunk())
				r.Delete("/{id}", g.handleDeleteChunk())
			})

			r.Route("/reminders", func(r chi.Router) {
				r.Post("/", g.handleCreateReminder())
				r.Get("/", g.handleListReminders())
				r.Get("/{id}", g.handleGetReminder())
				r.Patch("/{id}", g.handleUpdateReminder())
				r.Delete("/{id}", g.handleDeleteReminder())
				r.Post("/{id}/snooze", g.handleSnoozeReminder())
				r.Post("/{id}/complete", g.handleCompleteReminder())
				r.Get("/{id}/preview", g.handlePreviewReminder())
			})
		})
	})

	return r
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorJSON writes a {"error": …} body.
func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes the request body into v, rejecting unknown fields.
func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

package gateway

import (
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
}

// handleHealth returns an http.HandlerFunc for GET /health. The gateway is
// healthy as long as it serves; a missing or failing chunk store degrades
// the report but not the status code, so orchestrators don't restart a
// working reminders-only deployment.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.store != nil {
			if n, err := g.store.Count(r.Context()); err == nil {
				resp.Chunks = n
			} else {
				resp.Status = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

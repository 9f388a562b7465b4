package gateway

import (
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime  time.Duration   `json:"uptime_seconds"`
	Metrics MetricsSnapshot `json:"metrics"`
	Chunks  int             `json:"chunks"`
	Jobs    []string        `json:"jobs,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime:  time.Since(g.startedAt).Truncate(time.Second),
			Metrics: g.metrics.Snapshot(),
		}

		if g.store != nil {
			if n, err := g.store.Count(r.Context()); err == nil {
				resp.Chunks = n
			}
		}
		if g.scheduler != nil {
			resp.Jobs = g.scheduler.JobNames()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

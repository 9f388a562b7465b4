package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/mnemohq/mnemo/internal/retrieval"
)

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query          string   `json:"query"`
	Strategy       string   `json:"strategy"`
	K              int      `json:"k,omitempty"`
	FetchK         int      `json:"fetch_k,omitempty"`
	Lambda         *float64 `json:"lambda,omitempty"`
	SemanticWeight float64  `json:"semantic_weight,omitempty"`
	KeywordWeight  float64  `json:"keyword_weight,omitempty"`
}

// SearchResult is one hit in a SearchResponse.
type SearchResult struct {
	MemoryID string         `json:"memory_id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Rank     int            `json:"rank"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// handleSearch returns an http.HandlerFunc for POST /api/search. Unknown
// strategies are a client error; execution failures inside the engine
// already degrade to an empty result list.
func (g *Gateway) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.engine == nil {
			errorJSON(w, http.StatusServiceUnavailable, "retrieval engine not configured")
			return
		}

		var req SearchRequest
		if err := readJSON(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Query == "" {
			errorJSON(w, http.StatusBadRequest, "query is required")
			return
		}
		if req.Strategy == "" {
			req.Strategy = string(retrieval.StrategySemantic)
		}

		opts := retrieval.Options{
			K:              req.K,
			FetchK:         req.FetchK,
			Lambda:         req.Lambda,
			SemanticWeight: req.SemanticWeight,
			KeywordWeight:  req.KeywordWeight,
		}

		start := time.Now()
		results, err := g.engine.Search(r.Context(), nil, req.Query, retrieval.Strategy(req.Strategy), opts)
		if err != nil {
			if errors.Is(err, retrieval.ErrInvalidStrategy) {
				errorJSON(w, http.StatusBadRequest, err.Error())
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordSearch(time.Since(start))

		resp := SearchResponse{Results: make([]SearchResult, 0, len(results)), Count: len(results)}
		for _, res := range results {
			resp.Results = append(resp.Results, SearchResult{
				MemoryID: res.Chunk.MemoryID(),
				Content:  res.Chunk.Content,
				Score:    res.Score,
				Rank:     res.Rank,
				Metadata: res.Chunk.Metadata,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

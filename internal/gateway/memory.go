package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mnemohq/mnemo/internal/memory"
)

// ChunkInput is one chunk in an AddChunksRequest.
type ChunkInput struct {
	Content  string         `json:"content"`
	Source   string         `json:"source,omitempty"`
	Page     int            `json:"page,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddChunksRequest is the JSON body for POST /api/memory.
type AddChunksRequest struct {
	Chunks         []ChunkInput `json:"chunks"`
	SkipDuplicates *bool        `json:"skip_duplicates,omitempty"`
}

// AddChunksResponse lists the memory IDs actually stored; duplicates that
// were skipped don't appear.
type AddChunksResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// ChunkResponse is the JSON representation of a stored chunk.
type ChunkResponse struct {
	MemoryID string         `json:"memory_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UpdateChunkRequest is the JSON body for PATCH /api/memory/{id}. A nil
// Content leaves the text (and its embedding) untouched.
type UpdateChunkRequest struct {
	Content  *string        `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BulkDeleteRequest is the JSON body for POST /api/memory/bulk_delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (g *Gateway) requireStore(w http.ResponseWriter) bool {
	if g.store == nil {
		errorJSON(w, http.StatusServiceUnavailable, "memory store not configured")
		return false
	}
	return true
}

// handleAddChunks returns an http.HandlerFunc for POST /api/memory.
func (g *Gateway) handleAddChunks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireStore(w) {
			return
		}

		var req AddChunksRequest
		if err := readJSON(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if len(req.Chunks) == 0 {
			errorJSON(w, http.StatusBadRequest, "chunks is required")
			return
		}

		chunks := make([]memory.Chunk, 0, len(req.Chunks))
		for _, in := range req.Chunks {
			if in.Content == "" {
				errorJSON(w, http.StatusBadRequest, "chunk content is required")
				return
			}
			chunks = append(chunks, memory.NewChunk(in.Content, in.Source, in.Page, in.Metadata))
		}

		skip := req.SkipDuplicates == nil || *req.SkipDuplicates
		ids, err := g.store.Add(r.Context(), chunks, skip)
		if err != nil {
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.metrics.RecordIngest(len(ids))

		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusCreated, AddChunksResponse{IDs: ids, Count: len(ids)})
	}
}

// handleGetChunk returns an http.HandlerFunc for GET /api/memory/{id}.
func (g *Gateway) handleGetChunk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireStore(w) {
			return
		}

		chunk, err := g.store.GetByMemoryID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, memory.ErrChunkNotFound) {
				errorJSON(w, http.StatusNotFound, "chunk not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, ChunkResponse{
			MemoryID: chunk.MemoryID(),
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
		})
	}
}

// handleUpdateChunk returns an http.HandlerFunc for PATCH /api/memory/{id}.
func (g *Gateway) handleUpdateChunk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireStore(w) {
			return
		}

		var req UpdateChunkRequest
		if err := readJSON(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Content == nil && req.Metadata == nil {
			errorJSON(w, http.StatusBadRequest, "nothing to update")
			return
		}

		err := g.store.Update(r.Context(), chi.URLParam(r, "id"), req.Content, req.Metadata)
		if err != nil {
			if errors.Is(err, memory.ErrChunkNotFound) {
				errorJSON(w, http.StatusNotFound, "chunk not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDeleteChunk returns an http.HandlerFunc for DELETE /api/memory/{id}.
func (g *Gateway) handleDeleteChunk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireStore(w) {
			return
		}

		err := g.store.Delete(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, memory.ErrChunkNotFound) {
				errorJSON(w, http.StatusNotFound, "chunk not found")
				return
			}
			g.metrics.RecordError()
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handleBulkDeleteChunks returns an http.HandlerFunc for
// POST /api/memory/bulk_delete. Deletion is best-effort: the response
// counts what was removed and unknown IDs are skipped.
func (g *Gateway) handleBulkDeleteChunks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.requireStore(w) {
			return
		}

		var req BulkDeleteRequest
		if err := readJSON(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if len(req.IDs) == 0 {
			errorJSON(w, http.StatusBadRequest, "ids is required")
			return
		}

		deleted := g.store.BulkDelete(r.Context(), req.IDs)
		writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
	}
}

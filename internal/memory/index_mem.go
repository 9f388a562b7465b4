package memory

import (
	"context"
	"math"
	"sort"
	"sync"
)

// InMemoryIndex is a thread-safe, in-memory VectorIndex. Nearest-neighbor
// search is a brute-force cosine scan; adequate for tests and small
// single-user deployments.
type InMemoryIndex struct {
	mu      sync.RWMutex
	order   []string // insertion order of IDs
	entries map[string]Entry
	vectors map[string][]float32
}

// NewInMemoryIndex creates an empty in-memory index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{
		entries: make(map[string]Entry),
		vectors: make(map[string][]float32),
	}
}

// Compile-time interface check.
var _ VectorIndex = (*InMemoryIndex)(nil)

// Upsert stores or replaces a record under the given ID.
func (ix *InMemoryIndex) Upsert(_ context.Context, id string, vector []float32, content string, metadata map[string]any) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.entries[id]; !exists {
		ix.order = append(ix.order, id)
	}
	ix.entries[id] = Entry{ID: id, Content: content, Metadata: metadata}
	if vector != nil {
		ix.vectors[id] = vector
	}
	return nil
}

// QueryNearest returns the k closest records by cosine distance (1 − cosine
// similarity).
func (ix *InMemoryIndex) QueryNearest(_ context.Context, vector []float32, k int) ([]Neighbor, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}

	neighbors := make([]Neighbor, 0, len(ix.entries))
	for _, id := range ix.order {
		neighbors = append(neighbors, Neighbor{
			Entry:    ix.entries[id],
			Distance: 1 - CosineSimilarity(vector, ix.vectors[id]),
		})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// All enumerates stored records in insertion order.
func (ix *InMemoryIndex) All(_ context.Context, limit int) ([]Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.order)
	if limit > 0 && limit < n {
		n = limit
	}

	entries := make([]Entry, 0, n)
	for _, id := range ix.order[:n] {
		entries = append(entries, ix.entries[id])
	}
	return entries, nil
}

// Delete removes records by ID. Unknown IDs are ignored.
func (ix *InMemoryIndex) Delete(_ context.Context, ids ...string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, id := range ids {
		if _, exists := ix.entries[id]; !exists {
			continue
		}
		delete(ix.entries, id)
		delete(ix.vectors, id)
		for i, ord := range ix.order {
			if ord == id {
				ix.order = append(ix.order[:i], ix.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Count returns the number of stored records.
func (ix *InMemoryIndex) Count(_ context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries), nil
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

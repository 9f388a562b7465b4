package memory

import "context"

// Embedder maps text to a fixed-dimension vector. Implementations live in
// embedder modules; callers must treat failures as transient.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Entry is a stored index record without distance information.
type Entry struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Neighbor is an index record returned by nearest-neighbor search.
// Distance is index-native (lower is closer).
type Neighbor struct {
	Entry
	Distance float64
}

// VectorIndex is the persistence contract for chunk embeddings.
// Implementations must be safe for concurrent use.
type VectorIndex interface {
	// Upsert stores or replaces a record under the given ID. A nil vector
	// on an existing ID keeps the stored embedding (metadata-only patch).
	Upsert(ctx context.Context, id string, vector []float32, content string, metadata map[string]any) error

	// QueryNearest returns the k records closest to the query vector,
	// ordered by ascending distance.
	QueryNearest(ctx context.Context, vector []float32, k int) ([]Neighbor, error)

	// All enumerates stored records. A limit <= 0 means no limit.
	// Enumeration order is unspecified.
	All(ctx context.Context, limit int) ([]Entry, error)

	// Delete removes records by ID. Unknown IDs are not an error.
	Delete(ctx context.Context, ids ...string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

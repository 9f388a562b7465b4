package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/mnemohq/mnemo/internal/memory"
)

// vectorIndex implements memory.VectorIndex backed by SQLite. Embeddings
// are little-endian float32 blobs; QueryNearest scans every row and ranks
// by cosine distance in Go.
type vectorIndex struct {
	db     *sql.DB
	logger *slog.Logger
}

// Upsert stores or replaces a record. A nil vector on an existing ID keeps
// the stored embedding, so metadata-only patches don't re-embed.
func (ix *vectorIndex) Upsert(ctx context.Context, id string, vector []float32, content string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	if vector == nil {
		res, err := ix.db.ExecContext(ctx,
			"UPDATE chunks SET content = ?, metadata = ? WHERE id = ?",
			content, string(metaJSON), id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: update chunk: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("sqlite: upsert without vector: chunk %s does not exist", id)
		}
		return nil
	}

	_, err = ix.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, content, embedding, dim, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		id, content, encodeVector(vector), len(vector), string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert chunk: %w", err)
	}
	return nil
}

// QueryNearest returns the k records closest to the query vector by cosine
// distance.
func (ix *vectorIndex) QueryNearest(ctx context.Context, vector []float32, k int) ([]memory.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx,
		"SELECT id, content, embedding, metadata FROM chunks ORDER BY rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var neighbors []memory.Neighbor
	for rows.Next() {
		var (
			entry    memory.Entry
			blob     []byte
			metaJSON string
		)
		if err := rows.Scan(&entry.ID, &entry.Content, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal metadata for %s: %w", entry.ID, err)
		}
		neighbors = append(neighbors, memory.Neighbor{
			Entry:    entry,
			Distance: 1 - memory.CosineSimilarity(vector, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate chunks: %w", err)
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
func (ix *vectorIndex) All(ctx context.Context, limit int) ([]memory.Entry, error) {
	query := "SELECT id, content, metadata FROM chunks ORDER BY rowid"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []memory.Entry
	for rows.Next() {
		var (
			entry    memory.Entry
			metaJSON string
		)
		if err := rows.Scan(&entry.ID, &entry.Content, &metaJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal metadata for %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes records by ID. Unknown IDs are ignored.
func (ix *vectorIndex) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := ix.db.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
			return fmt.Errorf("sqlite: delete chunk %s: %w", id, err)
		}
	}
	return nil
}

// Count returns the number of stored records.
func (ix *vectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count chunks: %w", err)
	}
	return n, nil
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice. Trailing
// partial words are dropped.
func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

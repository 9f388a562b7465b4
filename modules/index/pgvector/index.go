package pgvector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemohq/mnemo/internal/memory"
	"github.com/pgvector/pgvector-go"
)

// vectorIndex implements memory.VectorIndex on a pgvector table. Distance
// is cosine (the <=> operator), matching the in-memory and SQLite
// implementations.
type vectorIndex struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// Upsert stores or replaces a record. A nil vector on an existing ID keeps
// the stored embedding, so metadata-only patches don't re-embed.
func (ix *vectorIndex) Upsert(ctx context.Context, id string, vector []float32, content string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}

	if vector == nil {
		tag, err := ix.pool.Exec(ctx,
			fmt.Sprintf("UPDATE %s SET content = $1, metadata = $2 WHERE id = $3", ix.table),
			content, metadata, id,
		)
		if err != nil {
			return fmt.Errorf("pgvector: update chunk: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("pgvector: upsert without vector: chunk %s does not exist", id)
		}
		return nil
	}

	_, err := ix.pool.Exec(ctx,
		fmt.Sprintf(`
			INSERT INTO %s (id, content, embedding, metadata)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content,
			    embedding = EXCLUDED.embedding,
			    metadata = EXCLUDED.metadata`, ix.table),
		id, content, pgvector.NewVector(vector), metadata,
	)
	if err != nil {
		return fmt.Errorf("pgvector: upsert chunk: %w", err)
	}
	return nil
}

// QueryNearest returns the k records closest to the query vector by cosine
// distance, ranked in the database.
func (ix *vectorIndex) QueryNearest(ctx context.Context, vector []float32, k int) ([]memory.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := ix.pool.Query(ctx,
		fmt.Sprintf(`
			SELECT id, content, metadata, embedding <=> $1 AS distance
			FROM %s
			ORDER BY embedding <=> $1
			LIMIT $2`, ix.table),
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("pgvector: query nearest: %w", err)
	}
	defer rows.Close()

	var neighbors []memory.Neighbor
	for rows.Next() {
		var n memory.Neighbor
		if err := rows.Scan(&n.ID, &n.Content, &n.Metadata, &n.Distance); err != nil {
			return nil, fmt.Errorf("pgvector: scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: iterate neighbors: %w", err)
	}
	return neighbors, nil
}

// All enumerates stored records in insertion order.
func (ix *vectorIndex) All(ctx context.Context, limit int) ([]memory.Entry, error) {
	query := fmt.Sprintf("SELECT id, content, metadata FROM %s ORDER BY created_at", ix.table)
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := ix.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: list chunks: %w", err)
	}
	defer rows.Close()

	var entries []memory.Entry
	for rows.Next() {
		var e memory.Entry
		if err := rows.Scan(&e.ID, &e.Content, &e.Metadata); err != nil {
			return nil, fmt.Errorf("pgvector: scan chunk: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes records by ID. Unknown IDs are ignored.
func (ix *vectorIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := ix.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", ix.table), ids,
	)
	if err != nil {
		return fmt.Errorf("pgvector: delete chunks: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (ix *vectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", ix.table),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgvector: count chunks: %w", err)
	}
	return n, nil
}

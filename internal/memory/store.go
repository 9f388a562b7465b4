package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrChunkNotFound indicates the requested chunk does not exist.
var ErrChunkNotFound = errors.New("memory: chunk not found")

// scanLimit caps full-index enumeration for memory-ID lookups and cache
// population. Single-user memory stores stay well below this.
const scanLimit = 10000

// Store manages chunks in a vector index, deduplicating by content hash
// before insertion.
//
// The hash cache is per-instance and populated lazily from the index on
// first use; it only grows. When several Store instances share one index
// (e.g. two processes), duplicate-skip guarantees hold within a single
// instance's lifetime only. This is an accepted consistency boundary, not
// something the store tries to repair.
type Store struct {
	index    VectorIndex
	embedder Embedder
	logger   *slog.Logger

	mu           sync.Mutex
	hashes       map[string]struct{}
	hashesLoaded bool
}

// NewStore creates a chunk store over the given index and embedder.
func NewStore(index VectorIndex, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		index:    index,
		embedder: embedder,
		logger:   logger,
		hashes:   make(map[string]struct{}),
	}
}

// Add inserts chunks into the index, embedding their content. When
// skipDuplicates is set, chunks whose content hash is already known are
// silently skipped. Returns the index IDs of the chunks actually inserted.
func (s *Store) Add(ctx context.Context, chunks []Chunk, skipDuplicates bool) ([]string, error) {
	if skipDuplicates {
		if err := s.loadHashes(ctx); err != nil {
			return nil, err
		}
	}

	var inserted []string
	for _, chunk := range chunks {
		hash := chunk.ContentHash
		if hash == "" {
			hash = HashFromMetadata(chunk.Content, chunk.Metadata)
		}

		if skipDuplicates && s.hasHash(hash) {
			s.logger.Debug("skipping duplicate chunk", "hash", hash)
			continue
		}

		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}

		md := chunk.Metadata
		if md == nil {
			md = make(map[string]any, 2)
		}
		if _, ok := md[MetaMemoryID]; !ok {
			md[MetaMemoryID] = uuid.NewString()
		}
		md[MetaContentHash] = hash

		vector, err := s.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return inserted, fmt.Errorf("memory: embedding chunk: %w", err)
		}
		if err := s.index.Upsert(ctx, id, vector, chunk.Content, md); err != nil {
			return inserted, fmt.Errorf("memory: upserting chunk: %w", err)
		}

		s.addHash(hash)
		inserted = append(inserted, id)
	}

	return inserted, nil
}

// GetByMemoryID returns the chunk whose metadata carries the given memory
// ID. Legacy entries without a memory ID match on their index-native ID.
// Returns ErrChunkNotFound when no entry matches.
//
// The index has no reliable exact-match metadata filter, so this is a
// bounded full scan. Acceptable at single-user scale; a secondary
// memory-ID → native-ID index would be needed beyond that.
func (s *Store) GetByMemoryID(ctx context.Context, memoryID string) (Chunk, error) {
	entry, err := s.findEntry(ctx, memoryID)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{
		ID:          entry.ID,
		Content:     entry.Content,
		Metadata:    entry.Metadata,
		ContentHash: HashFromMetadata(entry.Content, entry.Metadata),
	}, nil
}

// Update patches a chunk by memory ID. A content change deletes the old
// record and inserts a re-embedded one under a fresh index ID, preserving
// the memory ID; a metadata-only change patches in place. updated_at is
// refreshed either way.
func (s *Store) Update(ctx context.Context, memoryID string, content *string, metadata map[string]any) error {
	entry, err := s.findEntry(ctx, memoryID)
	if err != nil {
		return err
	}

	md := make(map[string]any, len(entry.Metadata)+len(metadata)+1)
	for k, v := range entry.Metadata {
		md[k] = v
	}
	for k, v := range metadata {
		md[k] = v
	}
	md[MetaMemoryID] = memoryID
	md[MetaUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	newContent := entry.Content
	if content != nil && *content != entry.Content {
		newContent = *content

		source, _ := md[MetaSource].(string)
		page := 0
		if p, ok := md[MetaPage].(int); ok {
			page = p
		}
		md[MetaContentHash] = HashContent(newContent, source, page)

		vector, err := s.embedder.Embed(ctx, newContent)
		if err != nil {
			return fmt.Errorf("memory: re-embedding chunk %s: %w", memoryID, err)
		}
		if err := s.index.Delete(ctx, entry.ID); err != nil {
			return fmt.Errorf("memory: deleting stale chunk %s: %w", memoryID, err)
		}
		if err := s.index.Upsert(ctx, uuid.NewString(), vector, newContent, md); err != nil {
			return fmt.Errorf("memory: reinserting chunk %s: %w", memoryID, err)
		}
		s.addHash(md[MetaContentHash].(string))
		return nil
	}

	// Metadata-only patch: a nil vector tells the index to keep the
	// stored embedding for this ID.
	if err := s.index.Upsert(ctx, entry.ID, nil, newContent, md); err != nil {
		return fmt.Errorf("memory: patching chunk %s: %w", memoryID, err)
	}
	return nil
}

// Delete removes the chunk with the given memory ID.
func (s *Store) Delete(ctx context.Context, memoryID string) error {
	entry, err := s.findEntry(ctx, memoryID)
	if err != nil {
		return err
	}
	if err := s.index.Delete(ctx, entry.ID); err != nil {
		return fmt.Errorf("memory: deleting chunk %s: %w", memoryID, err)
	}
	return nil
}

// BulkDelete removes chunks by memory ID, best-effort. Failures on
// individual IDs are logged and counted out; the batch continues. Returns
// the number of chunks deleted.
func (s *Store) BulkDelete(ctx context.Context, memoryIDs []string) int {
	deleted := 0
	for _, id := range memoryIDs {
		if err := s.Delete(ctx, id); err != nil {
			s.logger.Warn("bulk delete: skipping chunk", "memory_id", id, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

// Index exposes the underlying vector index for read paths (retrieval).
func (s *Store) Index() VectorIndex {
	return s.index
}

// Embedder exposes the embedding service used by this store.
func (s *Store) Embedder() Embedder {
	return s.embedder
}

func (s *Store) findEntry(ctx context.Context, memoryID string) (Entry, error) {
	entries, err := s.index.All(ctx, scanLimit)
	if err != nil {
		return Entry{}, fmt.Errorf("memory: scanning index: %w", err)
	}
	for _, entry := range entries {
		if id, ok := entry.Metadata[MetaMemoryID].(string); ok && id == memoryID {
			return entry, nil
		}
	}
	// Legacy fallback: entries stored before memory IDs existed match on
	// the index-native ID.
	for _, entry := range entries {
		if _, ok := entry.Metadata[MetaMemoryID].(string); !ok && entry.ID == memoryID {
			return entry, nil
		}
	}
	return Entry{}, ErrChunkNotFound
}

func (s *Store) loadHashes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hashesLoaded {
		return nil
	}

	entries, err := s.index.All(ctx, scanLimit)
	if err != nil {
		return fmt.Errorf("memory: populating hash cache: %w", err)
	}
	for _, entry := range entries {
		s.hashes[HashFromMetadata(entry.Content, entry.Metadata)] = struct{}{}
	}
	s.hashesLoaded = true
	s.logger.Debug("hash cache populated", "size", len(s.hashes))
	return nil
}

func (s *Store) hasHash(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hashes[hash]
	return ok
}

func (s *Store) addHash(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[hash] = struct{}{}
}

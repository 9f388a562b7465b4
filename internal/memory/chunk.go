// Package memory provides the chunk store: text chunks with embeddings and
// metadata, persisted in a vector index, deduplicated by content hash.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Well-known metadata keys. The vector index stores chunk metadata as an
// opaque map; these keys carry the application-level identity and
// provenance of each chunk.
const (
	MetaMemoryID    = "memory_id"
	MetaContentHash = "content_hash"
	MetaSource      = "source"
	MetaPage        = "page"
	MetaCreatedAt   = "created_at"
	MetaUpdatedAt   = "updated_at"
)

// Chunk is a unit of retrievable text. ID is assigned by the vector index;
// Metadata[MetaMemoryID] is the application-stable identifier callers should
// hold on to.
type Chunk struct {
	ID          string
	Content     string
	Metadata    map[string]any
	ContentHash string
}

// MemoryID returns the application-level stable identifier, or the
// index-native ID for legacy chunks stored before memory IDs existed.
func (c Chunk) MemoryID() string {
	if id, ok := c.Metadata[MetaMemoryID].(string); ok && id != "" {
		return id
	}
	return c.ID
}

// NewChunk builds a chunk with a fresh memory ID and computed content hash.
// The source and page arguments become provenance metadata and participate
// in the dedup hash.
func NewChunk(content, source string, page int, metadata map[string]any) Chunk {
	md := make(map[string]any, len(metadata)+4)
	for k, v := range metadata {
		md[k] = v
	}
	md[MetaMemoryID] = uuid.NewString()
	md[MetaSource] = source
	md[MetaPage] = page
	md[MetaCreatedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	hash := HashContent(content, source, page)
	md[MetaContentHash] = hash

	return Chunk{
		Content:     content,
		Metadata:    md,
		ContentHash: hash,
	}
}

// HashContent computes the dedup key for a chunk: SHA-256 over the content
// plus its provenance (source document and page). Two chunks with the same
// hash are considered the same chunk.
func HashContent(content, source string, page int) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(source))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", page)
	return hex.EncodeToString(h.Sum(nil))
}

// HashFromMetadata recomputes or recovers a chunk's content hash. Stored
// metadata wins; otherwise the hash is derived from content + provenance.
func HashFromMetadata(content string, md map[string]any) string {
	if h, ok := md[MetaContentHash].(string); ok && h != "" {
		return h
	}
	source, _ := md[MetaSource].(string)
	page := 0
	switch p := md[MetaPage].(type) {
	case int:
		page = p
	case int64:
		page = int(p)
	case float64:
		page = int(p)
	}
	return HashContent(content, source, page)
}

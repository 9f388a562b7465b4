package retrieval

import (
	"sort"
	"time"
)

// RecordedChunk is a normalized chunk record inside a turn's Context.
// Score is always lower-is-better; the conversion from strategy-native
// scores happens when the chunk is recorded, so downstream consumers have a
// single ordering rule.
type RecordedChunk struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Context accumulates retrieval provenance for one agent turn: which
// queries ran, with which strategies, and what came back. It is a plain
// request-scoped value threaded through call sites: one instance per turn,
// reset at the start of the next. Not safe for concurrent use; a turn is a
// single logical flow.
type Context struct {
	chunks     []RecordedChunk
	queries    []string
	strategies []string
	searches   int
	timestamp  time.Time
}

// NewContext creates an empty per-turn accumulator.
func NewContext() *Context {
	return &Context{timestamp: time.Now().UTC()}
}

// RecordSearch appends a search operation to the ordered log.
func (c *Context) RecordSearch(query string, strategy Strategy) {
	c.queries = append(c.queries, query)
	c.strategies = append(c.strategies, string(strategy))
	c.searches++
}

// RecordChunk appends a chunk record. The caller supplies the score already
// converted to lower-is-better.
func (c *Context) RecordChunk(content string, score float64, source string, metadata map[string]any) {
	c.chunks = append(c.chunks, RecordedChunk{
		Content:  content,
		Score:    score,
		Source:   source,
		Metadata: metadata,
	})
}

// TopChunks returns the n best recorded chunks, ascending by score.
func (c *Context) TopChunks(n int) []RecordedChunk {
	if n <= 0 || len(c.chunks) == 0 {
		return nil
	}

	sorted := make([]RecordedChunk, len(c.chunks))
	copy(sorted, c.chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score < sorted[j].Score
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Searches returns the number of searches recorded this turn.
func (c *Context) Searches() int { return c.searches }

// Reset clears the accumulator for a new turn.
func (c *Context) Reset() {
	c.chunks = nil
	c.queries = nil
	c.strategies = nil
	c.searches = 0
	c.timestamp = time.Now().UTC()
}

// Snapshot serializes the accumulator for inclusion in response metadata.
func (c *Context) Snapshot() map[string]any {
	queries := make([]string, len(c.queries))
	copy(queries, c.queries)
	strategies := make([]string, len(c.strategies))
	copy(strategies, c.strategies)

	return map[string]any{
		"search_queries":    queries,
		"search_strategies": strategies,
		"total_searches":    c.searches,
		"chunks_retrieved":  len(c.chunks),
		"timestamp":         c.timestamp.Format(time.RFC3339Nano),
	}
}

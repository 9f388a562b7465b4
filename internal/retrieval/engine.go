// Package retrieval turns a free-text query into a ranked, deduplicated,
// diversity-aware set of memory chunks. Four strategies are supported:
// semantic nearest-neighbor, lexical keyword overlap, hybrid score fusion,
// and maximal marginal relevance (MMR).
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mnemohq/mnemo/internal/memory"
)

// ErrInvalidStrategy indicates an unrecognized strategy name.
var ErrInvalidStrategy = errors.New("retrieval: invalid strategy")

// Strategy selects the retrieval algorithm.
type Strategy string

const (
	StrategySemantic Strategy = "semantic"
	StrategyKeyword  Strategy = "keyword"
	StrategyHybrid   Strategy = "hybrid"
	StrategyMMR      Strategy = "mmr"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySemantic, StrategyKeyword, StrategyHybrid, StrategyMMR:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

// Result is one ranked retrieval hit. Score semantics are
// strategy-dependent: distance (lower is better) for semantic, hybrid, and
// mmr; term-frequency similarity (higher is better) for keyword. Rank is
// 0-based and always reflects the final ordering.
type Result struct {
	Chunk memory.Chunk
	Score float64
	Rank  int
}

// Options tunes a single search call. Zero values take defaults.
type Options struct {
	// K is the number of results to return. Default 4.
	K int

	// FetchK is the size of the candidate pool for MMR. Default 20.
	FetchK int

	// Lambda balances relevance against diversity for MMR:
	// 1 = pure relevance, 0 = pure diversity. Default 0.5.
	Lambda *float64

	// SemanticWeight and KeywordWeight control hybrid fusion. They are
	// renormalized so the pair sums to 1. Defaults 0.7 / 0.3.
	SemanticWeight float64
	KeywordWeight  float64

	// ScanLimit caps the keyword scan over stored chunks. Default 1000;
	// a deliberate scalability ceiling for single-user stores.
	ScanLimit int
}

const (
	defaultK         = 4
	defaultFetchK    = 20
	defaultLambda    = 0.5
	defaultSemWeight = 0.7
	defaultKwWeight  = 0.3
	defaultScanLimit = 1000
)

func (o *Options) defaults() {
	if o.K <= 0 {
		o.K = defaultK
	}
	if o.FetchK <= 0 {
		o.FetchK = defaultFetchK
	}
	if o.Lambda == nil {
		l := defaultLambda
		o.Lambda = &l
	}
	if o.SemanticWeight <= 0 && o.KeywordWeight <= 0 {
		o.SemanticWeight = defaultSemWeight
		o.KeywordWeight = defaultKwWeight
	}
	if o.ScanLimit <= 0 {
		o.ScanLimit = defaultScanLimit
	}
}

// Engine executes retrieval strategies against a chunk store. It is
// stateless and never mutates stored data, so concurrent searches need no
// coordination.
type Engine struct {
	store  *memory.Store
	logger *slog.Logger
}

// NewEngine creates a retrieval engine over the given chunk store.
func NewEngine(store *memory.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Search runs the given strategy and returns ranked results. An unknown
// strategy is a caller bug and fails with ErrInvalidStrategy; any failure
// during execution (embedding service down, index unavailable) degrades to
// an empty result list; retrieval is best-effort and must never block the
// conversation.
//
// When rc is non-nil, the search and its results are recorded there with
// scores converted to the accumulator's lower-is-better convention.
func (e *Engine) Search(ctx context.Context, rc *Context, query string, strategy Strategy, opts Options) ([]Result, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	opts.defaults()

	if rc != nil {
		rc.RecordSearch(query, strategy)
	}

	var (
		results []Result
		err     error
	)
	switch strategy {
	case StrategySemantic:
		results, err = e.semanticSearch(ctx, query, opts.K)
	case StrategyKeyword:
		results, err = e.keywordSearch(ctx, query, opts.K, opts.ScanLimit)
	case StrategyHybrid:
		results, err = e.hybridSearch(ctx, query, opts)
	case StrategyMMR:
		results, err = e.mmrSearch(ctx, query, opts)
	}
	if err != nil {
		e.logger.Warn("search failed, returning empty results",
			"strategy", string(strategy),
			"error", err,
		)
		return nil, nil
	}

	if rc != nil {
		for _, r := range results {
			rc.RecordChunk(r.Chunk.Content, recordScore(strategy, r.Score), chunkSource(r.Chunk), r.Chunk.Metadata)
		}
	}

	return results, nil
}

// semanticSearch embeds the query and delegates to nearest-neighbor search.
// Scores are index-native distances.
func (e *Engine) semanticSearch(ctx context.Context, query string, k int) ([]Result, error) {
	vector, err := e.store.Embedder().Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	neighbors, err := e.store.Index().QueryNearest(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, len(neighbors))
	for i, n := range neighbors {
		results[i] = Result{
			Chunk: neighborChunk(n),
			Score: n.Distance,
			Rank:  i,
		}
	}
	return results, nil
}

// neighborChunk and entryChunk rebuild chunks from index records. The
// content hash is recovered from metadata so downstream fusion keys on the
// same identity the store deduplicates on, including page provenance.
func neighborChunk(n memory.Neighbor) memory.Chunk {
	return memory.Chunk{
		ID:          n.ID,
		Content:     n.Content,
		Metadata:    n.Metadata,
		ContentHash: memory.HashFromMetadata(n.Content, n.Metadata),
	}
}

func entryChunk(entry memory.Entry) memory.Chunk {
	return memory.Chunk{
		ID:          entry.ID,
		Content:     entry.Content,
		Metadata:    entry.Metadata,
		ContentHash: memory.HashFromMetadata(entry.Content, entry.Metadata),
	}
}

func chunkSource(c memory.Chunk) string {
	if s, ok := c.Metadata[memory.MetaSource].(string); ok {
		return s
	}
	return ""
}

// recordScore converts a strategy-native score to the accumulator's
// lower-is-better convention at the point of recording.
func recordScore(strategy Strategy, score float64) float64 {
	if strategy == StrategyKeyword {
		return 1 - score
	}
	return score
}

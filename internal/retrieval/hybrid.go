package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/mnemohq/mnemo/internal/memory"
)

// hybridSearch fuses semantic and keyword retrieval. Both paths fetch 2k
// candidates to give the fusion room; documents are keyed by content hash so
// the same chunk found by both paths merges into one entry. Semantic
// distance converts to a similarity via 1/(1+d); weights are renormalized to
// sum to 1; a chunk found by only one path contributes only that path's
// weighted score (no zero-fill penalty). The returned Score is
// 1 − combined, so hybrid results sort like distances alongside the other
// strategies.
func (e *Engine) hybridSearch(ctx context.Context, query string, opts Options) ([]Result, error) {
	semWeight, kwWeight := normalizeWeights(opts.SemanticWeight, opts.KeywordWeight)
	fetch := 2 * opts.K

	semantic, err := e.semanticSearch(ctx, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("semantic leg: %w", err)
	}
	keyword, err := e.keywordSearch(ctx, query, fetch, opts.ScanLimit)
	if err != nil {
		return nil, fmt.Errorf("keyword leg: %w", err)
	}

	type fused struct {
		chunk    memory.Chunk
		combined float64
	}
	byHash := make(map[string]*fused)
	var order []string // first-seen order, for deterministic ties

	merge := func(chunk memory.Chunk, contribution float64) {
		hash := chunk.ContentHash
		if hash == "" {
			hash = memory.HashFromMetadata(chunk.Content, chunk.Metadata)
		}
		if f, ok := byHash[hash]; ok {
			f.combined += contribution
			return
		}
		byHash[hash] = &fused{chunk: chunk, combined: contribution}
		order = append(order, hash)
	}

	for _, r := range semantic {
		// Distance → similarity so both components share a direction.
		merge(r.Chunk, semWeight*(1/(1+r.Score)))
	}
	for _, r := range keyword {
		merge(r.Chunk, kwWeight*r.Score)
	}

	merged := make([]*fused, 0, len(order))
	for _, hash := range order {
		merged = append(merged, byHash[hash])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].combined > merged[j].combined
	})
	if len(merged) > opts.K {
		merged = merged[:opts.K]
	}

	results := make([]Result, len(merged))
	for rank, f := range merged {
		results[rank] = Result{
			Chunk: f.chunk,
			Score: 1 - f.combined,
			Rank:  rank,
		}
	}
	return results, nil
}

// normalizeWeights scales the pair so it sums to 1. Callers may pass raw
// ratios like 7:3; the ranking is identical to 0.7:0.3.
func normalizeWeights(semantic, keyword float64) (float64, float64) {
	if semantic < 0 {
		semantic = 0
	}
	if keyword < 0 {
		keyword = 0
	}
	total := semantic + keyword
	if total == 0 {
		return defaultSemWeight, defaultKwWeight
	}
	return semantic / total, keyword / total
}

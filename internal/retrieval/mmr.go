package retrieval

import (
	"context"
	"fmt"
)

// mmrSearch fetches a pool of FetchK semantic candidates, then greedily
// selects K of them by maximal marginal relevance:
//
//	mmr = lambda*relevance − (1−lambda)*maxSimilarityToSelected
//
// lambda=1 is pure relevance, lambda=0 pure diversity. Pairwise similarity
// uses Jaccard over token sets, which needs no extra embedding calls. This
// strategy exists to avoid near-duplicate results on broad queries.
func (e *Engine) mmrSearch(ctx context.Context, query string, opts Options) ([]Result, error) {
	fetchK := opts.FetchK
	if fetchK < opts.K {
		fetchK = opts.K
	}

	candidates, err := e.semanticSearch(ctx, query, fetchK)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	lambda := clamp01(*opts.Lambda)

	tokens := make([]map[string]struct{}, len(candidates))
	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		tokens[i] = tokenize(c.Chunk.Content)
		relevance[i] = 1 / (1 + c.Score) // distance → similarity
	}

	selected := make([]int, 0, opts.K)
	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < opts.K && len(remaining) > 0 {
		bestPos, bestScore := 0, negInf
		for pos, ci := range remaining {
			maxSim := 0.0
			for _, si := range selected {
				if sim := jaccard(tokens[ci], tokens[si]); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance[ci] - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}
		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	results := make([]Result, len(selected))
	for rank, ci := range selected {
		results[rank] = Result{
			Chunk: candidates[ci].Chunk,
			Score: candidates[ci].Score,
			Rank:  rank,
		}
	}
	return results, nil
}

const negInf = -1e18

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// jaccard computes Jaccard similarity between two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

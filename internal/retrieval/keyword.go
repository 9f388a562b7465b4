package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// keywordSearch scores chunks by simple term frequency: for each query term
// present in a chunk, occurrences divided by the chunk's word count, summed.
// No IDF. Chunks that match no term are excluded. The scan over stored
// chunks is capped at scanLimit; this is a lexical complement to semantic
// search, not a full-text engine.
func (e *Engine) keywordSearch(ctx context.Context, query string, k, scanLimit int) ([]Result, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	entries, err := e.store.Index().All(ctx, scanLimit)
	if err != nil {
		return nil, fmt.Errorf("scanning chunks: %w", err)
	}

	type scored struct {
		idx   int
		score float64
	}
	var matches []scored
	for i, entry := range entries {
		score := termFrequencyScore(terms, entry.Content)
		if score > 0 {
			matches = append(matches, scored{idx: i, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	results := make([]Result, len(matches))
	for rank, m := range matches {
		results[rank] = Result{
			Chunk: entryChunk(entries[m.idx]),
			Score: m.score,
			Rank:  rank,
		}
	}
	return results, nil
}

// termFrequencyScore sums count(term)/wordcount over the query terms that
// appear in the content.
func termFrequencyScore(terms map[string]struct{}, content string) float64 {
	words := tokenizeList(content)
	if len(words) == 0 {
		return 0
	}

	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}

	var score float64
	for term := range terms {
		if n := counts[term]; n > 0 {
			score += float64(n) / float64(len(words))
		}
	}
	return score
}

// tokenize lowercases and splits text on non-letter/digit runes, returning
// the unique term set.
func tokenize(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, w := range tokenizeList(text) {
		terms[w] = struct{}{}
	}
	return terms
}

func tokenizeList(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

package gateway

import (
	"encoding/json"
	"net/http"
	"testing"
)

func ingestChunks(t *testing.T, h http.Handler, contents ...string) {
	t.Helper()
	for _, c := range contents {
		body, _ := json.Marshal(AddChunksRequest{Chunks: []ChunkInput{{Content: c}}})
		rr := doJSON(t, h, http.MethodPost, "/api/memory/", string(body))
		if rr.Code != http.StatusCreated {
			t.Fatalf("ingest %q: status = %d: %s", c, rr.Code, rr.Body.String())
		}
	}
}

func TestSearch_WithoutEngine(t *testing.T) {
	t.Parallel()

	_, h := bareTestGateway(t)

	rr := doJSON(t, h, http.MethodPost, "/api/search", `{"query":"anything"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})

	rr := doJSON(t, h, http.MethodPost, "/api/search", `{"query":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSearch_MalformedBody(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})

	rr := doJSON(t, h, http.MethodPost, "/api/search", `{"query": "x", "bogus": true}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSearch_UnknownStrategy(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})

	rr := doJSON(t, h, http.MethodPost, "/api/search", `{"query":"x","strategy":"psychic"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestSearch_SemanticRanking(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})
	ingestChunks(t, h,
		"the quick brown fox jumps over the lazy dog",
		"kubernetes cluster networking and service discovery",
		"quick brown fox sightings in the local park",
	)

	rr := doJSON(t, h, http.MethodPost, "/api/search", `{"query":"quick brown fox","k":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("Count = %d, want 2", resp.Count)
	}
	for i, res := range resp.Results {
		if res.Rank != i {
			t.Errorf("result %d: Rank = %d, want %d", i, res.Rank, i)
		}
		if res.MemoryID == "" {
			t.Errorf("result %d: empty memory_id", i)
		}
	}
	// Both fox chunks should outrank the kubernetes one.
	for _, res := range resp.Results {
		if res.Content == "kubernetes cluster networking and service discovery" {
			t.Errorf("unrelated chunk ranked in top 2: %q", res.Content)
		}
	}
}

func TestSearch_DefaultsToSemantic(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})
	ingestChunks(t, h, "standalone content")

	rr := doJSON(t, h, http.MethodPost, "/api/search", `{"query":"standalone content"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("Count = %d, want 1", resp.Count)
	}
}

func TestSearch_KeywordStrategy(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})
	ingestChunks(t, h,
		"invoice overdue payment reminder",
		"weather forecast for the weekend",
	)

	rr := doJSON(t, h, http.MethodPost, "/api/search", `{"query":"invoice payment","strategy":"keyword","k":1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("Count = %d, want 1", resp.Count)
	}
	if resp.Results[0].Content != "invoice overdue payment reminder" {
		t.Errorf("top hit = %q", resp.Results[0].Content)
	}
	if resp.Results[0].Score <= 0 {
		t.Errorf("Score = %v, want > 0", resp.Results[0].Score)
	}
}

func TestSearch_HybridStrategy(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})
	ingestChunks(t, h,
		"release notes for version two",
		"database migration checklist",
	)

	rr := doJSON(t, h, http.MethodPost, "/api/search", `{"query":"release notes","strategy":"hybrid","k":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count == 0 {
		t.Fatal("no results")
	}
	if resp.Results[0].Content != "release notes for version two" {
		t.Errorf("top hit = %q", resp.Results[0].Content)
	}
}

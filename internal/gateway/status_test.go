package gateway

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestStatus_ReflectsMetrics(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})

	rr := doJSON(t, h, http.MethodPost, "/api/memory/", `{"chunks":[{"content":"alpha bravo"},{"content":"charlie delta"}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d: %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, h, http.MethodPost, "/api/search", `{"query":"alpha"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Metrics.Searches != 1 {
		t.Errorf("Searches = %d, want 1", resp.Metrics.Searches)
	}
	if resp.Metrics.ChunksIngested != 2 {
		t.Errorf("ChunksIngested = %d, want 2", resp.Metrics.ChunksIngested)
	}
	if resp.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", resp.Chunks)
	}
	if len(resp.Jobs) != 0 {
		t.Errorf("Jobs = %v, want empty without a scheduler", resp.Jobs)
	}
}

func TestMetrics_Snapshot(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	m.RecordSearch(100 * time.Millisecond)
	m.RecordSearch(200 * time.Millisecond)
	m.RecordIngest(5)
	m.RecordReminderOp()
	m.RecordError()

	snap := m.Snapshot()
	if snap.Searches != 2 {
		t.Errorf("Searches = %d, want 2", snap.Searches)
	}
	if snap.ChunksIngested != 5 {
		t.Errorf("ChunksIngested = %d, want 5", snap.ChunksIngested)
	}
	if snap.ReminderOps != 1 {
		t.Errorf("ReminderOps = %d, want 1", snap.ReminderOps)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}
	if snap.AvgSearchLatency != 150*time.Millisecond {
		t.Errorf("AvgSearchLatency = %v, want 150ms", snap.AvgSearchLatency)
	}
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	t.Parallel()

	snap := (&Metrics{}).Snapshot()
	if snap.AvgSearchLatency != 0 {
		t.Errorf("AvgSearchLatency = %v, want 0", snap.AvgSearchLatency)
	}
}

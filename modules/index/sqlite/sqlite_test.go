package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mnemohq/mnemo/internal/core"
	"gopkg.in/yaml.v3"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	dir := t.TempDir()
	m := &Module{
		config: Config{
			Path:        filepath.Join(dir, "test.db"),
			BusyTimeout: defaultBusyTimeout,
		},
	}
	m.config.defaults()

	ctx := core.NewAppContext(slog.Default(), dir)

	if err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})

	return m
}

func TestModuleInfo(t *testing.T) {
	t.Parallel()

	m := &Module{}
	info := m.ModuleInfo()
	if info.ID != "index.sqlite" {
		t.Errorf("module ID = %q, want index.sqlite", info.ID)
	}
	if info.New() == nil {
		t.Error("New returned nil module")
	}
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("path: /tmp/x.db\nbusy_timeout: 100\n"), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	m := &Module{}
	if err := m.Configure(node.Content[0]); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if m.config.Path != "/tmp/x.db" || m.config.BusyTimeout != 100 {
		t.Errorf("config = %+v", m.config)
	}
	if !m.config.walEnabled() {
		t.Error("WAL should default to enabled")
	}
}

func TestUpsertAndQueryNearest(t *testing.T) {
	m := newTestModule(t)
	ix := m.index
	ctx := context.Background()

	seed := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0.9, 0.1, 0},
	}
	for id, vec := range seed {
		if err := ix.Upsert(ctx, id, vec, "chunk "+id, map[string]any{"source": id}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	got, err := ix.QueryNearest(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("ranking = [%s %s], want [a c]", got[0].ID, got[1].ID)
	}
	if got[0].Distance > got[1].Distance {
		t.Error("distances must ascend")
	}
	if got[0].Metadata["source"] != "a" {
		t.Errorf("metadata round-trip: %v", got[0].Metadata)
	}
}

func TestUpsertReplaces(t *testing.T) {
	m := newTestModule(t)
	ix := m.index
	ctx := context.Background()

	if err := ix.Upsert(ctx, "a", []float32{1, 0}, "v1", nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.Upsert(ctx, "a", []float32{0, 1}, "v2", nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	n, err := ix.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}

	got, err := ix.QueryNearest(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got[0].Content != "v2" || got[0].Distance > 1e-9 {
		t.Errorf("got %+v, want replaced content at distance 0", got[0])
	}
}

func TestUpsertNilVectorPatchesMetadata(t *testing.T) {
	m := newTestModule(t)
	ix := m.index
	ctx := context.Background()

	if err := ix.Upsert(ctx, "a", []float32{0, 1}, "original", map[string]any{"k": "v1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.Upsert(ctx, "a", nil, "original", map[string]any{"k": "v2"}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	// The stored embedding survives the patch.
	got, err := ix.QueryNearest(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got[0].Distance > 1e-9 {
		t.Errorf("distance = %v, embedding should be unchanged", got[0].Distance)
	}
	if got[0].Metadata["k"] != "v2" {
		t.Errorf("metadata = %v, want patched value", got[0].Metadata)
	}

	// Patching an unknown ID is an error: there is no embedding to keep.
	if err := ix.Upsert(ctx, "ghost", nil, "x", nil); err == nil {
		t.Error("nil-vector upsert of unknown ID should fail")
	}
}

func TestAllAndDelete(t *testing.T) {
	m := newTestModule(t)
	ix := m.index
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := ix.Upsert(ctx, id, []float32{1}, id, nil); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	all, err := ix.All(ctx, 0)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d entries, want 3", len(all))
	}

	limited, err := ix.All(ctx, 2)
	if err != nil {
		t.Fatalf("all limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited = %d entries, want 2", len(limited))
	}

	if err := ix.Delete(ctx, "a", "ghost"); err != nil {
		t.Fatalf("delete with unknown ID should be tolerated: %v", err)
	}

	n, err := ix.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	ctx := context.Background()

	open := func() *Module {
		m := &Module{config: Config{Path: path}}
		m.config.defaults()
		if err := m.Provision(core.NewAppContext(slog.Default(), dir)); err != nil {
			t.Fatalf("provision: %v", err)
		}
		return m
	}

	m1 := open()
	if err := m1.index.Upsert(ctx, "a", []float32{1, 2, 3}, "persisted", nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m1.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	m2 := open()
	defer func() { _ = m2.Stop(ctx) }()

	got, err := m2.index.QueryNearest(ctx, []float32{1, 2, 3}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Content != "persisted" || got[0].Distance > 1e-9 {
		t.Fatalf("got %+v, want the persisted chunk at distance 0", got)
	}
}

func TestVectorCodec(t *testing.T) {
	t.Parallel()

	in := []float32{0, 1.5, -2.25, 3.14159}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("element %d: %v != %v", i, in[i], out[i])
		}
	}
}

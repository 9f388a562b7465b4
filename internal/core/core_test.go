package core

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"gopkg.in/yaml.v3"
)

// fakeModule records which lifecycle hooks were invoked, in order.
type fakeModule struct {
	id           ModuleID
	calls        []string
	configureErr error
	provisionErr error
	validateErr  error
	startErr     error
}

func (m *fakeModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return m }}
}

func (m *fakeModule) Configure(_ *yaml.Node) error {
	m.calls = append(m.calls, "configure")
	return m.configureErr
}

func (m *fakeModule) Provision(_ *AppContext) error {
	m.calls = append(m.calls, "provision")
	return m.provisionErr
}

func (m *fakeModule) Validate() error {
	m.calls = append(m.calls, "validate")
	return m.validateErr
}

func (m *fakeModule) Start() error {
	m.calls = append(m.calls, "start")
	return m.startErr
}

func (m *fakeModule) Stop(_ context.Context) error {
	m.calls = append(m.calls, "stop")
	return nil
}

func TestRegisterModule_Duplicate(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	RegisterModule(&fakeModule{id: "test.a"})

	defer func() {
		if recover() == nil {
			t.Fatal("duplicate registration should panic")
		}
	}()
	RegisterModule(&fakeModule{id: "test.a"})
}

func TestGetModulesByNamespace(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	RegisterModule(&fakeModule{id: "index.sqlite"})
	RegisterModule(&fakeModule{id: "index.pgvector"})
	RegisterModule(&fakeModule{id: "reminders.sqlite"})

	got := GetModulesByNamespace("index")
	if len(got) != 2 {
		t.Fatalf("expected 2 index modules, got %d", len(got))
	}
	if got[0].ID != "index.pgvector" || got[1].ID != "index.sqlite" {
		t.Fatalf("modules not sorted by ID: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestLoadModule_LifecycleOrder(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	mod := &fakeModule{id: "test.lifecycle"}
	RegisterModule(mod)

	ctx := NewAppContext(slog.Default(), t.TempDir())
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("key: value"), &node); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	ctx = ctx.WithModuleConfigs(map[string]yaml.Node{"test.lifecycle": node})

	if _, err := ctx.LoadModule("test.lifecycle"); err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []string{"configure", "provision", "validate"}
	if len(mod.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", mod.calls, want)
	}
	for i := range want {
		if mod.calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, mod.calls[i], want[i])
		}
	}
}

func TestLoadModule_Unknown(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	ctx := NewAppContext(slog.Default(), t.TempDir())
	if _, err := ctx.LoadModule("no.such"); err == nil {
		t.Fatal("expected error for unknown module")
	}
}

func TestLoadModule_ProvisionError(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	boom := errors.New("boom")
	RegisterModule(&fakeModule{id: "test.bad", provisionErr: boom})

	ctx := NewAppContext(slog.Default(), t.TempDir())
	if _, err := ctx.LoadModule("test.bad"); !errors.Is(err, boom) {
		t.Fatalf("expected provision error, got %v", err)
	}
}

func TestApp_StartStop(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	first := &fakeModule{id: "test.first"}
	second := &fakeModule{id: "test.second"}
	RegisterModule(first)
	RegisterModule(second)

	ctx := NewAppContext(slog.Default(), t.TempDir())
	app := NewApp(ctx)
	if err := app.LoadModules([]string{"test.first", "test.second"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	app.Stop()

	// Stop runs in reverse order: second stops before first.
	if first.calls[len(first.calls)-1] != "stop" {
		t.Fatalf("first module not stopped: %v", first.calls)
	}
	if second.calls[len(second.calls)-1] != "stop" {
		t.Fatalf("second module not stopped: %v", second.calls)
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	ok := &fakeModule{id: "test.ok"}
	bad := &fakeModule{id: "test.broken", startErr: errors.New("no")}
	RegisterModule(ok)
	RegisterModule(bad)

	ctx := NewAppContext(slog.Default(), t.TempDir())
	app := NewApp(ctx)
	if err := app.LoadModules([]string{"test.ok", "test.broken"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := app.Start(); err == nil {
		t.Fatal("expected start error")
	}

	// The already-started module must have been stopped again.
	if ok.calls[len(ok.calls)-1] != "stop" {
		t.Fatalf("ok module not rolled back: %v", ok.calls)
	}
}

func TestAppContext_Services(t *testing.T) {
	t.Parallel()

	ctx := NewAppContext(slog.Default(), t.TempDir())
	child := ctx.ForModule("test.child")

	child.RegisterService("memory.index", 42)

	// Registry is shared between parent and module-scoped copies.
	svc, ok := ctx.Service("memory.index")
	if !ok {
		t.Fatal("service not visible from parent context")
	}
	if svc.(int) != 42 {
		t.Fatalf("service = %v, want 42", svc)
	}

	if _, ok := ctx.Service("missing"); ok {
		t.Fatal("missing service should not resolve")
	}
}

// Package engine composes the memory store and the retrieval engine from
// whatever index and embedder modules the config wires in, and publishes
// them for the gateway and other consumers.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
	"github.com/mnemohq/mnemo/internal/retrieval"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Provisioner = (*Module)(nil)
	_ core.Starter     = (*Module)(nil)
)

// Module builds the memory store and retrieval engine at startup.
type Module struct {
	appCtx *core.AppContext
	logger *slog.Logger

	store  *memory.Store
	engine *retrieval.Engine
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "engine.retrieval",
		New: func() core.Module { return &Module{} },
	}
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	return nil
}

// Start implements core.Starter. Index and embedder modules register their
// services during Provision, which runs for every module before any Start,
// so resolving here sees whatever the config wired in. A missing index
// falls back to the in-memory implementation; a missing embedder is a
// configuration error because ingestion cannot work without one.
func (m *Module) Start() error {
	var index memory.VectorIndex
	if svc, ok := m.appCtx.Service("memory.index"); ok {
		if ix, ok := svc.(memory.VectorIndex); ok {
			index = ix
		}
	}
	if index == nil {
		m.logger.Warn("no index module configured, chunks will not survive restarts")
		index = memory.NewInMemoryIndex()
	}

	var embedder memory.Embedder
	if svc, ok := m.appCtx.Service("memory.embedder"); ok {
		if e, ok := svc.(memory.Embedder); ok {
			embedder = e
		}
	}
	if embedder == nil {
		return fmt.Errorf("engine: no embedder module configured (add embedder.openai to the config)")
	}

	m.store = memory.NewStore(index, embedder, m.logger)
	m.engine = retrieval.NewEngine(m.store, m.logger)

	m.appCtx.RegisterService("memory.store", m.store)
	m.appCtx.RegisterService("retrieval.engine", m.engine)

	m.logger.Info("retrieval engine started")
	return nil
}

// Store returns the composed memory store. Nil before Start.
func (m *Module) Store() *memory.Store {
	return m.store
}

// Engine returns the composed retrieval engine. Nil before Start.
func (m *Module) Engine() *retrieval.Engine {
	return m.engine
}

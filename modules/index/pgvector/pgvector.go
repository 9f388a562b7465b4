// Package pgvector implements a PostgreSQL-backed vector index using the
// pgvector extension. Nearest-neighbor queries run in the database with
// the cosine distance operator, so it scales past the brute-force SQLite
// module at the cost of an external PostgreSQL dependency.
package pgvector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ memory.VectorIndex = (*vectorIndex)(nil)
	_ core.Configurable  = (*Module)(nil)
	_ core.Provisioner   = (*Module)(nil)
	_ core.Validator     = (*Module)(nil)
	_ core.Stopper       = (*Module)(nil)
)

// Module wires a pgvector-backed memory.VectorIndex into the app.
type Module struct {
	config Config
	pool   *pgxpool.Pool
	logger *slog.Logger
	index  *vectorIndex
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "index.pgvector",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("pgvector: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}

	pool, err := pgxpool.New(context.TODO(), m.config.DSN)
	if err != nil {
		return fmt.Errorf("pgvector: create pool: %w", err)
	}
	if err := pool.Ping(context.TODO()); err != nil {
		pool.Close()
		return fmt.Errorf("pgvector: ping: %w", err)
	}

	if err := ensureSchema(context.TODO(), pool, m.config.Table, m.config.Dimension); err != nil {
		pool.Close()
		return err
	}

	m.pool = pool
	m.index = &vectorIndex{pool: pool, table: m.config.Table, logger: ctx.Logger}

	ctx.RegisterService("memory.index", m.index)

	m.logger.Info("pgvector index module provisioned",
		"table", m.config.Table,
		"dimension", m.config.Dimension,
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.pool.Ping(context.TODO()); err != nil {
		return fmt.Errorf("pgvector: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("pgvector index module stopping")
	if m.pool != nil {
		m.pool.Close()
	}
	return nil
}

// Index returns the provisioned vector index.
func (m *Module) Index() memory.VectorIndex {
	return m.index
}

// ensureSchema creates the chunks table when missing. The vector extension
// itself must already be installed; CREATE EXTENSION needs superuser
// rights the application role usually lacks.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool, table string, dim int) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table, dim)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgvector: create table %s: %w", table, err)
	}
	return nil
}

// Package gateway exposes the memory and reminder engines over HTTP:
// search, memory CRUD, reminder CRUD with snooze and occurrence preview,
// plus health and status endpoints.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/cron"
	"github.com/mnemohq/mnemo/internal/memory"
	"github.com/mnemohq/mnemo/internal/reminder"
	"github.com/mnemohq/mnemo/internal/retrieval"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It is a leaf module; nothing imports
// it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	startedAt time.Time

	// Resolved lazily at Start() via the service registry. Any of these
	// may stay nil when the corresponding module is not configured; the
	// affected endpoints answer 503.
	store     *memory.Store
	engine    *retrieval.Engine
	reminders reminder.Store
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = &Metrics{}

	ctx.RegisterService("gateway.metrics", g.metrics)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves collaborators from the
// service registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds whatever collaborating modules registered. Each is
// optional so a reminders-only or memory-only deployment still serves its
// half of the API.
func (g *Gateway) resolveServices() {
	if svc, ok := g.appCtx.Service("memory.store"); ok {
		if s, ok := svc.(*memory.Store); ok {
			g.store = s
		}
	}
	if svc, ok := g.appCtx.Service("retrieval.engine"); ok {
		if e, ok := svc.(*retrieval.Engine); ok {
			g.engine = e
		}
	}
	if svc, ok := g.appCtx.Service("reminders.store"); ok {
		if s, ok := svc.(reminder.Store); ok {
			g.reminders = s
		}
	}
	if svc, ok := g.appCtx.Service("cron.scheduler"); ok {
		if s, ok := svc.(*cron.Scheduler); ok {
			g.scheduler = s
		}
	}
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

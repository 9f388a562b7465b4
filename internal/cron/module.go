package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/reminder"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// ModuleConfig holds the scheduler module configuration. Schedule
// overrides exist for operators who want tighter or looser ticks than the
// defaults; expressions are validated at Start.
type ModuleConfig struct {
	DueCheckSchedule    string `yaml:"due_check_schedule"`
	MaterializeSchedule string `yaml:"materialize_schedule"`
	CleanupSchedule     string `yaml:"cleanup_schedule"`
}

// Module runs the reminder jobs on the cron scheduler.
type Module struct {
	config    ModuleConfig
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "scheduler.cron",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. The reminder store and notifier
// are resolved from the service registry; store modules register theirs
// during their own Provision, which runs earlier in load order. Without a
// persistent store module the scheduler runs against an in-memory store,
// which it registers so the gateway operates on the same data.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(ctx.Logger)

	ctx.RegisterService("cron.scheduler", m.scheduler)

	var store reminder.Store
	if svc, ok := ctx.Service("reminders.store"); ok {
		if s, ok := svc.(reminder.Store); ok {
			store = s
		}
	}
	if store == nil {
		m.logger.Warn("no reminder store module configured, reminders will not survive restarts")
		store = reminder.NewInMemoryStore()
		ctx.RegisterService("reminders.store", store)
	}

	var notifier reminder.Notifier
	if svc, ok := ctx.Service("reminders.notifier"); ok {
		if n, ok := svc.(reminder.Notifier); ok {
			notifier = n
		}
	}
	if notifier == nil {
		notifier = &reminder.LogNotifier{Logger: m.logger}
	}

	jobs := []Job{
		&reminder.DueCheckJob{
			Store:        store,
			Notifier:     notifier,
			Logger:       m.logger,
			ScheduleExpr: m.config.DueCheckSchedule,
		},
		&reminder.MaterializeJob{
			Store:        store,
			Logger:       m.logger,
			ScheduleExpr: m.config.MaterializeSchedule,
		},
		&reminder.CleanupJob{
			Store:        store,
			Logger:       m.logger,
			ScheduleExpr: m.config.CleanupSchedule,
		},
	}
	for _, j := range jobs {
		if err := m.scheduler.RegisterJob(j); err != nil {
			return err
		}
	}
	return nil
}

// Start implements core.Starter. Schedule expressions, including config
// overrides, are validated here.
func (m *Module) Start() error {
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// SchedulerHandle returns the running scheduler.
func (m *Module) SchedulerHandle() *Scheduler {
	return m.scheduler
}

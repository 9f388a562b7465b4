package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler manages periodic job execution using cron expressions. Each
// job is guarded by a per-job mutex acquired with TryLock, so a tick that
// fires while the previous run is still in flight is skipped rather than
// stacked.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]Job
	order   []string
	locks   map[string]*sync.Mutex
	logger  *slog.Logger
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:   make(map[string]Job),
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.jobs[name] = j
	s.locks[name] = &sync.Mutex{}
	s.order = append(s.order, name)
	return nil
}

// JobNames returns the registered job names in registration order.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Start initializes the cron runner and begins executing registered jobs.
// Calling Start on a running scheduler is a no-op. Returns an error if any
// job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))

	for _, name := range s.order {
		job := s.jobs[name]
		lock := s.locks[name]

		_, err := s.cron.AddFunc(job.Schedule(), func() {
			s.runLocked(ctx, job, lock)
		})
		if err != nil {
			cancel()
			s.cancel = nil
			s.cron = nil
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// RunNow triggers a registered job outside its schedule, honoring the same
// per-job lock as scheduled ticks. Returns an error for unknown job names
// or when a run of the same job is already in flight.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	lock := s.locks[name]
	s.mu.Unlock()

	if !ok {
		names := s.JobNames()
		sort.Strings(names)
		return fmt.Errorf("cron: unknown job %q (registered: %v)", name, names)
	}

	if !lock.TryLock() {
		return fmt.Errorf("cron: job %q already running", name)
	}
	defer lock.Unlock()

	s.logger.Debug("cron: manual run", "job", name)
	return job.Run(ctx)
}

// runLocked executes one scheduled tick of a job. TryLock is atomic, so
// there is no race between checking and acquiring; a still-running
// previous tick means this one is skipped.
func (s *Scheduler) runLocked(ctx context.Context, job Job, lock *sync.Mutex) {
	if !lock.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
		return
	}
	defer lock.Unlock()

	s.logger.Debug("cron: job started", "job", job.Name())
	if err := job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
		return
	}
	s.logger.Debug("cron: job completed", "job", job.Name())
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs.
// Safe to call without a prior Start and safe to call twice.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.cron != nil {
		// Wait for running jobs to complete.
		<-s.cron.Stop().Done()
		s.cron = nil
		s.logger.Info("cron: scheduler stopped")
	}
	s.running = false
	return nil
}

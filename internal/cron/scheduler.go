package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// entry pairs a job with its run lock and last-outcome bookkeeping.
// running uses TryLock so a tick that fires while the previous one is
// still executing is skipped, never queued.
type entry struct {
	job     Job
	running sync.Mutex

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

func (e *entry) record(at time.Time, err error) {
	e.mu.Lock()
	e.lastRun = at
	e.lastErr = err
	e.mu.Unlock()
}

// JobStatus is a snapshot of one registered job, exposed on the gateway
// status endpoint.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_error,omitempty"`
}

// Scheduler runs registered jobs on their cron schedules.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*entry
	order   []string
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.entries[name] = &entry{job: j}
	s.order = append(s.order, name)
	return nil
}

// Jobs returns a status snapshot of all registered jobs, in registration
// order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		e.mu.Lock()
		st := JobStatus{
			Name:     name,
			Schedule: e.job.Schedule(),
			LastRun:  e.lastRun,
		}
		if e.lastErr != nil {
			st.LastErr = e.lastErr.Error()
		}
		e.mu.Unlock()
		statuses = append(statuses, st)
	}
	return statuses
}

// scheduleParser accepts standard five-field cron expressions. Seconds
// granularity is deliberately not supported.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parseSchedule validates a job's schedule expression.
func parseSchedule(expr string) (cron.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// Start begins executing registered jobs. Returns an error if any job has
// an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New(cron.WithParser(scheduleParser))

	for _, name := range s.order {
		e := s.entries[name]
		if _, err := s.cron.AddFunc(e.job.Schedule(), func() { s.tick(ctx, e) }); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

// tick runs one scheduled invocation of a job. Overlapping ticks of the
// same job are skipped via TryLock.
func (s *Scheduler) tick(ctx context.Context, e *entry) {
	name := e.job.Name()
	if !e.running.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", name)
		return
	}
	defer e.running.Unlock()

	started := time.Now()
	s.logger.Debug("cron: job started", "job", name)
	err := e.job.Run(ctx)
	e.record(started, err)
	if err != nil {
		s.logger.Error("cron: job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("cron: job completed", "job", name, "elapsed", time.Since(started))
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		// Wait for running jobs to complete.
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}

// Package scheduler runs named recurring jobs. Each job has its own timer and
// never overlaps itself; jobs are otherwise independent.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrAlreadyRunning = errors.New("job already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// Handler is one invocation of a job. The context is not cancelled by Stop.
type Handler func(ctx context.Context) error

// Job describes a recurring task. Exactly one of Interval or Cron is set.
// Cron takes a standard five-field expression or a descriptor like "@daily".
type Job struct {
	Name       string
	Interval   time.Duration
	Cron       string
	RunOnStart bool
	Handler    Handler
}

// Status is a snapshot of one job.
type Status struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	Running      bool       `json:"running"`
	Runs         int64      `json:"runs"`
	Failures     int64      `json:"failures"`
	LastRunID    string     `json:"last_run_id,omitempty"`
	LastStarted  *time.Time `json:"last_started,omitempty"`
	LastFinished *time.Time `json:"last_finished,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

type entry struct {
	job      Job
	schedule cron.Schedule
	running  atomic.Bool

	mu     sync.Mutex
	status Status
}

// next returns when the job should fire after t.
func (e *entry) next(t time.Time) time.Time {
	if e.schedule != nil {
		return e.schedule.Next(t)
	}
	return t.Add(e.job.Interval)
}

type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*entry
	order   []string
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc

	loops sync.WaitGroup
	runs  sync.WaitGroup
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		jobs:   make(map[string]*entry),
	}
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return errors.New("register job: name is required")
	}
	if job.Handler == nil {
		return fmt.Errorf("register job %s: handler is required", job.Name)
	}

	e := &entry{job: job}
	switch {
	case job.Cron != "" && job.Interval != 0:
		return fmt.Errorf("register job %s: set interval or cron, not both", job.Name)
	case job.Cron != "":
		sched, err := cron.ParseStandard(job.Cron)
		if err != nil {
			return fmt.Errorf("register job %s: parse cron %q: %w", job.Name, job.Cron, err)
		}
		e.schedule = sched
		e.status.Schedule = job.Cron
	case job.Interval > 0:
		e.status.Schedule = "every " + job.Interval.String()
	default:
		return fmt.Errorf("register job %s: interval must be positive", job.Name)
	}
	e.status.Name = job.Name

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("register job %s: scheduler already started", job.Name)
	}
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("register job %s: duplicate name", job.Name)
	}
	s.jobs[job.Name] = e
	s.order = append(s.order, job.Name)
	return nil
}

// Start launches every registered job. ctx supplies values to handlers and
// stops the timers when cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range s.order {
		e := s.jobs[name]
		s.loops.Add(1)
		go s.loop(s.ctx, e)
	}
	s.logger.Info("scheduler started", "jobs", len(s.order))
	return nil
}

// Stop prevents new invocations and waits for in-flight ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	s.mu.Unlock()

	s.loops.Wait()
	s.runs.Wait()
	s.logger.Info("scheduler stopped")
}

// RunNow triggers an immediate run of the named job and returns its run ID.
// It fails with ErrAlreadyRunning while the job has an invocation in flight.
func (s *Scheduler) RunNow(name string) (string, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.trigger(e)
}

// Status returns a snapshot of every job in registration order.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.order))
	for _, name := range s.order {
		entries = append(entries, s.jobs[name])
	}
	s.mu.Unlock()

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		st := e.status
		e.mu.Unlock()
		st.Running = e.running.Load()
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.loops.Done()

	if e.job.RunOnStart {
		s.fire(e)
	}
	for {
		next := e.next(time.Now())
		e.mu.Lock()
		e.status.NextRun = &next
		e.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(e)
		}
	}
}

// fire is a timer-driven trigger. A tick that lands while the previous run
// is still going is skipped.
func (s *Scheduler) fire(e *entry) {
	if _, err := s.trigger(e); errors.Is(err, ErrAlreadyRunning) {
		s.logger.Warn("job still running, skipping tick", "job", e.job.Name)
	}
}

func (s *Scheduler) trigger(e *entry) (string, error) {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return "", ErrNotRunning
	}
	if !e.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrAlreadyRunning, e.job.Name)
	}
	s.runs.Add(1)
	ctx := context.WithoutCancel(s.ctx)
	s.mu.Unlock()

	runID := uuid.NewString()
	go s.run(ctx, e, runID)
	return runID, nil
}

func (s *Scheduler) run(ctx context.Context, e *entry, runID string) {
	defer s.runs.Done()
	defer e.running.Store(false)

	started := time.Now()
	e.mu.Lock()
	e.status.LastRunID = runID
	e.status.LastStarted = &started
	e.mu.Unlock()

	err := invoke(ctx, e.job.Handler)
	finished := time.Now()

	e.mu.Lock()
	e.status.Runs++
	e.status.LastFinished = &finished
	e.status.LastError = ""
	if err != nil {
		e.status.Failures++
		e.status.LastError = err.Error()
	}
	e.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			"job", e.job.Name,
			"run_id", runID,
			"started_at", started.UTC().Format(time.RFC3339),
			"duration", finished.Sub(started),
			"error", err,
		)
		return
	}
	s.logger.Debug("job completed", "job", e.job.Name, "run_id", runID, "duration", finished.Sub(started))
}

// invoke calls h, converting a panic into an error.
func invoke(ctx context.Context, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx)
}

// JobFor builds a job from a schedule string: a Go duration ("90s", "5m")
// for a fixed interval, anything else as a cron expression.
func JobFor(name, spec string, h Handler) (Job, error) {
	job := Job{Name: name, Handler: h}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return Job{}, fmt.Errorf("job %s: interval must be positive", name)
		}
		job.Interval = d
		return job, nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return Job{}, fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}
	job.Cron = spec
	return job, nil
}

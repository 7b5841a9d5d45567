package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// syncBuffer lets the scheduler's goroutines log while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRegisterValidation(t *testing.T) {
	noop := func(context.Context) error { return nil }
	tests := []struct {
		name string
		job  Job
	}{
		{"missing name", Job{Interval: time.Second, Handler: noop}},
		{"missing handler", Job{Name: "a", Interval: time.Second}},
		{"no schedule", Job{Name: "a", Handler: noop}},
		{"both schedules", Job{Name: "a", Interval: time.Second, Cron: "@hourly", Handler: noop}},
		{"bad cron", Job{Name: "a", Cron: "every tuesday", Handler: noop}},
		{"negative interval", Job{Name: "a", Interval: -time.Second, Handler: noop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(slog.Default())
			if err := s.Register(tt.job); err == nil {
				t.Error("expected error")
			}
		})
	}

	s := New(slog.Default())
	if err := s.Register(Job{Name: "a", Cron: "*/5 * * * *", Handler: noop}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(Job{Name: "a", Interval: time.Second, Handler: noop}); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestIntervalJobRepeats(t *testing.T) {
	s := New(slog.Default())
	var runs atomic.Int32
	if err := s.Register(Job{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Handler: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return runs.Load() >= 3 })
	s.Stop()
}

func TestNoOverlapForSameJob(t *testing.T) {
	s := New(slog.Default())
	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		runs    atomic.Int32
	)
	if err := s.Register(Job{
		Name:     "slow",
		Interval: time.Millisecond,
		Handler: func(context.Context) error {
			n := active.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			active.Add(-1)
			runs.Add(1)
			return nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 3 })
	s.Stop()

	if got := maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent runs = %d, want 1", got)
	}
}

func TestFailingJobDoesNotAffectOthers(t *testing.T) {
	logger, logs := testLogger()
	s := New(logger)

	var deadlineRuns, billRuns atomic.Int32
	if err := s.Register(Job{
		Name:     "deadline_reminders",
		Interval: 5 * time.Millisecond,
		Handler: func(context.Context) error {
			if deadlineRuns.Add(1)%2 == 0 {
				panic("deadline store exploded")
			}
			return errors.New("deadline store unreachable")
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(Job{
		Name:     "bill_reminders",
		Interval: 5 * time.Millisecond,
		Handler: func(context.Context) error {
			billRuns.Add(1)
			return nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return deadlineRuns.Load() >= 4 && billRuns.Load() >= 4
	})
	s.Stop()

	out := logs.String()
	if !strings.Contains(out, "job=deadline_reminders") || !strings.Contains(out, "job failed") {
		t.Errorf("expected failure log for deadline job, got:\n%s", out)
	}
	if !strings.Contains(out, "run_id=") || !strings.Contains(out, "started_at=") {
		t.Errorf("expected run_id and started_at in failure log, got:\n%s", out)
	}
	if !strings.Contains(out, "panic: deadline store exploded") {
		t.Errorf("expected recovered panic in log, got:\n%s", out)
	}

	for _, st := range s.Status() {
		switch st.Name {
		case "deadline_reminders":
			if st.Failures == 0 || st.LastError == "" {
				t.Errorf("deadline status = %+v, want failures recorded", st)
			}
		case "bill_reminders":
			if st.Failures != 0 || st.Runs == 0 {
				t.Errorf("bill status = %+v, want clean runs", st)
			}
		}
	}
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	s := New(slog.Default())
	started := make(chan struct{})
	release := make(chan struct{})
	var finished, runs atomic.Int32

	if err := s.Register(Job{
		Name:       "long",
		Interval:   time.Hour,
		RunOnStart: true,
		Handler: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				close(started)
			}
			<-release
			if ctx.Err() != nil {
				t.Error("handler context should not be cancelled by Stop")
			}
			finished.Add(1)
			return nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}

	if finished.Load() != 1 {
		t.Errorf("finished = %d, want 1", finished.Load())
	}
	if _, err := s.RunNow("long"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("RunNow after Stop error = %v, want ErrNotRunning", err)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
}

func TestRunNow(t *testing.T) {
	s := New(slog.Default())
	release := make(chan struct{})
	done := make(chan struct{}, 1)

	if err := s.Register(Job{
		Name:     "manual",
		Interval: time.Hour,
		Handler: func(context.Context) error {
			<-release
			done <- struct{}{}
			return nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := s.RunNow("manual"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("RunNow before Start error = %v, want ErrNotRunning", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	runID, err := s.RunNow("manual")
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if runID == "" {
		t.Error("expected run id")
	}
	if _, err := s.RunNow("manual"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second RunNow error = %v, want ErrAlreadyRunning", err)
	}
	if _, err := s.RunNow("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(missing) error = %v, want ErrUnknownJob", err)
	}

	close(release)
	<-done
	waitFor(t, time.Second, func() bool { return !s.Status()[0].Running })

	st := s.Status()[0]
	if st.LastRunID != runID || st.Runs != 1 {
		t.Errorf("status = %+v, want run %s recorded", st, runID)
	}
}

func TestCronJobSchedulesNextRun(t *testing.T) {
	s := New(slog.Default())
	if err := s.Register(Job{
		Name:    "nightly",
		Cron:    "0 3 * * *",
		Handler: func(context.Context) error { return nil },
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return s.Status()[0].NextRun != nil })
	st := s.Status()[0]
	if st.Schedule != "0 3 * * *" {
		t.Errorf("Schedule = %q", st.Schedule)
	}
	next := st.NextRun.Local()
	if next.Hour() != 3 || next.Minute() != 0 || !next.After(time.Now()) {
		t.Errorf("NextRun = %s, want next 03:00", next)
	}
}

func TestJobFor(t *testing.T) {
	noop := func(context.Context) error { return nil }

	job, err := JobFor("a", "90s", noop)
	if err != nil {
		t.Fatalf("JobFor: %v", err)
	}
	if job.Interval != 90*time.Second || job.Cron != "" {
		t.Errorf("job = %+v, want 90s interval", job)
	}

	job, err = JobFor("b", "@hourly", noop)
	if err != nil {
		t.Fatalf("JobFor: %v", err)
	}
	if job.Cron != "@hourly" || job.Interval != 0 {
		t.Errorf("job = %+v, want cron", job)
	}

	for _, spec := range []string{"0s", "-5m", "not a schedule", ""} {
		if _, err := JobFor("c", spec, noop); err == nil {
			t.Errorf("JobFor(%q) expected error", spec)
		}
	}
}

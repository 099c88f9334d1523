package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"whbot/internal/metrics"
	logx "whbot/pkg/logx"
)

// ErrShutdownTimeout is returned by Stop when running jobs outlive the shutdown bound.
var ErrShutdownTimeout = errors.New("scheduler: jobs still running at shutdown timeout")

type Job struct {
	Name     string
	Schedule string
	// FirstRun delays the first run of an interval job; <= 0 waits one interval.
	FirstRun time.Duration
	// Detached runs are not cancelled by Stop.
	Detached bool
	Run      func(ctx context.Context) error
}

type Config struct {
	// Timezone is the location cron expressions are evaluated in. Empty means local.
	Timezone        string
	ShutdownTimeout time.Duration
}

type Scheduler struct {
	cfg Config
	log logx.Logger
	loc *time.Location
	now func() time.Time

	mu       sync.Mutex
	jobs     []Job
	specs    []ParsedSpec
	c        *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	detached context.Context
}

func New(cfg Config, log logx.Logger) (*Scheduler, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone: %w", err)
		}
		loc = l
	}
	return &Scheduler{cfg: cfg, log: log, loc: loc, now: time.Now}, nil
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) error {
	if strings.TrimSpace(job.Name) == "" {
		return errors.New("scheduler: job name required")
	}
	if job.Run == nil {
		return fmt.Errorf("scheduler: job %s has no run func", job.Name)
	}
	spec, err := ParseSchedule(job.Schedule)
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return fmt.Errorf("scheduler: job %s added after start", job.Name)
	}
	for _, j := range s.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("scheduler: duplicate job %s", job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	s.specs = append(s.specs, spec)
	return nil
}

// Start begins triggering. ctx scopes non-detached runs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.detached = context.WithoutCancel(ctx)

	now := s.now()
	for i, job := range s.jobs {
		spec := s.specs[i]
		fn := cron.FuncJob(s.wrap(job))
		switch spec.Kind {
		case SpecCron:
			if _, err := c.AddJob(spec.Cron, fn); err != nil {
				s.cancel()
				return fmt.Errorf("scheduler: job %s: %w", job.Name, err)
			}
		case SpecInterval:
			first := job.FirstRun
			if first <= 0 {
				first = spec.Every
			}
			c.Schedule(delayedEvery{first: now.Add(first), every: spec.Every}, fn)
		}
		s.log.Info("job scheduled",
			logx.String("job", job.Name),
			logx.String("schedule", job.Schedule),
			logx.Bool("detached", job.Detached),
		)
	}

	c.Start()
	s.c = c
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.jobs)))
	return nil
}

// Stop halts triggering, cancels non-detached runs and waits for running jobs
// up to ShutdownTimeout or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	start := time.Now()
	cancel()
	done := c.Stop()

	t := time.NewTimer(s.cfg.ShutdownTimeout)
	defer t.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
		return nil
	case <-t.C:
		s.log.Warn("scheduler stop timed out", logx.Duration("timeout", s.cfg.ShutdownTimeout))
		return ErrShutdownTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runContext(job Job) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.Detached {
		return s.detached
	}
	return s.ctx
}

func (s *Scheduler) wrap(job Job) func() {
	log := s.log.With(logx.String("job", job.Name))
	return func() {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				metrics.JobRuns.WithLabelValues(job.Name, "panic").Inc()
				log.Error("job panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()

		if err := job.Run(s.runContext(job)); err != nil {
			metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
			log.Error("job failed", logx.Err(err), logx.Duration("took", time.Since(start)))
			return
		}
		metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()
		log.Debug("job finished", logx.Duration("took", time.Since(start)))
	}
}

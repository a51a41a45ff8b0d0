package scheduler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JobCategory classifies jobs for semaphore-based concurrency limits.
type JobCategory string

const (
	CategoryLLM     JobCategory = "llm"
	CategoryIO      JobCategory = "io"
	CategoryDefault JobCategory = "default"
)

// Run is what a Job does when its cron expression matches a tick. It
// receives the tick time rather than time.Now() so a job's own clock
// stays consistent with the scheduler's.
type Run func(ctx context.Context, tick time.Time) error

// Job defines a schedulable unit of work: the embedding worker's retry
// sweep, the segmenter's batch pass, the extractor, the commitment
// reminder scan, and the data-quality auditor all register one of these
// rather than each running their own ticker.
type Job struct {
	Name     string
	Cron     *CronExpr
	Category JobCategory
	Run      Run
}

// Config holds scheduler settings.
type Config struct {
	Enabled        bool          `envconfig:"ENABLED"`
	TickInterval   time.Duration `envconfig:"TICK_INTERVAL" default:"1m"`
	MaxConcLLM     int           `envconfig:"MAX_CONC_LLM" default:"3"`
	MaxConcIO      int           `envconfig:"MAX_CONC_IO" default:"8"`
	MaxConcDefault int           `envconfig:"MAX_CONC_DEFAULT" default:"5"`
	LockPath       string        `envconfig:"LOCK_PATH"`
}

// DefaultConfig returns sensible scheduler defaults.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Enabled:        true,
		TickInterval:   60 * time.Second,
		MaxConcLLM:     3,
		MaxConcIO:      8,
		MaxConcDefault: 5,
		LockPath:       filepath.Join(home, ".pkgraph", "scheduler.lock"),
	}
}

// Scheduler manages job registration and minute-resolution tick dispatch,
// the shape every long-running pipeline in this system uses instead of its
// own goroutine-and-ticker (5: "long pipelines run as periodic cron-like
// tasks").
type Scheduler struct {
	cfg        Config
	jobs       map[string]*Job
	mu         sync.RWMutex
	semaphores map[JobCategory]*Semaphore
	lock       *FileLock
}

// New creates a Scheduler. A non-empty LockPath makes concurrent processes
// on the same host cooperate over one flock so only one ticks at a time;
// pass an empty LockPath to run unlocked in a single-process test.
func New(cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 60 * time.Second
	}
	if cfg.MaxConcLLM <= 0 {
		cfg.MaxConcLLM = 3
	}
	if cfg.MaxConcIO <= 0 {
		cfg.MaxConcIO = 8
	}
	if cfg.MaxConcDefault <= 0 {
		cfg.MaxConcDefault = 5
	}

	var lock *FileLock
	if cfg.LockPath != "" {
		lock = NewFileLock(cfg.LockPath)
	}

	return &Scheduler{
		cfg:  cfg,
		jobs: make(map[string]*Job),
		semaphores: map[JobCategory]*Semaphore{
			CategoryLLM:     NewSemaphore(cfg.MaxConcLLM),
			CategoryIO:      NewSemaphore(cfg.MaxConcIO),
			CategoryDefault: NewSemaphore(cfg.MaxConcDefault),
		},
		lock: lock,
	}
}

// Register adds a job to the scheduler.
func (s *Scheduler) Register(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = job
	slog.Info("scheduler job registered", "name", job.Name, "category", job.Category)
}

// Unregister removes a job by name.
func (s *Scheduler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
}

// Jobs returns the current registered jobs (snapshot).
func (s *Scheduler) Jobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// Run starts the scheduler tick loop. Blocks until context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started", "tick", s.cfg.TickInterval, "jobs", len(s.jobs))
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return ctx.Err()
		case t := <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

// tick is called every TickInterval. Acquires the global file lock (when
// configured), then dispatches any matching jobs.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if s.lock != nil {
		acquired, err := s.lock.TryLock()
		if err != nil {
			slog.Warn("scheduler lock error", "error", err)
			return
		}
		if !acquired {
			slog.Debug("scheduler tick skipped: lock held by another process")
			return
		}
		defer s.lock.Unlock()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		if !job.Cron.Matches(now) {
			continue
		}
		s.dispatch(ctx, job, now)
	}
}

// dispatch runs a job's Run func if a semaphore slot for its category is
// available, asynchronously so one slow job never delays the tick loop.
func (s *Scheduler) dispatch(ctx context.Context, job *Job, now time.Time) {
	sem := s.semaphores[job.Category]
	if sem == nil {
		sem = s.semaphores[CategoryDefault]
	}

	if !sem.TryAcquire() {
		slog.Warn("scheduler job skipped: concurrency limit", "job", job.Name, "category", job.Category)
		return
	}

	slog.Info("scheduler dispatching job", "job", job.Name)

	go func() {
		defer sem.Release()
		if err := job.Run(ctx, now); err != nil {
			slog.Error("scheduler job failed", "job", job.Name, "error", err)
		}
	}()
}

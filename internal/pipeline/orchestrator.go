package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Job is a named unit of background work. A job with an empty Schedule only
// runs when triggered.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// cronParser accepts the six-field (seconds first) expressions used in config,
// plus descriptors such as @hourly.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Orchestrator schedules pipeline jobs and runs manual triggers. Every run
// holds a distributed lock keyed by the job name so that only one worker
// instance executes a job at a time.
type Orchestrator struct {
	jobs    map[string]Job
	locks   domain.LockManager
	lockTTL time.Duration
	trigger chan string
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator with no jobs registered.
func NewOrchestrator(locks domain.LockManager, lockTTL time.Duration, logger *slog.Logger) *Orchestrator {
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &Orchestrator{
		jobs:    make(map[string]Job),
		locks:   locks,
		lockTTL: lockTTL,
		trigger: make(chan string, 8),
		logger:  logger,
	}
}

// Register adds j. The schedule is parsed up front so a bad expression fails
// at startup rather than silently never firing.
func (o *Orchestrator) Register(j Job) error {
	if j.Name == "" || j.Run == nil {
		return fmt.Errorf("pipeline: job needs a name and a func: %w", domain.ErrInvalidInput)
	}
	if _, dup := o.jobs[j.Name]; dup {
		return fmt.Errorf("pipeline: job %s: %w", j.Name, domain.ErrAlreadyExists)
	}
	if j.Schedule != "" {
		if _, err := cronParser.Parse(j.Schedule); err != nil {
			return fmt.Errorf("pipeline: job %s schedule %q: %w", j.Name, j.Schedule, err)
		}
	}
	o.jobs[j.Name] = j
	return nil
}

// Jobs returns the registered job names in alphabetical order.
func (o *Orchestrator) Jobs() []string {
	names := make([]string, 0, len(o.jobs))
	for n := range o.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Trigger queues name to run as soon as the worker loop is free. It does not
// wait for the job to finish.
func (o *Orchestrator) Trigger(name string) error {
	if _, ok := o.jobs[name]; !ok {
		return fmt.Errorf("pipeline: job %q: %w", name, domain.ErrNotFound)
	}
	select {
	case o.trigger <- name:
		return nil
	default:
		return fmt.Errorf("pipeline: trigger queue full: %w", domain.ErrRateLimited)
	}
}

// RunJob executes name once under its lock. It returns domain.ErrLockHeld
// when another instance is already running it.
func (o *Orchestrator) RunJob(ctx context.Context, name string) error {
	j, ok := o.jobs[name]
	if !ok {
		return fmt.Errorf("pipeline: job %q: %w", name, domain.ErrNotFound)
	}
	unlock, err := o.locks.Acquire(ctx, "job:"+name, o.lockTTL)
	if err != nil {
		return fmt.Errorf("pipeline: lock %s: %w", name, err)
	}
	defer unlock()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		return fmt.Errorf("pipeline: %s: %w", name, err)
	}
	o.logger.InfoContext(ctx, "pipeline: job finished",
		slog.String("job", name),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, name string) {
	err := o.RunJob(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLockHeld):
		o.logger.DebugContext(ctx, "pipeline: job already running elsewhere", slog.String("job", name))
	case ctx.Err() != nil:
	default:
		o.logger.ErrorContext(ctx, "pipeline: job failed",
			slog.String("job", name),
			slog.String("error", err.Error()),
		)
	}
}

// Run starts the cron scheduler and serves manual triggers until ctx is
// cancelled. Scheduled runs use the cron's own goroutines; triggers run on the
// calling goroutine.
func (o *Orchestrator) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC))
	for _, name := range o.Jobs() {
		j := o.jobs[name]
		if j.Schedule == "" {
			continue
		}
		if _, err := c.AddFunc(j.Schedule, func() { o.execute(ctx, j.Name) }); err != nil {
			return fmt.Errorf("pipeline: schedule %s: %w", j.Name, err)
		}
		o.logger.Info("pipeline: job scheduled",
			slog.String("job", j.Name),
			slog.String("schedule", j.Schedule),
		)
	}

	c.Start()
	o.logger.Info("pipeline orchestrator started", slog.Int("jobs", len(o.jobs)))

	for {
		select {
		case <-ctx.Done():
			stopped := c.Stop()
			<-stopped.Done()
			o.logger.Info("pipeline orchestrator stopped")
			return nil
		case name := <-o.trigger:
			o.logger.Info("pipeline: manual trigger", slog.String("job", name))
			o.execute(ctx, name)
		}
	}
}

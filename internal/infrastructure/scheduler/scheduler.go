// Package scheduler runs periodic background jobs for the Campus Connect
// worker, such as the scheduled leaderboard rebuild.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/campus-connect/campus-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler
	// stops or the job timeout elapses.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after t.
	Next(t time.Time) time.Time

	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Skipped     bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("scheduler: job cannot be nil")
	ErrNilSchedule             = errors.New("scheduler: schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("scheduler: job already exists")
	ErrJobNotFound             = errors.New("scheduler: job not found")
	ErrJobRunning              = errors.New("scheduler: job is already running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
	ErrSchedulerNotRunning     = errors.New("scheduler: not running")
)

// ErrSkipped is returned by a job that decided not to run this time, for
// example because it is switched off or another worker holds its lock.
var ErrSkipped = errors.New("scheduler: job skipped")

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs. A job never overlaps with
// itself: a tick that finds it still running leaves it alone.
type Scheduler struct {
	mu sync.RWMutex

	log          *logger.Logger
	timezone   *time.Location
	tick       time.Duration
	jobTimeout time.Duration
	now        func() time.Time

	jobs      map[string]*scheduledJob
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
	metrics   *Metrics
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	inFlight  bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
	last      *JobResult
}

// Config contains configuration for the Scheduler.
type Config struct {
	Logger   *logger.Logger
	Timezone *time.Location

	// TickInterval is how often due jobs are checked.
	TickInterval time.Duration

	// JobTimeout bounds a single run. Zero means no bound.
	JobTimeout time.Duration
}

// DefaultConfig returns a one-second tick in UTC.
func DefaultConfig() Config {
	return Config{
		Timezone:     time.UTC,
		TickInterval: time.Second,
		JobTimeout:   5 * time.Minute,
	}
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = def.Timezone
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	return &Scheduler{
		log:        cfg.Logger.With(logger.Component("scheduler")),
		timezone:   cfg.Timezone,
		tick:       cfg.TickInterval,
		jobTimeout: cfg.JobTimeout,
		now:        time.Now,
		jobs:       make(map[string]*scheduledJob),
		metrics:    NewMetrics(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// REGISTRATION
// ─────────────────────────────────────────────────────────────────────────────

// Register adds a job with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(s.now().In(s.timezone)),
	}
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.Time("next_run", sj.nextRun),
	)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// LIFECYCLE
// ─────────────────────────────────────────────────────────────────────────────

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = s.now()
	jobs := len(s.jobs)
	s.mu.Unlock()

	s.log.Info("scheduler started", logger.Int("jobs", jobs))

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped", logger.Duration("uptime", time.Since(s.startedAt)))
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runDue()
		}
	}
}

// runDue claims every due job under the lock and starts it.
func (s *Scheduler) runDue() {
	now := s.now().In(s.timezone)

	s.mu.Lock()
	var due []*scheduledJob
	for _, sj := range s.jobs {
		if sj.inFlight || sj.nextRun.IsZero() || now.Before(sj.nextRun) {
			continue
		}
		sj.inFlight = true
		sj.nextRun = sj.schedule.Next(now)
		due = append(due, sj)
	}
	ctx := s.ctx
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj)
		}(sj)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// EXECUTION
// ─────────────────────────────────────────────────────────────────────────────

// RunNow executes a job immediately, ignoring its schedule. It fails with
// ErrJobRunning if the job is already in flight.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.Lock()
	sj, ok := s.jobs[jobName]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	if sj.inFlight {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, jobName)
	}
	sj.inFlight = true
	s.mu.Unlock()

	result := s.execute(ctx, sj)
	return &result, result.Error
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) JobResult {
	name := sj.job.Name()
	log := s.log.With(logger.String("job", name))

	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	started := s.now()
	err := s.safeRun(ctx, sj.job)
	completed := s.now()

	result := JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
		Success:     err == nil,
		Error:       err,
	}
	if errors.Is(err, ErrSkipped) {
		result.Success, result.Skipped, result.Error = true, true, nil
	}

	s.metrics.RecordExecution(name, result.Duration, result.Success, result.Skipped)

	s.mu.Lock()
	sj.inFlight = false
	sj.lastRun = started
	sj.runCount++
	if !result.Success {
		sj.failCount++
	}
	sj.last = &result
	s.mu.Unlock()

	switch {
	case result.Skipped:
		log.Debug("job skipped", logger.Err(err))
	case result.Error != nil:
		log.Error("job failed", logger.Latency(result.Duration), logger.Err(result.Error))
	default:
		log.Info("job completed", logger.Latency(result.Duration))
	}
	return result
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Running     bool       `json:"running"`
	Schedule    string     `json:"schedule"`
	LastRun     time.Time  `json:"lastRun"`
	NextRun     time.Time  `json:"nextRun"`
	RunCount    int64      `json:"runCount"`
	FailCount   int64      `json:"failCount"`
	LastResult  *JobResult `json:"-"`
}

// ListJobs returns every registered job sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Running:     sj.inFlight,
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			NextRun:     sj.nextRun,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
			LastResult:  sj.last,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Metrics returns the scheduler metrics.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// LogStatus writes one line per registered job plus the execution totals.
func (s *Scheduler) LogStatus() {
	for _, info := range s.ListJobs() {
		fields := []logger.Field{
			logger.String("job", info.Name),
			logger.String("schedule", info.Schedule),
			logger.Int64("runs", info.RunCount),
			logger.Int64("failures", info.FailCount),
			logger.Time("next_run", info.NextRun),
		}
		if info.LastResult != nil && info.LastResult.Error != nil {
			fields = append(fields, logger.String("last_error", info.LastResult.Error.Error()))
		}
		s.log.Info("job status", fields...)
	}

	snap := s.metrics.Snapshot()
	s.log.Info("scheduler totals",
		logger.Int64("executions", snap.TotalExecutions),
		logger.Int64("failures", snap.TotalFailures),
		logger.Int64("skips", snap.TotalSkips),
		logger.Duration("avg_duration", snap.AverageDuration),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics counts job executions.
type Metrics struct {
	mu sync.RWMutex

	executions int64
	successes  int64
	failures   int64
	skips      int64
	duration   time.Duration
	byJob      map[string]int64
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{byJob: make(map[string]int64)}
}

// RecordExecution records one run.
func (m *Metrics) RecordExecution(job string, d time.Duration, success, skipped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions++
	m.duration += d
	m.byJob[job]++
	switch {
	case skipped:
		m.skips++
	case success:
		m.successes++
	default:
		m.failures++
	}
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	TotalExecutions int64         `json:"totalExecutions"`
	TotalSuccesses  int64         `json:"totalSuccesses"`
	TotalFailures   int64         `json:"totalFailures"`
	TotalSkips      int64         `json:"totalSkips"`
	AverageDuration time.Duration `json:"averageDuration"`
}

// Snapshot returns current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avg time.Duration
	if m.executions > 0 {
		avg = m.duration / time.Duration(m.executions)
	}
	return MetricsSnapshot{
		TotalExecutions: m.executions,
		TotalSuccesses:  m.successes,
		TotalFailures:   m.failures,
		TotalSkips:      m.skips,
		AverageDuration: avg,
	}
}

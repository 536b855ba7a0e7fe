package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

// JobFunc is the unit of scheduled work.
type JobFunc func(ctx context.Context) error

// JobStatus reports one job for the admin surface.
type JobStatus struct {
	Name      string     `json:"name"`
	Spec      string     `json:"spec"`
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

type job struct {
	name string
	spec string
	fn   JobFunc

	mu      sync.Mutex
	running bool
	lastRun *time.Time
	lastErr error

	entryID cron.EntryID
}

// tryAcquire marks the job running unless a run is already in flight.
func (j *job) tryAcquire() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	return true
}

func (j *job) finish(startedAt time.Time, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.running = false
	j.lastRun = &startedAt
	j.lastErr = err
}

// Scheduler runs named background jobs on cron specs. Scheduled ticks and
// manual triggers share a per-job guard so at most one run per job is in
// flight.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*job
}

// New builds an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// Register adds a named job on the given cron spec.
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{name: name, spec: spec, fn: fn}
	entryID, err := s.cron.AddFunc(spec, func() { s.run(j, "schedule") })
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	j.entryID = entryID
	s.jobs[name] = j
	s.logger.Info("job registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start begins cron ticking.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunNow triggers a job outside its schedule. Unknown names return NOT_FOUND;
// a job already in flight returns CONFLICT.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %s not found", name))
	}
	if !j.tryAcquire() {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("job %s is already running", name))
	}
	go s.execute(j, "manual")
	return nil
}

// Jobs reports every registered job with its last and next run.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		status := JobStatus{
			Name:    j.name,
			Spec:    j.spec,
			Running: j.running,
			LastRun: j.lastRun,
		}
		if j.lastErr != nil {
			status.LastError = j.lastErr.Error()
		}
		j.mu.Unlock()
		entry := s.cron.Entry(j.entryID)
		if !entry.Next.IsZero() {
			next := entry.Next
			status.NextRun = &next
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (s *Scheduler) run(j *job, trigger string) {
	if !j.tryAcquire() {
		s.logger.Warn("skipping tick, job still running", zap.String("job", j.name))
		return
	}
	s.execute(j, trigger)
}

// execute expects the job guard to be held and releases it when done.
func (s *Scheduler) execute(j *job, trigger string) {
	startedAt := time.Now().UTC()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		j.finish(startedAt, err)
		if err != nil {
			s.logger.Error("job failed",
				zap.String("job", j.name),
				zap.String("trigger", trigger),
				zap.Duration("duration", time.Since(startedAt)),
				zap.Error(err))
			return
		}
		s.logger.Info("job completed",
			zap.String("job", j.name),
			zap.String("trigger", trigger),
			zap.Duration("duration", time.Since(startedAt)))
	}()
	err = j.fn(context.Background())
}

// Package service manages extraction runs started from the API. Runs execute
// in the background and are tracked as in-memory jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/cc-transaction-logger/internal/application/extraction"
)

// JobStatus represents the current state of a run job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

const (
	// DefaultJobMaxDuration is how long a job may run before it is marked
	// failed by the background cleanup.
	DefaultJobMaxDuration = 30 * time.Minute

	// DefaultJobRetention is how long finished jobs are kept in memory.
	DefaultJobRetention = 24 * time.Hour
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrNotCancelable = errors.New("job cannot be cancelled")
)

// Executor runs one extraction run.
type Executor interface {
	Run(ctx context.Context, opts extraction.RunOptions) (*extraction.RunReport, error)
}

// RunRequest holds parameters for starting a run.
type RunRequest struct {
	Merchants    []string
	LookbackDays int
	Limit        int
	DryRun       bool
}

// Job is a snapshot of a running or finished run.
type Job struct {
	ID          string
	Status      JobStatus
	Request     RunRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Report      *extraction.RunReport
	Error       string
}

type jobState struct {
	Job
	cancel context.CancelFunc
}

// RunService starts runs in the background, one at a time.
type RunService struct {
	executor Executor
	logger   *slog.Logger

	jobs      map[string]*jobState
	jobsMutex sync.RWMutex

	runLock sync.Mutex

	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewRunService creates a run service.
func NewRunService(executor Executor, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		executor: executor,
		logger:   logger,
		jobs:     make(map[string]*jobState),
	}
}

// StartRun starts a run asynchronously and returns its job ID, which is also
// the ID the run is recorded under. The job does not inherit ctx, so it keeps
// running after the HTTP request that started it returns. Use CancelJob to
// stop it.
func (s *RunService) StartRun(_ context.Context, req RunRequest) (string, error) {
	if !s.runLock.TryLock() {
		return "", ErrRunInProgress
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	job := &jobState{
		Job: Job{
			ID:        uuid.NewString(),
			Status:    StatusPending,
			Request:   req,
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}

	s.jobsMutex.Lock()
	s.jobs[job.ID] = job
	s.jobsMutex.Unlock()

	go s.runJob(jobCtx, job.ID, req)

	s.logger.Info("run job started",
		"job_id", job.ID,
		"merchants", req.Merchants,
		"dry_run", req.DryRun,
	)
	return job.ID, nil
}

func (s *RunService) runJob(ctx context.Context, id string, req RunRequest) {
	defer s.runLock.Unlock()

	s.setStatus(id, StatusRunning)

	report, err := s.executor.Run(ctx, extraction.RunOptions{
		RunID:        id,
		Merchants:    req.Merchants,
		LookbackDays: req.LookbackDays,
		Limit:        req.Limit,
		DryRun:       req.DryRun,
	})

	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status == StatusCancelled || job.Status == StatusFailed {
		return
	}

	now := time.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		s.logger.Error("run job failed", "job_id", id, "error", err)
		return
	}

	job.Status = StatusCompleted
	job.Report = report
	s.logger.Info("run job completed", "job_id", id, "inserted", report.Inserted)
}

func (s *RunService) setStatus(id string, status JobStatus) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, ok := s.jobs[id]; ok && job.Status == StatusPending {
		job.Status = status
	}
}

// GetJob returns a snapshot of a job.
func (s *RunService) GetJob(id string) (*Job, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	snapshot := job.Job
	return &snapshot, nil
}

// ListJobs returns snapshots of every tracked job, newest first.
func (s *RunService) ListJobs() []Job {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs
}

// CancelJob cancels a pending or running job.
func (s *RunService) CancelJob(id string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("%w: status=%s", ErrNotCancelable, job.Status)
	}

	job.cancel()
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now

	s.logger.Info("run job cancelled", "job_id", id)
	return nil
}

// CleanupOldJobs removes finished jobs that completed before maxAge ago.
func (s *RunService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old run jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed cancels and fails jobs running longer than
// maxDuration. The run lock is released when the job goroutine returns.
func (s *RunService) MarkStaleJobsAsFailed(maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0
	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}
		elapsed := now.Sub(job.StartedAt)
		if elapsed <= maxDuration {
			continue
		}

		job.cancel()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Sprintf("exceeded max duration of %v (started %v ago)", maxDuration, elapsed.Round(time.Second))
		s.logger.Warn("marked stale run job as failed", "job_id", id, "started_at", job.StartedAt)
		marked++
	}
	return marked
}

// StartBackgroundCleanup periodically fails stale jobs and drops old ones.
// Call StopBackgroundCleanup to stop it.
func (s *RunService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.cleanupStop:
				return
			case <-ticker.C:
				if n := s.MarkStaleJobsAsFailed(DefaultJobMaxDuration); n > 0 {
					s.logger.Info("marked stale run jobs as failed", "count", n)
				}
				s.CleanupOldJobs(DefaultJobRetention)
			}
		}
	}()
}

// StopBackgroundCleanup stops the cleanup goroutine and waits for it to exit.
func (s *RunService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
	s.cleanupStop = nil
}

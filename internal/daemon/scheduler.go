package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler wraps gocron for periodic rebuild jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	enqueuer  interface {
		Enqueue(job *Job) error
	}
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// SetEnqueuer injects the queue/job enqueuer.
func (s *Scheduler) SetEnqueuer(e interface{ Enqueue(job *Job) error }) { s.enqueuer = e }

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// SchedulePeriodicBuild schedules a periodic rebuild of the given target.
// Returns the job ID for later management.
func (s *Scheduler) SchedulePeriodicBuild(interval time.Duration, target string) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.executeBuild, target),
		gocron.WithName(fmt.Sprintf("%s-rebuild", target)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic build job: %w", err)
	}
	return job.ID().String(), nil
}

// executeBuild is called by gocron to enqueue a scheduled build.
func (s *Scheduler) executeBuild(target string) {
	if s.enqueuer == nil {
		slog.Error("Scheduler enqueuer not set")
		return
	}

	job := NewJob(target, JobTypeScheduled, PriorityNormal)
	slog.Info("Enqueueing scheduled build", "job_id", job.ID, "target", target)

	if err := s.enqueuer.Enqueue(job); err != nil {
		slog.Error("Failed to enqueue scheduled build", "job_id", job.ID, "error", err)
	}
}

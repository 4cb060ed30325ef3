package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sphinxmk/internal/build"
	"git.home.luguber.info/inful/sphinxmk/internal/metrics"
)

// JobType represents what triggered a build job.
type JobType string

const (
	JobTypeManual    JobType = "manual"    // requested via the status API
	JobTypeScheduled JobType = "scheduled" // periodic rebuild
	JobTypeWatch     JobType = "watch"     // source tree change
)

// JobPriority orders jobs in the queue.
type JobPriority int

const (
	PriorityLow    JobPriority = 1
	PriorityNormal JobPriority = 2
	PriorityHigh   JobPriority = 3
)

// JobStatus represents the current status of a build job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Job is a single queued build.
type Job struct {
	ID          string        `json:"id"`
	Target      string        `json:"target"`
	Type        JobType       `json:"type"`
	Priority    JobPriority   `json:"priority"`
	Status      JobStatus     `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// NewJob creates a queued job with a fresh identifier.
func NewJob(target string, jobType JobType, priority JobPriority) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Target:    target,
		Type:      jobType,
		Priority:  priority,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Builder executes a build job and returns a build result.
type Builder interface {
	Build(ctx context.Context, job *Job) (*build.Result, error)
}

// Queue is a priority-ordered build queue processed by a single worker.
// One build at a time matches the sequential nature of sphinx-build output
// directories.
type Queue struct {
	mu       sync.Mutex
	pending  []*Job
	history  []*Job // completed jobs, newest last, bounded
	signal   chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	builder  Builder
	recorder metrics.Recorder
	maxKeep  int
}

// NewQueue creates a queue that hands jobs to the given builder.
func NewQueue(builder Builder) *Queue {
	return &Queue{
		signal:   make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		builder:  builder,
		recorder: metrics.NoopRecorder{},
		maxKeep:  100,
	}
}

// Stop makes Run return after the in-flight job (if any) finishes. Safe to
// call more than once and independent of the Run context.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopChan) })
}

func (q *Queue) stopped() bool {
	select {
	case <-q.stopChan:
		return true
	default:
		return false
	}
}

// WithRecorder injects a metrics recorder.
func (q *Queue) WithRecorder(rec metrics.Recorder) *Queue {
	if rec != nil {
		q.recorder = rec
	}
	return q
}

// Enqueue adds a job. Duplicate pending jobs for the same target and type are
// coalesced so a burst of watch events produces one rebuild.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, pending := range q.pending {
		if pending.Target == job.Target && pending.Type == job.Type {
			slog.Debug("Coalescing duplicate queued job", "target", job.Target, "type", job.Type)
			return nil
		}
	}

	job.Status = JobStatusQueued
	q.pending = append(q.pending, job)
	sort.SliceStable(q.pending, func(i, j int) bool {
		if q.pending[i].Priority != q.pending[j].Priority {
			return q.pending[i].Priority > q.pending[j].Priority
		}
		return q.pending[i].CreatedAt.Before(q.pending[j].CreatedAt)
	})
	q.recorder.SetQueueDepth(len(q.pending))

	slog.Info("Job enqueued", "job_id", job.ID, "target", job.Target, "type", job.Type, "depth", len(q.pending))

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Run processes jobs until the context is canceled or Stop is called.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-q.signal:
		}
		for {
			job := q.next()
			if job == nil {
				break
			}
			q.process(ctx, job)
			if ctx.Err() != nil || q.stopped() {
				return
			}
		}
	}
}

func (q *Queue) next() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	q.recorder.SetQueueDepth(len(q.pending))
	return job
}

// process runs one job. Job field mutations happen under q.mu: Snapshot is
// served concurrently from the status endpoint.
func (q *Queue) process(ctx context.Context, job *Job) {
	now := time.Now()
	q.mu.Lock()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	q.mu.Unlock()

	result, err := q.builder.Build(ctx, job)

	done := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	job.CompletedAt = &done
	job.Duration = done.Sub(now)

	switch {
	case ctx.Err() != nil:
		job.Status = JobStatusCanceled
	case err != nil:
		job.Status = JobStatusFailed
		job.Error = err.Error()
	default:
		job.Status = JobStatusCompleted
	}
	if result != nil && result.Status == build.StatusCanceled {
		job.Status = JobStatusCanceled
	}

	q.history = append(q.history, job)
	if len(q.history) > q.maxKeep {
		q.history = q.history[len(q.history)-q.maxKeep:]
	}
}

// Snapshot returns value copies of pending and completed jobs for the status
// endpoint, so callers never share mutable state with the worker.
func (q *Queue) Snapshot() (pending, completed []Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending = make([]Job, 0, len(q.pending))
	for _, job := range q.pending {
		pending = append(pending, *job)
	}
	completed = make([]Job, 0, len(q.history))
	for _, job := range q.history {
		completed = append(completed, *job)
	}
	return pending, completed
}

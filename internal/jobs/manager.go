// Package jobs tracks queued extraction runs for the HTTP service and feeds
// them, one at a time, to the run worker.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/bidgrid-scraper/internal/orchestrator"
	"github.com/maltedev/bidgrid-scraper/internal/queue"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Job struct {
	ID         uuid.UUID              `json:"id"`
	Categories []string               `json:"categories"`
	Status     Status                 `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Stats      *orchestrator.RunStats `json:"stats,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Runner executes one extraction run over the given categories.
type Runner interface {
	Run(ctx context.Context, categories []string) (*orchestrator.RunStats, error)
}

type Manager struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*Job
	queue  queue.Queue
	runner Runner
	logger *slog.Logger
}

func NewManager(q queue.Queue, runner Runner, logger *slog.Logger) *Manager {
	return &Manager{
		jobs:   make(map[uuid.UUID]*Job),
		queue:  q,
		runner: runner,
		logger: logger.With("component", "jobs"),
	}
}

// Enqueue registers a run and places it on the worker queue.
func (m *Manager) Enqueue(categories []string) (*Job, error) {
	job := &Job{
		ID:         uuid.New(),
		Categories: categories,
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
	}

	if err := m.queue.Push(&queue.RunRequest{
		ID:         job.ID,
		Categories: categories,
		EnqueuedAt: job.CreatedAt,
	}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("run enqueued", "job_id", job.ID, "categories", categories)
	return job, nil
}

// Get returns a snapshot of the job; the worker keeps mutating the
// original.
func (m *Manager) Get(id uuid.UUID) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

func (m *Manager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		list = append(list, &copied)
	}
	return list
}

// QueueDepth reports how many runs wait behind the current one.
func (m *Manager) QueueDepth() int {
	return m.queue.Size()
}

// StartWorker consumes the queue until the context is cancelled. Runs are
// executed strictly sequentially against the shared browser session.
func (m *Manager) StartWorker(ctx context.Context) {
	for {
		req, err := m.queue.Pop(ctx)
		if err != nil {
			if err == queue.ErrQueueClosed || ctx.Err() != nil {
				m.logger.Info("worker stopped")
				return
			}
			m.logger.Error("failed to take run from queue", "error", err)
			continue
		}

		m.execute(ctx, req)
	}
}

func (m *Manager) execute(ctx context.Context, req *queue.RunRequest) {
	now := time.Now()
	m.update(req.ID, func(job *Job) {
		job.Status = StatusRunning
		job.StartedAt = &now
	})
	m.logger.Info("run started", "job_id", req.ID)

	stats, err := m.runner.Run(ctx, req.Categories)

	finished := time.Now()
	m.update(req.ID, func(job *Job) {
		job.FinishedAt = &finished
		job.Stats = stats
		if err != nil {
			job.Status = StatusFailed
			job.Error = err.Error()
		} else {
			job.Status = StatusCompleted
		}
	})

	if err != nil {
		m.logger.Error("run failed", "job_id", req.ID, "error", err)
		return
	}
	m.logger.Info("run completed", "job_id", req.ID, "appended", stats.Appended, "skipped", stats.Skipped)
}

func (m *Manager) update(id uuid.UUID, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}

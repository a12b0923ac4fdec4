package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/bidgrid-scraper/internal/orchestrator"
	"github.com/maltedev/bidgrid-scraper/internal/queue"
)

// fakeRunner records the category sets it ran and can fail on demand.
type fakeRunner struct {
	mu   sync.Mutex
	runs [][]string
	err  error
}

func (r *fakeRunner) Run(ctx context.Context, categories []string) (*orchestrator.RunStats, error) {
	r.mu.Lock()
	r.runs = append(r.runs, categories)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &orchestrator.RunStats{Appended: len(categories)}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func newTestManager(runner Runner) (*Manager, *queue.InMemoryQueue) {
	q := queue.NewInMemoryQueue()
	return NewManager(q, runner, slog.Default()), q
}

func waitForStatus(t *testing.T, m *Manager, id uuid.UUID, want Status) *Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := m.Get(id); ok && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return nil
}

func TestEnqueueRegistersQueuedJob(t *testing.T) {
	m, q := newTestManager(&fakeRunner{})
	defer q.Close()

	job, err := m.Enqueue([]string{"Open"})
	require.NoError(t, err)

	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, []string{"Open"}, job.Categories)
	assert.Equal(t, 1, m.QueueDepth())

	got, ok := m.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)
}

func TestWorkerCompletesJob(t *testing.T) {
	runner := &fakeRunner{}
	m, q := newTestManager(runner)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartWorker(ctx)

	job, err := m.Enqueue([]string{"Open", "Not Awarded"})
	require.NoError(t, err)

	done := waitForStatus(t, m, job.ID, StatusCompleted)
	require.NotNil(t, done.Stats)
	assert.Equal(t, 2, done.Stats.Appended)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
	assert.Equal(t, 1, runner.count())
}

func TestWorkerMarksFailedJob(t *testing.T) {
	runner := &fakeRunner{err: errors.New("grid unreachable")}
	m, q := newTestManager(runner)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartWorker(ctx)

	job, err := m.Enqueue([]string{"Open"})
	require.NoError(t, err)

	failed := waitForStatus(t, m, job.ID, StatusFailed)
	assert.Equal(t, "grid unreachable", failed.Error)
	assert.Nil(t, failed.Stats)
}

func TestWorkerRunsJobsSequentially(t *testing.T) {
	runner := &fakeRunner{}
	m, q := newTestManager(runner)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartWorker(ctx)

	first, err := m.Enqueue([]string{"Open"})
	require.NoError(t, err)
	second, err := m.Enqueue([]string{"Recently Closed"})
	require.NoError(t, err)

	waitForStatus(t, m, first.ID, StatusCompleted)
	waitForStatus(t, m, second.ID, StatusCompleted)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.runs, 2)
	assert.Equal(t, []string{"Open"}, runner.runs[0])
	assert.Equal(t, []string{"Recently Closed"}, runner.runs[1])
}

func TestWorkerStopsWhenQueueCloses(t *testing.T) {
	m, q := newTestManager(&fakeRunner{})

	stopped := make(chan struct{})
	go func() {
		m.StartWorker(context.Background())
		close(stopped)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}

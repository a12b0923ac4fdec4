// Package queue holds extraction runs waiting for the single worker. Runs
// are strictly FIFO: the shared browser session can only service one at a
// time.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("queue is closed")

// RunRequest asks for one extraction run over the given categories.
type RunRequest struct {
	ID         uuid.UUID
	Categories []string
	EnqueuedAt time.Time
}

type Queue interface {
	Push(req *RunRequest) error
	Pop(ctx context.Context) (*RunRequest, error)
	Size() int
	Close() error
}

type InMemoryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	runs   []*RunRequest
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	q := &InMemoryQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *InMemoryQueue) Push(req *RunRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.runs = append(q.runs, req)
	q.cond.Signal()
	return nil
}

// Pop blocks until a request is available, the queue closes, or ctx is
// cancelled. Waiting stays on the calling goroutine; the watcher only
// broadcasts so the loop re-checks ctx.
func (q *InMemoryQueue) Pop(ctx context.Context) (*RunRequest, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.runs) == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q.runs) == 0 {
		return nil, ErrQueueClosed
	}

	req := q.runs[0]
	q.runs = q.runs[1:]
	return req, nil
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.runs)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
	return nil
}

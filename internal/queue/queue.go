// Package queue holds the in-process FIFO of pending job ids. The
// store stays the source of truth; the queue only decides which id the
// worker picks up next. Many goroutines may enqueue, exactly one
// consumer dequeues.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"commentwatch/internal/common"
	"commentwatch/internal/job"
	"commentwatch/internal/store"
)

type Queue struct {
	store store.Store

	mu     sync.Mutex
	ids    []string
	closed bool

	// wake signals the consumer that ids arrived; capacity 1 so
	// producers never block.
	wake chan struct{}
}

func New(st store.Store) *Queue {
	return &Queue{
		store: st,
		wake:  make(chan struct{}, 1),
	}
}

// Enqueue appends a job id. It never blocks; ids are tiny, so the queue
// is unbounded and submission cannot fail here.
func (q *Queue) Enqueue(id string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		slog.Warn("enqueue on closed queue dropped", "job_id", id)
		return
	}
	q.ids = append(q.ids, id)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue blocks until an id is available, the context is canceled, or
// the queue is closed. FIFO order.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if len(q.ids) > 0 {
			id := q.ids[0]
			q.ids = q.ids[1:]
			q.mu.Unlock()
			return id, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return "", common.ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.wake:
		}
	}
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Close stops the queue. A blocked Dequeue returns ErrQueueClosed;
// later Enqueue calls are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Recover rebuilds the queue from the store at startup: every pending
// job is re-enqueued in submission order, and any job interrupted
// mid-processing by a crash is flipped back to pending first. Returns
// the number of recovered jobs.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	jobs, err := q.store.ListUnfinished(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load unfinished jobs: %w", err)
	}

	for _, j := range jobs {
		if j.Status == job.StatusProcessing {
			if _, err := q.store.UpdateJob(ctx, j.ID, (*job.Job).Requeue); err != nil {
				return 0, fmt.Errorf("failed to requeue interrupted job %s: %w", j.ID, err)
			}
			slog.Info("recovered interrupted job", "job_id", j.ID)
		}
		q.Enqueue(j.ID)
	}

	return len(jobs), nil
}

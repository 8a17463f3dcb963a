// Package queue runs notification dispatch asynchronously. Enqueue never
// blocks the caller: when the buffer is full the task is dropped and
// counted, matching the fire-and-forget contract. The durable audit trail
// lives with the dispatcher, not here.
package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/gclavel/assurvie/internal/platform/timeouts"
)

// Task is one unit of asynchronous dispatch work.
type Task func(ctx context.Context)

// Queue fans tasks out to a fixed pool of workers.
type Queue struct {
	tasks    chan Task
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	dropped  metric.Int64Counter
	enqueued metric.Int64Counter

	mu     sync.Mutex
	closed bool
}

// New starts a queue with the given buffer size and worker count.
func New(buffer, workers int) (*Queue, error) {
	if buffer < 1 {
		buffer = 64
	}
	if workers < 1 {
		workers = 2
	}
	meter := otel.Meter("assurvie.notifications")
	dropped, err := meter.Int64Counter("notifications.queue.dropped",
		metric.WithDescription("Tasks dropped because the dispatch queue was full."))
	if err != nil {
		return nil, err
	}
	enqueued, err := meter.Int64Counter("notifications.queue.enqueued",
		metric.WithDescription("Tasks accepted by the dispatch queue."))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:    make(chan Task, buffer),
		cancel:   cancel,
		dropped:  dropped,
		enqueued: enqueued,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	return q, nil
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for task := range q.tasks {
		task(ctx)
	}
}

// Enqueue hands a task to the workers. It returns false when the queue is
// saturated or already closed; the task is then dropped.
func (q *Queue) Enqueue(task Task) bool {
	if task == nil {
		return false
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		q.dropped.Add(context.Background(), 1)
		return false
	}
	select {
	case q.tasks <- task:
		q.enqueued.Add(context.Background(), 1)
		return true
	default:
		q.dropped.Add(context.Background(), 1)
		log.Print("notification queue full, dropping task")
		return false
	}
}

// Close stops accepting tasks and drains the buffer, waiting up to the
// drain timeout before cancelling in-flight work.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.tasks)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeouts.QueueDrain):
		log.Print("notification queue drain timed out")
	}
	q.cancel()
}

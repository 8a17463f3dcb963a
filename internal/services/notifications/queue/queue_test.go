package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnqueueRunsTasksAsync(t *testing.T) {
	t.Parallel()

	q, err := New(8, 2)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer q.Close()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := q.Enqueue(func(ctx context.Context) {
			defer wg.Done()
			ran.Add(1)
		})
		if !ok {
			t.Fatal("enqueue should accept while the buffer has room")
		}
	}
	wg.Wait()
	if got := ran.Load(); got != 5 {
		t.Fatalf("expected 5 tasks to run, got %d", got)
	}
}

func TestEnqueueDropsWhenSaturated(t *testing.T) {
	t.Parallel()

	q, err := New(1, 1)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer q.Close()

	release := make(chan struct{})
	blocked := make(chan struct{})
	q.Enqueue(func(ctx context.Context) {
		close(blocked)
		<-release
	})
	<-blocked

	// The single worker is busy; fill the one-slot buffer.
	q.Enqueue(func(ctx context.Context) {})

	dropped := false
	for i := 0; i < 10; i++ {
		if !q.Enqueue(func(ctx context.Context) {}) {
			dropped = true
			break
		}
	}
	close(release)
	if !dropped {
		t.Fatal("expected saturation to drop instead of block")
	}
}

func TestCloseDrainsPendingTasks(t *testing.T) {
	t.Parallel()

	q, err := New(16, 1)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		q.Enqueue(func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		})
	}
	q.Close()
	if got := ran.Load(); got != 10 {
		t.Fatalf("expected all buffered tasks to run before close, got %d", got)
	}

	if q.Enqueue(func(ctx context.Context) {}) {
		t.Fatal("enqueue after close should drop")
	}
}

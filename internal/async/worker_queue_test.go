package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/docmatch/internal/common"
)

func TestWorkerQueueRunsEveryJob(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	q := NewWorkerQueue(context.Background(), func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.Page] = true
		mu.Unlock()
		return nil
	}, nil, WithWorkers(3), WithQueueSize(2))

	for p := 1; p <= 20; p++ {
		if err := q.Enqueue(context.Background(), Job{Page: p}); err != nil {
			t.Fatalf("Enqueue(%d): %v", p, err)
		}
	}
	q.Shutdown(context.Background())

	if len(seen) != 20 {
		t.Errorf("processed %d jobs, want 20", len(seen))
	}
	if err := q.Enqueue(context.Background(), Job{Page: 21}); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after Shutdown = %v, want ErrClosed", err)
	}
	q.Shutdown(context.Background())
}

func TestWorkerQueueIsolatesFailures(t *testing.T) {
	var (
		mu     sync.Mutex
		failed = map[int]error{}
		ok     atomic.Int32
	)
	q := NewWorkerQueue(context.Background(), func(_ context.Context, job Job) error {
		switch job.Page {
		case 2:
			panic("bad page")
		case 3:
			return errors.New("boom")
		}
		ok.Add(1)
		return nil
	}, nil, WithWorkers(2), WithErrorHandler(func(job Job, err error) {
		mu.Lock()
		failed[job.Page] = err
		mu.Unlock()
	}))

	for p := 1; p <= 5; p++ {
		_ = q.Enqueue(context.Background(), Job{Page: p})
	}
	q.Shutdown(context.Background())

	if ok.Load() != 3 {
		t.Errorf("successful jobs = %d, want 3", ok.Load())
	}
	if len(failed) != 2 || failed[2] == nil || failed[3] == nil {
		t.Errorf("failures = %v, want pages 2 and 3", failed)
	}
	if !errors.Is(failed[2], common.ErrInternal) || errors.Is(failed[3], common.ErrInternal) {
		t.Errorf("only the panic is an internal error: %v", failed)
	}
}

func TestWorkerQueueTaskTimeout(t *testing.T) {
	errs := make(chan error, 1)
	q := NewWorkerQueue(context.Background(), func(ctx context.Context, _ Job) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil, WithWorkers(1), WithTaskTimeout(10*time.Millisecond), WithErrorHandler(func(_ Job, err error) {
		errs <- err
	}))
	_ = q.Enqueue(context.Background(), Job{Page: 1})
	q.Shutdown(context.Background())

	if err := <-errs; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

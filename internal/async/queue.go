package async

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Enqueue after Shutdown has started.
var ErrClosed = errors.New("queue is shutting down")

// Job is one page of a batch run.
type Job struct {
	RunID       string
	Position    int // index into the run's page slice
	Page        int // 1-based page index
	SubmittedAt time.Time
}

// Handler processes one job. It runs on a worker goroutine.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

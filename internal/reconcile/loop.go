// Package reconcile merges asynchronously produced lists into reconciled
// in-memory lists and reports each merge as a positional diff.
//
// All list state is confined to a single Loop goroutine, the equivalent of a
// UI thread. Producers run wherever the caller runs them; only their
// results cross into the loop, where merge, diff and delivery happen as one
// step.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	apperrors "github.com/CristianUrbainski/teammate-android/internal/errors"
)

// loopQueueSize bounds the number of jobs waiting for the loop. Posting
// blocks once it is full.
const loopQueueSize = 64

// Job states. A queued job may be abandoned by its caller; once the loop
// has started it, the caller waits for it to finish.
const (
	jobQueued int32 = iota
	jobStarted
	jobAbandoned
)

type job struct {
	ctx   context.Context
	fn    func()
	done  chan struct{}
	state atomic.Int32
	ran   bool
}

// Loop runs jobs one at a time on a dedicated goroutine.
type Loop struct {
	jobs     chan *job
	stopped  chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Loop{
		jobs:    make(chan *job, loopQueueSize),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Run executes queued jobs until ctx is cancelled. Jobs whose own context
// is already done when they reach the front of the queue are dropped
// without running. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.stopOnce.Do(func() { close(l.stopped) })
			l.drain()

			return ctx.Err()

		case j := <-l.jobs:
			l.run(j)
		}
	}
}

func (l *Loop) run(j *job) {
	defer close(j.done)

	if !j.state.CompareAndSwap(jobQueued, jobStarted) {
		return
	}

	if j.ctx.Err() != nil {
		l.logger.Debug("dropping cancelled job")
		return
	}

	j.fn()
	j.ran = true
}

// drain releases callers still waiting on queued jobs.
func (l *Loop) drain() {
	for {
		select {
		case j := <-l.jobs:
			close(j.done)
		default:
			return
		}
	}
}

func (l *Loop) enqueue(ctx context.Context, fn func()) (*job, error) {
	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}

	select {
	case <-l.stopped:
		return nil, apperrors.ErrLoopStopped
	default:
	}

	select {
	case l.jobs <- j:
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.stopped:
		return nil, apperrors.ErrLoopStopped
	}
}

// Post queues fn without waiting for it to run.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	_, err := l.enqueue(ctx, fn)
	return err
}

// Call queues fn and waits until it has run. If ctx ends while fn is still
// queued, fn never runs and ctx.Err() is returned. If fn has already
// started, Call waits for it and returns nil, so a nil error always means
// fn ran to completion. Calling it from inside a job deadlocks.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	j, err := l.enqueue(ctx, fn)
	if err != nil {
		return err
	}

	select {
	case <-j.done:
		if !j.ran {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return apperrors.ErrLoopStopped
		}

		return nil

	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}

		<-j.done

		if !j.ran {
			return ctx.Err()
		}

		return nil

	case <-l.stopped:
		// The job may have been queued after the final drain.
		if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return apperrors.ErrLoopStopped
		}

		<-j.done

		if !j.ran {
			return apperrors.ErrLoopStopped
		}

		return nil
	}
}

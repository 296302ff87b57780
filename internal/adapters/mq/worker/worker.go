// Package worker drains the feed queue into the sessions.
//
// A single worker applies notifications in arrival order, so feed-driven
// mutations of a session never race each other.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/matchpool/internal/adapters/mq/queue"
	"github.com/okian/matchpool/pkg/logger"
	"github.com/okian/matchpool/pkg/metrics"
)

// Applier applies one live feed notification to the sessions that follow its match.
type Applier interface {
	Apply(ctx context.Context, n queue.Notification) error
}

// Queue defines how the worker receives notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Notification
}

// Worker processes notifications until stopped.
type Worker interface {
	// Run blocks until ctx is cancelled, Shutdown is called or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the in-flight notification.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		applier:  applier,
		name:     "feed-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, n); err != nil {
				w.logger.Warn(ctx, "notification not applied", logger.Error(err))
			}
		}
	}
}

// Shutdown signals the loop to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, n queue.Notification) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.applier.Apply(ctx, n); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("apply %s %s: %w", n.Kind, n.ID, err)
	}
	w.logger.Debug(ctx, "notification applied",
		logger.String("id", n.ID),
		logger.String("match", n.MatchID),
		logger.String("kind", string(n.Kind)),
	)
	return nil
}

package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often the dispatcher checks for due items.
const DefaultPollInterval = time.Minute

// Dispatcher drives the queue on its own timer, independent of the
// pipeline trigger. It polls for due items and dispatches each exactly
// once; a distribution failure marks the item failed and moves on.
// Pipeline stages are never retried from here.
type Dispatcher struct {
	queue    *Queue
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollInterval overrides the polling cadence.
func WithPollInterval(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.interval = d
		}
	}
}

// WithDispatcherClock overrides the dispatcher's time source, for tests.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(dp *Dispatcher) { dp.now = now }
}

// NewDispatcher creates a dispatcher for q.
func NewDispatcher(q *Queue, log *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		queue:    q,
		interval: DefaultPollInterval,
		log:      log,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. Call Stop to shut it down.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop halts the loop and waits for it to exit.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			d.Poll(ctx)
		}
	}
}

// Poll dispatches every currently due item. Exported so tests and the
// force-dispatch path can drive the queue without waiting on the ticker.
func (d *Dispatcher) Poll(ctx context.Context) {
	due := d.queue.DueItems(d.now())
	for _, item := range due {
		if _, err := d.queue.Dispatch(ctx, item.ID); err != nil {
			// Already logged by the queue; the item is marked failed and
			// waits for a manual re-dispatch.
			continue
		}
	}
	if len(due) > 0 {
		d.log.Info("dispatch cycle complete", zap.Int("due_items", len(due)))
	}
}

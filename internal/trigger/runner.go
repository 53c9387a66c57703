// Package trigger connects trigger sources to the pipeline coordinator.
// Scheduled firings and manual requests are both delivered as events on
// a channel; the runner hands each event straight to the coordinator,
// whose run-slot check rejects overlap immediately. Triggers are never
// queued behind an active run.
package trigger

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/content-agent/internal/types"
)

// ErrStopped is returned by Trigger after the runner has shut down.
var ErrStopped = errors.New("trigger runner stopped")

// Starter is the coordinator surface the runner drives.
type Starter interface {
	StartRun(ctx context.Context, kind types.TriggerKind) (*types.Run, error)
}

type runResult struct {
	run *types.Run
	err error
}

// event carries one trigger request. reply is nil for scheduled firings,
// which are fire-and-forget; manual triggers wait on it so a conflict
// surfaces to the caller.
type event struct {
	kind  types.TriggerKind
	reply chan runResult
}

// Runner consumes trigger events and executes each in its own worker.
// Only one run can actually start; a trigger arriving while a run is
// active fails fast with the coordinator's conflict error instead of
// waiting its turn.
type Runner struct {
	starter Starter
	events  chan event
	log     *zap.Logger

	wg   sync.WaitGroup
	stop chan struct{}
	done chan struct{}
}

// NewRunner creates a runner around the coordinator.
func NewRunner(starter Starter, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		starter: starter,
		events:  make(chan event),
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Call Stop to shut it down.
func (r *Runner) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop halts the consumer and waits for any in-flight runs to finish.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case ev := <-r.events:
			// Execute off the consumer loop so the loop stays responsive
			// while a run is in flight. Overlapping triggers reach the
			// coordinator immediately and get its conflict error back.
			r.wg.Add(1)
			go func(ev event) {
				defer r.wg.Done()
				r.execute(ctx, ev)
			}(ev)
		}
	}
}

func (r *Runner) execute(ctx context.Context, ev event) {
	run, err := r.starter.StartRun(ctx, ev.kind)
	if ev.reply != nil {
		ev.reply <- runResult{run: run, err: err}
		return
	}
	// Scheduled firing: a conflict just means the previous run is still
	// going. The firing is logged and skipped, never queued for later.
	var conflict *types.ConflictError
	if errors.As(err, &conflict) {
		r.log.Info("scheduled trigger skipped, run already active",
			zap.String("active_run_id", conflict.ActiveRunID.String()))
	} else if err != nil {
		r.log.Error("scheduled run failed to start", zap.Error(err))
	}
}

// Trigger requests a manual run and waits for it to finish. A
// *types.ConflictError is returned while another run is active.
func (r *Runner) Trigger(ctx context.Context) (*types.Run, error) {
	reply := make(chan runResult, 1)

	select {
	case r.events <- event{kind: types.TriggerManual, reply: reply}:
	case <-r.stop:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.run, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// notifyScheduled delivers a scheduled firing without blocking shutdown.
func (r *Runner) notifyScheduled() {
	select {
	case r.events <- event{kind: types.TriggerScheduled}:
	case <-r.stop:
	}
}

// Package engine provides the pipeline coordinator: it drives one run at
// a time through the fixed stage sequence, applies the retry policy, and
// hands finished posts to the publish queue.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/content-agent/internal/db"
	"github.com/jonathan/content-agent/internal/engine/stages"
	"github.com/jonathan/content-agent/internal/queue"
	"github.com/jonathan/content-agent/internal/runstore"
	"github.com/jonathan/content-agent/internal/types"
)

// Config holds the coordinator's retry and timeout policy. The values
// are deliberately configuration, not constants: operators tune them per
// deployment.
type Config struct {
	// MaxAttempts is the total invocation budget per stage for transient
	// failures. Default 3.
	MaxAttempts int
	// StageTimeout bounds one producer invocation. A timed-out invocation
	// counts as a transient failure so a hung external call cannot wedge
	// the single-active-run slot. Default 2m.
	StageTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 2 * time.Minute
	}
	return c
}

// ProgressEvent is emitted on every run state change, for SSE streaming
// and verbose CLI output.
type ProgressEvent struct {
	RunID   string          `json:"run_id"`
	Stage   string          `json:"stage,omitempty"`
	Status  types.RunStatus `json:"status"`
	Message string          `json:"message"`
	Attempt int             `json:"attempt,omitempty"`
}

// ProgressCallback is called synchronously from the run goroutine;
// implementations must not block.
type ProgressCallback func(ProgressEvent)

// Coordinator owns run execution. A run is driven synchronously inside
// StartRun; the single-active-run invariant is enforced by the store, so
// concurrent StartRun calls race on Create and exactly one wins.
type Coordinator struct {
	store      *runstore.Store
	queue      *queue.Queue
	sequence   stages.Sequence
	cfg        Config
	log        *zap.Logger
	mirror     *db.DB
	onProgress ProgressCallback
}

// New creates a coordinator. mirror may be nil to run without database
// persistence; the in-memory store remains the source of truth either way.
func New(store *runstore.Store, q *queue.Queue, seq stages.Sequence, cfg Config, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store:    store,
		queue:    q,
		sequence: seq,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// WithMirror attaches an optional database mirror for runs and artifacts.
func (c *Coordinator) WithMirror(mirror *db.DB) *Coordinator {
	c.mirror = mirror
	return c
}

// SetProgressCallback registers the progress listener. Call before the
// first run starts.
func (c *Coordinator) SetProgressCallback(cb ProgressCallback) {
	c.onProgress = cb
}

// StartRun creates a run and synchronously advances it through the stage
// sequence. It fails with *types.ConflictError while another run is
// active. The returned run is terminal: completed or failed.
func (c *Coordinator) StartRun(ctx context.Context, kind types.TriggerKind) (*types.Run, error) {
	run, err := c.store.Create(kind)
	if err != nil {
		return nil, err
	}

	c.log.Info("run started",
		zap.String("run_id", run.ID.String()),
		zap.String("trigger", string(kind)))
	c.emit(ProgressEvent{RunID: run.ID.String(), Status: run.Status, Message: "run created"})
	c.mirrorRun(ctx, run)

	return c.execute(ctx, run.ID)
}

// GetStatus returns the current state of a run. Pure read.
func (c *Coordinator) GetStatus(id uuid.UUID) (*types.Run, error) {
	return c.store.Get(id)
}

// execute walks the stage sequence for one run. Stage invocations are
// strictly sequential: each consumes the artifacts of those before it.
func (c *Coordinator) execute(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	for _, def := range c.sequence {
		// Publish the in-progress status before invoking the producer so
		// observers never see a stale stage.
		run, err := c.store.Update(runID, func(r *types.Run) {
			r.Status = def.InProgress
		})
		if err != nil {
			return nil, err
		}
		c.emit(ProgressEvent{RunID: runID.String(), Stage: def.Name, Status: run.Status,
			Message: fmt.Sprintf("%s stage started", def.Name)})
		c.mirrorRun(ctx, run)

		payload, stageErr := c.invokeWithRetry(ctx, def, stages.Input{RunID: runID, Artifacts: run.Artifacts})
		if stageErr != nil {
			return c.fail(ctx, runID, stageErr)
		}

		run, err = c.store.Update(runID, func(r *types.Run) {
			r.Artifacts = append(r.Artifacts, types.Artifact{
				Stage:     def.Name,
				Payload:   payload,
				CreatedAt: time.Now(),
			})
			r.StageIndex++
		})
		if err != nil {
			return nil, err
		}
		c.emit(ProgressEvent{RunID: runID.String(), Stage: def.Name, Status: run.Status,
			Message: fmt.Sprintf("%s stage completed", def.Name)})
		c.mirrorArtifact(ctx, runID, def.Name, payload)
	}

	return c.complete(ctx, runID)
}

// invokeWithRetry applies the bounded retry policy to one stage. The
// input is identical for every attempt: no artifact is mutated between
// retries.
func (c *Coordinator) invokeWithRetry(ctx context.Context, def stages.Definition, in stages.Input) (any, *types.StageFailure) {
	var last *types.StageFailure

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, c.cfg.StageTimeout)
		payload, err := def.Producer.Invoke(sctx, in)
		cancel()

		if err == nil {
			return payload, nil
		}

		failure := c.classify(def.Name, sctx, err)
		if !failure.Retryable() || ctx.Err() != nil {
			return nil, failure
		}

		last = failure
		c.log.Warn("stage attempt failed, retrying",
			zap.String("run_id", in.RunID.String()),
			zap.String("stage", def.Name),
			zap.Int("attempt", attempt),
			zap.Error(failure))
		c.emit(ProgressEvent{RunID: in.RunID.String(), Stage: def.Name, Status: def.InProgress,
			Message: failure.Message, Attempt: attempt})
	}

	return nil, last
}

// classify turns a producer error into a stage failure. A stage timeout
// is transient; an error the producer did not classify is permanent.
func (c *Coordinator) classify(stage string, sctx context.Context, err error) *types.StageFailure {
	var failure *types.StageFailure
	if errors.As(err, &failure) {
		if failure.Stage == "" {
			failure.Stage = stage
		}
		return failure
	}
	if errors.Is(err, context.DeadlineExceeded) && sctx.Err() != nil {
		return types.Transient(stage, "stage timed out", err)
	}
	return types.Permanent(stage, "unclassified producer error", err)
}

// complete enqueues the planned posts from the schedule stage and marks
// the run completed.
func (c *Coordinator) complete(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	run, err := c.store.Get(runID)
	if err != nil {
		return nil, err
	}

	payload, ok := stages.Input{Artifacts: run.Artifacts}.Payload(stages.StageSchedule)
	if !ok {
		return c.fail(ctx, runID, types.Permanent(stages.StageSchedule, "schedule stage produced no artifact", nil))
	}
	planned, ok := payload.([]types.PlannedPost)
	if !ok {
		return c.fail(ctx, runID, types.Permanent(stages.StageSchedule,
			fmt.Sprintf("schedule stage produced %T, want []types.PlannedPost", payload), nil))
	}

	for _, post := range planned {
		itemID, err := c.queue.Enqueue(runID, post)
		if err != nil {
			return c.fail(ctx, runID, types.Permanent(stages.StageSchedule, "failed to enqueue scheduled item", err))
		}
		if item, getErr := c.queue.Get(itemID); getErr == nil {
			c.mirrorItem(ctx, item)
		}
	}

	now := time.Now()
	run, err = c.store.Update(runID, func(r *types.Run) {
		r.Status = types.RunStatusCompleted
		r.EndedAt = &now
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("run completed",
		zap.String("run_id", runID.String()),
		zap.Int("posts_scheduled", len(planned)),
		zap.Duration("duration", run.Duration(now)))
	c.emit(ProgressEvent{RunID: runID.String(), Status: run.Status,
		Message: fmt.Sprintf("run completed, %d posts scheduled", len(planned))})
	c.mirrorRun(ctx, run)

	return run, nil
}

// fail records the failure on the run and halts the sequence: later
// stages are never invoked. The failure is recorded on the run rather
// than returned as an error; callers inspect the run.
func (c *Coordinator) fail(ctx context.Context, runID uuid.UUID, failure *types.StageFailure) (*types.Run, error) {
	now := time.Now()
	run, err := c.store.Update(runID, func(r *types.Run) {
		r.Status = types.RunStatusFailed
		r.EndedAt = &now
		r.Error = &types.StageError{
			Stage:   failure.Stage,
			Kind:    failure.Kind,
			Message: failure.Message,
		}
	})
	if err != nil {
		return nil, err
	}

	c.log.Error("run failed",
		zap.String("run_id", runID.String()),
		zap.String("stage", failure.Stage),
		zap.String("kind", string(failure.Kind)),
		zap.String("message", failure.Message))
	c.emit(ProgressEvent{RunID: runID.String(), Stage: failure.Stage, Status: run.Status,
		Message: failure.Message})
	c.mirrorRun(ctx, run)

	return run, nil
}

func (c *Coordinator) emit(ev ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(ev)
	}
}

// Mirror writes are best effort: a persistence hiccup never fails a run.

func (c *Coordinator) mirrorRun(ctx context.Context, run *types.Run) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.UpsertRun(ctx, run); err != nil {
		c.log.Warn("failed to mirror run", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
}

func (c *Coordinator) mirrorArtifact(ctx context.Context, runID uuid.UUID, stage string, payload any) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.SaveArtifact(ctx, runID, stage, payload); err != nil {
		c.log.Warn("failed to mirror artifact",
			zap.String("run_id", runID.String()),
			zap.String("stage", stage),
			zap.Error(err))
	}
}

func (c *Coordinator) mirrorItem(ctx context.Context, item *types.ScheduledItem) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.UpsertScheduledItem(ctx, item); err != nil {
		c.log.Warn("failed to mirror scheduled item",
			zap.String("item_id", item.ID.String()),
			zap.Error(err))
	}
}

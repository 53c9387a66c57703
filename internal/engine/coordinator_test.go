package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-agent/internal/distribution"
	"github.com/jonathan/content-agent/internal/engine/stages"
	"github.com/jonathan/content-agent/internal/queue"
	"github.com/jonathan/content-agent/internal/runstore"
	"github.com/jonathan/content-agent/internal/types"
)

type producerFunc func(ctx context.Context, in stages.Input) (any, error)

func (f producerFunc) Invoke(ctx context.Context, in stages.Input) (any, error) {
	return f(ctx, in)
}

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, _ types.Post, targets []string) ([]distribution.Result, error) {
	return []distribution.Result{{Platform: targets[0], PublishedRef: "ref"}}, nil
}

func stub(payload any) producerFunc {
	return func(_ context.Context, _ stages.Input) (any, error) {
		return payload, nil
	}
}

func plannedPosts(n int) []types.PlannedPost {
	out := make([]types.PlannedPost, n)
	for i := range out {
		out[i] = types.PlannedPost{
			Post:          types.Post{Title: "t", Body: "b", Format: "linkedin_post"},
			ScheduledTime: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Platforms:     []string{"linkedin"},
		}
	}
	return out
}

func newTestCoordinator(t *testing.T, research, develop, edit, schedule stages.Producer, cfg Config) (*Coordinator, *runstore.Store, *queue.Queue) {
	t.Helper()
	seq, err := stages.NewSequence(research, develop, edit, schedule)
	require.NoError(t, err)
	store := runstore.New()
	q := queue.New(noopPublisher{}, nil)
	return New(store, q, seq, cfg, nil), store, q
}

func TestStartRunCompletesAndEnqueues(t *testing.T) {
	c, store, q := newTestCoordinator(t,
		stub([]types.Trend{{Title: "trend"}}),
		stub([]types.Draft{{Post: types.Post{Title: "d"}}}),
		stub([]types.Review{{Approved: true}}),
		stub(plannedPosts(2)),
		Config{})

	run, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, run.Status)
	assert.Equal(t, 4, run.StageIndex)
	require.Len(t, run.Artifacts, 4)
	assert.Equal(t, []string{"research", "develop", "edit", "schedule"},
		[]string{run.Artifacts[0].Stage, run.Artifacts[1].Stage, run.Artifacts[2].Stage, run.Artifacts[3].Stage})
	require.NotNil(t, run.EndedAt)

	assert.Equal(t, 2, q.Stats().Queued)
	m := store.Metrics()
	assert.Equal(t, 1, m.TotalRuns)
	assert.Equal(t, 1, m.SucceededRuns)
}

func TestStartRunRejectedWhileRunActive(t *testing.T) {
	started := make(chan struct{})
	var startedOnce sync.Once
	release := make(chan struct{})
	blocking := producerFunc(func(ctx context.Context, _ stages.Input) (any, error) {
		startedOnce.Do(func() { close(started) })
		select {
		case <-release:
			return []types.Trend{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	c, _, _ := newTestCoordinator(t,
		blocking,
		stub([]types.Draft{}),
		stub([]types.Review{}),
		stub(plannedPosts(0)),
		Config{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		run, err := c.StartRun(context.Background(), types.TriggerScheduled)
		assert.NoError(t, err)
		assert.Equal(t, types.RunStatusCompleted, run.Status)
	}()

	<-started
	_, err := c.StartRun(context.Background(), types.TriggerManual)
	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, types.RunStatusResearching, conflict.Status)

	close(release)
	wg.Wait()

	// Slot is free again once the first run reached a terminal status.
	run, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, run.Status)
}

func TestTransientFailureRetriedUntilSuccess(t *testing.T) {
	attempts := 0
	flaky := producerFunc(func(_ context.Context, _ stages.Input) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, types.Transient("", "upstream unavailable", nil)
		}
		return []types.Trend{{Title: "trend"}}, nil
	})

	c, _, _ := newTestCoordinator(t,
		flaky,
		stub([]types.Draft{}),
		stub([]types.Review{}),
		stub(plannedPosts(0)),
		Config{MaxAttempts: 3})

	run, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, attempts)
}

func TestTransientRetriesExhausted(t *testing.T) {
	attempts := 0
	failing := producerFunc(func(_ context.Context, _ stages.Input) (any, error) {
		attempts++
		return nil, types.Transient("", "upstream unavailable", nil)
	})

	c, _, _ := newTestCoordinator(t,
		failing,
		stub([]types.Draft{}),
		stub([]types.Review{}),
		stub(plannedPosts(0)),
		Config{MaxAttempts: 3})

	run, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusFailed, run.Status)
	assert.Equal(t, 3, attempts)
	require.NotNil(t, run.Error)
	assert.Equal(t, "research", run.Error.Stage)
	assert.Equal(t, types.FailureTransient, run.Error.Kind)
	assert.Empty(t, run.Artifacts)
}

func TestPermanentFailureHaltsSequence(t *testing.T) {
	scheduleInvoked := false
	c, _, q := newTestCoordinator(t,
		stub([]types.Trend{{Title: "trend"}}),
		stub([]types.Draft{{Post: types.Post{Title: "d"}}}),
		producerFunc(func(_ context.Context, _ stages.Input) (any, error) {
			return nil, types.Permanent("", "malformed review payload", nil)
		}),
		producerFunc(func(_ context.Context, _ stages.Input) (any, error) {
			scheduleInvoked = true
			return plannedPosts(1), nil
		}),
		Config{})

	run, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, "edit", run.Error.Stage)
	assert.Equal(t, types.FailurePermanent, run.Error.Kind)

	// Research and develop artifacts survive; edit produced none and
	// schedule never ran.
	assert.Len(t, run.Artifacts, 2)
	assert.Equal(t, 2, run.StageIndex)
	assert.False(t, scheduleInvoked)
	assert.Equal(t, 0, q.Stats().Queued)
}

func TestUnclassifiedErrorIsPermanent(t *testing.T) {
	c, _, _ := newTestCoordinator(t,
		producerFunc(func(_ context.Context, _ stages.Input) (any, error) {
			return nil, context.Canceled
		}),
		stub([]types.Draft{}),
		stub([]types.Review{}),
		stub(plannedPosts(0)),
		Config{MaxAttempts: 3})

	run, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, types.FailurePermanent, run.Error.Kind)
}

func TestStageTimeoutIsTransient(t *testing.T) {
	attempts := 0
	hung := producerFunc(func(ctx context.Context, _ stages.Input) (any, error) {
		attempts++
		<-ctx.Done()
		return nil, ctx.Err()
	})

	c, _, _ := newTestCoordinator(t,
		hung,
		stub([]types.Draft{}),
		stub([]types.Review{}),
		stub(plannedPosts(0)),
		Config{MaxAttempts: 2, StageTimeout: 20 * time.Millisecond})

	run, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusFailed, run.Status)
	assert.Equal(t, 2, attempts)
	require.NotNil(t, run.Error)
	assert.Equal(t, types.FailureTransient, run.Error.Kind)
	assert.Equal(t, "stage timed out", run.Error.Message)
}

func TestWrongScheduleArtifactFailsRun(t *testing.T) {
	c, _, _ := newTestCoordinator(t,
		stub([]types.Trend{}),
		stub([]types.Draft{}),
		stub([]types.Review{}),
		stub("not a planned post slice"),
		Config{})

	run, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, "schedule", run.Error.Stage)
	assert.Equal(t, types.FailurePermanent, run.Error.Kind)
}

func TestProgressEventsCoverLifecycle(t *testing.T) {
	c, _, _ := newTestCoordinator(t,
		stub([]types.Trend{}),
		stub([]types.Draft{}),
		stub([]types.Review{}),
		stub(plannedPosts(1)),
		Config{})

	var mu sync.Mutex
	var events []ProgressEvent
	c.SetProgressCallback(func(ev ProgressEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	_, err := c.StartRun(context.Background(), types.TriggerManual)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	// Created, then started+completed per stage, then terminal event.
	require.Len(t, events, 10)
	assert.Equal(t, types.RunStatusPending, events[0].Status)
	assert.Equal(t, "research", events[1].Stage)
	assert.Equal(t, types.RunStatusResearching, events[1].Status)
	assert.Equal(t, types.RunStatusCompleted, events[9].Status)
}

package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-agent/internal/distribution"
	"github.com/jonathan/content-agent/internal/types"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, _ types.Post, targets []string) ([]distribution.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []distribution.Result{{Platform: targets[0], PublishedRef: "ref-123"}}, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var testClock = time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

func newTestQueue(t *testing.T, pub distribution.Publisher, opts ...Option) *Queue {
	t.Helper()
	if pub == nil {
		pub = &fakePublisher{}
	}
	opts = append(opts, WithClock(func() time.Time { return testClock }))
	return New(pub, nil, opts...)
}

func planned(at time.Time) types.PlannedPost {
	return types.PlannedPost{
		Post:          types.Post{Title: "title", Body: "body", Format: "linkedin_post"},
		ScheduledTime: at,
		Platforms:     []string{"linkedin"},
	}
}

func TestEnqueueRespectsCapacity(t *testing.T) {
	q := newTestQueue(t, nil, WithCapacity(2))
	runID := uuid.New()

	_, err := q.Enqueue(runID, planned(testClock.Add(time.Hour)))
	require.NoError(t, err)
	second, err := q.Enqueue(runID, planned(testClock.Add(2*time.Hour)))
	require.NoError(t, err)

	_, err = q.Enqueue(runID, planned(testClock.Add(3*time.Hour)))
	require.ErrorIs(t, err, ErrQueueFull)

	// Cancelled items no longer count against the cap.
	_, err = q.Cancel(second)
	require.NoError(t, err)
	_, err = q.Enqueue(runID, planned(testClock.Add(3*time.Hour)))
	assert.NoError(t, err)
}

func TestDueItemsOrderedByTimeThenInsertion(t *testing.T) {
	q := newTestQueue(t, nil)
	runID := uuid.New()

	late, err := q.Enqueue(runID, planned(testClock.Add(-time.Minute)))
	require.NoError(t, err)
	earlyFirst, err := q.Enqueue(runID, planned(testClock.Add(-time.Hour)))
	require.NoError(t, err)
	earlySecond, err := q.Enqueue(runID, planned(testClock.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = q.Enqueue(runID, planned(testClock.Add(time.Hour))) // not due
	require.NoError(t, err)

	due := q.DueItems(testClock)
	require.Len(t, due, 3)
	assert.Equal(t, earlyFirst, due[0].ID)
	assert.Equal(t, earlySecond, due[1].ID)
	assert.Equal(t, late, due[2].ID)
}

func TestDispatchPublishesItem(t *testing.T) {
	pub := &fakePublisher{}
	q := newTestQueue(t, pub)

	id, err := q.Enqueue(uuid.New(), planned(testClock.Add(-time.Minute)))
	require.NoError(t, err)

	item, err := q.Dispatch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.ItemPublished, item.Status)
	assert.Equal(t, "ref-123", item.PublishedRef)
	assert.Equal(t, 1, item.Attempts)
	require.NotNil(t, item.PublishedAt)
	assert.Equal(t, 1, pub.callCount())
}

func TestDispatchFailureMarksFailed(t *testing.T) {
	pubErr := &types.DistributionFailure{
		Platform: "linkedin",
		Kind:     types.FailureTransient,
		Message:  "rate limited",
	}
	pub := &fakePublisher{err: pubErr}
	q := newTestQueue(t, pub)

	id, err := q.Enqueue(uuid.New(), planned(testClock.Add(-time.Minute)))
	require.NoError(t, err)

	item, err := q.Dispatch(context.Background(), id)
	require.Error(t, err)
	require.NotNil(t, item)
	assert.Equal(t, types.ItemFailed, item.Status)
	assert.Contains(t, item.LastError, "rate limited")
	assert.Equal(t, 1, item.Attempts)

	// Ordinary dispatch refuses a failed item; only DispatchNow may
	// re-dispatch it.
	_, err = q.Dispatch(context.Background(), id)
	var invalid *types.InvalidStateError
	require.ErrorAs(t, err, &invalid)

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	item, err = q.DispatchNow(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.ItemPublished, item.Status)
	assert.Equal(t, 2, item.Attempts)
}

func TestCancelOnlyQueuedItems(t *testing.T) {
	q := newTestQueue(t, nil)
	id, err := q.Enqueue(uuid.New(), planned(testClock.Add(-time.Minute)))
	require.NoError(t, err)

	_, err = q.Dispatch(context.Background(), id)
	require.NoError(t, err)

	_, err = q.Cancel(id)
	var invalid *types.InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "cancel", invalid.Op)
	assert.Equal(t, types.ItemPublished, invalid.Status)

	// Published is a sink: the failed transition left no mark.
	item, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.ItemPublished, item.Status)
}

func TestRescheduleOnlyQueuedItems(t *testing.T) {
	q := newTestQueue(t, nil)
	id, err := q.Enqueue(uuid.New(), planned(testClock.Add(time.Hour)))
	require.NoError(t, err)

	newTime := testClock.Add(48 * time.Hour)
	item, err := q.Reschedule(id, newTime)
	require.NoError(t, err)
	assert.True(t, item.ScheduledTime.Equal(newTime))

	_, err = q.Cancel(id)
	require.NoError(t, err)

	_, err = q.Reschedule(id, testClock.Add(time.Hour))
	var invalid *types.InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "reschedule", invalid.Op)
}

func TestLookupUnknownItem(t *testing.T) {
	q := newTestQueue(t, nil)

	var notFound *types.NotFoundError
	_, err := q.Get(uuid.New())
	require.ErrorAs(t, err, &notFound)
	_, err = q.Cancel(uuid.New())
	require.ErrorAs(t, err, &notFound)
}

func TestIsSlotTaken(t *testing.T) {
	q := newTestQueue(t, nil)
	slot := testClock.Add(24 * time.Hour)
	_, err := q.Enqueue(uuid.New(), planned(slot))
	require.NoError(t, err)

	assert.True(t, q.IsSlotTaken(slot, 30*time.Minute))
	assert.True(t, q.IsSlotTaken(slot.Add(29*time.Minute), 30*time.Minute))
	assert.False(t, q.IsSlotTaken(slot.Add(30*time.Minute), 30*time.Minute))
	assert.False(t, q.IsSlotTaken(slot.Add(-time.Hour), 30*time.Minute))
}

func TestStatsCountsByStatus(t *testing.T) {
	q := newTestQueue(t, nil)
	runID := uuid.New()

	first, _ := q.Enqueue(runID, planned(testClock.Add(-time.Minute)))
	second, _ := q.Enqueue(runID, planned(testClock.Add(time.Hour)))
	_, _ = q.Enqueue(runID, planned(testClock.Add(2*time.Hour)))

	_, err := q.Dispatch(context.Background(), first)
	require.NoError(t, err)
	_, err = q.Cancel(second)
	require.NoError(t, err)

	st := q.Stats()
	assert.Equal(t, 1, st.Queued)
	assert.Equal(t, 1, st.Published)
	assert.Equal(t, 1, st.Cancelled)
	assert.Equal(t, 0, st.Failed)
}

// blockingPublisher holds every publish until released, to simulate a
// slow platform call.
type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPublisher) Publish(_ context.Context, _ types.Post, targets []string) ([]distribution.Result, error) {
	b.entered <- struct{}{}
	<-b.release
	return []distribution.Result{{Platform: targets[0], PublishedRef: "ref-123"}}, nil
}

func TestInFlightDispatchDoesNotBlockOtherOperations(t *testing.T) {
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	q := newTestQueue(t, pub)
	runID := uuid.New()

	id, err := q.Enqueue(runID, planned(testClock.Add(-time.Minute)))
	require.NoError(t, err)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		_, err := q.Dispatch(context.Background(), id)
		assert.NoError(t, err)
	}()
	<-pub.entered

	// Queue-wide scans and other items must stay usable while the
	// publish is in flight.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := q.Enqueue(runID, planned(testClock.Add(time.Hour)))
		assert.NoError(t, err)
		assert.Empty(t, q.DueItems(testClock))
		assert.False(t, q.IsSlotTaken(testClock.Add(2*time.Hour), 30*time.Minute))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue operations blocked by an in-flight dispatch")
	}

	// The in-flight item is claimed as dispatched: control operations on
	// it are rejected instead of waiting for the publish to settle.
	var invalid *types.InvalidStateError
	_, err = q.Cancel(id)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, types.ItemDispatched, invalid.Status)

	close(pub.release)
	<-dispatched

	item, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.ItemPublished, item.Status)
}

func TestConcurrentOperationsOnDistinctItems(t *testing.T) {
	q := newTestQueue(t, nil)
	runID := uuid.New()

	ids := make([]uuid.UUID, 10)
	for i := range ids {
		id, err := q.Enqueue(runID, planned(testClock.Add(-time.Minute)))
		require.NoError(t, err)
		ids[i] = id
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Dispatch(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, q.Stats().Published)
}

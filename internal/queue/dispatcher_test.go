package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/content-agent/internal/types"
)

func TestPollDispatchesDueItems(t *testing.T) {
	pub := &fakePublisher{}
	q := newTestQueue(t, pub)
	runID := uuid.New()

	due, err := q.Enqueue(runID, planned(testClock.Add(-time.Minute)))
	require.NoError(t, err)
	future, err := q.Enqueue(runID, planned(testClock.Add(time.Hour)))
	require.NoError(t, err)

	d := NewDispatcher(q, nil, WithDispatcherClock(func() time.Time { return testClock }))
	d.Poll(context.Background())

	item, err := q.Get(due)
	require.NoError(t, err)
	assert.Equal(t, types.ItemPublished, item.Status)

	item, err = q.Get(future)
	require.NoError(t, err)
	assert.Equal(t, types.ItemQueued, item.Status)
	assert.Equal(t, 1, pub.callCount())
}

func TestPollContinuesPastFailures(t *testing.T) {
	pub := &fakePublisher{err: &types.DistributionFailure{
		Platform: "linkedin",
		Kind:     types.FailurePermanent,
		Message:  "rejected",
	}}
	q := newTestQueue(t, pub)
	runID := uuid.New()

	first, _ := q.Enqueue(runID, planned(testClock.Add(-2*time.Minute)))
	second, _ := q.Enqueue(runID, planned(testClock.Add(-time.Minute)))

	d := NewDispatcher(q, nil, WithDispatcherClock(func() time.Time { return testClock }))
	d.Poll(context.Background())

	for _, id := range []uuid.UUID{first, second} {
		item, err := q.Get(id)
		require.NoError(t, err)
		assert.Equal(t, types.ItemFailed, item.Status)
	}
	assert.Equal(t, 2, pub.callCount())
}

func TestDispatcherStartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newTestQueue(t, nil)
	d := NewDispatcher(q, nil, WithPollInterval(10*time.Millisecond))

	d.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	d.Stop()
}

package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/content-agent/internal/types"
)

type fakeStarter struct {
	mu    sync.Mutex
	calls []types.TriggerKind
	err   error
}

func (f *fakeStarter) StartRun(_ context.Context, kind types.TriggerKind) (*types.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Run{ID: uuid.New(), Status: types.RunStatusCompleted, TriggerKind: kind}, nil
}

func (f *fakeStarter) kinds() []types.TriggerKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.TriggerKind(nil), f.calls...)
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: TimeOfDay{Hour: 9}},
		{in: "17:30", want: TimeOfDay{Hour: 17, Minute: 30}},
		{in: "0:05", want: TimeOfDay{Minute: 5}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDayNext(t *testing.T) {
	tod := TimeOfDay{Hour: 9}

	morning := time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC), tod.Next(morning, time.UTC))

	// At or past the firing time, it rolls to the next day.
	atNine := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 11, 9, 0, 0, 0, time.UTC), tod.Next(atNine, time.UTC))

	evening := time.Date(2026, 8, 10, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 11, 9, 0, 0, 0, time.UTC), tod.Next(evening, time.UTC))
}

func TestTimeOfDayString(t *testing.T) {
	assert.Equal(t, "09:05", TimeOfDay{Hour: 9, Minute: 5}.String())
}

func TestNextFirePicksEarliest(t *testing.T) {
	r := NewRunner(&fakeStarter{}, nil)
	s := NewScheduler(r, []TimeOfDay{{Hour: 9}, {Hour: 12}, {Hour: 17}}, nil)

	at := time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC), s.NextFire(at))

	late := time.Date(2026, 8, 10, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 11, 9, 0, 0, 0, time.UTC), s.NextFire(late))
}

func TestManualTriggerRunsAndReturns(t *testing.T) {
	defer goleak.VerifyNone(t)

	starter := &fakeStarter{}
	r := NewRunner(starter, nil)
	r.Start(context.Background())
	defer r.Stop()

	run, err := r.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, run.Status)
	assert.Equal(t, []types.TriggerKind{types.TriggerManual}, starter.kinds())
}

func TestManualTriggerSurfacesConflict(t *testing.T) {
	starter := &fakeStarter{err: &types.ConflictError{ActiveRunID: uuid.New(), Status: types.RunStatusEditing}}
	r := NewRunner(starter, nil)
	r.Start(context.Background())
	defer r.Stop()

	_, err := r.Trigger(context.Background())
	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, types.RunStatusEditing, conflict.Status)
}

// slotStarter emulates the coordinator's run slot: one run at a time,
// conflicts rejected synchronously, the active run held until released.
type slotStarter struct {
	mu        sync.Mutex
	active    *types.Run
	started   chan types.TriggerKind
	release   chan struct{}
	completed []types.TriggerKind
	rejected  []types.TriggerKind
}

func newSlotStarter() *slotStarter {
	return &slotStarter{
		started: make(chan types.TriggerKind, 4),
		release: make(chan struct{}),
	}
}

func (s *slotStarter) StartRun(_ context.Context, kind types.TriggerKind) (*types.Run, error) {
	s.mu.Lock()
	if s.active != nil {
		s.rejected = append(s.rejected, kind)
		conflict := &types.ConflictError{ActiveRunID: s.active.ID, Status: s.active.Status}
		s.mu.Unlock()
		return nil, conflict
	}
	run := &types.Run{ID: uuid.New(), Status: types.RunStatusResearching, TriggerKind: kind}
	s.active = run
	s.mu.Unlock()

	s.started <- kind
	<-s.release

	s.mu.Lock()
	s.active = nil
	s.completed = append(s.completed, kind)
	s.mu.Unlock()
	run.Status = types.RunStatusCompleted
	return run, nil
}

func (s *slotStarter) rejectedKinds() []types.TriggerKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.TriggerKind(nil), s.rejected...)
}

func (s *slotStarter) completedKinds() []types.TriggerKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.TriggerKind(nil), s.completed...)
}

func TestTriggerDuringActiveRunFailsFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	starter := newSlotStarter()
	r := NewRunner(starter, nil)
	r.Start(context.Background())

	first := make(chan error, 1)
	go func() {
		_, err := r.Trigger(context.Background())
		first <- err
	}()
	<-starter.started

	// A second manual trigger comes back with the conflict immediately,
	// well before the active run finishes.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := r.Trigger(ctx)
	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, types.RunStatusResearching, conflict.Status)
	require.NoError(t, ctx.Err(), "trigger waited instead of failing fast")

	// A scheduled firing during the run is dropped at once, not held
	// back to execute after the run.
	r.notifyScheduled()
	require.Eventually(t, func() bool {
		return len(starter.rejectedKinds()) == 2
	}, time.Second, 10*time.Millisecond)

	close(starter.release)
	require.NoError(t, <-first)
	r.Stop()

	// Only the first manual trigger ever ran.
	assert.Equal(t, []types.TriggerKind{types.TriggerManual}, starter.completedKinds())
	assert.Equal(t, []types.TriggerKind{types.TriggerManual, types.TriggerScheduled}, starter.rejectedKinds())
}

func TestTriggerAfterStop(t *testing.T) {
	r := NewRunner(&fakeStarter{}, nil)
	r.Start(context.Background())
	r.Stop()

	_, err := r.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestScheduledFiringSwallowsConflict(t *testing.T) {
	defer goleak.VerifyNone(t)

	starter := &fakeStarter{err: &types.ConflictError{ActiveRunID: uuid.New(), Status: types.RunStatusResearching}}
	r := NewRunner(starter, nil)
	r.Start(context.Background())

	r.notifyScheduled()

	// The firing is fire-and-forget; wait for the consumer to pick it up.
	require.Eventually(t, func() bool {
		return len(starter.kinds()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []types.TriggerKind{types.TriggerScheduled}, starter.kinds())

	r.Stop()
}

func TestSchedulerStartStopWithoutTimes(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRunner(&fakeStarter{}, nil)
	s := NewScheduler(r, nil, nil)
	s.Start()
	s.Stop()
}

func TestSchedulerStartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRunner(&fakeStarter{}, nil)
	r.Start(context.Background())

	s := NewScheduler(r, []TimeOfDay{{Hour: 9}}, nil)
	s.Start()
	time.Sleep(10 * time.Millisecond)
	s.Stop()
	r.Stop()
}

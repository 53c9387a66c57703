// Package queue implements the time-ordered publish queue and the timer
// driven dispatcher that hands due items to the distribution collaborator.
package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/content-agent/internal/distribution"
	"github.com/jonathan/content-agent/internal/types"
)

// DefaultCapacity bounds the number of live (non-terminal) items.
const DefaultCapacity = 50

// ErrQueueFull is returned by Enqueue when the live-item cap is reached.
var ErrQueueFull = errors.New("publish queue is full")

// entry pairs an item with its own mutex and insertion sequence. State
// transitions lock only the entry, so operations on different items do
// not serialize; the queue-level lock guards only the map and ordering.
type entry struct {
	mu   sync.Mutex
	item types.ScheduledItem
	seq  uint64
}

// Queue is the publish queue. Safe for concurrent use by the coordinator
// (enqueue) and the dispatcher (dispatch), plus control-plane calls.
type Queue struct {
	mu       sync.RWMutex
	items    map[uuid.UUID]*entry
	order    []uuid.UUID // insertion order, for stable due-item ties
	nextSeq  uint64
	capacity int
	pub      distribution.Publisher
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithCapacity overrides the live-item cap.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithClock overrides the queue's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates an empty queue that publishes through pub.
func New(pub distribution.Publisher, log *zap.Logger, opts ...Option) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	q := &Queue{
		items:    make(map[uuid.UUID]*entry),
		capacity: DefaultCapacity,
		pub:      pub,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a planned post to the queue and returns its item id.
// Fails with ErrQueueFull when the live-item cap is reached.
func (q *Queue) Enqueue(runID uuid.UUID, planned types.PlannedPost) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.liveCountLocked() >= q.capacity {
		return uuid.Nil, ErrQueueFull
	}

	item := types.ScheduledItem{
		ID:              uuid.New(),
		RunID:           runID,
		Payload:         planned.Post,
		ScheduledTime:   planned.ScheduledTime,
		Status:          types.ItemQueued,
		PlatformTargets: append([]string(nil), planned.Platforms...),
		EnqueuedAt:      q.now(),
	}

	e := &entry{item: item, seq: q.nextSeq}
	q.nextSeq++
	q.items[item.ID] = e
	q.order = append(q.order, item.ID)

	q.log.Info("scheduled item enqueued",
		zap.String("item_id", item.ID.String()),
		zap.Time("scheduled_time", item.ScheduledTime),
		zap.Strings("platforms", item.PlatformTargets))

	return item.ID, nil
}

// DueItems returns every queued item with scheduled_time <= now, ordered
// by scheduled time ascending with ties broken by insertion order.
func (q *Queue) DueItems(now time.Time) []*types.ScheduledItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	type due struct {
		item *types.ScheduledItem
		seq  uint64
	}
	var dues []due
	for _, id := range q.order {
		e := q.items[id]
		e.mu.Lock()
		if e.item.Status == types.ItemQueued && !e.item.ScheduledTime.After(now) {
			dues = append(dues, due{item: e.item.Clone(), seq: e.seq})
		}
		e.mu.Unlock()
	}

	sort.SliceStable(dues, func(i, j int) bool {
		ti, tj := dues[i].item.ScheduledTime, dues[j].item.ScheduledTime
		if ti.Equal(tj) {
			return dues[i].seq < dues[j].seq
		}
		return ti.Before(tj)
	})

	out := make([]*types.ScheduledItem, len(dues))
	for i, d := range dues {
		out[i] = d.item
	}
	return out
}

// Dispatch moves a queued item to dispatched, invokes the distribution
// collaborator, and records the outcome as published or failed. The
// dispatched status claims the item, so a concurrent cancel, reschedule
// or second dispatch of the same item is rejected while the publish is
// in flight, and other items stay unaffected.
func (q *Queue) Dispatch(ctx context.Context, id uuid.UUID) (*types.ScheduledItem, error) {
	return q.dispatch(ctx, id, false)
}

// DispatchNow force-dispatches an item regardless of its scheduled time.
// Unlike Dispatch it also accepts items in failed state, which is the
// manual re-dispatch path for distribution failures.
func (q *Queue) DispatchNow(ctx context.Context, id uuid.UUID) (*types.ScheduledItem, error) {
	return q.dispatch(ctx, id, true)
}

func (q *Queue) dispatch(ctx context.Context, id uuid.UUID, allowFailed bool) (*types.ScheduledItem, error) {
	e, err := q.lookup(id)
	if err != nil {
		return nil, err
	}

	// Claim the item under its lock, then publish unlocked. Holding the
	// lock across the network call would stall every queue-wide scan for
	// the duration of the publish.
	e.mu.Lock()
	switch e.item.Status {
	case types.ItemQueued:
	case types.ItemFailed:
		if !allowFailed {
			e.mu.Unlock()
			return nil, &types.InvalidStateError{ItemID: id, Status: e.item.Status, Op: "dispatch"}
		}
	default:
		e.mu.Unlock()
		return nil, &types.InvalidStateError{ItemID: id, Status: e.item.Status, Op: "dispatch"}
	}

	now := q.now()
	e.item.Status = types.ItemDispatched
	e.item.DispatchedAt = &now
	e.item.Attempts++
	payload := e.item.Payload
	targets := append([]string(nil), e.item.PlatformTargets...)
	e.mu.Unlock()

	results, pubErr := q.pub.Publish(ctx, payload, targets)

	e.mu.Lock()
	defer e.mu.Unlock()

	if pubErr != nil {
		e.item.Status = types.ItemFailed
		e.item.LastError = pubErr.Error()
		q.log.Warn("publish failed",
			zap.String("item_id", id.String()),
			zap.Int("attempts", e.item.Attempts),
			zap.Error(pubErr))
		return e.item.Clone(), pubErr
	}

	published := q.now()
	e.item.Status = types.ItemPublished
	e.item.PublishedAt = &published
	e.item.LastError = ""
	if len(results) > 0 {
		e.item.PublishedRef = results[0].PublishedRef
	}

	q.log.Info("item published",
		zap.String("item_id", id.String()),
		zap.String("published_ref", e.item.PublishedRef))

	return e.item.Clone(), nil
}

// Cancel cancels a queued item. Fails with *types.InvalidStateError for
// any other status: dispatched, published, cancelled and failed items
// cannot be cancelled.
func (q *Queue) Cancel(id uuid.UUID) (*types.ScheduledItem, error) {
	e, err := q.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item.Status != types.ItemQueued {
		return nil, &types.InvalidStateError{ItemID: id, Status: e.item.Status, Op: "cancel"}
	}
	e.item.Status = types.ItemCancelled
	q.log.Info("scheduled item cancelled", zap.String("item_id", id.String()))
	return e.item.Clone(), nil
}

// Reschedule moves a queued item to a new time. scheduled_time is
// immutable through any other path.
func (q *Queue) Reschedule(id uuid.UUID, newTime time.Time) (*types.ScheduledItem, error) {
	e, err := q.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item.Status != types.ItemQueued {
		return nil, &types.InvalidStateError{ItemID: id, Status: e.item.Status, Op: "reschedule"}
	}
	e.item.ScheduledTime = newTime
	q.log.Info("scheduled item rescheduled",
		zap.String("item_id", id.String()),
		zap.Time("scheduled_time", newTime))
	return e.item.Clone(), nil
}

// Get returns a copy of the item. Fails with *types.NotFoundError.
func (q *Queue) Get(id uuid.UUID) (*types.ScheduledItem, error) {
	e, err := q.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.item.Clone(), nil
}

// List returns all items in insertion order, optionally filtered by status.
func (q *Queue) List(statuses ...types.ItemStatus) []*types.ScheduledItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []*types.ScheduledItem
	for _, id := range q.order {
		e := q.items[id]
		e.mu.Lock()
		if len(statuses) == 0 || itemStatusIn(e.item.Status, statuses) {
			out = append(out, e.item.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

// Stats summarizes the queue by status.
type Stats struct {
	Queued     int `json:"queued"`
	Dispatched int `json:"dispatched"`
	Published  int `json:"published"`
	Cancelled  int `json:"cancelled"`
	Failed     int `json:"failed"`
}

// Stats returns current per-status counts.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var st Stats
	for _, id := range q.order {
		e := q.items[id]
		e.mu.Lock()
		switch e.item.Status {
		case types.ItemQueued:
			st.Queued++
		case types.ItemDispatched:
			st.Dispatched++
		case types.ItemPublished:
			st.Published++
		case types.ItemCancelled:
			st.Cancelled++
		case types.ItemFailed:
			st.Failed++
		}
		e.mu.Unlock()
	}
	return st
}

// IsSlotTaken reports whether any live item is scheduled within window of
// t. The schedule producer uses it for conflict detection.
func (q *Queue) IsSlotTaken(t time.Time, window time.Duration) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, id := range q.order {
		e := q.items[id]
		e.mu.Lock()
		taken := e.item.Status == types.ItemQueued &&
			absDuration(e.item.ScheduledTime.Sub(t)) < window
		e.mu.Unlock()
		if taken {
			return true
		}
	}
	return false
}

func (q *Queue) lookup(id uuid.UUID) (*entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.items[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "scheduled item", ID: id}
	}
	return e, nil
}

func (q *Queue) liveCountLocked() int {
	n := 0
	for _, id := range q.order {
		e := q.items[id]
		e.mu.Lock()
		if e.item.Status == types.ItemQueued || e.item.Status == types.ItemDispatched {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

func itemStatusIn(status types.ItemStatus, set []types.ItemStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

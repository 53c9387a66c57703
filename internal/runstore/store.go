// Package runstore holds the mutable record of pipeline runs: a passive,
// in-memory ledger mutated only on coordinator instruction. It enforces
// the single-active-run invariant atomically and keeps a bounded history.
package runstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-agent/internal/types"
)

// DefaultHistoryLimit caps retained runs; oldest terminal runs are
// evicted first once the cap is exceeded.
const DefaultHistoryLimit = 100

// Store is the run state store. All methods are safe for concurrent use;
// readers never observe a partially applied mutation.
type Store struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]*types.Run
	order []uuid.UUID // creation order, oldest first
	limit int
	now   func() time.Time

	metrics    Metrics
	postsDay   time.Time // UTC midnight of the day postsToday counts for
	postsToday int
}

// Option configures a Store.
type Option func(*Store)

// WithHistoryLimit overrides the retained-run cap.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock overrides the store's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		runs:  make(map[uuid.UUID]*types.Run),
		limit: DefaultHistoryLimit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new pending run. It fails with *types.ConflictError
// if any existing run is still active; the check and the insert happen
// under one lock, so concurrent Create calls cannot both succeed.
func (s *Store) Create(kind types.TriggerKind) (*types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if r := s.runs[id]; r.Active() {
			return nil, &types.ConflictError{ActiveRunID: r.ID, Status: r.Status}
		}
	}

	run := &types.Run{
		ID:          uuid.New(),
		Status:      types.RunStatusPending,
		TriggerKind: kind,
		StartedAt:   s.now(),
	}
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	s.metrics.TotalRuns++
	s.evictLocked()

	return run.Clone(), nil
}

// Update applies mutate to the run under the store lock. The mutation is
// atomic: no reader sees the run mid-edit. Fails with *types.NotFoundError
// for unknown ids.
func (s *Store) Update(id uuid.UUID, mutate func(*types.Run)) (*types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "run", ID: id}
	}

	wasActive := run.Active()
	mutate(run)

	if wasActive && !run.Active() {
		s.recordTerminalLocked(run)
	}

	return run.Clone(), nil
}

// Get returns a copy of the run. Fails with *types.NotFoundError.
func (s *Store) Get(id uuid.UUID) (*types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "run", ID: id}
	}
	return run.Clone(), nil
}

// Active returns the run currently holding the single-active-run slot,
// or nil when the pipeline is idle.
func (s *Store) Active() *types.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if r := s.runs[id]; r.Active() {
			return r.Clone()
		}
	}
	return nil
}

// List returns up to limit runs, newest first, optionally filtered by
// status. limit <= 0 means no limit.
func (s *Store) List(limit int, statuses ...types.RunStatus) []*types.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Run, 0, len(s.order))
	for _, id := range s.order {
		run := s.runs[id]
		if len(statuses) > 0 && !statusIn(run.Status, statuses) {
			continue
		}
		out = append(out, run.Clone())
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Metrics returns a snapshot of the aggregate run counters.
func (s *Store) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.metrics
	if dateOf(s.now()).Equal(s.postsDay) {
		m.PostsToday = s.postsToday
	}
	return m
}

// evictLocked drops the oldest terminal runs beyond the history limit.
// Active runs are never evicted.
func (s *Store) evictLocked() {
	if len(s.order) <= s.limit {
		return
	}
	kept := s.order[:0]
	excess := len(s.order) - s.limit
	for _, id := range s.order {
		if excess > 0 && !s.runs[id].Active() {
			delete(s.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *Store) recordTerminalLocked(run *types.Run) {
	switch run.Status {
	case types.RunStatusCompleted:
		s.metrics.SucceededRuns++
		s.recordPostsLocked(plannedPostCount(run))
	case types.RunStatusFailed:
		s.metrics.FailedRuns++
	}
	if run.EndedAt != nil {
		d := run.EndedAt.Sub(run.StartedAt)
		finished := s.metrics.SucceededRuns + s.metrics.FailedRuns
		if finished > 0 {
			total := s.metrics.AverageDuration*time.Duration(finished-1) + d
			s.metrics.AverageDuration = total / time.Duration(finished)
		}
	}
}

// recordPostsLocked adds n to the posts-today counter, resetting it when
// the UTC day has rolled over since the last completed run.
func (s *Store) recordPostsLocked(n int) {
	if n == 0 {
		return
	}
	day := dateOf(s.now())
	if !day.Equal(s.postsDay) {
		s.postsDay = day
		s.postsToday = 0
	}
	s.postsToday += n
}

// plannedPostCount counts the posts a completed run scheduled.
func plannedPostCount(run *types.Run) int {
	for _, a := range run.Artifacts {
		if posts, ok := a.Payload.([]types.PlannedPost); ok {
			return len(posts)
		}
	}
	return 0
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func statusIn(status types.RunStatus, set []types.RunStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

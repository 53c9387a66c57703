package types

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus represents the lifecycle state of a scheduled item.
//
// The transition graph is:
//
//	queued -> dispatched -> published
//	queued -> dispatched -> failed -> dispatched (manual re-dispatch)
//	queued -> cancelled
//
// published and cancelled are sinks: no edge ever leaves them.
type ItemStatus string

const (
	// ItemQueued means the item is waiting for its scheduled time.
	ItemQueued ItemStatus = "queued"
	// ItemDispatched means the dispatcher has picked the item up and the
	// distribution call is in flight.
	ItemDispatched ItemStatus = "dispatched"
	// ItemPublished means distribution succeeded. Terminal.
	ItemPublished ItemStatus = "published"
	// ItemCancelled means the item was cancelled while still queued. Terminal.
	ItemCancelled ItemStatus = "cancelled"
	// ItemFailed means distribution failed; the item waits for manual re-dispatch.
	ItemFailed ItemStatus = "failed"
)

// Terminal reports whether the status is a sink in the transition graph.
func (s ItemStatus) Terminal() bool {
	return s == ItemPublished || s == ItemCancelled
}

// ScheduledItem is an approved post awaiting timed publication.
type ScheduledItem struct {
	ID              uuid.UUID  `json:"item_id"`
	RunID           uuid.UUID  `json:"run_id"`
	Payload         Post       `json:"payload"`
	ScheduledTime   time.Time  `json:"scheduled_time"`
	Status          ItemStatus `json:"status"`
	PlatformTargets []string   `json:"platform_targets"`
	EnqueuedAt      time.Time  `json:"enqueued_at"`

	// Distribution bookkeeping, recorded by the dispatcher.
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	PublishedRef string     `json:"published_ref,omitempty"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// Clone returns a copy safe to hand to readers.
func (it *ScheduledItem) Clone() *ScheduledItem {
	out := *it
	out.PlatformTargets = append([]string(nil), it.PlatformTargets...)
	if it.DispatchedAt != nil {
		t := *it.DispatchedAt
		out.DispatchedAt = &t
	}
	if it.PublishedAt != nil {
		t := *it.PublishedAt
		out.PublishedAt = &t
	}
	return &out
}

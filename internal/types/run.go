// Package types defines the shared data model for the content pipeline:
// runs, stage results, scheduled items, and the content payloads that
// flow between stages.
package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

const (
	// RunStatusPending means the run has been created but no stage has started.
	RunStatusPending RunStatus = "pending"
	// RunStatusResearching means the research stage is in progress.
	RunStatusResearching RunStatus = "researching"
	// RunStatusGenerating means the develop stage is in progress.
	RunStatusGenerating RunStatus = "generating"
	// RunStatusEditing means the edit stage is in progress.
	RunStatusEditing RunStatus = "editing"
	// RunStatusScheduling means the schedule stage is in progress.
	RunStatusScheduling RunStatus = "scheduling"
	// RunStatusCompleted means every stage succeeded and scheduled items were enqueued.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed means a stage failed permanently or exhausted its retries.
	RunStatusFailed RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
// A run in a terminal state never transitions again.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// TriggerKind identifies what started a run.
type TriggerKind string

const (
	// TriggerScheduled is a run started by the recurring daily timer.
	TriggerScheduled TriggerKind = "scheduled"
	// TriggerManual is a run started by an explicit API or CLI call.
	TriggerManual TriggerKind = "manual"
)

// Artifact is one stage's output, recorded on the run in stage order.
// The artifacts slice is append-only: entries are never reordered or
// overwritten, so any intermediate state is reconstructible from the run.
type Artifact struct {
	Stage     string    `json:"stage"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// StageError records why a run failed: the stage that failed, the failure
// kind reported by the producer, and a human-readable message.
type StageError struct {
	Stage   string      `json:"stage"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Run is one end-to-end execution of the content pipeline.
type Run struct {
	ID          uuid.UUID   `json:"run_id"`
	Status      RunStatus   `json:"status"`
	TriggerKind TriggerKind `json:"trigger_kind"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`

	// StageIndex is the position in the stage sequence: it equals the
	// number of stages that have completed, and len(Artifacts).
	StageIndex int        `json:"current_stage_index"`
	Artifacts  []Artifact `json:"artifacts"`

	// Error is set only when Status is failed.
	Error *StageError `json:"error,omitempty"`
}

// Active reports whether the run is holding the single-active-run slot.
func (r *Run) Active() bool {
	return !r.Status.Terminal()
}

// Duration returns the wall-clock duration of a finished run, or the
// elapsed time so far for an active one.
func (r *Run) Duration(now time.Time) time.Duration {
	if r.EndedAt != nil {
		return r.EndedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// Clone returns a copy safe to hand to readers while the original keeps
// being mutated under the store's lock. Artifact payloads are shared;
// they are treated as immutable once appended.
func (r *Run) Clone() *Run {
	out := *r
	out.Artifacts = make([]Artifact, len(r.Artifacts))
	copy(out.Artifacts, r.Artifacts)
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	return &out
}

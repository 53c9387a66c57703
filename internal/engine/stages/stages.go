// Package stages defines the closed set of pipeline stages and the
// interface every stage producer implements.
package stages

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/content-agent/internal/types"
)

// Stage names, in pipeline order.
const (
	StageResearch = "research"
	StageDevelop  = "develop"
	StageEdit     = "edit"
	StageSchedule = "schedule"
)

// Input carries the accumulated artifacts of prior stages into a producer.
type Input struct {
	RunID     uuid.UUID
	Artifacts []types.Artifact
}

// Payload returns the payload produced by a named earlier stage.
func (in Input) Payload(stage string) (any, bool) {
	for _, a := range in.Artifacts {
		if a.Stage == stage {
			return a.Payload, true
		}
	}
	return nil, false
}

// Producer is one stage's unit of work. Implementations are pure
// functions of their input: they hold no pipeline state and report
// failures as *types.StageFailure so the coordinator can classify them.
type Producer interface {
	Invoke(ctx context.Context, in Input) (any, error)
}

// Definition binds a stage name to its in-progress run status and producer.
type Definition struct {
	Name       string
	InProgress types.RunStatus
	Producer   Producer
}

// Sequence is the fixed, ordered stage list a coordinator executes.
// The set is closed: exactly research, develop, edit, schedule.
type Sequence []Definition

// NewSequence assembles the pipeline from the four stage producers.
// Any nil producer is an assembly error, caught at startup rather than
// mid-run.
func NewSequence(research, develop, edit, schedule Producer) (Sequence, error) {
	defs := Sequence{
		{Name: StageResearch, InProgress: types.RunStatusResearching, Producer: research},
		{Name: StageDevelop, InProgress: types.RunStatusGenerating, Producer: develop},
		{Name: StageEdit, InProgress: types.RunStatusEditing, Producer: edit},
		{Name: StageSchedule, InProgress: types.RunStatusScheduling, Producer: schedule},
	}
	for _, d := range defs {
		if d.Producer == nil {
			return nil, fmt.Errorf("stage %s has no producer", d.Name)
		}
	}
	return defs, nil
}

// Names returns the stage names in pipeline order.
func (s Sequence) Names() []string {
	names := make([]string, len(s))
	for i, d := range s {
		names[i] = d.Name
	}
	return names
}

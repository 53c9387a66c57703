package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/content-agent/internal/queue"
	"github.com/jonathan/content-agent/internal/runstore"
	"github.com/jonathan/content-agent/internal/types"
)

func TestPrintRun(t *testing.T) {
	start := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	run := &types.Run{
		ID:          uuid.New(),
		Status:      types.RunStatusFailed,
		TriggerKind: types.TriggerScheduled,
		StartedAt:   start,
		EndedAt:     &end,
		Artifacts: []types.Artifact{
			{Stage: "research"},
			{Stage: "develop"},
		},
		Error: &types.StageError{Stage: "edit", Kind: types.FailureTransient, Message: "review failed"},
	}

	var sb strings.Builder
	NewPrinter(&sb).PrintRun(run)
	out := sb.String()

	assert.Contains(t, out, "PIPELINE RUN")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "research")
	assert.Contains(t, out, "Failed at edit (transient):")
	assert.Contains(t, out, "1m30s")
}

func TestPrintRunNilIsSilent(t *testing.T) {
	var sb strings.Builder
	NewPrinter(&sb).PrintRun(nil)
	assert.Empty(t, sb.String())
}

func TestPrintTrendsTruncatesList(t *testing.T) {
	trends := make([]types.Trend, 8)
	for i := range trends {
		trends[i] = types.Trend{Title: "Trend headline", Score: 0.5, Source: "example.com"}
	}

	var sb strings.Builder
	NewPrinter(&sb).PrintTrends(trends)
	out := sb.String()

	assert.Contains(t, out, "Total trends: 8")
	assert.Contains(t, out, "... and 3 more trends")
}

func TestPrintMetrics(t *testing.T) {
	var sb strings.Builder
	NewPrinter(&sb).PrintMetrics(
		runstore.Metrics{TotalRuns: 4, SucceededRuns: 3, FailedRuns: 1, PostsToday: 6, AverageDuration: 2 * time.Second},
		queue.Stats{Queued: 2, Published: 5},
	)
	out := sb.String()

	assert.Contains(t, out, "AGENT METRICS")
	assert.Contains(t, out, "Success rate:   75%")
	assert.Contains(t, out, "Posts today:    6")
	assert.Contains(t, out, "Queued:         2")
}

// Package observability provides formatted output utilities for verbose
// CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/content-agent/internal/queue"
	"github.com/jonathan/content-agent/internal/runstore"
	"github.com/jonathan/content-agent/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRun outputs a human-readable summary of one run.
func (p *Printer) PrintRun(run *types.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Trigger:  %s\n", run.TriggerKind))
	sb.WriteString(fmt.Sprintf("Started:  %s\n", run.StartedAt.Format(time.RFC3339)))
	if run.EndedAt != nil {
		sb.WriteString(fmt.Sprintf("Ended:    %s\n", run.EndedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("Duration: %s\n", run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond)))
	}

	if len(run.Artifacts) > 0 {
		sb.WriteString("\nStages completed:\n")
		for _, a := range run.Artifacts {
			sb.WriteString(fmt.Sprintf("  • %s\n", a.Stage))
		}
	}

	if run.Error != nil {
		sb.WriteString(fmt.Sprintf("\nFailed at %s (%s):\n  %s\n",
			run.Error.Stage, run.Error.Kind, run.Error.Message))
	}

	p.printBox("PIPELINE RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTrends outputs the top scored trends from a research artifact.
func (p *Printer) PrintTrends(trends []types.Trend) {
	if len(trends) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total trends: %d\n\n", len(trends)))

	count := min(len(trends), maxItemsToShow)
	for i := 0; i < count; i++ {
		t := trends[i]
		title := t.Title
		if len(title) > 45 {
			title = title[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, title))
		sb.WriteString(fmt.Sprintf("    Score: %.2f  Source: %s\n", t.Score, t.Source))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(trends) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more trends", len(trends)-maxItemsToShow))
	}

	p.printBox("TOP TRENDS", sb.String())
}

// PrintScheduledItems outputs the queue contents.
func (p *Printer) PrintScheduledItems(items []*types.ScheduledItem) {
	if len(items) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Items: %d\n\n", len(items)))

	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		item := items[i]
		title := item.Payload.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s\n", title))
		sb.WriteString(fmt.Sprintf("  %s at %s\n", item.Status, item.ScheduledTime.Format("Jan 2 15:04")))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more items", len(items)-maxItemsToShow))
	}

	p.printBox("PUBLISH QUEUE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMetrics outputs run metrics and queue stats.
func (p *Printer) PrintMetrics(metrics runstore.Metrics, stats queue.Stats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total runs:     %d\n", metrics.TotalRuns))
	sb.WriteString(fmt.Sprintf("Succeeded:      %d\n", metrics.SucceededRuns))
	sb.WriteString(fmt.Sprintf("Failed:         %d\n", metrics.FailedRuns))
	sb.WriteString(fmt.Sprintf("Success rate:   %.0f%%\n", metrics.SuccessRate()*100))
	sb.WriteString(fmt.Sprintf("Posts today:    %d\n", metrics.PostsToday))
	sb.WriteString(fmt.Sprintf("Avg duration:   %s\n\n", metrics.AverageDuration.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Queued:         %d\n", stats.Queued))
	sb.WriteString(fmt.Sprintf("Published:      %d\n", stats.Published))
	sb.WriteString(fmt.Sprintf("Failed items:   %d", stats.Failed))

	p.printBox("AGENT METRICS", sb.String())
}

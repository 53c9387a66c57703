package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-agent/internal/engine/stages"
	"github.com/jonathan/content-agent/internal/observability"
	"github.com/jonathan/content-agent/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run now",
	Long:  "Run the full research, develop, edit, schedule pipeline once and print the result. Scheduled items are enqueued but not dispatched; use serve for continuous operation.",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildAgent(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	run, err := a.coord.StartRun(cmd.Context(), types.TriggerManual)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintRun(run)

	if cfg.Verbose {
		if payload, ok := (stages.Input{Artifacts: run.Artifacts}).Payload(stages.StageResearch); ok {
			if trends, ok := payload.([]types.Trend); ok {
				printer.PrintTrends(trends)
			}
		}
	}
	printer.PrintScheduledItems(a.queue.List())

	if run.Status == types.RunStatusFailed {
		return fmt.Errorf("run failed at %s stage: %s", run.Error.Stage, run.Error.Message)
	}
	return nil
}

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-agent/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent continuously with the control API",
	Long:  "Start the scheduled trigger, the publish dispatcher, and the HTTP control API, and run until interrupted.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	ctx := cmd.Context()
	a, err := buildAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	hub := server.NewHub()
	a.coord.SetProgressCallback(hub.Broadcast)

	a.runner.Start(ctx)
	a.scheduler.Start()
	a.dispatcher.Start(ctx)

	// Worst case for a blocking manual run: every stage exhausts its
	// retry budget at the full stage timeout.
	runBudget := time.Duration(len(a.sequence)*cfg.RetryAttempts) * cfg.StageTimeoutDuration()

	srv := server.New(server.Config{Port: cfg.Port, RunTimeout: runBudget},
		a.store, a.queue, a.runner, hub, a.log)
	serveErr := srv.Start()

	a.scheduler.Stop()
	a.dispatcher.Stop()
	a.runner.Stop()

	return serveErr
}

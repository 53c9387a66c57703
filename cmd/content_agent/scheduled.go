package main

import (
	"github.com/spf13/cobra"
)

var scheduledAddr string

var scheduledCmd = &cobra.Command{
	Use:   "scheduled",
	Short: "List the publish queue of a running agent",
	RunE:  runScheduled,
}

func init() {
	scheduledCmd.Flags().StringVar(&scheduledAddr, "addr", "http://localhost:8080", "Address of the running agent")
	rootCmd.AddCommand(scheduledCmd)
}

func runScheduled(_ *cobra.Command, _ []string) error {
	return fetchAndPrint(scheduledAddr + "/scheduled")
}

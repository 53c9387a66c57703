// Package main provides the content agent CLI: a scheduled pipeline that
// researches trends, drafts and reviews posts, and publishes them on a
// timed queue.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "content_agent",
	Short: "Automated content pipeline agent",
	Long:  "content_agent runs a research, develop, edit, schedule pipeline over trending topics and publishes the results to social platforms on a timed queue.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

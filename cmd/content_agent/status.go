package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history and metrics from a running agent",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8080", "Address of the running agent")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	if err := fetchAndPrint(statusAddr + "/runs?limit=10"); err != nil {
		return err
	}
	return fetchAndPrint(statusAddr + "/metrics")
}

// fetchAndPrint GETs a control API endpoint and pretty-prints the JSON.
func fetchAndPrint(url string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("is the agent running? %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, body)
	}

	var pretty json.RawMessage = body
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

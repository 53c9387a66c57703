package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-agent/internal/config"
	"github.com/jonathan/content-agent/internal/server"
)

var tokenOperator string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a control API token",
	Long:  "Issue a bearer token for the control API. Requires JWT_SECRET in the environment, matching the serving agent.",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "operator", "Operator name embedded in the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(_ *cobra.Command, _ []string) error {
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	token, err := server.NewJWTService(jwtConfig).GenerateToken(tokenOperator)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, token)
	return nil
}

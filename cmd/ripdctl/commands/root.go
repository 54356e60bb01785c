// Package commands implements the ripdctl CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the ripd daemon's HTTP status address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for ripdctl.
var rootCmd = &cobra.Command{
	Use:   "ripdctl",
	Short: "CLI client for the ripd daemon",
	Long:  "ripdctl queries the ripd daemon's status HTTP endpoint and validates configuration files offline.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8080",
		"ripd daemon status HTTP address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(validateConfigCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

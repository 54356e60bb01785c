package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ripd-project/ripd/internal/config"
)

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config <path>",
		Short: "Load and validate a ripd configuration file offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			fmt.Printf("%s: valid (%d interface(s), broadcast interval %s)\n",
				args[0], len(cfg.Interfaces), cfg.RIP.BroadcastInterval)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove every runtime entity left behind by previous runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		engine, err := newEngine(cfg, logger)
		if err != nil {
			return err
		}

		if err := engine.Cleanup(cmd.Context()); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cleanup complete")
		return nil
	},
}

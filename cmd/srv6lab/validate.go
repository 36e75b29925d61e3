package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Build the topology without starting it and report diagnostics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		g, diags, err := buildGraph(cfg)
		for _, d := range diags {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "topology ok: %d switches, %d hosts, %d links\n",
			len(g.Switches()), len(g.Hosts()), g.NumLinks())
		return nil
	},
}

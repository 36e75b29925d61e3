package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var rootCmd = &cobra.Command{
	Use:   "srv6lab",
	Short: "srv6lab emulates an SRv6 network of stratum switches and IPv6 hosts",
	Long: `srv6lab builds a topology of P4 software switches and IPv6 hosts, hands
the switches to a remote ONOS controller and drops into a console.

Without a topology file it runs the 14-router SRv6 uSID tutorial network.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		atexit.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with SRV6LAB_* overrides")
	rootCmd.PersistentFlags().String("topology", "", "YAML topology file (default: tutorial network)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(validateCmd, lsCmd, attachCmd, execCmd, cleanupCmd, nsenterCmd)
}

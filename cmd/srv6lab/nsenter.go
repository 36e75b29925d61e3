package main

import (
	"errors"

	"github.com/spf13/cobra"

	"srv6lab/internal/session"
)

// nsenterCmd is re-executed by the console to run a command inside a node
// namespace: __nsenter__ <netns path> <node> [-- cmd args...]
var nsenterCmd = &cobra.Command{
	Use:                session.NSEnterCommand,
	Hidden:             true,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return errors.New("missing arguments for nsenter")
		}

		rest := args[2:]
		if len(rest) > 0 && rest[0] == "--" {
			rest = rest[1:]
		}
		return session.EnterAndExec(args[0], args[1], rest)
	},
}

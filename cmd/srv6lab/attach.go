package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"srv6lab/internal/emulation"
	"srv6lab/internal/session"
)

var attachCmd = &cobra.Command{
	Use:   "attach <node|handle-id>",
	Short: "Open a shell on a running node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupNode(cmd, args[0])
		if err != nil {
			return err
		}

		var shell []string
		if h.NetNSPath == "" {
			// switch agents share the root namespace
			shell = []string{"bash", "--noprofile", "--norc"}
		}
		e := &session.NSExecutor{Stdin: os.Stdin}
		return e.Exec(cmd.Context(), h, shell, os.Stdout, os.Stderr)
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <node|handle-id> <command> [args...]",
	Short: "Run a command on a running node",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupNode(cmd, args[0])
		if err != nil {
			return err
		}

		e := &session.NSExecutor{Stdin: os.Stdin}
		return e.Exec(cmd.Context(), h, args[1:], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func lookupNode(cmd *cobra.Command, target string) (emulation.Handle, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return emulation.Handle{}, err
	}

	store, err := emulation.NewStore(cfg.HandlesDir())
	if err != nil {
		return emulation.Handle{}, err
	}
	handles, listErr := store.List()

	h, ok := findNode(handles, target)
	if !ok {
		return emulation.Handle{}, errors.Join(
			fmt.Errorf("node '%s' not found in %s", target, cfg.HandlesDir()), listErr)
	}
	return h, nil
}

// findNode matches a node name or a handle id prefix.
func findNode(handles []emulation.Handle, target string) (emulation.Handle, bool) {
	for _, h := range handles {
		if h.Kind != emulation.KindNode {
			continue
		}
		if h.Node == target || strings.HasPrefix(h.ID, target) {
			return h, true
		}
	}
	return emulation.Handle{}, false
}

func init() {
	// flags after the node belong to the command
	execCmd.Flags().SetInterspersed(false)
}

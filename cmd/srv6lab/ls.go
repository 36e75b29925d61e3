package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"srv6lab/internal/emulation"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List runtime entities recorded by previous runs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store, err := emulation.NewStore(cfg.HandlesDir())
		if err != nil {
			return err
		}
		handles, err := store.List()
		printHandles(cmd, handles)
		return err
	},
}

func printHandles(cmd *cobra.Command, handles []emulation.Handle) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s  %-5s  %-24s  %-14s  %-20s  %s\n",
		"HANDLE ID", "KIND", "NAME", "CLASS", "NAMESPACE", "CREATED")

	for _, h := range handles {
		name := h.Node
		if h.Kind == emulation.KindLink && h.Link != nil {
			name = h.Link.IfaceA + "<->" + h.Link.IfaceB
		}

		location := "-"
		switch {
		case h.Namespace != "":
			location = h.Namespace
		case h.Container != "":
			location = "docker:" + h.Container
		}

		class := string(h.Class)
		if class == "" {
			class = "-"
		}

		fmt.Fprintf(out, "%-20s  %-5s  %-24s  %-14s  %-20s  %s\n",
			h.ID, h.Kind, name, class, location, h.CreatedAt)
	}
}

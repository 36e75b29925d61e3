// Package session implements the interactive console an operator uses while
// the emulated network is running.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"srv6lab/internal/emulation"
)

// Session blocks until the operator ends it.
type Session interface {
	Run(ctx context.Context, rt *emulation.Runtime) error
}

type Executor interface {
	Exec(ctx context.Context, h emulation.Handle, args []string, stdout, stderr io.Writer) error
}

// Console is a line-oriented shell over a running topology. It returns on
// exit, quit, end of input or context cancellation.
type Console struct {
	in     io.Reader
	out    io.Writer
	exec   Executor
	prompt string
	logger *slog.Logger
}

func NewConsole(in io.Reader, out io.Writer, exec Executor, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		in:     in,
		out:    out,
		exec:   exec,
		prompt: "srv6lab> ",
		logger: logger,
	}
}

const helpText = `Commands:
  help                 show this message
  nodes                list nodes
  links                list links
  net                  list each node's neighbors
  dump                 show runtime details of every node
  sh <cmd> [args...]   run a command in the root namespace
  <node> <cmd> [args]  run a command on a node
  exit | quit          leave the console and stop the network
`

func (c *Console) Run(ctx context.Context, rt *emulation.Runtime) error {
	scanner := bufio.NewScanner(c.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if done := c.handle(ctx, rt, fields); done {
			return nil
		}
	}
}

func (c *Console) handle(ctx context.Context, rt *emulation.Runtime, fields []string) bool {
	switch fields[0] {
	case "exit", "quit":
		return true
	case "help", "?":
		fmt.Fprint(c.out, helpText)
	case "nodes":
		c.nodes(rt)
	case "links":
		c.links(rt)
	case "net":
		c.net(rt)
	case "dump":
		c.dump(rt)
	case "sh":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "*** usage: sh <cmd> [args...]")
			return false
		}
		c.run(ctx, emulation.Handle{Node: "root"}, fields[1:])
	default:
		h, ok := rt.Node(fields[0])
		if !ok {
			fmt.Fprintf(c.out, "*** Unknown command: %s\n", strings.Join(fields, " "))
			return false
		}
		if len(fields) < 2 {
			fmt.Fprintf(c.out, "*** usage: %s <cmd> [args...]\n", fields[0])
			return false
		}
		// switches without a namespace run in the root namespace
		c.run(ctx, h, fields[1:])
	}
	return false
}

func (c *Console) run(ctx context.Context, h emulation.Handle, args []string) {
	if err := c.exec.Exec(ctx, h, args, c.out, c.out); err != nil {
		c.logger.Debug("command failed", "node", h.Node, "cmd", args, "error", err)
		fmt.Fprintf(c.out, "*** %s: %v\n", h.Node, err)
	}
}

func (c *Console) nodes(rt *emulation.Runtime) {
	var names []string
	for _, h := range rt.Nodes() {
		names = append(names, h.Node)
	}
	fmt.Fprintf(c.out, "available nodes are:\n%s\n", strings.Join(names, " "))
}

func (c *Console) links(rt *emulation.Runtime) {
	for _, h := range rt.Links() {
		if h.Link != nil {
			fmt.Fprintf(c.out, "%s<->%s\n", h.Link.IfaceA, h.Link.IfaceB)
		}
	}
}

func (c *Console) net(rt *emulation.Runtime) {
	neighbors := map[string][]string{}
	for _, h := range rt.Links() {
		if h.Link == nil {
			continue
		}
		neighbors[h.Link.A] = append(neighbors[h.Link.A], h.Link.IfaceA+":"+h.Link.IfaceB)
		neighbors[h.Link.B] = append(neighbors[h.Link.B], h.Link.IfaceB+":"+h.Link.IfaceA)
	}

	for _, h := range rt.Nodes() {
		ifaces := neighbors[h.Node]
		sort.Strings(ifaces)
		fmt.Fprintf(c.out, "%s %s\n", h.Node, strings.Join(ifaces, " "))
	}
}

func (c *Console) dump(rt *emulation.Runtime) {
	for _, h := range rt.Nodes() {
		var details []string
		if h.NetNSPath != "" {
			details = append(details, "netns="+h.Namespace)
		}
		if h.Container != "" {
			details = append(details, "container="+h.Container)
		}
		if h.PID != 0 {
			details = append(details, fmt.Sprintf("pid=%d", h.PID))
		}
		if addr, ok := h.ControlPlane("localhost"); ok {
			details = append(details, "grpc="+addr)
		}
		fmt.Fprintf(c.out, "<%s %s: %s>\n", h.Class, h.Node, strings.Join(details, " "))
	}
}

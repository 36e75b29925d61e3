package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"srv6lab/internal/emulation"
)

// NSEnterCommand is the hidden subcommand that re-enters a namespace in a
// fresh process.
const NSEnterCommand = "__nsenter__"

// NSExecutor runs commands inside node namespaces by re-executing the
// current binary through NSEnterCommand. setns only affects one thread,
// so the exec happens in a child process.
type NSExecutor struct {
	// Self defaults to /proc/self/exe.
	Self  string
	Stdin io.Reader
}

// Exec runs args on the node behind h. Empty args start an interactive shell
// inside a node namespace.
func (e *NSExecutor) Exec(ctx context.Context, h emulation.Handle, args []string, stdout, stderr io.Writer) error {
	var cmd *exec.Cmd
	if h.NetNSPath == "" {
		if len(args) == 0 {
			return errors.New("empty command")
		}
		cmd = exec.CommandContext(ctx, args[0], args[1:]...)
	} else {
		self := e.Self
		if self == "" {
			self = "/proc/self/exe"
		}
		childArgs := []string{NSEnterCommand, h.NetNSPath, h.Node}
		if len(args) > 0 {
			childArgs = append(append(childArgs, "--"), args...)
		}
		cmd = exec.CommandContext(ctx, self, childArgs...)
	}

	cmd.Stdin = e.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	return cmd.Run()
}

// EnterAndExec joins the network namespace at nsPath and replaces the
// process image with args. Without args it starts an interactive bash.
// It only returns on failure.
func EnterAndExec(nsPath, node string, args []string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	nsFd, err := os.Open(nsPath)
	if err != nil {
		return fmt.Errorf("open namespace: %w", err)
	}
	defer nsFd.Close()

	if err := unix.Setns(int(nsFd.Fd()), unix.CLONE_NEWNET); err != nil {
		return fmt.Errorf("setns: %w", err)
	}

	if len(args) == 0 {
		os.Setenv("PS1", fmt.Sprintf("srv6lab@%s:\\w $ ", node))
		args = []string{"bash", "--noprofile", "--norc"}
	}

	bin, err := exec.LookPath(args[0])
	if err != nil {
		return fmt.Errorf("lookup %s: %w", args[0], err)
	}
	if err := syscall.Exec(bin, args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", args[0], err)
	}
	return nil
}

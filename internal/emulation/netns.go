package emulation

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/vishvananda/netns"
)

// NetNSDir is where iproute2 and netns.NewNamed bind-mount named namespaces.
const NetNSDir = "/var/run/netns"

// createNamespace creates a named network namespace and returns its path,
// leaving the calling thread in its original namespace.
func createNamespace(name string) (string, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origNS, err := netns.Get()
	if err != nil {
		return "", fmt.Errorf("get current ns: %w", err)
	}
	defer origNS.Close()

	// NewNamed switches the thread into the new namespace
	ns, err := netns.NewNamed(name)
	if err != nil {
		netns.Set(origNS)
		return "", fmt.Errorf("create netns %s: %w", name, err)
	}
	ns.Close()

	if err := netns.Set(origNS); err != nil {
		return "", fmt.Errorf("setns back: %w", err)
	}

	return filepath.Join(NetNSDir, name), nil
}

func deleteNamespace(name string) error {
	if err := netns.DeleteNamed(name); err != nil {
		return fmt.Errorf("delete netns %s: %w", name, err)
	}
	return nil
}

// inNamespace runs fn with the calling thread switched into the namespace
// at path. An empty path runs fn in the current namespace.
func inNamespace(path string, fn func() error) error {
	if path == "" {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origNS, err := netns.Get()
	if err != nil {
		return fmt.Errorf("get current ns: %w", err)
	}
	defer origNS.Close()

	targetNS, err := netns.GetFromPath(path)
	if err != nil {
		return fmt.Errorf("open netns %s: %w", path, err)
	}
	defer targetNS.Close()

	if err := netns.Set(targetNS); err != nil {
		return fmt.Errorf("setns: %w", err)
	}
	defer netns.Set(origNS)

	return fn()
}

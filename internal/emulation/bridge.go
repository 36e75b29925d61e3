package emulation

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"

	"srv6lab/internal/topology"
)

// BridgeDevice emulates a learning switch as a Linux bridge inside a named
// namespace.
type BridgeDevice struct {
	Prefix string
}

func BridgeName(node string) string {
	return node + "-br0"
}

func (d *BridgeDevice) Create(ctx context.Context, node topology.Node, index int) (Handle, error) {
	name := d.Prefix + node.Name
	path, err := createNamespace(name)
	if err != nil {
		return Handle{}, err
	}

	h := Handle{Namespace: name, NetNSPath: path}
	err = inNamespace(path, func() error {
		br := &netlink.Bridge{
			LinkAttrs: netlink.LinkAttrs{
				Name: BridgeName(node.Name),
			},
		}
		if err := netlink.LinkAdd(br); err != nil {
			return fmt.Errorf("bridge add: %w", err)
		}

		// Look up the bridge to get a fresh handle
		link, err := netlink.LinkByName(br.Name)
		if err != nil {
			return fmt.Errorf("lookup bridge: %w", err)
		}
		if err := netlink.LinkSetUp(link); err != nil {
			return fmt.Errorf("bridge up: %w", err)
		}
		return nil
	})
	return h, err
}

func (d *BridgeDevice) Start(ctx context.Context, node topology.Node, h Handle, ports []Port) (Handle, error) {
	err := inNamespace(h.NetNSPath, func() error {
		brLink, err := netlink.LinkByName(BridgeName(node.Name))
		if err != nil {
			return fmt.Errorf("lookup bridge: %w", err)
		}

		for _, p := range ports {
			ifLink, err := netlink.LinkByName(p.Iface)
			if err != nil {
				return fmt.Errorf("lookup interface %s: %w", p.Iface, err)
			}
			if err := netlink.LinkSetMaster(ifLink, brLink); err != nil {
				return fmt.Errorf("set master %s: %w", p.Iface, err)
			}
			if err := netlink.LinkSetUp(ifLink); err != nil {
				return fmt.Errorf("set up %s: %w", p.Iface, err)
			}
		}
		return nil
	})
	return h, err
}

// Destroy removes the namespace; the bridge and its ports go with it.
func (d *BridgeDevice) Destroy(ctx context.Context, h Handle) error {
	if h.Namespace == "" {
		return nil
	}
	return deleteNamespace(h.Namespace)
}

package emulation

import (
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// IfNameMax is the longest interface name the kernel accepts.
const IfNameMax = 15

// Plumber wires veth pairs between nodes.
type Plumber interface {
	CreateVeth(nameA, nameB string) error
	MoveToNamespace(iface, nsPath string) error
	SetUp(iface, nsPath string) error
	// DeleteLink removes iface and its peer; a missing iface is not an error.
	DeleteLink(iface, nsPath string) error
}

// NetlinkPlumber drives veth pairs through rtnetlink. Pairs are created in
// the namespace of the calling process.
type NetlinkPlumber struct{}

func (NetlinkPlumber) CreateVeth(nameA, nameB string) error {
	v := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{
			Name: nameA,
		},
		PeerName: nameB,
	}

	if err := netlink.LinkAdd(v); err != nil {
		return fmt.Errorf("create veth %s<->%s: %w", nameA, nameB, err)
	}
	return nil
}

func (NetlinkPlumber) MoveToNamespace(iface, nsPath string) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("find interface %s: %w", iface, err)
	}

	nsHandle, err := netns.GetFromPath(nsPath)
	if err != nil {
		return fmt.Errorf("open netns %s: %w", nsPath, err)
	}
	defer nsHandle.Close()

	if err := netlink.LinkSetNsFd(link, int(nsHandle)); err != nil {
		return fmt.Errorf("set netns for %s: %w", iface, err)
	}
	return nil
}

func (NetlinkPlumber) SetUp(iface, nsPath string) error {
	return inNamespace(nsPath, func() error {
		link, err := netlink.LinkByName(iface)
		if err != nil {
			return fmt.Errorf("lookup interface %s: %w", iface, err)
		}
		if err := netlink.LinkSetUp(link); err != nil {
			return fmt.Errorf("set up %s: %w", iface, err)
		}
		return nil
	})
}

func (NetlinkPlumber) DeleteLink(iface, nsPath string) error {
	return inNamespace(nsPath, func() error {
		link, err := netlink.LinkByName(iface)
		if err != nil {
			var notFound netlink.LinkNotFoundError
			if errors.As(err, &notFound) {
				return nil
			}
			return fmt.Errorf("lookup interface %s: %w", iface, err)
		}
		if err := netlink.LinkDel(link); err != nil {
			return fmt.Errorf("delete %s: %w", iface, err)
		}
		return nil
	})
}

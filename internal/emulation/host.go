package emulation

import (
	"context"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"srv6lab/internal/topology"
)

// HostDevice runs an IPv6 end host in its own named namespace.
type HostDevice struct {
	Prefix string
}

func (d *HostDevice) Create(ctx context.Context, node topology.Node, index int) (Handle, error) {
	name := d.Prefix + node.Name
	path, err := createNamespace(name)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Namespace: name, NetNSPath: path}, nil
}

// Start configures the host's first interface. A host without ports only
// gets its loopback brought up.
func (d *HostDevice) Start(ctx context.Context, node topology.Node, h Handle, ports []Port) (Handle, error) {
	if node.Host == nil {
		return h, fmt.Errorf("%w: node %q has no host config", topology.ErrInvalidConfig, node.Name)
	}

	addr, err := parseHostAddressing(*node.Host)
	if err != nil {
		return h, err
	}

	err = inNamespace(h.NetNSPath, func() error {
		lo, err := netlink.LinkByName("lo")
		if err != nil {
			return fmt.Errorf("lookup lo: %w", err)
		}
		if err := netlink.LinkSetUp(lo); err != nil {
			return fmt.Errorf("set up lo: %w", err)
		}

		if len(ports) == 0 {
			return nil
		}
		return addr.apply(ports[0].Iface)
	})
	return h, err
}

func (d *HostDevice) Destroy(ctx context.Context, h Handle) error {
	if h.Namespace == "" {
		return nil
	}
	return deleteNamespace(h.Namespace)
}

type hostAddressing struct {
	mac     net.HardwareAddr
	addr    *net.IPNet
	gateway net.IP
}

func parseHostAddressing(cfg topology.HostConfig) (hostAddressing, error) {
	mac, err := net.ParseMAC(cfg.MAC)
	if err != nil {
		return hostAddressing{}, fmt.Errorf("parse mac: %w", err)
	}

	ip, ipnet, err := net.ParseCIDR(cfg.IPv6)
	if err != nil {
		return hostAddressing{}, fmt.Errorf("parse addr: %w", err)
	}

	gw := net.ParseIP(cfg.Gateway)
	if gw == nil {
		return hostAddressing{}, fmt.Errorf("parse gateway %q: invalid address", cfg.Gateway)
	}

	return hostAddressing{
		mac:     mac,
		addr:    &net.IPNet{IP: ip, Mask: ipnet.Mask},
		gateway: gw,
	}, nil
}

// apply must run inside the host namespace.
func (a hostAddressing) apply(iface string) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("lookup interface %s: %w", iface, err)
	}

	// The MAC can only change while the link is down
	if err := netlink.LinkSetDown(link); err != nil {
		return fmt.Errorf("set down %s: %w", iface, err)
	}
	if err := netlink.LinkSetHardwareAddr(link, a.mac); err != nil {
		return fmt.Errorf("set mac: %w", err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("set up %s: %w", iface, err)
	}

	if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: a.addr, Flags: unix.IFA_F_NODAD}); err != nil {
		return fmt.Errorf("add addr: %w", err)
	}

	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Gw:        a.gateway,
	}
	if err := netlink.RouteAdd(route); err != nil {
		return fmt.Errorf("add default route: %w", err)
	}
	return nil
}

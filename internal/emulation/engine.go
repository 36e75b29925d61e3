package emulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"srv6lab/internal/topology"
)

type InstantiateOptions struct {
	// ControllerDisabled must be set; the engine never runs a controller of
	// its own.
	ControllerDisabled bool
}

// Engine turns a built topology into running entities.
type Engine interface {
	Instantiate(ctx context.Context, g *topology.Graph, opts InstantiateOptions) (*Runtime, error)
	Teardown(ctx context.Context, h Handle) error
}

// LinuxEngine emulates nodes with namespaces or containers and links with
// veth pairs.
type LinuxEngine struct {
	devices *DeviceRegistry
	plumber Plumber
	store   *Store
	logger  *slog.Logger
}

type EngineConfig struct {
	Devices *DeviceRegistry
	Plumber Plumber
	// Store is optional; when set every handle is persisted as it is
	// created and removed once torn down.
	Store  *Store
	Logger *slog.Logger
}

func NewEngine(cfg EngineConfig) *LinuxEngine {
	if cfg.Plumber == nil {
		cfg.Plumber = NetlinkPlumber{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LinuxEngine{
		devices: cfg.Devices,
		plumber: cfg.Plumber,
		store:   cfg.Store,
		logger:  cfg.Logger,
	}
}

// Instantiate creates every node, then every link, then starts every node.
// On failure the partially built runtime is returned with the error; nothing
// is rolled back.
func (e *LinuxEngine) Instantiate(ctx context.Context, g *topology.Graph, opts InstantiateOptions) (*Runtime, error) {
	if !opts.ControllerDisabled {
		return nil, ErrBuiltinController
	}

	rt := &Runtime{}
	nodes := g.Nodes()
	indexes := map[topology.DeviceClass]int{}

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return rt, err
		}

		dev, err := e.devices.Lookup(node.Class)
		if err != nil {
			return rt, &InstantiationError{Node: node.Name, Err: err}
		}

		e.logger.Info("creating node", "node", node.Name, "role", node.Role, "class", node.Class)
		h, err := dev.Create(ctx, node, indexes[node.Class])
		if err != nil {
			// A device may fail after allocating its namespace or container;
			// keep what it reports so Stop and cleanup can remove it.
			if h.Namespace != "" || h.Container != "" {
				if rerr := e.recordNode(rt, node, h); rerr != nil {
					err = errors.Join(err, rerr)
				}
			}
			return rt, &InstantiationError{Node: node.Name, Err: err}
		}
		indexes[node.Class]++

		if err := e.recordNode(rt, node, h); err != nil {
			return rt, &InstantiationError{Node: node.Name, Err: err}
		}
	}

	for _, link := range g.Links() {
		if err := ctx.Err(); err != nil {
			return rt, err
		}
		if err := e.createLink(rt, link); err != nil {
			return rt, &InstantiationError{Link: link.String(), Err: err}
		}
	}

	for _, node := range nodes {
		h, _ := rt.Node(node.Name)
		dev, _ := e.devices.Lookup(node.Class)

		e.logger.Info("starting node", "node", node.Name)
		started, err := dev.Start(ctx, node, h, portsOf(g, node.Ref()))
		if err != nil {
			return rt, &InstantiationError{Node: node.Name, Err: err}
		}
		if err := e.update(rt, started); err != nil {
			return rt, &InstantiationError{Node: node.Name, Err: err}
		}
	}

	return rt, nil
}

func (e *LinuxEngine) createLink(rt *Runtime, link topology.Link) error {
	ifA, ifB := link.IfaceA(), link.IfaceB()
	for _, name := range []string{ifA, ifB} {
		if len(name) > IfNameMax {
			return fmt.Errorf("%w: %q", ErrInterfaceNameLimit, name)
		}
	}

	a, _ := rt.Node(string(link.A))
	b, _ := rt.Node(string(link.B))

	e.logger.Info("creating link", "a", ifA, "b", ifB)
	if err := e.plumber.CreateVeth(ifA, ifB); err != nil {
		return fmt.Errorf("create veth: %w", err)
	}

	// Record the pair before moving its ends so a failure below still leaves
	// a handle to tear down. Both ends start in the root namespace.
	h := Handle{
		Kind: KindLink,
		Link: &LinkEnds{
			A:      a.Node,
			B:      b.Node,
			IfaceA: ifA,
			IfaceB: ifB,
		},
	}
	if err := e.record(rt, &h); err != nil {
		return err
	}

	ends := []struct {
		iface, ns string
		at        *string
	}{
		{ifA, a.NetNSPath, &h.Link.NetNSA},
		{ifB, b.NetNSPath, &h.Link.NetNSB},
	}
	for _, end := range ends {
		if end.ns != "" {
			if err := e.plumber.MoveToNamespace(end.iface, end.ns); err != nil {
				return fmt.Errorf("move veth: %w", err)
			}
			*end.at = end.ns
			if err := e.update(rt, h); err != nil {
				return err
			}
		}
		if err := e.plumber.SetUp(end.iface, end.ns); err != nil {
			return err
		}
	}
	return nil
}

func (e *LinuxEngine) recordNode(rt *Runtime, node topology.Node, h Handle) error {
	h.Kind = KindNode
	h.Node = node.Name
	h.Role = node.Role
	h.Class = node.Class
	return e.record(rt, &h)
}

func (e *LinuxEngine) record(rt *Runtime, h *Handle) error {
	h.ID = xid.New().String()
	h.Seq = len(rt.Handles)
	h.CreatedAt = time.Now().Format(time.RFC3339Nano)
	rt.Handles = append(rt.Handles, *h)

	if e.store == nil {
		return nil
	}
	if err := e.store.Save(*h); err != nil {
		return fmt.Errorf("save handle: %w", err)
	}
	return nil
}

// update replaces a recorded handle in rt and in the store.
func (e *LinuxEngine) update(rt *Runtime, h Handle) error {
	rt.replace(h)
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(h); err != nil {
		return fmt.Errorf("save handle: %w", err)
	}
	return nil
}

// Teardown destroys the entity behind h and forgets its stored handle.
func (e *LinuxEngine) Teardown(ctx context.Context, h Handle) error {
	var err error
	switch h.Kind {
	case KindLink:
		if h.Link == nil {
			return fmt.Errorf("teardown %s: missing link ends", h.ID)
		}
		e.logger.Info("removing link", "a", h.Link.IfaceA, "b", h.Link.IfaceB)
		// Deleting one end removes its peer
		err = e.plumber.DeleteLink(h.Link.IfaceA, h.Link.NetNSA)
	case KindNode:
		var dev Device
		dev, err = e.devices.Lookup(h.Class)
		if err == nil {
			e.logger.Info("removing node", "node", h.Node)
			err = dev.Destroy(ctx, h)
		}
	default:
		err = fmt.Errorf("unknown handle kind %q", h.Kind)
	}
	if err != nil {
		return fmt.Errorf("teardown %s: %w", h, err)
	}

	if e.store != nil {
		if err := e.store.Delete(h.ID); err != nil {
			return fmt.Errorf("forget handle %s: %w", h.ID, err)
		}
	}
	return nil
}

// Cleanup tears down every stored handle in reverse creation order and
// returns all failures joined.
func (e *LinuxEngine) Cleanup(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	// unreadable handle files are reported but do not stop the rest
	var errs []error
	handles, err := e.store.List()
	if err != nil {
		errs = append(errs, fmt.Errorf("list handles: %w", err))
	}

	for _, h := range TeardownOrder(handles) {
		if err := e.Teardown(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TeardownOrder returns links before nodes, each in reverse creation order.
func TeardownOrder(handles []Handle) []Handle {
	out := make([]Handle, 0, len(handles))
	for _, kind := range []Kind{KindLink, KindNode} {
		for i := len(handles) - 1; i >= 0; i-- {
			if handles[i].Kind == kind {
				out = append(out, handles[i])
			}
		}
	}
	return out
}

func portsOf(g *topology.Graph, node topology.NodeRef) []Port {
	var ports []Port
	for _, l := range g.LinksOf(node) {
		peer, _ := l.Peer(node)
		num := l.Port(node)
		ports = append(ports, Port{
			Number: num,
			Iface:  topology.Interface(node, num),
			Peer:   peer,
		})
	}
	return ports
}

// DefaultDevices registers the built-in device classes.
func DefaultDevices(prefix string, stratum *StratumDevice) *DeviceRegistry {
	r := NewDeviceRegistry()
	r.Register(topology.ClassIPv6Host, &HostDevice{Prefix: prefix})
	r.Register(topology.ClassLinuxBridge, &BridgeDevice{Prefix: prefix})
	if stratum != nil {
		r.Register(topology.ClassStratumBmv2, stratum)
	}
	return r
}

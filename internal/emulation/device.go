package emulation

import (
	"context"
	"fmt"
	"sort"

	"srv6lab/internal/topology"
)

// Port is one wired attachment point of a node, ready when Device.Start runs.
type Port struct {
	Number int
	Iface  string
	Peer   topology.NodeRef
}

// Device backs every node of one device class.
type Device interface {
	// Create allocates the node's isolated context. index counts nodes of
	// the same class in declaration order.
	Create(ctx context.Context, node topology.Node, index int) (Handle, error)
	// Start runs the device once all of its ports exist.
	Start(ctx context.Context, node topology.Node, h Handle, ports []Port) (Handle, error)
	Destroy(ctx context.Context, h Handle) error
}

// DeviceRegistry resolves device classes to their implementation.
type DeviceRegistry struct {
	devices map[topology.DeviceClass]Device
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{devices: map[topology.DeviceClass]Device{}}
}

func (r *DeviceRegistry) Register(class topology.DeviceClass, d Device) {
	r.devices[class] = d
}

func (r *DeviceRegistry) Lookup(class topology.DeviceClass) (Device, error) {
	d, ok := r.devices[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDevice, class, r.Classes())
	}
	return d, nil
}

func (r *DeviceRegistry) Classes() []topology.DeviceClass {
	out := make([]topology.DeviceClass, 0, len(r.devices))
	for c := range r.devices {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

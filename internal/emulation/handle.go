package emulation

import (
	"fmt"

	"srv6lab/internal/topology"
)

type Kind string

const (
	KindNode Kind = "node"
	KindLink Kind = "link"
)

// Handle is the live, engine-created representation of a declared node or
// link.
type Handle struct {
	ID        string               `json:"id"`
	Kind      Kind                 `json:"kind"`
	Node      string               `json:"node,omitempty"`
	Role      topology.Role        `json:"role,omitempty"`
	Class     topology.DeviceClass `json:"class,omitempty"`
	Namespace string               `json:"namespace,omitempty"`
	// NetNSPath is empty for entities living in the root namespace.
	NetNSPath string    `json:"netns_path,omitempty"`
	Container string    `json:"container,omitempty"`
	PID       int       `json:"pid,omitempty"`
	GRPCPort  int       `json:"grpc_port,omitempty"`
	DeviceID  uint64    `json:"device_id,omitempty"`
	Link      *LinkEnds `json:"link,omitempty"`
	// Seq is the position of the handle in its runtime.
	Seq       int    `json:"seq"`
	CreatedAt string `json:"created_at"`
}

// LinkEnds locates both interfaces of a veth pair.
type LinkEnds struct {
	A      string `json:"a"`
	B      string `json:"b"`
	IfaceA string `json:"iface_a"`
	IfaceB string `json:"iface_b"`
	NetNSA string `json:"netns_a,omitempty"`
	NetNSB string `json:"netns_b,omitempty"`
}

// ControlPlane returns the gRPC address of a switch agent, if the device
// runs one.
func (h Handle) ControlPlane(host string) (string, bool) {
	if h.Kind != KindNode || h.GRPCPort == 0 {
		return "", false
	}
	return fmt.Sprintf("%s:%d", host, h.GRPCPort), true
}

func (h Handle) String() string {
	if h.Kind == KindLink && h.Link != nil {
		return fmt.Sprintf("link %s <--> %s", h.Link.IfaceA, h.Link.IfaceB)
	}
	return fmt.Sprintf("%s %s (%s)", h.Role, h.Node, h.Class)
}

// Runtime holds the handles of an instantiated topology in creation order.
type Runtime struct {
	Handles []Handle
}

func (rt *Runtime) Node(name string) (Handle, bool) {
	for _, h := range rt.Handles {
		if h.Kind == KindNode && h.Node == name {
			return h, true
		}
	}
	return Handle{}, false
}

func (rt *Runtime) Nodes() []Handle {
	return rt.byKind(KindNode)
}

func (rt *Runtime) Links() []Handle {
	return rt.byKind(KindLink)
}

func (rt *Runtime) byKind(kind Kind) []Handle {
	var out []Handle
	for _, h := range rt.Handles {
		if h.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

func (rt *Runtime) replace(h Handle) {
	for i := range rt.Handles {
		if rt.Handles[i].ID == h.ID {
			rt.Handles[i] = h
			return
		}
	}
}

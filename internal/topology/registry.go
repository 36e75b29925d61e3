package topology

import "fmt"

// NodeRegistry holds declared nodes in insertion order.
type NodeRegistry struct {
	defaultCPUPort int
	nodes          []Node
	index          map[string]int
}

func NewNodeRegistry(defaultCPUPort int) *NodeRegistry {
	if defaultCPUPort == 0 {
		defaultCPUPort = DefaultCPUPort
	}
	return &NodeRegistry{
		defaultCPUPort: defaultCPUPort,
		nodes:          []Node{},
		index:          map[string]int{},
	}
}

// AddSwitch declares a switch. A zero CPU port is replaced by the registry
// default.
func (r *NodeRegistry) AddSwitch(name string, class DeviceClass, cfg SwitchConfig) (NodeRef, error) {
	if cfg.CPUPort == 0 {
		cfg.CPUPort = r.defaultCPUPort
	}

	return r.add(Node{
		Name:   name,
		Role:   RoleSwitch,
		Class:  class,
		Switch: &cfg,
	})
}

func (r *NodeRegistry) AddHost(name string, class DeviceClass, cfg HostConfig) (NodeRef, error) {
	return r.add(Node{
		Name:  name,
		Role:  RoleHost,
		Class: class,
		Host:  &cfg,
	})
}

func (r *NodeRegistry) add(n Node) (NodeRef, error) {
	if _, exists := r.index[n.Name]; exists {
		return "", fmt.Errorf("add %s %q: %w", n.Role, n.Name, ErrDuplicateNode)
	}

	if err := validateNode(n); err != nil {
		return "", fmt.Errorf("add %s: %w", n.Role, err)
	}

	r.index[n.Name] = len(r.nodes)
	r.nodes = append(r.nodes, n)
	return n.Ref(), nil
}

func (r *NodeRegistry) Get(name string) (Node, error) {
	i, ok := r.index[name]
	if !ok {
		return Node{}, fmt.Errorf("node %q: %w", name, ErrUnknownNode)
	}
	return r.nodes[i].clone(), nil
}

func (r *NodeRegistry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// All returns a copy of the declared nodes in insertion order.
func (r *NodeRegistry) All() []Node {
	out := make([]Node, len(r.nodes))
	for i, n := range r.nodes {
		out[i] = n.clone()
	}
	return out
}

func (r *NodeRegistry) Len() int {
	return len(r.nodes)
}

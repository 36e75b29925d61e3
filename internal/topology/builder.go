package topology

import (
	"errors"
	"fmt"
)

// IsolationPolicy decides how Build treats nodes without links.
type IsolationPolicy string

const (
	IsolationWarn  IsolationPolicy = "warn"
	IsolationError IsolationPolicy = "error"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal finding reported by Build.
type Diagnostic struct {
	Severity Severity
	Node     NodeRef
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: node %s: %s", d.Severity, d.Node, d.Message)
}

type Diagnostics []Diagnostic

func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

type Options struct {
	// DefaultCPUPort is applied to switches declared without a CPU port.
	// Zero means DefaultCPUPort.
	DefaultCPUPort int
	// Isolation defaults to IsolationWarn.
	Isolation IsolationPolicy
}

// Builder accumulates node and link declarations and produces a validated
// Graph.
type Builder struct {
	opts  Options
	nodes *NodeRegistry
	links *LinkSet
}

func NewBuilder(opts Options) *Builder {
	if opts.DefaultCPUPort == 0 {
		opts.DefaultCPUPort = DefaultCPUPort
	}
	if opts.Isolation == "" {
		opts.Isolation = IsolationWarn
	}

	nodes := NewNodeRegistry(opts.DefaultCPUPort)
	return &Builder{
		opts:  opts,
		nodes: nodes,
		links: NewLinkSet(nodes),
	}
}

func (b *Builder) AddSwitch(name string, class DeviceClass, cfg SwitchConfig) (NodeRef, error) {
	return b.nodes.AddSwitch(name, class, cfg)
}

func (b *Builder) AddHost(name string, class DeviceClass, cfg HostConfig) (NodeRef, error) {
	return b.nodes.AddHost(name, class, cfg)
}

func (b *Builder) AddLink(a, c NodeRef) (Link, error) {
	return b.links.AddLink(a, c)
}

func (b *Builder) Nodes() *NodeRegistry {
	return b.nodes
}

func (b *Builder) Links() *LinkSet {
	return b.links
}

// Build validates the declarations and returns a snapshot of them. Later
// declarations on the builder do not affect a graph already returned.
func (b *Builder) Build() (*Graph, Diagnostics, error) {
	nodes := b.nodes.All()
	links := b.links.All()

	var errs []error
	for _, n := range nodes {
		if err := validateNode(n); err != nil {
			errs = append(errs, err)
		}
	}

	for _, l := range links {
		if err := b.checkLink(l); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("build topology: %w", errors.Join(errs...))
	}

	var diags Diagnostics
	var isolated []error
	for _, n := range nodes {
		if b.links.Degree(n.Ref()) > 0 {
			continue
		}

		d := Diagnostic{
			Severity: SeverityWarning,
			Node:     n.Ref(),
			Message:  fmt.Sprintf("%s has no links", n.Role),
		}
		if b.opts.Isolation == IsolationError {
			d.Severity = SeverityError
			isolated = append(isolated, fmt.Errorf("node %q: %w", n.Name, ErrIsolatedNode))
		}
		diags = append(diags, d)
	}

	if len(isolated) > 0 {
		return nil, diags, fmt.Errorf("build topology: %w", errors.Join(isolated...))
	}

	return newGraph(nodes, links), diags, nil
}

func (b *Builder) checkLink(l Link) error {
	if l.A == l.B {
		return fmt.Errorf("link %s-%s: %w", l.A, l.B, ErrSelfLink)
	}
	for _, end := range []NodeRef{l.A, l.B} {
		if !b.nodes.Has(string(end)) {
			return fmt.Errorf("link %s-%s: node %q: %w", l.A, l.B, end, ErrUnknownNode)
		}
	}
	return nil
}

package topology

import "fmt"

// Link is an undirected point-to-point connection. PortA and PortB are the
// attachment ports on A and B, numbered per node from 1.
type Link struct {
	A     NodeRef
	B     NodeRef
	PortA int
	PortB int
}

// Interface returns the Mininet-style interface name for port on node.
func Interface(node NodeRef, port int) string {
	return fmt.Sprintf("%s-eth%d", node, port)
}

func (l Link) IfaceA() string {
	return Interface(l.A, l.PortA)
}

func (l Link) IfaceB() string {
	return Interface(l.B, l.PortB)
}

// Touches reports whether the link has node as one of its endpoints.
func (l Link) Touches(node NodeRef) bool {
	return l.A == node || l.B == node
}

// Peer returns the endpoint opposite to node and the port used on it.
func (l Link) Peer(node NodeRef) (NodeRef, int) {
	if l.A == node {
		return l.B, l.PortB
	}
	return l.A, l.PortA
}

// Port returns the port that node uses on this link.
func (l Link) Port(node NodeRef) int {
	if l.A == node {
		return l.PortA
	}
	return l.PortB
}

func (l Link) String() string {
	return fmt.Sprintf("%s:%d <--> %s:%d", l.A, l.PortA, l.B, l.PortB)
}

type pairKey struct {
	lo, hi NodeRef
}

func keyOf(a, b NodeRef) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// LinkSet holds links in insertion order and validates them against a
// NodeRegistry.
type LinkSet struct {
	nodes *NodeRegistry
	links []Link
	pairs map[pairKey]struct{}
	ports map[NodeRef]int
}

func NewLinkSet(nodes *NodeRegistry) *LinkSet {
	return &LinkSet{
		nodes: nodes,
		links: []Link{},
		pairs: map[pairKey]struct{}{},
		ports: map[NodeRef]int{},
	}
}

func (s *LinkSet) AddLink(a, b NodeRef) (Link, error) {
	if _, err := s.nodes.Get(string(a)); err != nil {
		return Link{}, fmt.Errorf("add link %s-%s: %w", a, b, err)
	}
	if _, err := s.nodes.Get(string(b)); err != nil {
		return Link{}, fmt.Errorf("add link %s-%s: %w", a, b, err)
	}

	if a == b {
		return Link{}, fmt.Errorf("add link %s-%s: %w", a, b, ErrSelfLink)
	}

	key := keyOf(a, b)
	if _, exists := s.pairs[key]; exists {
		return Link{}, fmt.Errorf("add link %s-%s: %w", a, b, ErrDuplicateLink)
	}

	s.ports[a]++
	s.ports[b]++
	link := Link{
		A:     a,
		B:     b,
		PortA: s.ports[a],
		PortB: s.ports[b],
	}

	s.pairs[key] = struct{}{}
	s.links = append(s.links, link)
	return link, nil
}

// All returns a copy of the links in insertion order.
func (s *LinkSet) All() []Link {
	out := make([]Link, len(s.links))
	copy(out, s.links)
	return out
}

// Degree returns the number of links touching node.
func (s *LinkSet) Degree(node NodeRef) int {
	return s.ports[node]
}

func (s *LinkSet) Len() int {
	return len(s.links)
}

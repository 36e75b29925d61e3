package topology

// Graph is a finished topology. It is never mutated after Build returns it
// and can be shared read-only.
type Graph struct {
	nodes []Node
	links []Link
	index map[NodeRef]int
}

func newGraph(nodes []Node, links []Link) *Graph {
	g := &Graph{
		nodes: nodes,
		links: links,
		index: make(map[NodeRef]int, len(nodes)),
	}
	for i, n := range nodes {
		g.index[n.Ref()] = i
	}
	return g
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// Links returns the links in declaration order.
func (g *Graph) Links() []Link {
	out := make([]Link, len(g.links))
	copy(out, g.links)
	return out
}

func (g *Graph) Node(name NodeRef) (Node, bool) {
	i, ok := g.index[name]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i].clone(), true
}

func (g *Graph) Switches() []Node {
	return g.byRole(RoleSwitch)
}

func (g *Graph) Hosts() []Node {
	return g.byRole(RoleHost)
}

func (g *Graph) byRole(role Role) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Role == role {
			out = append(out, n.clone())
		}
	}
	return out
}

// LinksOf returns the links touching node in declaration order.
func (g *Graph) LinksOf(node NodeRef) []Link {
	var out []Link
	for _, l := range g.links {
		if l.Touches(node) {
			out = append(out, l)
		}
	}
	return out
}

func (g *Graph) Degree(node NodeRef) int {
	n := 0
	for _, l := range g.links {
		if l.Touches(node) {
			n++
		}
	}
	return n
}

func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

func (g *Graph) NumLinks() int {
	return len(g.links)
}

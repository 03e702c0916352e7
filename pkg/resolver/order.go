package resolver

// InstallOrder returns every node in reverse-topological (leaves-first)
// order, per spec §4.4.4: a parent is only emitted after all of its
// children, so the installer can embed an already-rendered child's output
// into its parent.
func (g *Graph) InstallOrder() []*Node {
	visited := map[*Node]bool{}
	var out []*Node

	var visit func(n *Node)
	visit = func(n *Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, c := range n.Children {
			visit(c)
		}
		out = append(out, n)
	}

	for _, root := range g.Roots {
		visit(root)
	}
	return out
}

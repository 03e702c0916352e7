package resolver

import (
	"strings"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
)

type color int

const (
	white color = iota
	gray
	black
)

// detectCycles walks the graph from every root with a DFS-colored visit,
// per spec §4.4.2: encountering a gray node (one still on the current
// path) means a cycle, reported with the full cycle path.
func detectCycles(roots []*Node) error {
	colors := map[*Node]color{}
	var path []*Node

	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch colors[n] {
		case black:
			return nil
		case gray:
			return cycleError(path, n)
		}
		colors[n] = gray
		path = append(path, n)
		for _, c := range n.Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		colors[n] = black
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return err
		}
	}
	return nil
}

func cycleError(path []*Node, closing *Node) error {
	names := make([]string, 0, len(path)+1)
	start := 0
	for i, n := range path {
		if n == closing {
			start = i
			break
		}
	}
	for _, n := range path[start:] {
		names = append(names, n.CanonicalName())
	}
	names = append(names, closing.CanonicalName())
	return agpmerr.New(agpmerr.KindCircularDependency, "circular dependency: %s", strings.Join(names, " -> "))
}

package workflow

import (
	"github.com/pkg/errors"
)

type graphNode struct {
	name       string
	seq        int
	compute    func()
	deps       map[string]*graphNode
	dependents map[string]*graphNode
}

// Graph is an explicit acyclic dependency graph of named step properties.
// Derived properties register the inputs they read; changing an input
// recomputes every direct and transitive dependent in topological order.
type Graph struct {
	nodes map[string]*graphNode
	next  int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*graphNode)}
}

func (g *Graph) node(name string) *graphNode {
	if n, ok := g.nodes[name]; ok {
		return n
	}
	n := &graphNode{
		name:       name,
		seq:        g.next,
		deps:       make(map[string]*graphNode),
		dependents: make(map[string]*graphNode),
	}
	g.next++
	g.nodes[name] = n
	return n
}

// Input declares a property that is only ever set directly.
func (g *Graph) Input(name string) {
	g.node(name)
}

// Derive registers compute as the recomputation of name, reading inputs.
// Inputs not yet known are declared. A registration that would close a
// cycle is rejected and leaves the graph unchanged.
func (g *Graph) Derive(name string, compute func(), inputs ...string) error {
	for _, in := range inputs {
		if in == name {
			return errors.Errorf("property %s cannot depend on itself", name)
		}
		if g.reaches(name, in) {
			return errors.Errorf("dependency %s -> %s would create a cycle", in, name)
		}
	}

	n := g.node(name)
	if compute != nil {
		n.compute = compute
	}
	for _, in := range inputs {
		src := g.node(in)
		n.deps[in] = src
		src.dependents[name] = n
	}
	return nil
}

// reaches reports whether to is a transitive dependent of from.
func (g *Graph) reaches(from, to string) bool {
	start, ok := g.nodes[from]
	if !ok {
		return false
	}
	seen := make(map[string]bool)
	stack := []*graphNode{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.name == to {
			return true
		}
		if seen[n.name] {
			continue
		}
		seen[n.name] = true
		for _, d := range n.dependents {
			stack = append(stack, d)
		}
	}
	return false
}

// Dependents returns the transitive dependents of name in the order they
// are recomputed.
func (g *Graph) Dependents(name string) []string {
	start, ok := g.nodes[name]
	if !ok {
		return nil
	}

	affected := make(map[string]*graphNode)
	var collect func(n *graphNode)
	collect = func(n *graphNode) {
		for _, d := range n.dependents {
			if _, done := affected[d.name]; done {
				continue
			}
			affected[d.name] = d
			collect(d)
		}
	}
	collect(start)

	return topoSort(affected)
}

// Changed recomputes every transitive dependent of name and returns their
// names in recomputation order.
func (g *Graph) Changed(name string) []string {
	order := g.Dependents(name)
	for _, dep := range order {
		if n := g.nodes[dep]; n.compute != nil {
			n.compute()
		}
	}
	return order
}

// RecomputeAll runs every derived property once in topological order.
func (g *Graph) RecomputeAll() {
	for _, name := range topoSort(g.nodes) {
		if n := g.nodes[name]; n.compute != nil {
			n.compute()
		}
	}
}

// topoSort orders the given subset with Kahn's algorithm, considering only
// edges inside the subset. Ties are broken by registration order.
func topoSort(subset map[string]*graphNode) []string {
	inDegree := make(map[string]int, len(subset))
	for name, n := range subset {
		count := 0
		for dep := range n.deps {
			if _, in := subset[dep]; in {
				count++
			}
		}
		inDegree[name] = count
	}

	var ready []*graphNode
	for name, n := range subset {
		if inDegree[name] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(subset))
	for len(ready) > 0 {
		best := 0
		for i := range ready {
			if ready[i].seq < ready[best].seq {
				best = i
			}
		}
		n := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, n.name)

		for name, d := range n.dependents {
			if _, in := subset[name]; !in {
				continue
			}
			inDegree[name]--
			if inDegree[name] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return order
}

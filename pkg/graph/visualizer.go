package graph

import (
	"fmt"
	"strings"
)

// EdgeInfo describes one routing decision for inspection. Conditional edges
// have no static target; To is "?" for those.
type EdgeInfo struct {
	From        string
	To          string
	Conditional bool
	OnFailure   string
}

// Info is a static snapshot of the graph structure, for logging and
// debugging. It reflects the topology at the time of the call.
type Info struct {
	Name       string
	EntryPoint string
	Nodes      []string
	Edges      []EdgeInfo
}

// Describe returns the graph's structure snapshot.
func (g *Graph) Describe() *Info {
	info := &Info{
		Name:       g.name,
		EntryPoint: g.entryPoint,
		Nodes:      g.Nodes(),
	}
	for _, from := range info.Nodes {
		e, ok := g.edges[from]
		if !ok {
			continue
		}
		ei := EdgeInfo{From: from, To: e.To, OnFailure: g.nodes[from].OnFailure}
		if e.Route != nil {
			ei.To = "?"
			ei.Conditional = true
		}
		info.Edges = append(info.Edges, ei)
	}
	return info
}

// String renders the structure snapshot as a short human-readable listing.
func (i *Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s (entry: %s)\n", i.Name, i.EntryPoint)
	for _, node := range i.Nodes {
		if node == i.EntryPoint {
			fmt.Fprintf(&b, "  * %s\n", node)
		} else {
			fmt.Fprintf(&b, "  - %s\n", node)
		}
	}
	for _, e := range i.Edges {
		arrow := "-->"
		if e.Conditional {
			arrow = "--[route]-->"
		}
		fmt.Fprintf(&b, "  %s %s %s", e.From, arrow, e.To)
		if e.OnFailure != "" {
			fmt.Fprintf(&b, " (on failure: %s)", e.OnFailure)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// DOT renders the structure in Graphviz dot format. Conditional edges have
// no static target, so they point at a shared "?" placeholder node.
func (i *Info) DOT() string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", i.Name)
	fmt.Fprintf(&b, "  %q [shape=doublecircle];\n", END)
	for _, e := range i.Edges {
		if e.Conditional {
			fmt.Fprintf(&b, "  %q [shape=diamond];\n", "?")
			break
		}
	}
	for _, node := range i.Nodes {
		shape := "box"
		if node == i.EntryPoint {
			shape = "box, style=bold"
		}
		fmt.Fprintf(&b, "  %q [shape=%s];\n", node, shape)
	}
	for _, e := range i.Edges {
		switch {
		case e.Conditional:
			fmt.Fprintf(&b, "  %q -> %q [style=dashed, label=\"route\"];\n", e.From, "?")
		default:
			fmt.Fprintf(&b, "  %q -> %q;\n", e.From, e.To)
		}
		if e.OnFailure != "" {
			fmt.Fprintf(&b, "  %q -> %q [style=dotted, label=\"on failure\"];\n", e.From, e.OnFailure)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

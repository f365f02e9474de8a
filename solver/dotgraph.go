package solver

import (
	"fmt"
	"strings"
)

// DotGraph renders g as Graphviz dot source for debugging. Nothing in the
// gateway calls it and no flag enables it. Supplements the
// distilled spec from the original Rust implementation's
// query/dot_graph.rs, which exposes the same debug dump for its
// OperationGraph.
func (g *OperationGraph) DotGraph() string {
	var sb strings.Builder
	sb.WriteString("digraph operation {\n")
	for _, n := range g.Nodes {
		label := fmt.Sprintf("field#%d", n.Field)
		shape := "ellipse"
		if n.Kind == NodeResolver {
			label = fmt.Sprintf("%d@set#%d", n.Resolver.Subgraph, n.Resolver.Set)
			shape = "box"
		}
		fmt.Fprintf(&sb, "  n%d [label=%q shape=%s];\n", n.ID, label, shape)
	}
	for _, e := range g.Edges {
		style := "solid"
		if e.Kind == EdgeRequiredBySupergraph {
			style = "dashed"
		}
		fmt.Fprintf(&sb, "  n%d -> n%d [label=%q style=%s];\n", e.From, e.To, e.Kind.String(), style)
	}
	sb.WriteString("}\n")
	return sb.String()
}

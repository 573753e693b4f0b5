package traverse

import (
	"strings"

	"github.com/orneryd/yggdrasil/pkg/storage"
)

// Path is an ordered walk through the graph: k+1 nodes joined by k edges.
//
// TotalStrength is the product of the edge strengths along the walk. The
// zero-length path (source == target) has strength exactly 1.0; because
// strengths lie in [0,1], strength is non-increasing with length, and for
// any non-trivial path it never exceeds the strongest single edge.
type Path struct {
	Nodes []*storage.Node
	Edges []*storage.Edge
}

// Length returns the number of edges (hops) in the path.
func (p *Path) Length() int {
	return len(p.Edges)
}

// TotalStrength returns the product of edge strengths, 1.0 for the
// zero-length path.
func (p *Path) TotalStrength() float64 {
	strength := 1.0
	for _, e := range p.Edges {
		strength *= e.Strength
	}
	return strength
}

// RelationshipTypes returns the edge types along the path, in walk order.
func (p *Path) RelationshipTypes() []string {
	types := make([]string, len(p.Edges))
	for i, e := range p.Edges {
		types[i] = e.Type
	}
	return types
}

// String renders the path as "A -[part_of]-> B -[depends_on]-> C".
func (p *Path) String() string {
	if len(p.Nodes) == 0 {
		return "<empty path>"
	}
	var sb strings.Builder
	sb.WriteString(p.Nodes[0].Name)
	for i, e := range p.Edges {
		sb.WriteString(" -[")
		sb.WriteString(e.Type)
		sb.WriteString("]-> ")
		sb.WriteString(p.Nodes[i+1].Name)
	}
	return sb.String()
}

// clone returns a copy whose slices are independent of the original, for
// snapshotting a DFS working path into a result.
func (p *Path) clone() *Path {
	return &Path{
		Nodes: append([]*storage.Node(nil), p.Nodes...),
		Edges: append([]*storage.Edge(nil), p.Edges...),
	}
}

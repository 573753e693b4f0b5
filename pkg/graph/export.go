package graph

import (
	"fmt"
	"sort"

	"github.com/orneryd/yggdrasil/pkg/storage"
)

// Export is the JSON-friendly snapshot format for a whole graph.
//
// The core mandates no serialization format; this is the format the CLI
// (and any embedding application that wants one) uses. Nodes and edges are
// sorted by name/key so exports are diffable.
type Export struct {
	Nodes []*storage.Node `json:"nodes"`
	Edges []*storage.Edge `json:"edges"`
}

// Snapshot produces an Export of the current graph contents.
//
// Like every read, the snapshot is read-committed: a concurrent mutation
// may land between reading nodes and reading edges. Edges referencing a
// node the snapshot missed are dropped rather than exported dangling.
func (g *Graph) Snapshot() (*Export, error) {
	nodes, err := g.engine.AllNodes()
	if err != nil {
		return nil, fmt.Errorf("exporting nodes: %w", err)
	}
	edges, err := g.engine.AllEdges()
	if err != nil {
		return nil, fmt.Errorf("exporting edges: %w", err)
	}

	known := make(map[storage.NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.ID] = struct{}{}
	}
	kept := edges[:0]
	for _, e := range edges {
		if _, ok := known[e.Source]; !ok {
			continue
		}
		if _, ok := known[e.Target]; !ok {
			continue
		}
		kept = append(kept, e)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Source != kept[j].Source {
			return kept[i].Source < kept[j].Source
		}
		if kept[i].Target != kept[j].Target {
			return kept[i].Target < kept[j].Target
		}
		return kept[i].Type < kept[j].Type
	})

	return &Export{Nodes: nodes, Edges: kept}, nil
}

// Load replays an Export through the normal upsert path, so loading into a
// non-empty graph merges rather than duplicates. Node IDs are not preserved
// across a load - names are the identity.
func (g *Graph) Load(export *Export) error {
	if export == nil {
		return fmt.Errorf("%w: nil export", ErrInvalidArgument)
	}

	idsByOldID := make(map[storage.NodeID]storage.NodeID, len(export.Nodes))
	for _, n := range export.Nodes {
		newID, err := g.UpsertNode(n.Name, n.Type, n.Properties, n.Importance)
		if err != nil {
			return fmt.Errorf("loading node %q: %w", n.Name, err)
		}
		idsByOldID[n.ID] = newID
	}

	for _, e := range export.Edges {
		source, ok := idsByOldID[e.Source]
		if !ok {
			return fmt.Errorf("%w: edge %s references unknown node %s", ErrInvalidArgument, e.ID, e.Source)
		}
		target, ok := idsByOldID[e.Target]
		if !ok {
			return fmt.Errorf("%w: edge %s references unknown node %s", ErrInvalidArgument, e.ID, e.Target)
		}
		if _, err := g.Connect(source, target, e.Type, e.Strength, e.Evidence, e.Bidirectional); err != nil {
			return fmt.Errorf("loading edge %s-[%s]->%s: %w", e.Source, e.Type, e.Target, err)
		}
	}
	return nil
}

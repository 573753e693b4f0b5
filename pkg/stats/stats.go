// Package stats computes summary statistics over a graph store: counts,
// type distributions, density, and degree rankings.
package stats

import (
	"context"
	"sort"

	"github.com/orneryd/yggdrasil/pkg/storage"
)

// Statistics is a point-in-time summary of a graph.
type Statistics struct {
	Nodes             int            `json:"nodes"`
	Edges             int            `json:"edges"`
	NodeTypes         map[string]int `json:"node_types"`
	RelationshipTypes map[string]int `json:"relationship_types"`
	// Density is edges / (n * (n-1)), the fraction of possible directed
	// edges that exist. Zero for graphs with fewer than two nodes.
	Density        float64 `json:"density"`
	MeanImportance float64 `json:"mean_importance"`
	MeanStrength   float64 `json:"mean_strength"`
	Insights       int     `json:"insights"`
	Hypotheses     int     `json:"hypotheses"`
}

// Ranked is one entry in a degree ranking.
type Ranked struct {
	Node   *storage.Node `json:"node"`
	Degree int           `json:"degree"`
}

// Collect computes full statistics over the store. The counts are
// individually consistent but not a single atomic snapshot; on a mutating
// graph, derived ratios can be slightly stale.
func Collect(ctx context.Context, engine storage.Engine) (*Statistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes, err := engine.AllNodes()
	if err != nil {
		return nil, err
	}
	edges, err := engine.AllEdges()
	if err != nil {
		return nil, err
	}
	insights, err := engine.InsightCount()
	if err != nil {
		return nil, err
	}
	hypotheses, err := engine.HypothesisCount()
	if err != nil {
		return nil, err
	}

	s := &Statistics{
		Nodes:             len(nodes),
		Edges:             len(edges),
		NodeTypes:         make(map[string]int),
		RelationshipTypes: make(map[string]int),
		Insights:          int(insights),
		Hypotheses:        int(hypotheses),
	}

	importance := 0.0
	for _, n := range nodes {
		s.NodeTypes[n.Type]++
		importance += n.Importance
	}
	if len(nodes) > 0 {
		s.MeanImportance = importance / float64(len(nodes))
	}

	strength := 0.0
	for _, e := range edges {
		s.RelationshipTypes[e.Type]++
		strength += e.Strength
	}
	if len(edges) > 0 {
		s.MeanStrength = strength / float64(len(edges))
	}

	if len(nodes) > 1 {
		s.Density = float64(len(edges)) / float64(len(nodes)*(len(nodes)-1))
	}

	return s, nil
}

// MostConnected returns the limit highest-degree nodes, degree counting
// both outgoing and incoming edges (a bidirectional edge counts once on
// each side). Ties break by node name ascending so rankings are stable.
func MostConnected(ctx context.Context, engine storage.Engine, limit int) ([]Ranked, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	nodes, err := engine.AllNodes()
	if err != nil {
		return nil, err
	}

	ranked := make([]Ranked, 0, len(nodes))
	for _, n := range nodes {
		degree := engine.GetOutDegree(n.ID) + engine.GetInDegree(n.ID)
		ranked = append(ranked, Ranked{Node: n, Degree: degree})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Degree != ranked[j].Degree {
			return ranked[i].Degree > ranked[j].Degree
		}
		return ranked[i].Node.Name < ranked[j].Node.Name
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

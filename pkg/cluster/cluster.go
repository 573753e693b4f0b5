// Package cluster groups graph nodes into connectivity clusters: maximal
// sets of nodes joined by strong edges, each scored by cohesion.
//
// Clustering treats the graph as undirected - a strong edge binds both of
// its endpoints regardless of direction or the bidirectional flag. The
// result is a partition of the strongly-connected portion of the graph:
// every node lands in at most one cluster, and singletons (or clusters
// below MinSize) are omitted.
package cluster

import (
	"context"
	"sort"
	"sync"

	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/storage"
)

// Defaults for Config zero values.
const (
	DefaultMinSize        = 3
	DefaultExpandStrength = 0.5
	DefaultMaxClusterSize = 20
)

// Config tunes cluster detection.
type Config struct {
	// MinSize drops clusters with fewer members. Defaults to
	// DefaultMinSize.
	MinSize int
	// ExpandStrength is the strictly-greater-than threshold an edge must
	// clear to join two nodes into a cluster. Defaults to
	// DefaultExpandStrength.
	ExpandStrength float64
	// MaxClusterSize caps growth of a single cluster. Defaults to
	// DefaultMaxClusterSize.
	MaxClusterSize int
}

func (c Config) withDefaults() Config {
	if c.MinSize == 0 {
		c.MinSize = DefaultMinSize
	}
	if c.ExpandStrength == 0 {
		c.ExpandStrength = DefaultExpandStrength
	}
	if c.MaxClusterSize == 0 {
		c.MaxClusterSize = DefaultMaxClusterSize
	}
	return c
}

// Cluster is one detected group of strongly connected nodes.
type Cluster struct {
	Nodes    []*storage.Node
	Size     int
	Cohesion float64
	// InternalEdges counts edges with both endpoints inside the cluster.
	InternalEdges int
}

// Detector finds clusters over a graph. The most recent result is cached
// against the graph's version counter, so repeated calls on an unchanged
// graph are free.
type Detector struct {
	g   *graph.Graph
	cfg Config

	mu         sync.Mutex
	cached     []Cluster
	cachedAt   uint64
	cacheValid bool
}

// New creates a detector with the given config; zero fields take defaults.
func New(g *graph.Graph, cfg Config) *Detector {
	return &Detector{g: g, cfg: cfg.withDefaults()}
}

// Detect partitions the graph into clusters of size >= MinSize, sorted by
// size descending, then cohesion descending.
//
// Seeds are visited in node-name order and growth is first-seed-wins: a node
// claimed by an earlier cluster never joins a later one. Growth is a
// breadth-first walk that follows edges with strength strictly greater than
// ExpandStrength, in either direction, and stops at MaxClusterSize.
func (d *Detector) Detect(ctx context.Context) ([]Cluster, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	version := d.g.Version()
	if d.cacheValid && d.cachedAt == version {
		return d.cached, nil
	}

	nodes, err := d.g.Engine().AllNodes()
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ID < nodes[j].ID
	})

	claimed := make(map[storage.NodeID]struct{})
	var clusters []Cluster

	for _, seed := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, taken := claimed[seed.ID]; taken {
			continue
		}

		members, err := d.grow(ctx, seed, claimed)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			claimed[m.ID] = struct{}{}
		}
		if len(members) < d.cfg.MinSize {
			continue
		}

		cohesion, internal, err := d.cohesion(members)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, Cluster{
			Nodes:         members,
			Size:          len(members),
			Cohesion:      cohesion,
			InternalEdges: internal,
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].Cohesion > clusters[j].Cohesion
	})

	d.cached = clusters
	d.cachedAt = version
	d.cacheValid = true
	return clusters, nil
}

// grow breadth-first expands a cluster from seed along strong edges,
// skipping nodes already claimed by earlier clusters.
func (d *Detector) grow(ctx context.Context, seed *storage.Node, claimed map[storage.NodeID]struct{}) ([]*storage.Node, error) {
	members := []*storage.Node{seed}
	inCluster := map[storage.NodeID]struct{}{seed.ID: {}}
	frontier := []storage.NodeID{seed.ID}

	for len(frontier) > 0 && len(members) < d.cfg.MaxClusterSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []storage.NodeID
		for _, id := range frontier {
			neighbors, err := d.g.Neighbors(ctx, id, "", graph.DirectionBoth)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if len(members) >= d.cfg.MaxClusterSize {
					break
				}
				if n.Edge.Strength <= d.cfg.ExpandStrength {
					continue
				}
				if _, in := inCluster[n.Node.ID]; in {
					continue
				}
				if _, taken := claimed[n.Node.ID]; taken {
					continue
				}
				inCluster[n.Node.ID] = struct{}{}
				members = append(members, n.Node)
				next = append(next, n.Node.ID)
			}
		}
		frontier = next
	}

	return members, nil
}

// cohesion scores how tightly a cluster holds together: the mean strength
// of its internal edges divided by the internal edge count. The score is
// only meaningful as a relative ranking between clusters of similar size.
func (d *Detector) cohesion(members []*storage.Node) (float64, int, error) {
	inCluster := make(map[storage.NodeID]struct{}, len(members))
	for _, m := range members {
		inCluster[m.ID] = struct{}{}
	}

	seen := make(map[storage.EdgeID]struct{})
	total := 0.0
	count := 0
	for _, m := range members {
		edges, err := d.g.Engine().GetOutgoingEdges(m.ID)
		if err != nil {
			return 0, 0, err
		}
		for _, e := range edges {
			if e.Source == e.Target {
				continue
			}
			if _, in := inCluster[e.Target]; !in {
				continue
			}
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			total += e.Strength
			count++
		}
	}

	if count == 0 {
		return 0, 0, nil
	}
	mean := total / float64(count)
	return mean / float64(count), count, nil
}

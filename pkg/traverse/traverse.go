// Package traverse implements graph traversal for Yggdrasil: shortest-path
// search, bounded multi-path enumeration, and non-obvious-connection
// discovery. Everything is built on graph.Adjacent - outgoing edges plus
// bidirectional incoming edges.
//
// Two deliberately distinct visited-set disciplines:
//
//   - ShortestPath uses a GLOBAL visited set: a node is expanded at most
//     once across the whole search. BFS with FIFO order therefore returns
//     the fewest-hops path, with ties broken by neighbor-enumeration order.
//
//   - AllPaths uses a BRANCH-LOCAL visited set with backtracking: a node
//     may reappear on different, non-overlapping branches. This is a
//     different algorithm, not ShortestPath with a toggle; merging them
//     invites subtle correctness bugs.
//
// No traversal holds a graph lock across its execution; each neighbor
// lookup is individually consistent, so a long walk on a mutating graph is
// read-committed, not repeatable-read. All walks terminate by construction:
// MaxDepth bounds depth, MaxPaths bounds enumeration, and every call checks
// its context so dense high-depth searches are cancellable.
package traverse

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/storage"
)

// Options bounds a single-path search.
type Options struct {
	// MaxDepth is the maximum number of hops. Must be positive.
	MaxDepth int
	// MinEdgeStrength prunes edges weaker than this before expansion.
	MinEdgeStrength float64
}

// AllPathsOptions bounds a multi-path enumeration.
type AllPathsOptions struct {
	Options
	// MaxPaths stops the search after this many paths are collected. This
	// is a first-N-found truncation, not a guaranteed global top-N: the
	// strongest path overall may lie on a branch the search never reached.
	MaxPaths int
}

// Connection is one discovered non-obvious link from a source node.
type Connection struct {
	Target        *storage.Node
	Distance      int
	PathStrength  float64
	Path          *Path
	Relationships []string
}

// Engine runs traversals over a Graph. It is stateless and safe for
// concurrent use.
type Engine struct {
	g *graph.Graph
}

// New creates a traversal engine over g.
func New(g *graph.Graph) *Engine {
	return &Engine{g: g}
}

// ShortestPath finds the fewest-hops path from source to target.
//
// Breadth-first with FIFO expansion and a global visited set. Edges with
// strength below opts.MinEdgeStrength are pruned before expansion. The
// result minimizes hop count, NOT path strength: a strong 2-hop detour
// loses to a weaker direct edge. Ties between equal-length paths fall to
// neighbor-enumeration order; that is an accepted, documented property.
//
// source == target returns the trivial zero-length path with strength 1.0.
// No qualifying path within MaxDepth returns (nil, nil) - absence is a
// normal result, not an error.
//
// Errors: ErrInvalidArgument for non-positive MaxDepth, ErrNotFound when
// either endpoint is absent, context errors on cancellation.
func (e *Engine) ShortestPath(ctx context.Context, source, target storage.NodeID, opts Options) (*Path, error) {
	if opts.MaxDepth <= 0 {
		return nil, fmt.Errorf("%w: max depth must be positive, got %d", graph.ErrInvalidArgument, opts.MaxDepth)
	}

	sourceNode, err := e.g.GetNode(source)
	if err != nil {
		return nil, err
	}
	if _, err := e.g.GetNode(target); err != nil {
		return nil, err
	}

	if source == target {
		return &Path{Nodes: []*storage.Node{sourceNode}}, nil
	}

	type queueItem struct {
		node *storage.Node
		path *Path
	}

	queue := []queueItem{{
		node: sourceNode,
		path: &Path{Nodes: []*storage.Node{sourceNode}},
	}}

	// Global visited set: each node is expanded at most once in the whole
	// search. Marking happens at enqueue time so BFS level order holds.
	visited := map[storage.NodeID]struct{}{source: {}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]

		if current.path.Length() >= opts.MaxDepth {
			continue
		}

		neighbors, err := e.g.Adjacent(ctx, current.node.ID)
		if err != nil {
			return nil, err
		}

		for _, n := range neighbors {
			if n.Edge.Strength < opts.MinEdgeStrength {
				continue
			}
			if _, seen := visited[n.Node.ID]; seen {
				continue
			}

			next := &Path{
				Nodes: append(append([]*storage.Node(nil), current.path.Nodes...), n.Node),
				Edges: append(append([]*storage.Edge(nil), current.path.Edges...), n.Edge),
			}
			if n.Node.ID == target {
				return next, nil
			}

			visited[n.Node.ID] = struct{}{}
			queue = append(queue, queueItem{node: n.Node, path: next})
		}
	}

	return nil, nil
}

// AllPaths enumerates up to MaxPaths distinct paths from source to target,
// sorted by total strength descending.
//
// Depth-first with backtracking and a branch-local visited set: a node
// excluded on one branch may appear on another, so alternate routes through
// shared waypoints are found. The search stops as soon as MaxPaths results
// are collected - an approximation, not a guaranteed top-MaxPaths.
//
// An empty slice is a normal result for disconnected pairs.
func (e *Engine) AllPaths(ctx context.Context, source, target storage.NodeID, opts AllPathsOptions) ([]*Path, error) {
	if opts.MaxDepth <= 0 {
		return nil, fmt.Errorf("%w: max depth must be positive, got %d", graph.ErrInvalidArgument, opts.MaxDepth)
	}
	if opts.MaxPaths <= 0 {
		return nil, fmt.Errorf("%w: max paths must be positive, got %d", graph.ErrInvalidArgument, opts.MaxPaths)
	}

	sourceNode, err := e.g.GetNode(source)
	if err != nil {
		return nil, err
	}
	if _, err := e.g.GetNode(target); err != nil {
		return nil, err
	}

	var results []*Path
	working := &Path{Nodes: []*storage.Node{sourceNode}}
	onPath := map[storage.NodeID]struct{}{source: {}}

	var walk func(current *storage.Node) error
	walk = func(current *storage.Node) error {
		if len(results) >= opts.MaxPaths {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if working.Length() >= opts.MaxDepth {
			return nil
		}

		neighbors, err := e.g.Adjacent(ctx, current.ID)
		if err != nil {
			return err
		}

		for _, n := range neighbors {
			if len(results) >= opts.MaxPaths {
				return nil
			}
			if n.Edge.Strength < opts.MinEdgeStrength {
				continue
			}
			if _, cyc := onPath[n.Node.ID]; cyc {
				continue
			}

			working.Nodes = append(working.Nodes, n.Node)
			working.Edges = append(working.Edges, n.Edge)

			if n.Node.ID == target {
				results = append(results, working.clone())
			} else {
				onPath[n.Node.ID] = struct{}{}
				if err := walk(n.Node); err != nil {
					return err
				}
				delete(onPath, n.Node.ID) // backtrack: branch-local only
			}

			working.Nodes = working.Nodes[:len(working.Nodes)-1]
			working.Edges = working.Edges[:len(working.Edges)-1]
		}
		return nil
	}

	if source != target {
		if err := walk(sourceNode); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalStrength() > results[j].TotalStrength()
	})
	return results, nil
}

// discoverParallelism bounds the concurrent ShortestPath calls in phase two
// of DiscoverConnections.
const discoverParallelism = 8

// DiscoverConnections surfaces relationships invisible from direct
// adjacency: nodes reachable from nodeID within maxHops that are NOT
// direct neighbors, each with one representative path.
//
// Two phases:
//
//  1. Bounded BFS from nodeID computing the minimum hop distance to every
//     reachable node within maxHops.
//  2. For every reachable node at distance >= 2, compute one path via
//     ShortestPath and keep it if its total strength is at least
//     minPathStrength. Phase two fans out across a bounded worker group;
//     each worker runs an independent read-only search.
//
// Results are sorted by (path strength desc, distance desc): at equal
// strength the more surprising - farther - connection ranks first. Name
// order breaks remaining ties so output is deterministic.
func (e *Engine) DiscoverConnections(ctx context.Context, nodeID storage.NodeID, maxHops int, minPathStrength float64) ([]Connection, error) {
	if maxHops <= 0 {
		return nil, fmt.Errorf("%w: max hops must be positive, got %d", graph.ErrInvalidArgument, maxHops)
	}

	if _, err := e.g.GetNode(nodeID); err != nil {
		return nil, err
	}

	// Phase one: hop distances via bounded BFS.
	distances := map[storage.NodeID]int{nodeID: 0}
	frontier := []storage.NodeID{nodeID}

	for depth := 0; depth < maxHops && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []storage.NodeID
		for _, id := range frontier {
			neighbors, err := e.g.Adjacent(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if _, seen := distances[n.Node.ID]; seen {
					continue
				}
				distances[n.Node.ID] = depth + 1
				next = append(next, n.Node.ID)
			}
		}
		frontier = next
	}

	// Phase two: one representative path per non-obvious target.
	type candidate struct {
		id       storage.NodeID
		distance int
	}
	var candidates []candidate
	for id, dist := range distances {
		if dist < 2 {
			continue // self and direct neighbors are obvious
		}
		candidates = append(candidates, candidate{id: id, distance: dist})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].id < candidates[j].id })

	conns := make([]*Connection, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(discoverParallelism)

	for i, cand := range candidates {
		i, cand := i, cand
		eg.Go(func() error {
			path, err := e.ShortestPath(egCtx, nodeID, cand.id, Options{MaxDepth: maxHops})
			if err != nil {
				return err
			}
			if path == nil {
				return nil // graph changed mid-walk; drop the candidate
			}
			strength := path.TotalStrength()
			if strength < minPathStrength {
				return nil
			}
			target := path.Nodes[len(path.Nodes)-1]
			conns[i] = &Connection{
				Target:        target,
				Distance:      cand.distance,
				PathStrength:  strength,
				Path:          path,
				Relationships: path.RelationshipTypes(),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	results := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if c != nil {
			results = append(results, *c)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].PathStrength != results[j].PathStrength {
			return results[i].PathStrength > results[j].PathStrength
		}
		if results[i].Distance != results[j].Distance {
			return results[i].Distance > results[j].Distance
		}
		return results[i].Target.Name < results[j].Target.Name
	})
	return results, nil
}

// Package graph implements the knowledge-graph store for Yggdrasil.
//
// The graph layer owns the semantics the raw storage engine does not:
//   - Upsert-by-name for nodes (last-write-wins merge, stable IDs)
//   - Merge-by-(source,target,type) for edges (never duplicates)
//   - Argument validation (name, importance, strength ranges)
//   - Neighbor lookup with direction and type filtering
//   - A coarse write lock making check-then-write mutations atomic
//   - Transactional invalidation of the neighbor cache
//
// Concurrency model: mutations serialize behind a single write lock.
// Read-only operations (Neighbors, traversal, clustering, statistics) run
// concurrently with each other and are NOT snapshot-isolated against
// concurrent mutation - a long traversal may observe a graph that changed
// mid-walk (read-committed, not repeatable-read). No operation here performs
// network or blocking I/O beyond the storage engine itself.
//
// Example Usage:
//
//	g := graph.New(storage.NewMemoryEngine())
//
//	python, _ := g.UpsertNode("Python", "language", nil, 0.9)
//	pandas, _ := g.UpsertNode("Pandas", "library", nil, 0.8)
//
//	g.Connect(pandas, python, graph.RelPartOf, 0.9, "pandas is built on Python", false)
//
//	neighbors, _ := g.Neighbors(ctx, pandas, "", graph.DirectionOutgoing)
//	for _, n := range neighbors {
//		fmt.Printf("%s -[%s %.2f]-> %s\n", "Pandas", n.Edge.Type, n.Edge.Strength, n.Node.Name)
//	}
package graph

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orneryd/yggdrasil/pkg/cache"
	"github.com/orneryd/yggdrasil/pkg/storage"
)

// Error taxonomy. Callers test with errors.Is; anything not matching these
// sentinels is a storage error propagated verbatim from the engine.
var (
	// ErrNotFound means a referenced node or edge does not exist.
	ErrNotFound = storage.ErrNotFound
	// ErrInvalidArgument means an empty name, an out-of-range importance or
	// strength, or a non-positive bound.
	ErrInvalidArgument = errors.New("invalid argument")
)

// DefaultImportance is the importance assigned to nodes whose callers have
// no opinion. Pass it to UpsertNode explicitly.
const DefaultImportance = 0.5

// Direction selects which edges a Neighbors call follows.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Neighbor pairs an adjacent node with the edge that reaches it.
type Neighbor struct {
	Node *storage.Node
	Edge *storage.Edge
}

// Graph is the knowledge-graph store.
//
// All methods are safe for concurrent use. Mutations (UpsertNode, Connect,
// Load) are serialized; reads run concurrently.
type Graph struct {
	mu     sync.RWMutex
	engine storage.Engine

	neighbors *cache.NeighborCache

	// version increases on every successful mutation. Derived views
	// (cluster caches, neighbor cache keys) key off it.
	version uint64
}

// New creates a Graph over the given storage engine with a default-sized
// neighbor cache.
func New(engine storage.Engine) *Graph {
	return NewWithCacheSize(engine, 4096)
}

// NewWithCacheSize creates a Graph with an explicit neighbor cache capacity.
func NewWithCacheSize(engine storage.Engine, cacheSize int) *Graph {
	return &Graph{
		engine:    engine,
		neighbors: cache.NewNeighborCache(cacheSize),
	}
}

// Engine exposes the underlying storage engine for read-only consumers
// (statistics, export). Mutating through it bypasses upsert semantics and
// cache invalidation - don't.
func (g *Graph) Engine() storage.Engine {
	return g.engine
}

// Version returns the current mutation counter. It increases on every
// successful UpsertNode or Connect, so derived views can detect staleness.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// CacheStats returns neighbor cache hit/miss statistics.
func (g *Graph) CacheStats() cache.Stats {
	return g.neighbors.Stats()
}

// UpsertNode creates a node or merges into the existing node with the same
// name. Name is the upsert key: the second upsert of "Python" updates type,
// properties and importance (last-write-wins) and returns the original ID.
//
// Parameters:
//   - name: unique node name. Empty names are rejected.
//   - nodeType: open type tag ("concept", "entity", "skill", ...)
//   - properties: open key-value data, may be nil
//   - importance: centrality weight in [0,1]; pass graph.DefaultImportance
//     when indifferent. Out-of-range values are rejected, not clamped.
//
// Returns the stable node ID, or ErrInvalidArgument on bad input.
func (g *Graph) UpsertNode(name, nodeType string, properties map[string]any, importance float64) (storage.NodeID, error) {
	if name == "" {
		return "", fmt.Errorf("%w: node name must not be empty", ErrInvalidArgument)
	}
	if importance < 0 || importance > 1 {
		return "", fmt.Errorf("%w: importance %v outside [0,1]", ErrInvalidArgument, importance)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()

	existing, err := g.engine.GetNodeByName(name)
	switch {
	case err == nil:
		merged := &storage.Node{
			ID:         existing.ID,
			Name:       name,
			Type:       nodeType,
			Properties: properties,
			Importance: importance,
			CreatedAt:  existing.CreatedAt,
			UpdatedAt:  now,
		}
		if err := g.engine.UpdateNode(merged); err != nil {
			return "", fmt.Errorf("merging node %q: %w", name, err)
		}
		g.bumpLocked()
		return existing.ID, nil

	case errors.Is(err, storage.ErrNotFound):
		node := &storage.Node{
			ID:         storage.NodeID(generateID("node")),
			Name:       name,
			Type:       nodeType,
			Properties: properties,
			Importance: importance,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := g.engine.CreateNode(node); err != nil {
			return "", fmt.Errorf("creating node %q: %w", name, err)
		}
		g.bumpLocked()
		return node.ID, nil

	default:
		return "", fmt.Errorf("looking up node %q: %w", name, err)
	}
}

// GetNode retrieves a node by its stable ID.
// Returns ErrNotFound when absent.
func (g *Graph) GetNode(id storage.NodeID) (*storage.Node, error) {
	node, err := g.engine.GetNode(id)
	if err != nil {
		return nil, fmt.Errorf("getting node %s: %w", id, err)
	}
	return node, nil
}

// GetNodeByName retrieves a node by its unique name.
// Returns ErrNotFound when absent.
func (g *Graph) GetNodeByName(name string) (*storage.Node, error) {
	node, err := g.engine.GetNodeByName(name)
	if err != nil {
		return nil, fmt.Errorf("getting node %q: %w", name, err)
	}
	return node, nil
}

// Connect creates an edge or merges into the existing edge with the same
// (source, target, relationship type) key. Reinsertion updates strength,
// evidence and the bidirectional flag - it never duplicates.
//
// Self-loops (source == target) are accepted; they merge by the same key,
// count toward both degrees, and are never followed by traversal.
//
// Parameters:
//   - source/target: endpoint node IDs; both must exist (ErrNotFound)
//   - relType: relationship type. Any non-empty string is accepted; see
//     IsKnownRelationship for the suggested vocabulary.
//   - strength: weight in [0,1]. Out-of-range values are rejected with
//     ErrInvalidArgument, not clamped - a caller sending 1.7 has a bug we
//     refuse to paper over.
//   - evidence: free-text justification
//   - bidirectional: when true the edge is walkable in both directions
//
// Returns the stable edge ID.
func (g *Graph) Connect(source, target storage.NodeID, relType string, strength float64, evidence string, bidirectional bool) (storage.EdgeID, error) {
	if relType == "" {
		return "", fmt.Errorf("%w: relationship type must not be empty", ErrInvalidArgument)
	}
	if strength < 0 || strength > 1 {
		return "", fmt.Errorf("%w: strength %v outside [0,1]", ErrInvalidArgument, strength)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.engine.GetNode(source); err != nil {
		return "", fmt.Errorf("connect source %s: %w", source, err)
	}
	if _, err := g.engine.GetNode(target); err != nil {
		return "", fmt.Errorf("connect target %s: %w", target, err)
	}

	now := time.Now()
	key := storage.EdgeKey{Source: source, Target: target, Type: relType}

	existing, err := g.engine.GetEdgeByKey(key)
	switch {
	case err == nil:
		merged := &storage.Edge{
			ID:            existing.ID,
			Source:        source,
			Target:        target,
			Type:          relType,
			Strength:      strength,
			Evidence:      evidence,
			Bidirectional: bidirectional,
			CreatedAt:     existing.CreatedAt,
			UpdatedAt:     now,
		}
		if err := g.engine.UpdateEdge(merged); err != nil {
			return "", fmt.Errorf("merging edge %s-[%s]->%s: %w", source, relType, target, err)
		}
		g.bumpLocked()
		return existing.ID, nil

	case errors.Is(err, storage.ErrNotFound):
		edge := &storage.Edge{
			ID:            storage.EdgeID(generateID("edge")),
			Source:        source,
			Target:        target,
			Type:          relType,
			Strength:      strength,
			Evidence:      evidence,
			Bidirectional: bidirectional,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := g.engine.CreateEdge(edge); err != nil {
			return "", fmt.Errorf("creating edge %s-[%s]->%s: %w", source, relType, target, err)
		}
		g.bumpLocked()
		return edge.ID, nil

	default:
		return "", fmt.Errorf("looking up edge %s-[%s]->%s: %w", source, relType, target, err)
	}
}

// GetEdge retrieves an edge by its stable ID.
func (g *Graph) GetEdge(id storage.EdgeID) (*storage.Edge, error) {
	edge, err := g.engine.GetEdge(id)
	if err != nil {
		return nil, fmt.Errorf("getting edge %s: %w", id, err)
	}
	return edge, nil
}

// DirectEdge returns the edge between two nodes with the given type and
// stored direction, or ErrNotFound.
func (g *Graph) DirectEdge(source, target storage.NodeID, relType string) (*storage.Edge, error) {
	edge, err := g.engine.GetEdgeByKey(storage.EdgeKey{Source: source, Target: target, Type: relType})
	if err != nil {
		return nil, fmt.Errorf("getting edge %s-[%s]->%s: %w", source, relType, target, err)
	}
	return edge, nil
}

// DirectEdgesBetween returns every edge that directly links a and b, in
// either stored direction and of any type.
func (g *Graph) DirectEdgesBetween(a, b storage.NodeID) ([]*storage.Edge, error) {
	out, err := g.engine.GetOutgoingEdges(a)
	if err != nil {
		return nil, fmt.Errorf("edges between %s and %s: %w", a, b, err)
	}
	in, err := g.engine.GetIncomingEdges(a)
	if err != nil {
		return nil, fmt.Errorf("edges between %s and %s: %w", a, b, err)
	}

	var edges []*storage.Edge
	seen := make(map[storage.EdgeID]struct{})
	for _, e := range out {
		if e.Target == b {
			if _, dup := seen[e.ID]; !dup {
				seen[e.ID] = struct{}{}
				edges = append(edges, e)
			}
		}
	}
	for _, e := range in {
		if e.Source == b {
			if _, dup := seen[e.ID]; !dup {
				seen[e.ID] = struct{}{}
				edges = append(edges, e)
			}
		}
	}
	return edges, nil
}

// Neighbors returns the nodes adjacent to nodeID together with the edges
// reaching them.
//
// Parameters:
//   - relType: filter to a single relationship type, "" for any
//   - direction: outgoing follows edges where nodeID is the source,
//     incoming where it is the target, both does both.
//
// Direction both de-duplicates by edge ID, so a bidirectional edge (or a
// self-loop) appears exactly once per call - never double-counted from the
// two query directions.
//
// Returns ErrNotFound if nodeID does not exist. Results come from the
// neighbor cache when the graph has not mutated since the last identical
// lookup.
func (g *Graph) Neighbors(ctx context.Context, nodeID storage.NodeID, relType string, direction Direction) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch direction {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, direction)
	}

	if _, err := g.engine.GetNode(nodeID); err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
	}

	g.mu.RLock()
	version := g.version
	g.mu.RUnlock()

	key := g.neighbors.Key(fmt.Sprintf("v%d", version), string(nodeID), relType, string(direction))
	if cached, ok := g.neighbors.Get(key); ok {
		return cached.([]Neighbor), nil
	}

	result, err := g.lookupNeighbors(nodeID, relType, direction)
	if err != nil {
		return nil, err
	}
	g.neighbors.Put(key, result)
	return result, nil
}

func (g *Graph) lookupNeighbors(nodeID storage.NodeID, relType string, direction Direction) ([]Neighbor, error) {
	var edges []*storage.Edge
	seen := make(map[storage.EdgeID]struct{})

	add := func(batch []*storage.Edge) {
		for _, e := range batch {
			if relType != "" && e.Type != relType {
				continue
			}
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			edges = append(edges, e)
		}
	}

	if direction == DirectionOutgoing || direction == DirectionBoth {
		out, err := g.engine.GetOutgoingEdges(nodeID)
		if err != nil {
			return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
		}
		add(out)
	}
	if direction == DirectionIncoming || direction == DirectionBoth {
		in, err := g.engine.GetIncomingEdges(nodeID)
		if err != nil {
			return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
		}
		add(in)
	}

	neighbors := make([]Neighbor, 0, len(edges))
	for _, e := range edges {
		otherID := e.Target
		if e.Source != nodeID {
			otherID = e.Source
		}
		other, err := g.engine.GetNode(otherID)
		if err != nil {
			return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
		}
		neighbors = append(neighbors, Neighbor{Node: other, Edge: e})
	}
	return neighbors, nil
}

// Adjacent returns the traversal adjacency of nodeID: outgoing edges in
// their stored direction plus incoming edges flagged bidirectional.
// Self-loops are excluded - a walk never steps from a node to itself.
//
// This is the single adjacency definition all traversal, discovery and
// hypothesis code builds on.
func (g *Graph) Adjacent(ctx context.Context, nodeID storage.NodeID) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	version := g.version
	g.mu.RUnlock()

	key := g.neighbors.Key(fmt.Sprintf("v%d", version), string(nodeID), "", "adjacent")
	if cached, ok := g.neighbors.Get(key); ok {
		return cached.([]Neighbor), nil
	}

	out, err := g.engine.GetOutgoingEdges(nodeID)
	if err != nil {
		return nil, fmt.Errorf("adjacency of %s: %w", nodeID, err)
	}
	in, err := g.engine.GetIncomingEdges(nodeID)
	if err != nil {
		return nil, fmt.Errorf("adjacency of %s: %w", nodeID, err)
	}

	var neighbors []Neighbor
	seen := make(map[storage.EdgeID]struct{})

	for _, e := range out {
		if e.Target == nodeID {
			continue // self-loop
		}
		seen[e.ID] = struct{}{}
		node, err := g.engine.GetNode(e.Target)
		if err != nil {
			return nil, fmt.Errorf("adjacency of %s: %w", nodeID, err)
		}
		neighbors = append(neighbors, Neighbor{Node: node, Edge: e})
	}
	for _, e := range in {
		if !e.Bidirectional || e.Source == nodeID {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		node, err := g.engine.GetNode(e.Source)
		if err != nil {
			return nil, fmt.Errorf("adjacency of %s: %w", nodeID, err)
		}
		neighbors = append(neighbors, Neighbor{Node: node, Edge: e})
	}

	g.neighbors.Put(key, neighbors)
	return neighbors, nil
}

// bumpLocked advances the version and purges the neighbor cache. Must be
// called with the write lock held so the purge is atomic with the mutation.
func (g *Graph) bumpLocked() {
	g.version++
	g.neighbors.Purge()
}

// generateID creates a unique ID with prefix.
func generateID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// Package storage provides the storage engine interface and implementations
// for Yggdrasil.
//
// The storage layer owns the raw node, edge, insight and hypothesis records.
// It knows nothing about upsert policy, traversal or synthesis - those
// semantics live in pkg/graph and above. What it does guarantee:
//
//   - A unique index on node Name
//   - A unique composite index on edge (Source, Target, Type)
//   - Range/filter lookups by node ID for neighbor queries
//   - Thread safety for every operation
//
// Design Principles:
//   - Testability through dependency injection (everything runs against Engine)
//   - Deep copies on read and write so callers can never mutate stored state
//   - Append-only buckets for advisory records (insights, hypotheses)
//
// Example Usage:
//
//	// Create storage engine
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	node := &storage.Node{
//		ID:         storage.NodeID("node-a1b2"),
//		Name:       "Python",
//		Type:       "language",
//		Importance: 0.9,
//		CreatedAt:  time.Now(),
//	}
//	engine.CreateNode(node)
//
//	edge := &storage.Edge{
//		ID:       storage.EdgeID("edge-c3d4"),
//		Source:   node.ID,
//		Target:   storage.NodeID("node-e5f6"),
//		Type:     "depends_on",
//		Strength: 0.95,
//	}
//	engine.CreateEdge(edge)
package storage

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrInvalidEdge   = errors.New("invalid edge: source or target node not found")
	ErrStorageClosed = errors.New("storage closed")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
//
// Using a custom type provides:
//   - Type safety (can't accidentally use EdgeID where NodeID is expected)
//   - Clear API semantics
//
// Example:
//
//	id := storage.NodeID("node-a1b2c3d4")
//	node, err := engine.GetNode(id)
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// Node represents a concept, entity or experience tracked in the graph.
//
// Fields:
//   - ID: Opaque stable identifier, assigned once on first insert
//   - Name: Human-readable unique name - the upsert key
//   - Type: Open type tag ("concept", "entity", "skill", "library", ...).
//     Not a closed enum; callers may use any tag.
//   - Properties: Open key-value data (any JSON-serializable types)
//   - Importance: How central this node is, in [0,1]. Default 0.5.
//   - CreatedAt/UpdatedAt: Set by the graph layer on insert/merge
//
// Name uniqueness is enforced by the engine: CreateNode with a name that is
// already indexed fails with ErrAlreadyExists. Merging on name is the graph
// layer's job (see graph.UpsertNode).
//
// Thread Safety:
//
//	Node structs are NOT thread-safe. The storage engine hands out copies.
type Node struct {
	ID         NodeID         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Importance float64        `json:"importance"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Edge represents a typed, weighted, directed relationship between two nodes.
//
// Fields:
//   - ID: Opaque stable identifier
//   - Source/Target: Endpoint node IDs (must exist at creation time)
//   - Type: Relationship type. graph.KnownRelationship lists the suggested
//     vocabulary ("is_a", "part_of", "depends_on", ...); the store accepts
//     any non-empty string.
//   - Strength: Relationship weight in [0,1]
//   - Evidence: Free-text justification for why this edge exists
//   - Bidirectional: When true the edge is walkable in both directions
//
// Edges are unique by (Source, Target, Type): CreateEdge with a key that is
// already indexed fails with ErrAlreadyExists, and the graph layer merges
// instead of duplicating.
type Edge struct {
	ID            EdgeID    `json:"id"`
	Source        NodeID    `json:"source"`
	Target        NodeID    `json:"target"`
	Type          string    `json:"type"`
	Strength      float64   `json:"strength"`
	Evidence      string    `json:"evidence,omitempty"`
	Bidirectional bool      `json:"bidirectional"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Key returns the composite uniqueness key for this edge.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Type: e.Type}
}

// EdgeKey is the composite uniqueness key (source, target, type).
type EdgeKey struct {
	Source NodeID
	Target NodeID
	Type   string
}

// Insight is an immutable, append-only record of a synthesized claim
// anchored to existing nodes. Corrections are new insights, never edits.
//
// SupportingEdges holds the direct (single-hop) edges found between pairs of
// the anchored nodes at synthesis time. A pair without a direct edge simply
// contributes nothing - that is normal, not an error.
//
// Insight is deliberately a distinct type from Edge: it is advisory
// knowledge and can never be mistaken for a confirmed graph fact.
type Insight struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	Type            string    `json:"type"`
	Confidence      float64   `json:"confidence"`
	NodeIDs         []NodeID  `json:"node_ids"`
	SupportingEdges []EdgeID  `json:"supporting_edges,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Hypothesis is an inferred, unconfirmed claim about a relationship between
// two nodes, derived from path analysis.
//
// Tested and Result are reserved for an external validator; the synthesis
// engine never sets them, and a hypothesis is never auto-promoted to an
// edge.
type Hypothesis struct {
	ID               string    `json:"id"`
	Source           NodeID    `json:"source"`
	Target           NodeID    `json:"target"`
	RelationshipType string    `json:"relationship_type"`
	Confidence       float64   `json:"confidence"`
	Reasoning        string    `json:"reasoning,omitempty"`
	Tested           bool      `json:"tested"`
	Result           string    `json:"result,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Engine defines the storage interface for graph records.
//
// All Engine implementations MUST be:
//   - Thread-safe: safe for concurrent access from multiple goroutines
//   - Atomic per operation: an index is never observable out of sync with
//     its record
//
// Implementations:
//   - MemoryEngine: in-memory storage for tests and small graphs
//   - BadgerEngine: persistent disk storage backed by BadgerDB
//
// Example:
//
//	var engine storage.Engine = storage.NewMemoryEngine()
//	defer engine.Close()
//
//	outgoing, _ := engine.GetOutgoingEdges("node-1")
//	for _, edge := range outgoing {
//		fmt.Printf("%s -> %s [%s]\n", edge.Source, edge.Target, edge.Type)
//	}
type Engine interface {
	// Node operations
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	GetNodeByName(name string) (*Node, error)
	UpdateNode(node *Node) error

	// Edge operations
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	UpdateEdge(edge *Edge) error
	GetEdgeByKey(key EdgeKey) (*Edge, error)

	// Neighbor lookup
	GetOutgoingEdges(nodeID NodeID) ([]*Edge, error)
	GetIncomingEdges(nodeID NodeID) ([]*Edge, error)

	// Degree operations (for hub detection)
	GetOutDegree(nodeID NodeID) int
	GetInDegree(nodeID NodeID) int

	// Bulk reads
	AllNodes() ([]*Node, error)
	AllEdges() ([]*Edge, error)

	// Advisory record buckets (append-only: no update, no delete)
	PutInsight(insight *Insight) error
	AllInsights() ([]*Insight, error)
	PutHypothesis(hyp *Hypothesis) error
	AllHypotheses() ([]*Hypothesis, error)

	// Stats
	NodeCount() (int64, error)
	EdgeCount() (int64, error)
	InsightCount() (int64, error)
	HypothesisCount() (int64, error)

	// Lifecycle
	Close() error
}

package storage

import (
	"sync"
)

// MemoryEngine is a thread-safe in-memory storage implementation.
//
// Use Cases:
//   - Unit testing (no disk I/O, fast cleanup)
//   - Ephemeral graphs that fit entirely in RAM
//   - Development and prototyping
//
// Features:
//   - Thread-safe: all operations use an RWMutex
//   - Indexed: name index, (source,target,type) index, per-node edge indexes
//   - Deep copies: returns copies to prevent external mutation
//
// Performance Characteristics:
//   - Node lookup by ID or name: O(1)
//   - Edge lookup by ID or key: O(1)
//   - Outgoing/incoming edges: O(degree)
//
// Example:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	engine.CreateNode(&storage.Node{ID: "n1", Name: "Python", Type: "language"})
//	engine.CreateNode(&storage.Node{ID: "n2", Name: "Pandas", Type: "library"})
//	engine.CreateEdge(&storage.Edge{ID: "e1", Source: "n2", Target: "n1", Type: "part_of", Strength: 0.9})
//
//	out, _ := engine.GetOutgoingEdges("n2")
//	fmt.Printf("Pandas has %d outgoing edges\n", len(out))
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups
	nodesByName   map[string]NodeID
	edgesByKey    map[EdgeKey]EdgeID
	outgoingEdges map[NodeID]map[EdgeID]struct{}
	incomingEdges map[NodeID]map[EdgeID]struct{}

	// Append-only advisory buckets
	insights   []*Insight
	hypotheses []*Hypothesis

	closed bool
}

// NewMemoryEngine creates a new in-memory storage engine with empty indexes.
// Safe for immediate concurrent use.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodesByName:   make(map[string]NodeID),
		edgesByKey:    make(map[EdgeKey]EdgeID),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
		incomingEdges: make(map[NodeID]map[EdgeID]struct{}),
	}
}

// CreateNode stores a new node.
//
// The node is deep-copied to prevent external mutation after storage.
//
// Returns:
//   - ErrInvalidData if node is nil
//   - ErrInvalidID if ID or Name is empty
//   - ErrAlreadyExists if the ID or the Name is already indexed
//   - ErrStorageClosed if the engine is closed
func (m *MemoryEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" || node.Name == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := m.nodesByName[node.Name]; exists {
		return ErrAlreadyExists
	}

	stored := copyNode(node)
	m.nodes[node.ID] = stored
	m.nodesByName[node.Name] = node.ID
	return nil
}

// GetNode retrieves a node by ID. Returns a deep copy.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// GetNodeByName retrieves a node via the unique name index.
func (m *MemoryEngine) GetNodeByName(name string) (*Node, error) {
	if name == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	id, exists := m.nodesByName[name]
	if !exists {
		return nil, ErrNotFound
	}
	return copyNode(m.nodes[id]), nil
}

// UpdateNode replaces an existing node, keeping the name index consistent
// when the name changed.
func (m *MemoryEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" || node.Name == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	existing, exists := m.nodes[node.ID]
	if !exists {
		return ErrNotFound
	}
	if other, taken := m.nodesByName[node.Name]; taken && other != node.ID {
		return ErrAlreadyExists
	}

	if existing.Name != node.Name {
		delete(m.nodesByName, existing.Name)
	}
	m.nodes[node.ID] = copyNode(node)
	m.nodesByName[node.Name] = node.ID
	return nil
}

// CreateEdge stores a new edge and updates the adjacency indexes.
//
// Returns:
//   - ErrInvalidData if edge is nil
//   - ErrInvalidID if ID or Type is empty
//   - ErrInvalidEdge if either endpoint node does not exist
//   - ErrAlreadyExists if the ID or the (source,target,type) key is taken
func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" || edge.Type == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.edges[edge.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := m.edgesByKey[edge.Key()]; exists {
		return ErrAlreadyExists
	}
	if _, exists := m.nodes[edge.Source]; !exists {
		return ErrInvalidEdge
	}
	if _, exists := m.nodes[edge.Target]; !exists {
		return ErrInvalidEdge
	}

	stored := copyEdge(edge)
	m.edges[edge.ID] = stored
	m.edgesByKey[edge.Key()] = edge.ID

	if m.outgoingEdges[edge.Source] == nil {
		m.outgoingEdges[edge.Source] = make(map[EdgeID]struct{})
	}
	m.outgoingEdges[edge.Source][edge.ID] = struct{}{}

	if m.incomingEdges[edge.Target] == nil {
		m.incomingEdges[edge.Target] = make(map[EdgeID]struct{})
	}
	m.incomingEdges[edge.Target][edge.ID] = struct{}{}
	return nil
}

// GetEdge retrieves an edge by ID. Returns a deep copy.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyEdge(edge), nil
}

// UpdateEdge replaces an existing edge. The (source,target,type) key of an
// edge is immutable; updates that would change it are rejected.
func (m *MemoryEngine) UpdateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	existing, exists := m.edges[edge.ID]
	if !exists {
		return ErrNotFound
	}
	if existing.Key() != edge.Key() {
		return ErrInvalidData
	}
	m.edges[edge.ID] = copyEdge(edge)
	return nil
}

// GetEdgeByKey retrieves an edge via the unique (source,target,type) index.
func (m *MemoryEngine) GetEdgeByKey(key EdgeKey) (*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	id, exists := m.edgesByKey[key]
	if !exists {
		return nil, ErrNotFound
	}
	return copyEdge(m.edges[id]), nil
}

// GetOutgoingEdges returns all edges whose Source is nodeID.
func (m *MemoryEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.outgoingEdges[nodeID]
	edges := make([]*Edge, 0, len(ids))
	for id := range ids {
		edges = append(edges, copyEdge(m.edges[id]))
	}
	return edges, nil
}

// GetIncomingEdges returns all edges whose Target is nodeID.
func (m *MemoryEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.incomingEdges[nodeID]
	edges := make([]*Edge, 0, len(ids))
	for id := range ids {
		edges = append(edges, copyEdge(m.edges[id]))
	}
	return edges, nil
}

// GetOutDegree returns the number of outgoing edges. Zero for unknown nodes.
func (m *MemoryEngine) GetOutDegree(nodeID NodeID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.outgoingEdges[nodeID])
}

// GetInDegree returns the number of incoming edges. Zero for unknown nodes.
func (m *MemoryEngine) GetInDegree(nodeID NodeID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.incomingEdges[nodeID])
}

// AllNodes returns copies of every node.
func (m *MemoryEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	nodes := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, copyNode(n))
	}
	return nodes, nil
}

// AllEdges returns copies of every edge.
func (m *MemoryEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	edges := make([]*Edge, 0, len(m.edges))
	for _, e := range m.edges {
		edges = append(edges, copyEdge(e))
	}
	return edges, nil
}

// PutInsight appends an insight to the advisory bucket.
func (m *MemoryEngine) PutInsight(insight *Insight) error {
	if insight == nil {
		return ErrInvalidData
	}
	if insight.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	m.insights = append(m.insights, copyInsight(insight))
	return nil
}

// AllInsights returns copies of every recorded insight, in insertion order.
func (m *MemoryEngine) AllInsights() ([]*Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	out := make([]*Insight, 0, len(m.insights))
	for _, in := range m.insights {
		out = append(out, copyInsight(in))
	}
	return out, nil
}

// PutHypothesis appends a hypothesis to the advisory bucket.
func (m *MemoryEngine) PutHypothesis(hyp *Hypothesis) error {
	if hyp == nil {
		return ErrInvalidData
	}
	if hyp.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	m.hypotheses = append(m.hypotheses, copyHypothesis(hyp))
	return nil
}

// AllHypotheses returns copies of every recorded hypothesis, in insertion order.
func (m *MemoryEngine) AllHypotheses() ([]*Hypothesis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	out := make([]*Hypothesis, 0, len(m.hypotheses))
	for _, h := range m.hypotheses {
		out = append(out, copyHypothesis(h))
	}
	return out, nil
}

// NodeCount returns the number of stored nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of stored edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

// InsightCount returns the number of recorded insights.
func (m *MemoryEngine) InsightCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.insights)), nil
}

// HypothesisCount returns the number of recorded hypotheses.
func (m *MemoryEngine) HypothesisCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.hypotheses)), nil
}

// Close releases the engine. All subsequent calls return ErrStorageClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.nodes = nil
	m.edges = nil
	m.nodesByName = nil
	m.edgesByKey = nil
	m.outgoingEdges = nil
	m.incomingEdges = nil
	m.insights = nil
	m.hypotheses = nil
	return nil
}

func copyNode(n *Node) *Node {
	c := *n
	if n.Properties != nil {
		c.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

func copyEdge(e *Edge) *Edge {
	c := *e
	return &c
}

func copyInsight(in *Insight) *Insight {
	c := *in
	c.NodeIDs = append([]NodeID(nil), in.NodeIDs...)
	c.SupportingEdges = append([]EdgeID(nil), in.SupportingEdges...)
	return &c
}

func copyHypothesis(h *Hypothesis) *Hypothesis {
	c := *h
	return &c
}

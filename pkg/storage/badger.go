// BadgerEngine provides persistent disk-based storage using BadgerDB.
// It implements the Engine interface; every mutation runs in a single
// Badger transaction so a record and its indexes commit together.

package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixNode          = byte(0x01) // node:nodeID -> Node
	prefixEdge          = byte(0x02) // edge:edgeID -> Edge
	prefixNameIndex     = byte(0x03) // name:name -> nodeID
	prefixEdgeKeyIndex  = byte(0x04) // ekey:source|target|type -> edgeID
	prefixOutgoingIndex = byte(0x05) // out:nodeID|edgeID -> empty
	prefixIncomingIndex = byte(0x06) // in:nodeID|edgeID -> empty
	prefixInsight       = byte(0x07) // insight:id -> Insight
	prefixHypothesis    = byte(0x08) // hypothesis:id -> Hypothesis
)

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Edges: 0x02 + edgeID -> JSON(Edge)
//   - Name Index: 0x03 + name -> nodeID
//   - Edge Key Index: 0x04 + source + 0x00 + target + 0x00 + type -> edgeID
//   - Outgoing Index: 0x05 + nodeID + 0x00 + edgeID -> empty
//   - Incoming Index: 0x06 + nodeID + 0x00 + edgeID -> empty
//   - Insights: 0x07 + id -> JSON(Insight)
//   - Hypotheses: 0x08 + id -> JSON(Hypothesis)
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db     *badger.DB
	mu     sync.RWMutex // Protects closed flag
	closed bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	// Slower but more durable.
	SyncWrites bool

	// Logger for BadgerDB internal logging.
	// If nil, Badger logging is suppressed.
	Logger badger.Logger
}

// NewBadgerEngine creates a persistent storage engine with default settings.
//
// Parameters:
//   - dataDir: Directory path for data files. Created if it doesn't exist.
//
// Returns:
//   - *BadgerEngine on success
//   - error if the database cannot be opened (permissions, disk space, lock)
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration.
//
// Example - in-memory database for tests:
//
//	engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
//		InMemory: true,
//	})
//	defer engine.Close()
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	// Modest buffer sizes; knowledge graphs are small relative to Badger's
	// defaults, which are tuned for multi-GB value logs.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &BadgerEngine{db: db}, nil
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
// Data is not persisted and is lost when the engine is closed.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeRecordKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

func nameIndexKey(name string) []byte {
	return append([]byte{prefixNameIndex}, []byte(name)...)
}

// edgeKeyIndexKey builds 0x04 + source + 0x00 + target + 0x00 + type.
// Node IDs never contain 0x00 (hex-encoded), so the separator is unambiguous.
func edgeKeyIndexKey(key EdgeKey) []byte {
	k := make([]byte, 0, 1+len(key.Source)+1+len(key.Target)+1+len(key.Type))
	k = append(k, prefixEdgeKeyIndex)
	k = append(k, []byte(key.Source)...)
	k = append(k, 0x00)
	k = append(k, []byte(key.Target)...)
	k = append(k, 0x00)
	k = append(k, []byte(key.Type)...)
	return k
}

func adjacencyIndexKey(prefix byte, nodeID NodeID, edgeID EdgeID) []byte {
	k := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	k = append(k, prefix)
	k = append(k, []byte(nodeID)...)
	k = append(k, 0x00)
	k = append(k, []byte(edgeID)...)
	return k
}

func adjacencyIndexPrefix(prefix byte, nodeID NodeID) []byte {
	k := make([]byte, 0, 1+len(nodeID)+1)
	k = append(k, prefix)
	k = append(k, []byte(nodeID)...)
	k = append(k, 0x00)
	return k
}

// extractEdgeIDFromIndexKey extracts the edgeID from an adjacency index key.
// Format: prefix + nodeID + 0x00 + edgeID
func extractEdgeIDFromIndexKey(key []byte) EdgeID {
	for i := 1; i < len(key); i++ {
		if key[i] == 0x00 {
			return EdgeID(key[i+1:])
		}
	}
	return ""
}

func insightKey(id string) []byte {
	return append([]byte{prefixInsight}, []byte(id)...)
}

func hypothesisKey(id string) []byte {
	return append([]byte{prefixHypothesis}, []byte(id)...)
}

// ============================================================================
// Node Operations
// ============================================================================

// CreateNode creates a new node in persistent storage.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" || node.Name == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if _, err := txn.Get(nameIndexKey(node.Name)); err == nil {
			return ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(nameIndexKey(node.Name), []byte(node.ID))
	})
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			node, decodeErr = decodeNode(val)
			return decodeErr
		})
	})
	return node, err
}

// GetNodeByName retrieves a node via the unique name index.
func (b *BadgerEngine) GetNodeByName(name string) (*Node, error) {
	if name == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameIndexKey(name))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var id NodeID
		if err := item.Value(func(val []byte) error {
			id = NodeID(val)
			return nil
		}); err != nil {
			return err
		}

		nodeItem, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return nodeItem.Value(func(val []byte) error {
			var decodeErr error
			node, decodeErr = decodeNode(val)
			return decodeErr
		})
	})
	return node, err
}

// UpdateNode updates an existing node, keeping the name index consistent.
func (b *BadgerEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" || node.Name == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var existing *Node
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			existing, decodeErr = decodeNode(val)
			return decodeErr
		}); err != nil {
			return err
		}

		if existing.Name != node.Name {
			// Renamed: the new name must be free.
			if idxItem, err := txn.Get(nameIndexKey(node.Name)); err == nil {
				var owner NodeID
				_ = idxItem.Value(func(val []byte) error {
					owner = NodeID(val)
					return nil
				})
				if owner != node.ID {
					return ErrAlreadyExists
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			if err := txn.Delete(nameIndexKey(existing.Name)); err != nil {
				return err
			}
			if err := txn.Set(nameIndexKey(node.Name), []byte(node.ID)); err != nil {
				return err
			}
		}

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		return txn.Set(key, data)
	})
}

// ============================================================================
// Edge Operations
// ============================================================================

// CreateEdge creates a new edge and its adjacency indexes in one transaction.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" || edge.Type == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(edgeRecordKey(edge.ID)); err == nil {
			return ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if _, err := txn.Get(edgeKeyIndexKey(edge.Key())); err == nil {
			return ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		// Both endpoints must exist.
		if _, err := txn.Get(nodeKey(edge.Source)); err == badger.ErrKeyNotFound {
			return ErrInvalidEdge
		} else if err != nil {
			return err
		}
		if _, err := txn.Get(nodeKey(edge.Target)); err == badger.ErrKeyNotFound {
			return ErrInvalidEdge
		} else if err != nil {
			return err
		}

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		if err := txn.Set(edgeRecordKey(edge.ID), data); err != nil {
			return err
		}
		if err := txn.Set(edgeKeyIndexKey(edge.Key()), []byte(edge.ID)); err != nil {
			return err
		}
		if err := txn.Set(adjacencyIndexKey(prefixOutgoingIndex, edge.Source, edge.ID), nil); err != nil {
			return err
		}
		return txn.Set(adjacencyIndexKey(prefixIncomingIndex, edge.Target, edge.ID), nil)
	})
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeRecordKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			edge, decodeErr = decodeEdge(val)
			return decodeErr
		})
	})
	return edge, err
}

// UpdateEdge replaces an existing edge. The (source,target,type) key is
// immutable; updates that would change it are rejected with ErrInvalidData.
func (b *BadgerEngine) UpdateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeRecordKey(edge.ID))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var existing *Edge
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			existing, decodeErr = decodeEdge(val)
			return decodeErr
		}); err != nil {
			return err
		}
		if existing.Key() != edge.Key() {
			return ErrInvalidData
		}

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		return txn.Set(edgeRecordKey(edge.ID), data)
	})
}

// GetEdgeByKey retrieves an edge via the (source,target,type) index.
func (b *BadgerEngine) GetEdgeByKey(key EdgeKey) (*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKeyIndexKey(key))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var id EdgeID
		if err := item.Value(func(val []byte) error {
			id = EdgeID(val)
			return nil
		}); err != nil {
			return err
		}

		edgeItem, err := txn.Get(edgeRecordKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return edgeItem.Value(func(val []byte) error {
			var decodeErr error
			edge, decodeErr = decodeEdge(val)
			return decodeErr
		})
	})
	return edge, err
}

// GetOutgoingEdges returns all edges whose Source is nodeID.
func (b *BadgerEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.adjacentEdges(prefixOutgoingIndex, nodeID)
}

// GetIncomingEdges returns all edges whose Target is nodeID.
func (b *BadgerEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.adjacentEdges(prefixIncomingIndex, nodeID)
}

func (b *BadgerEngine) adjacentEdges(prefix byte, nodeID NodeID) ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	edges := []*Edge{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = adjacencyIndexPrefix(prefix, nodeID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			edgeID := extractEdgeIDFromIndexKey(it.Item().Key())
			if edgeID == "" {
				continue
			}
			item, err := txn.Get(edgeRecordKey(edgeID))
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				edge, decodeErr := decodeEdge(val)
				if decodeErr != nil {
					return decodeErr
				}
				edges = append(edges, edge)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}

// GetOutDegree returns the number of outgoing edges. Zero for unknown nodes.
func (b *BadgerEngine) GetOutDegree(nodeID NodeID) int {
	return b.countPrefix(adjacencyIndexPrefix(prefixOutgoingIndex, nodeID))
}

// GetInDegree returns the number of incoming edges. Zero for unknown nodes.
func (b *BadgerEngine) GetInDegree(nodeID NodeID) int {
	return b.countPrefix(adjacencyIndexPrefix(prefixIncomingIndex, nodeID))
}

func (b *BadgerEngine) countPrefix(prefix []byte) int {
	if err := b.checkOpen(); err != nil {
		return 0
	}

	count := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// ============================================================================
// Bulk reads
// ============================================================================

// AllNodes returns every stored node.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	nodes := []*Node{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixNode}

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				node, decodeErr := decodeNode(val)
				if decodeErr != nil {
					return decodeErr
				}
				nodes = append(nodes, node)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return nodes, err
}

// AllEdges returns every stored edge.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	edges := []*Edge{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixEdge}

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				edge, decodeErr := decodeEdge(val)
				if decodeErr != nil {
					return decodeErr
				}
				edges = append(edges, edge)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}

// ============================================================================
// Advisory record buckets
// ============================================================================

// PutInsight appends an insight. Insights are never updated or deleted.
func (b *BadgerEngine) PutInsight(insight *Insight) error {
	if insight == nil {
		return ErrInvalidData
	}
	if insight.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		data, err := encodeInsight(insight)
		if err != nil {
			return fmt.Errorf("failed to encode insight: %w", err)
		}
		return txn.Set(insightKey(insight.ID), data)
	})
}

// AllInsights returns every recorded insight, ordered by creation time.
func (b *BadgerEngine) AllInsights() ([]*Insight, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	insights := []*Insight{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixInsight}

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				in, decodeErr := decodeInsight(val)
				if decodeErr != nil {
					return decodeErr
				}
				insights = append(insights, in)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(insights, func(i, j int) bool {
		if !insights[i].CreatedAt.Equal(insights[j].CreatedAt) {
			return insights[i].CreatedAt.Before(insights[j].CreatedAt)
		}
		return insights[i].ID < insights[j].ID
	})
	return insights, nil
}

// PutHypothesis appends a hypothesis.
func (b *BadgerEngine) PutHypothesis(hyp *Hypothesis) error {
	if hyp == nil {
		return ErrInvalidData
	}
	if hyp.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		data, err := encodeHypothesis(hyp)
		if err != nil {
			return fmt.Errorf("failed to encode hypothesis: %w", err)
		}
		return txn.Set(hypothesisKey(hyp.ID), data)
	})
}

// AllHypotheses returns every recorded hypothesis, ordered by creation time.
func (b *BadgerEngine) AllHypotheses() ([]*Hypothesis, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	hyps := []*Hypothesis{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixHypothesis}

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				h, decodeErr := decodeHypothesis(val)
				if decodeErr != nil {
					return decodeErr
				}
				hyps = append(hyps, h)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(hyps, func(i, j int) bool {
		if !hyps[i].CreatedAt.Equal(hyps[j].CreatedAt) {
			return hyps[i].CreatedAt.Before(hyps[j].CreatedAt)
		}
		return hyps[i].ID < hyps[j].ID
	})
	return hyps, nil
}

// ============================================================================
// Stats and lifecycle
// ============================================================================

// NodeCount returns the number of stored nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return int64(b.countPrefix([]byte{prefixNode})), nil
}

// EdgeCount returns the number of stored edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return int64(b.countPrefix([]byte{prefixEdge})), nil
}

// InsightCount returns the number of recorded insights.
func (b *BadgerEngine) InsightCount() (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return int64(b.countPrefix([]byte{prefixInsight})), nil
}

// HypothesisCount returns the number of recorded hypotheses.
func (b *BadgerEngine) HypothesisCount() (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	return int64(b.countPrefix([]byte{prefixHypothesis})), nil
}

// Close flushes and closes the underlying BadgerDB.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

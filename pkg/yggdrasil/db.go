// Package yggdrasil provides the main API for embedded Yggdrasil usage.
//
// Yggdrasil is a knowledge graph and relationship-synthesis engine: a typed,
// weighted graph of named concept nodes, plus the machinery to reason over
// it - shortest paths, multi-path enumeration, non-obvious connection
// discovery, insight and hypothesis synthesis, cluster detection, and
// statistics.
//
// Key Features:
//   - Upsert-by-name nodes and merge-by-key edges: re-adding knowledge
//     refines it instead of duplicating it
//   - Weighted traversal with strength pruning
//   - Connection discovery beyond direct neighbors
//   - Hypothesis generation from indirect path evidence
//   - In-memory or Badger-backed persistence behind one interface
//
// Example Usage:
//
//	db, err := yggdrasil.OpenInMemory()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	python, _ := db.UpsertNode("Python", "language", nil, 0.9)
//	pandas, _ := db.UpsertNode("Pandas", "library", nil, 0.7)
//	db.Connect(pandas, python, graph.RelDependsOn, 0.9, "written in Python", false)
//
//	path, _ := db.ShortestPath(ctx, pandas, python, 5, 0)
//	fmt.Println(path) // Pandas -[depends_on]-> Python
//
// ELI12 (Explain Like I'm 12):
//
// Think of Yggdrasil like a giant mind map that can think about itself:
//
//  1. **Everything gets one bubble**: If you add "Python" twice, you don't
//     get two bubbles - the second add just makes the first one smarter.
//
//  2. **Lines have thickness**: A thick line means two things are strongly
//     related, a thin line means barely related.
//
//  3. **It finds hidden friendships**: Ask it about "Pandas" and it can
//     tell you it's secretly connected to "Statistics" three hops away,
//     even though nobody ever drew that line.
//
//  4. **It makes guesses, carefully**: It can say "I think Pandas relates
//     to NumPy because of these paths" - but it writes that down as a
//     guess, never as a fact, until someone checks.
package yggdrasil

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/orneryd/yggdrasil/pkg/cluster"
	"github.com/orneryd/yggdrasil/pkg/config"
	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/stats"
	"github.com/orneryd/yggdrasil/pkg/storage"
	"github.com/orneryd/yggdrasil/pkg/synth"
	"github.com/orneryd/yggdrasil/pkg/traverse"
)

// Errors re-exported for callers that only import this package.
var (
	ErrNotFound        = storage.ErrNotFound
	ErrInvalidArgument = graph.ErrInvalidArgument
	ErrClosed          = storage.ErrStorageClosed
)

// DB is an embedded Yggdrasil instance. It wires the storage engine, the
// graph mutation layer, and the reasoning subsystems behind one handle.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type DB struct {
	cfg *config.Config
	log *zap.Logger

	mu     sync.Mutex
	closed bool

	engine   storage.Engine
	graph    *graph.Graph
	traverse *traverse.Engine
	synth    *synth.Engine
	clusters *cluster.Detector
}

// Open creates or opens a database per cfg. A nil cfg takes defaults.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	var engine storage.Engine
	switch {
	case cfg.Storage.InMemory:
		engine, err = storage.NewBadgerEngineInMemory()
	default:
		engine, err = storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
			DataDir:    cfg.Storage.DataDir,
			SyncWrites: cfg.Storage.SyncWrites,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	db := newDB(cfg, logger, engine)
	logger.Info("database opened",
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.Bool("in_memory", cfg.Storage.InMemory))
	return db, nil
}

// OpenInMemory opens a non-persistent database with default configuration.
// Intended for tests and scratch graphs.
func OpenInMemory() (*DB, error) {
	cfg := config.Default()
	cfg.Storage.InMemory = true
	return Open(cfg)
}

// OpenWithEngine wraps an existing storage engine. The caller keeps
// ownership decisions simple: Close closes the engine.
func OpenWithEngine(cfg *config.Config, engine storage.Engine) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return newDB(cfg, logger, engine), nil
}

func newDB(cfg *config.Config, logger *zap.Logger, engine storage.Engine) *DB {
	g := graph.New(engine)
	return &DB{
		cfg:      cfg,
		log:      logger,
		engine:   engine,
		graph:    g,
		traverse: traverse.New(g),
		synth:    synth.New(g),
		clusters: cluster.New(g, cluster.Config{
			MinSize:        cfg.Cluster.MinSize,
			ExpandStrength: cfg.Cluster.ExpandStrength,
			MaxClusterSize: cfg.Cluster.MaxClusterSize,
		}),
	}
}

// Close releases the database. Safe to call more than once.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.log.Info("database closing")
	_ = db.log.Sync()
	return db.engine.Close()
}

// Graph exposes the underlying graph layer for advanced callers.
func (db *DB) Graph() *graph.Graph {
	return db.graph
}

// UpsertNode creates or refines a node by name. See graph.Graph.UpsertNode.
func (db *DB) UpsertNode(name, nodeType string, properties map[string]any, importance float64) (storage.NodeID, error) {
	id, err := db.graph.UpsertNode(name, nodeType, properties, importance)
	if err != nil {
		return "", err
	}
	db.log.Debug("node upserted", zap.String("name", name), zap.String("id", string(id)))
	return id, nil
}

// Connect creates or merges an edge. See graph.Graph.Connect.
func (db *DB) Connect(source, target storage.NodeID, relType string, strength float64, evidence string, bidirectional bool) (storage.EdgeID, error) {
	id, err := db.graph.Connect(source, target, relType, strength, evidence, bidirectional)
	if err != nil {
		return "", err
	}
	db.log.Debug("edge connected",
		zap.String("source", string(source)),
		zap.String("target", string(target)),
		zap.String("type", relType))
	return id, nil
}

// GetNode retrieves a node by ID.
func (db *DB) GetNode(id storage.NodeID) (*storage.Node, error) {
	return db.graph.GetNode(id)
}

// GetNodeByName retrieves a node by its unique name.
func (db *DB) GetNodeByName(name string) (*storage.Node, error) {
	return db.graph.GetNodeByName(name)
}

// Neighbors lists nodes adjacent to nodeID, optionally filtered by
// relationship type and direction.
func (db *DB) Neighbors(ctx context.Context, nodeID storage.NodeID, relType string, direction graph.Direction) ([]graph.Neighbor, error) {
	return db.graph.Neighbors(ctx, nodeID, relType, direction)
}

// ShortestPath finds the fewest-hops path between two nodes, ignoring edges
// weaker than minEdgeStrength. A maxDepth of 0 takes the configured
// traversal default. Returns (nil, nil) when no path exists.
func (db *DB) ShortestPath(ctx context.Context, source, target storage.NodeID, maxDepth int, minEdgeStrength float64) (*traverse.Path, error) {
	if maxDepth == 0 {
		maxDepth = db.cfg.Traversal.MaxDepth
	}
	return db.traverse.ShortestPath(ctx, source, target, traverse.Options{
		MaxDepth:        maxDepth,
		MinEdgeStrength: minEdgeStrength,
	})
}

// AllPaths enumerates up to maxPaths paths between two nodes, strongest
// first. A maxDepth of 0 takes the configured traversal default.
func (db *DB) AllPaths(ctx context.Context, source, target storage.NodeID, maxDepth, maxPaths int, minEdgeStrength float64) ([]*traverse.Path, error) {
	if maxDepth == 0 {
		maxDepth = db.cfg.Traversal.MaxDepth
	}
	return db.traverse.AllPaths(ctx, source, target, traverse.AllPathsOptions{
		Options: traverse.Options{
			MaxDepth:        maxDepth,
			MinEdgeStrength: minEdgeStrength,
		},
		MaxPaths: maxPaths,
	})
}

// DiscoverConnections surfaces non-obvious connections from nodeID. A
// maxHops of 0 takes the configured discovery default.
func (db *DB) DiscoverConnections(ctx context.Context, nodeID storage.NodeID, maxHops int, minPathStrength float64) ([]traverse.Connection, error) {
	if maxHops == 0 {
		maxHops = db.cfg.Traversal.DiscoverMaxHops
	}
	conns, err := db.traverse.DiscoverConnections(ctx, nodeID, maxHops, minPathStrength)
	if err != nil {
		return nil, err
	}
	db.log.Debug("connections discovered",
		zap.String("node", string(nodeID)),
		zap.Int("count", len(conns)))
	return conns, nil
}

// SynthesizeInsight records an insight across a set of nodes, gathering the
// edges between them as supporting evidence.
func (db *DB) SynthesizeInsight(ctx context.Context, nodeIDs []storage.NodeID, text, insightType string, confidence float64) (*storage.Insight, error) {
	return db.synth.SynthesizeInsight(ctx, nodeIDs, text, insightType, confidence)
}

// GenerateHypothesis proposes a relationship between two indirectly
// connected nodes. Returns (nil, nil) when the evidence is too weak.
func (db *DB) GenerateHypothesis(ctx context.Context, source, target storage.NodeID, minConfidence float64) (*storage.Hypothesis, error) {
	hyp, err := db.synth.GenerateHypothesis(ctx, source, target, synth.HypothesisOptions{
		MinConfidence: minConfidence,
	})
	if err != nil {
		return nil, err
	}
	if hyp != nil {
		db.log.Info("hypothesis generated",
			zap.String("source", string(source)),
			zap.String("target", string(target)),
			zap.String("type", hyp.RelationshipType),
			zap.Float64("confidence", hyp.Confidence))
	}
	return hyp, nil
}

// Insights returns every stored insight.
func (db *DB) Insights() ([]*storage.Insight, error) {
	return db.synth.Insights()
}

// Hypotheses returns every stored hypothesis.
func (db *DB) Hypotheses() ([]*storage.Hypothesis, error) {
	return db.synth.Hypotheses()
}

// FindClusters partitions the graph into strongly connected groups.
func (db *DB) FindClusters(ctx context.Context) ([]cluster.Cluster, error) {
	return db.clusters.Detect(ctx)
}

// Stats computes summary statistics for the graph.
func (db *DB) Stats(ctx context.Context) (*stats.Statistics, error) {
	return stats.Collect(ctx, db.engine)
}

// MostConnected returns the limit highest-degree nodes.
func (db *DB) MostConnected(ctx context.Context, limit int) ([]stats.Ranked, error) {
	return stats.MostConnected(ctx, db.engine, limit)
}

// Snapshot exports the graph as a portable JSON-ready structure.
func (db *DB) Snapshot() (*graph.Export, error) {
	return db.graph.Snapshot()
}

// Load replays a snapshot into the graph through the normal upsert and
// merge rules, so loading into a non-empty graph merges rather than
// duplicates.
func (db *DB) Load(export *graph.Export) error {
	return db.graph.Load(export)
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}

// Package synth derives higher-level knowledge from the raw graph: insights
// that record an observation spanning several nodes, and hypotheses that
// propose a relationship between two nodes that are connected only
// indirectly.
//
// Both outputs are advisory. A hypothesis never creates an edge; promoting
// proposed knowledge to fact is an explicit caller decision, outside this
// package.
package synth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/storage"
	"github.com/orneryd/yggdrasil/pkg/traverse"
)

// HypothesisOptions bounds the path analysis behind GenerateHypothesis.
type HypothesisOptions struct {
	// MaxDepth is the path-search depth. Defaults to DefaultHypothesisDepth.
	MaxDepth int
	// MaxPaths caps the number of evidence paths. Defaults to
	// DefaultHypothesisPaths.
	MaxPaths int
	// MinConfidence is the floor below which no hypothesis is produced.
	MinConfidence float64
}

// Defaults for HypothesisOptions zero values.
const (
	DefaultHypothesisDepth = 4
	DefaultHypothesisPaths = 10
)

// Engine synthesizes insights and hypotheses over a graph.
type Engine struct {
	g  *graph.Graph
	tr *traverse.Engine
}

// New creates a synthesis engine over g.
func New(g *graph.Graph) *Engine {
	return &Engine{g: g, tr: traverse.New(g)}
}

// SynthesizeInsight records an insight spanning the given nodes, collecting
// every existing edge between any pair of them as supporting evidence.
//
// Edge collection checks each unordered pair in both orientations, so an
// edge contributes regardless of its direction. Pairs with no edge between
// them are simply skipped; an insight over loosely connected nodes is valid
// and its thin evidence list says so.
//
// Errors: ErrInvalidArgument for fewer than two nodes, an empty text, or a
// confidence outside [0, 1]; ErrNotFound when any node is absent.
func (e *Engine) SynthesizeInsight(ctx context.Context, nodeIDs []storage.NodeID, text, insightType string, confidence float64) (*storage.Insight, error) {
	if len(nodeIDs) < 2 {
		return nil, fmt.Errorf("%w: an insight needs at least two nodes, got %d", graph.ErrInvalidArgument, len(nodeIDs))
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: insight text must not be empty", graph.ErrInvalidArgument)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: confidence must be in [0, 1], got %g", graph.ErrInvalidArgument, confidence)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, id := range nodeIDs {
		if _, err := e.g.GetNode(id); err != nil {
			return nil, err
		}
	}

	// Every unordered pair, both orientations, deduped by edge ID.
	seen := make(map[storage.EdgeID]struct{})
	var supporting []storage.EdgeID
	for i := 0; i < len(nodeIDs); i++ {
		for j := i + 1; j < len(nodeIDs); j++ {
			edges, err := e.g.DirectEdgesBetween(nodeIDs[i], nodeIDs[j])
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				if _, dup := seen[edge.ID]; dup {
					continue
				}
				seen[edge.ID] = struct{}{}
				supporting = append(supporting, edge.ID)
			}
		}
	}

	insight := &storage.Insight{
		ID:              generateID("insight"),
		Text:            text,
		Type:            insightType,
		Confidence:      confidence,
		NodeIDs:         append([]storage.NodeID(nil), nodeIDs...),
		SupportingEdges: supporting,
		CreatedAt:       time.Now(),
	}
	if err := e.g.Engine().PutInsight(insight); err != nil {
		return nil, err
	}
	return insight, nil
}

// GenerateHypothesis proposes a relationship between source and target from
// the indirect paths connecting them.
//
// All paths up to opts.MaxDepth are enumerated; each relationship type is
// weighted by the summed strength of its edges across all paths, and the
// heaviest type becomes the proposal. Confidence is the mean path strength,
// capped at 1.
// Below opts.MinConfidence the result is (nil, nil) and nothing is stored -
// weak evidence is a normal outcome, not an error.
//
// A returned hypothesis is persisted but remains advisory: no edge is
// created, and Tested/Result stay zero for an external validator.
func (e *Engine) GenerateHypothesis(ctx context.Context, source, target storage.NodeID, opts HypothesisOptions) (*storage.Hypothesis, error) {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultHypothesisDepth
	}
	if opts.MaxPaths == 0 {
		opts.MaxPaths = DefaultHypothesisPaths
	}
	if source == target {
		return nil, fmt.Errorf("%w: a hypothesis needs two distinct nodes", graph.ErrInvalidArgument)
	}

	paths, err := e.tr.AllPaths(ctx, source, target, traverse.AllPathsOptions{
		Options:  traverse.Options{MaxDepth: opts.MaxDepth},
		MaxPaths: opts.MaxPaths,
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	// Weight each relationship type by the summed strength of every edge
	// carrying it, across all paths. Edge-level accumulation keeps a strong
	// relation competitive even when it sits on a long, weak path.
	weights := make(map[string]float64)
	total := 0.0
	for _, p := range paths {
		total += p.TotalStrength()
		for _, edge := range p.Edges {
			weights[edge.Type] += edge.Strength
		}
	}

	relType := ""
	best := -1.0
	for rel, w := range weights {
		if w > best || (w == best && rel < relType) {
			relType, best = rel, w
		}
	}

	confidence := total / float64(len(paths))
	if confidence > 1 {
		confidence = 1
	}
	if confidence < opts.MinConfidence {
		return nil, nil
	}

	hyp := &storage.Hypothesis{
		ID:               generateID("hyp"),
		Source:           source,
		Target:           target,
		RelationshipType: relType,
		Confidence:       confidence,
		Reasoning:        reasoningFor(paths, relType),
		CreatedAt:        time.Now(),
	}
	if err := e.g.Engine().PutHypothesis(hyp); err != nil {
		return nil, err
	}
	return hyp, nil
}

// reasoningFor summarizes the evidence behind a hypothesis in one line.
func reasoningFor(paths []*traverse.Path, relType string) string {
	strongest := paths[0]
	for _, p := range paths[1:] {
		if p.TotalStrength() > strongest.TotalStrength() {
			strongest = p
		}
	}
	return fmt.Sprintf("%d connecting path(s) dominated by %q; strongest: %s (strength %.3f)",
		len(paths), relType, strongest.String(), strongest.TotalStrength())
}

// Insights returns every stored insight, sorted oldest first.
func (e *Engine) Insights() ([]*storage.Insight, error) {
	return e.g.Engine().AllInsights()
}

// Hypotheses returns every stored hypothesis, sorted oldest first.
func (e *Engine) Hypotheses() ([]*storage.Hypothesis, error) {
	return e.g.Engine().AllHypotheses()
}

// HypothesesFor returns stored hypotheses touching the given node, newest
// first.
func (e *Engine) HypothesesFor(nodeID storage.NodeID) ([]*storage.Hypothesis, error) {
	all, err := e.g.Engine().AllHypotheses()
	if err != nil {
		return nil, err
	}
	var out []*storage.Hypothesis
	for _, h := range all {
		if h.Source == nodeID || h.Target == nodeID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func generateID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/storage"
)

func buildGraph(t *testing.T) (storage.Engine, map[string]storage.NodeID) {
	t.Helper()
	engine := storage.NewMemoryEngine()
	t.Cleanup(func() { engine.Close() })
	g := graph.New(engine)

	ids := make(map[string]storage.NodeID)
	add := func(name, nodeType string, importance float64) {
		id, err := g.UpsertNode(name, nodeType, nil, importance)
		require.NoError(t, err)
		ids[name] = id
	}
	add("Python", "language", 0.9)
	add("Pandas", "library", 0.7)
	add("NumPy", "library", 0.8)

	_, err := g.Connect(ids["Pandas"], ids["Python"], graph.RelDependsOn, 0.9, "", false)
	require.NoError(t, err)
	_, err = g.Connect(ids["NumPy"], ids["Python"], graph.RelDependsOn, 0.8, "", false)
	require.NoError(t, err)
	_, err = g.Connect(ids["Pandas"], ids["NumPy"], graph.RelUses, 0.7, "", false)
	require.NoError(t, err)

	return engine, ids
}

func TestCollect(t *testing.T) {
	engine, _ := buildGraph(t)

	s, err := Collect(context.Background(), engine)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Nodes)
	assert.Equal(t, 3, s.Edges)
	assert.Equal(t, map[string]int{"language": 1, "library": 2}, s.NodeTypes)
	assert.Equal(t, map[string]int{graph.RelDependsOn: 2, graph.RelUses: 1}, s.RelationshipTypes)
	// 3 edges out of 3*2 possible directed edges.
	assert.InDelta(t, 0.5, s.Density, 1e-9)
	assert.InDelta(t, 0.8, s.MeanImportance, 1e-9)
	assert.InDelta(t, 0.8, s.MeanStrength, 1e-9)
	assert.Equal(t, 0, s.Insights)
	assert.Equal(t, 0, s.Hypotheses)
}

func TestCollectEmptyGraph(t *testing.T) {
	engine := storage.NewMemoryEngine()
	defer engine.Close()

	s, err := Collect(context.Background(), engine)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Nodes)
	assert.Equal(t, 0.0, s.Density)
	assert.Equal(t, 0.0, s.MeanImportance)
	assert.Equal(t, 0.0, s.MeanStrength)
}

func TestMostConnected(t *testing.T) {
	engine, ids := buildGraph(t)
	ctx := context.Background()

	ranked, err := MostConnected(ctx, engine, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	// Every node has degree 2 (Python 2 in, Pandas 2 out, NumPy 1 each),
	// so the whole ranking falls to the name tie-break.
	assert.Equal(t, ids["NumPy"], ranked[0].Node.ID)
	assert.Equal(t, 2, ranked[0].Degree)
	assert.Equal(t, ids["Pandas"], ranked[1].Node.ID)
	assert.Equal(t, 2, ranked[1].Degree)

	t.Run("limit beyond node count", func(t *testing.T) {
		all, err := MostConnected(ctx, engine, 100)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("non-positive limit", func(t *testing.T) {
		none, err := MostConnected(ctx, engine, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

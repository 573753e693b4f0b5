package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/yggdrasil/pkg/storage"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	engine := storage.NewMemoryEngine()
	t.Cleanup(func() { engine.Close() })
	return New(engine)
}

func TestUpsertNode(t *testing.T) {
	g := newTestGraph(t)

	t.Run("creates on first upsert", func(t *testing.T) {
		id, err := g.UpsertNode("Python", "language", map[string]any{"paradigm": "multi"}, 0.9)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		node, err := g.GetNodeByName("Python")
		require.NoError(t, err)
		assert.Equal(t, id, node.ID)
		assert.Equal(t, "language", node.Type)
		assert.Equal(t, 0.9, node.Importance)
	})

	t.Run("second upsert merges, same ID", func(t *testing.T) {
		first, err := g.UpsertNode("Go", "language", nil, 0.5)
		require.NoError(t, err)

		second, err := g.UpsertNode("Go", "programming_language", map[string]any{"typed": true}, 0.8)
		require.NoError(t, err)
		assert.Equal(t, first, second, "upsert must return the original ID")

		node, err := g.GetNode(first)
		require.NoError(t, err)
		assert.Equal(t, "programming_language", node.Type, "last write wins")
		assert.Equal(t, 0.8, node.Importance)
		assert.Equal(t, true, node.Properties["typed"])
	})

	t.Run("merge preserves creation time", func(t *testing.T) {
		id, err := g.UpsertNode("Rust", "language", nil, 0.5)
		require.NoError(t, err)
		before, err := g.GetNode(id)
		require.NoError(t, err)

		_, err = g.UpsertNode("Rust", "language", nil, 0.6)
		require.NoError(t, err)
		after, err := g.GetNode(id)
		require.NoError(t, err)

		assert.Equal(t, before.CreatedAt, after.CreatedAt)
		assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := g.UpsertNode("", "concept", nil, 0.5)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("out of range importance rejected, not clamped", func(t *testing.T) {
		_, err := g.UpsertNode("Bad", "concept", nil, 1.7)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = g.UpsertNode("Bad", "concept", nil, -0.1)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		// Nothing was stored.
		_, err = g.GetNodeByName("Bad")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConnect(t *testing.T) {
	g := newTestGraph(t)

	pandas, err := g.UpsertNode("Pandas", "library", nil, 0.7)
	require.NoError(t, err)
	python, err := g.UpsertNode("Python", "language", nil, 0.9)
	require.NoError(t, err)

	t.Run("creates an edge", func(t *testing.T) {
		id, err := g.Connect(pandas, python, RelDependsOn, 0.9, "written in Python", false)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		edge, err := g.DirectEdge(pandas, python, RelDependsOn)
		require.NoError(t, err)
		assert.Equal(t, id, edge.ID)
		assert.Equal(t, 0.9, edge.Strength)
	})

	t.Run("same key merges instead of duplicating", func(t *testing.T) {
		first, err := g.Connect(pandas, python, RelDependsOn, 0.9, "old", false)
		require.NoError(t, err)
		second, err := g.Connect(pandas, python, RelDependsOn, 0.5, "revised", true)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		edge, err := g.GetEdge(first)
		require.NoError(t, err)
		assert.Equal(t, 0.5, edge.Strength)
		assert.Equal(t, "revised", edge.Evidence)
		assert.True(t, edge.Bidirectional)

		edges, err := g.Engine().AllEdges()
		require.NoError(t, err)
		assert.Len(t, edges, 1, "reinsertion must not duplicate")
	})

	t.Run("different type is a different edge", func(t *testing.T) {
		_, err := g.Connect(pandas, python, RelUses, 0.6, "", false)
		require.NoError(t, err)

		edges, err := g.DirectEdgesBetween(pandas, python)
		require.NoError(t, err)
		assert.Len(t, edges, 2)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := g.Connect(pandas, "node-ghost", RelUses, 0.5, "", false)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("out of range strength rejected", func(t *testing.T) {
		_, err := g.Connect(pandas, python, RelRelatedTo, 1.01, "", false)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("self loop accepted", func(t *testing.T) {
		_, err := g.Connect(pandas, pandas, RelRelatedTo, 0.3, "", false)
		assert.NoError(t, err)
	})
}

func TestNeighbors(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	a, _ := g.UpsertNode("A", "concept", nil, 0.5)
	b, _ := g.UpsertNode("B", "concept", nil, 0.5)
	c, _ := g.UpsertNode("C", "concept", nil, 0.5)

	_, err := g.Connect(a, b, RelUses, 0.8, "", false)
	require.NoError(t, err)
	_, err = g.Connect(c, a, RelPartOf, 0.6, "", false)
	require.NoError(t, err)

	t.Run("outgoing", func(t *testing.T) {
		got, err := g.Neighbors(ctx, a, "", DirectionOutgoing)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b, got[0].Node.ID)
	})

	t.Run("incoming", func(t *testing.T) {
		got, err := g.Neighbors(ctx, a, "", DirectionIncoming)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, c, got[0].Node.ID)
	})

	t.Run("both", func(t *testing.T) {
		got, err := g.Neighbors(ctx, a, "", DirectionBoth)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("type filter", func(t *testing.T) {
		got, err := g.Neighbors(ctx, a, RelPartOf, DirectionBoth)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, c, got[0].Node.ID)
	})

	t.Run("unknown direction rejected", func(t *testing.T) {
		_, err := g.Neighbors(ctx, a, "", Direction("sideways"))
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("missing node", func(t *testing.T) {
		_, err := g.Neighbors(ctx, "node-ghost", "", DirectionBoth)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAdjacentTraversalSemantics(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	a, _ := g.UpsertNode("A", "concept", nil, 0.5)
	b, _ := g.UpsertNode("B", "concept", nil, 0.5)
	c, _ := g.UpsertNode("C", "concept", nil, 0.5)
	d, _ := g.UpsertNode("D", "concept", nil, 0.5)

	_, err := g.Connect(a, b, RelUses, 0.8, "", false) // directed out
	require.NoError(t, err)
	_, err = g.Connect(c, a, RelRelatedTo, 0.7, "", true) // bidirectional in
	require.NoError(t, err)
	_, err = g.Connect(d, a, RelUses, 0.9, "", false) // directed in: not walkable from a
	require.NoError(t, err)
	_, err = g.Connect(a, a, RelRelatedTo, 0.5, "", true) // self loop: never walkable
	require.NoError(t, err)

	got, err := g.Adjacent(ctx, a)
	require.NoError(t, err)

	ids := make(map[storage.NodeID]bool)
	for _, n := range got {
		ids[n.Node.ID] = true
	}
	assert.Len(t, got, 2)
	assert.True(t, ids[b], "outgoing edge must be walkable")
	assert.True(t, ids[c], "bidirectional incoming edge must be walkable")
	assert.False(t, ids[d], "plain incoming edge must not be walkable")
	assert.False(t, ids[a], "self loop must not be walkable")
}

func TestVersionAndCacheInvalidation(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	a, _ := g.UpsertNode("A", "concept", nil, 0.5)
	b, _ := g.UpsertNode("B", "concept", nil, 0.5)
	v := g.Version()

	_, err := g.Connect(a, b, RelUses, 0.8, "", false)
	require.NoError(t, err)
	assert.Greater(t, g.Version(), v, "mutation must bump the version")

	// Warm the cache, mutate, and verify the next read sees the new edge.
	before, err := g.Adjacent(ctx, a)
	require.NoError(t, err)
	require.Len(t, before, 1)

	c, _ := g.UpsertNode("C", "concept", nil, 0.5)
	_, err = g.Connect(a, c, RelUses, 0.4, "", false)
	require.NoError(t, err)

	after, err := g.Adjacent(ctx, a)
	require.NoError(t, err)
	assert.Len(t, after, 2, "cached adjacency must be invalidated by mutation")
}

func TestRelationshipVocabulary(t *testing.T) {
	assert.True(t, IsKnownRelationship(RelIsA))
	assert.True(t, IsKnownRelationship(RelPartOf))
	assert.False(t, IsKnownRelationship("invented_on_the_spot"))
	assert.NotEmpty(t, KnownRelationships())

	// Unknown types are still accepted by Connect; vocabulary is advisory.
	g := newTestGraph(t)
	a, _ := g.UpsertNode("A", "concept", nil, 0.5)
	b, _ := g.UpsertNode("B", "concept", nil, 0.5)
	_, err := g.Connect(a, b, "invented_on_the_spot", 0.5, "", false)
	assert.NoError(t, err)
}

package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAndLoad(t *testing.T) {
	src := newTestGraph(t)

	python, err := src.UpsertNode("Python", "language", map[string]any{"paradigm": "multi"}, 0.9)
	require.NoError(t, err)
	pandas, err := src.UpsertNode("Pandas", "library", nil, 0.7)
	require.NoError(t, err)
	_, err = src.Connect(pandas, python, RelDependsOn, 0.9, "docs", true)
	require.NoError(t, err)

	export, err := src.Snapshot()
	require.NoError(t, err)
	require.Len(t, export.Nodes, 2)
	require.Len(t, export.Edges, 1)
	assert.Equal(t, "Pandas", export.Nodes[0].Name, "nodes sorted by name")

	t.Run("round trips through JSON into a fresh graph", func(t *testing.T) {
		data, err := json.Marshal(export)
		require.NoError(t, err)
		var decoded Export
		require.NoError(t, json.Unmarshal(data, &decoded))

		dst := newTestGraph(t)
		require.NoError(t, dst.Load(&decoded))

		node, err := dst.GetNodeByName("Python")
		require.NoError(t, err)
		assert.Equal(t, 0.9, node.Importance)
		assert.Equal(t, "multi", node.Properties["paradigm"])

		loadedPandas, err := dst.GetNodeByName("Pandas")
		require.NoError(t, err)
		edge, err := dst.DirectEdge(loadedPandas.ID, node.ID, RelDependsOn)
		require.NoError(t, err)
		assert.Equal(t, 0.9, edge.Strength)
		assert.True(t, edge.Bidirectional)
		assert.Equal(t, "docs", edge.Evidence)
	})

	t.Run("loading into a non-empty graph merges", func(t *testing.T) {
		dst := newTestGraph(t)
		_, err := dst.UpsertNode("Python", "old_type", nil, 0.1)
		require.NoError(t, err)

		require.NoError(t, dst.Load(export))

		node, err := dst.GetNodeByName("Python")
		require.NoError(t, err)
		assert.Equal(t, "language", node.Type, "load merges through upsert, last write wins")

		nodes, err := dst.Engine().AllNodes()
		require.NoError(t, err)
		assert.Len(t, nodes, 2, "no duplicate for the pre-existing name")
	})

	t.Run("nil export rejected", func(t *testing.T) {
		dst := newTestGraph(t)
		assert.ErrorIs(t, dst.Load(nil), ErrInvalidArgument)
	})
}

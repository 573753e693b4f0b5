package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/storage"
)

type fixture struct {
	g   *graph.Graph
	ids map[string]storage.NodeID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := storage.NewMemoryEngine()
	t.Cleanup(func() { engine.Close() })
	return &fixture{g: graph.New(engine), ids: make(map[string]storage.NodeID)}
}

func (f *fixture) node(t *testing.T, name string) storage.NodeID {
	t.Helper()
	if id, ok := f.ids[name]; ok {
		return id
	}
	id, err := f.g.UpsertNode(name, "concept", nil, 0.5)
	require.NoError(t, err)
	f.ids[name] = id
	return id
}

func (f *fixture) edge(t *testing.T, source, target string, strength float64) {
	t.Helper()
	_, err := f.g.Connect(f.node(t, source), f.node(t, target), graph.RelRelatedTo, strength, "", false)
	require.NoError(t, err)
}

func memberNames(c Cluster) map[string]bool {
	names := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		names[n.Name] = true
	}
	return names
}

func TestDetect(t *testing.T) {
	ctx := context.Background()

	t.Run("finds a strongly connected group", func(t *testing.T) {
		f := newFixture(t)
		// A tight triangle plus a weakly attached straggler.
		f.edge(t, "A", "B", 0.9)
		f.edge(t, "B", "C", 0.8)
		f.edge(t, "C", "A", 0.9)
		f.edge(t, "C", "Straggler", 0.2)

		d := New(f.g, Config{})
		clusters, err := d.Detect(ctx)
		require.NoError(t, err)
		require.Len(t, clusters, 1)

		names := memberNames(clusters[0])
		assert.Equal(t, 3, clusters[0].Size)
		assert.True(t, names["A"] && names["B"] && names["C"])
		assert.False(t, names["Straggler"], "weak edge must not pull a node in")
		assert.Equal(t, 3, clusters[0].InternalEdges)
		// Mean strength (0.9+0.8+0.9)/3 divided by 3 internal edges.
		assert.InDelta(t, 0.2889, clusters[0].Cohesion, 1e-3)
	})

	t.Run("self-loops do not count toward cohesion", func(t *testing.T) {
		f := newFixture(t)
		f.edge(t, "A", "B", 0.9)
		f.edge(t, "B", "C", 0.8)
		f.edge(t, "C", "A", 0.9)
		f.edge(t, "A", "A", 1.0) // self-loop on a member

		d := New(f.g, Config{})
		clusters, err := d.Detect(ctx)
		require.NoError(t, err)
		require.Len(t, clusters, 1)

		assert.Equal(t, 3, clusters[0].InternalEdges, "self-loop is not an internal edge")
		assert.InDelta(t, 0.2889, clusters[0].Cohesion, 1e-3, "same score as without the loop")
	})

	t.Run("expansion threshold is strictly greater-than", func(t *testing.T) {
		f := newFixture(t)
		f.edge(t, "A", "B", 0.5) // exactly at the default threshold
		f.edge(t, "B", "C", 0.5)

		d := New(f.g, Config{MinSize: 2})
		clusters, err := d.Detect(ctx)
		require.NoError(t, err)
		assert.Empty(t, clusters, "strength equal to the threshold must not expand")

		f.edge(t, "A", "B", 0.51)
		f.edge(t, "B", "C", 0.51)
		clusters, err = d.Detect(ctx)
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Equal(t, 3, clusters[0].Size)
	})

	t.Run("partition: no node in two clusters", func(t *testing.T) {
		f := newFixture(t)
		// Two strong components joined by a weak bridge.
		f.edge(t, "A1", "A2", 0.9)
		f.edge(t, "A2", "A3", 0.9)
		f.edge(t, "B1", "B2", 0.9)
		f.edge(t, "B2", "B3", 0.9)
		f.edge(t, "A3", "B1", 0.1)

		d := New(f.g, Config{})
		clusters, err := d.Detect(ctx)
		require.NoError(t, err)
		require.Len(t, clusters, 2)

		seen := make(map[string]int)
		for _, c := range clusters {
			for name := range memberNames(c) {
				seen[name]++
			}
		}
		for name, count := range seen {
			assert.Equal(t, 1, count, "node %s claimed by %d clusters", name, count)
		}
	})

	t.Run("min size drops small groups", func(t *testing.T) {
		f := newFixture(t)
		f.edge(t, "A", "B", 0.9)

		d := New(f.g, Config{}) // default MinSize 3
		clusters, err := d.Detect(ctx)
		require.NoError(t, err)
		assert.Empty(t, clusters)

		d = New(f.g, Config{MinSize: 2})
		clusters, err = d.Detect(ctx)
		require.NoError(t, err)
		assert.Len(t, clusters, 1)
	})

	t.Run("max cluster size caps growth", func(t *testing.T) {
		f := newFixture(t)
		// A 30-node chain of strong edges.
		for i := 0; i < 29; i++ {
			f.edge(t, fmt.Sprintf("N%02d", i), fmt.Sprintf("N%02d", i+1), 0.9)
		}

		d := New(f.g, Config{})
		clusters, err := d.Detect(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, clusters)
		assert.LessOrEqual(t, clusters[0].Size, DefaultMaxClusterSize)
	})

	t.Run("sorted by size then cohesion", func(t *testing.T) {
		f := newFixture(t)
		// Big loose cluster and a small tight one.
		f.edge(t, "Big1", "Big2", 0.6)
		f.edge(t, "Big2", "Big3", 0.6)
		f.edge(t, "Big3", "Big4", 0.6)
		f.edge(t, "Tight1", "Tight2", 0.95)
		f.edge(t, "Tight2", "Tight3", 0.95)

		d := New(f.g, Config{})
		clusters, err := d.Detect(ctx)
		require.NoError(t, err)
		require.Len(t, clusters, 2)
		assert.Equal(t, 4, clusters[0].Size, "larger cluster first")
		assert.Equal(t, 3, clusters[1].Size)
	})

	t.Run("follows edges against their direction", func(t *testing.T) {
		f := newFixture(t)
		// All edges point at Hub; clustering is undirected.
		f.edge(t, "S1", "Hub", 0.9)
		f.edge(t, "S2", "Hub", 0.9)
		f.edge(t, "S3", "Hub", 0.9)

		d := New(f.g, Config{})
		clusters, err := d.Detect(ctx)
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Equal(t, 4, clusters[0].Size)
	})

	t.Run("result cached until the graph changes", func(t *testing.T) {
		f := newFixture(t)
		f.edge(t, "A", "B", 0.9)
		f.edge(t, "B", "C", 0.9)

		d := New(f.g, Config{})
		first, err := d.Detect(ctx)
		require.NoError(t, err)
		require.Len(t, first, 1)

		again, err := d.Detect(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(first), len(again))

		f.edge(t, "C", "D", 0.9)
		after, err := d.Detect(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, after[0].Size, "mutation must invalidate the cached result")
	})
}

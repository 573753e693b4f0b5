// Package main provides the Yggdrasil CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orneryd/yggdrasil/pkg/config"
	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/yggdrasil"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	flagConfig  string
	flagDataDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "yggdrasil",
		Short: "Yggdrasil - Knowledge Graph and Relationship Synthesis Engine",
		Long: `Yggdrasil is an embedded knowledge graph engine written in Go.

It stores named concept nodes joined by typed, weighted relationships and
reasons over them:

  • Upsert-by-name nodes, merge-by-key edges
  • Shortest-path and all-paths traversal with strength pruning
  • Non-obvious connection discovery
  • Insight and hypothesis synthesis from path evidence
  • Cluster detection and graph statistics`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Yggdrasil v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show graph statistics",
		RunE:  runStats,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "clusters",
		Short: "Detect and list connectivity clusters",
		RunE:  runClusters,
	})

	pathCmd := &cobra.Command{
		Use:   "path [source-name] [target-name]",
		Short: "Find the shortest path between two nodes by name",
		Args:  cobra.ExactArgs(2),
		RunE:  runPath,
	}
	pathCmd.Flags().Int("max-depth", 0, "Maximum hops (0 = config default)")
	pathCmd.Flags().Float64("min-strength", 0, "Minimum edge strength")
	pathCmd.Flags().Bool("all", false, "Enumerate all paths instead of the shortest")
	pathCmd.Flags().Int("max-paths", 10, "Path cap for --all")
	rootCmd.AddCommand(pathCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover [node-name]",
		Short: "Discover non-obvious connections from a node",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiscover,
	}
	discoverCmd.Flags().Int("max-hops", 0, "Hop limit (0 = config default)")
	discoverCmd.Flags().Float64("min-strength", 0, "Minimum path strength")
	rootCmd.AddCommand(discoverCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "export [file]",
		Short: "Export the graph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON export, merging into the current graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openDB resolves config, applies CLI overrides, and opens the database.
func openDB() (*yggdrasil.DB, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}
	return yggdrasil.Open(cfg)
}

// cliContext returns a context cancelled on SIGINT/SIGTERM.
func cliContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := cliContext()
	defer cancel()

	s, err := db.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Nodes:       %d\n", s.Nodes)
	fmt.Printf("Edges:       %d\n", s.Edges)
	fmt.Printf("Density:     %.4f\n", s.Density)
	fmt.Printf("Mean importance: %.3f\n", s.MeanImportance)
	fmt.Printf("Mean strength:   %.3f\n", s.MeanStrength)
	fmt.Printf("Insights:    %d\n", s.Insights)
	fmt.Printf("Hypotheses:  %d\n", s.Hypotheses)

	if len(s.NodeTypes) > 0 {
		fmt.Println("\nNode types:")
		for t, n := range s.NodeTypes {
			fmt.Printf("  %-20s %d\n", t, n)
		}
	}
	if len(s.RelationshipTypes) > 0 {
		fmt.Println("\nRelationship types:")
		for t, n := range s.RelationshipTypes {
			fmt.Printf("  %-20s %d\n", t, n)
		}
	}

	ranked, err := db.MostConnected(ctx, 10)
	if err != nil {
		return err
	}
	if len(ranked) > 0 {
		fmt.Println("\nMost connected:")
		for _, r := range ranked {
			fmt.Printf("  %-30s degree %d\n", r.Node.Name, r.Degree)
		}
	}
	return nil
}

func runClusters(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := cliContext()
	defer cancel()

	clusters, err := db.FindClusters(ctx)
	if err != nil {
		return err
	}
	if len(clusters) == 0 {
		fmt.Println("No clusters found.")
		return nil
	}

	for i, c := range clusters {
		names := make([]string, len(c.Nodes))
		for j, n := range c.Nodes {
			names[j] = n.Name
		}
		fmt.Printf("Cluster %d: %d nodes, cohesion %.4f\n", i+1, c.Size, c.Cohesion)
		fmt.Printf("  %s\n", strings.Join(names, ", "))
	}
	return nil
}

func runPath(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := cliContext()
	defer cancel()

	source, err := db.GetNodeByName(args[0])
	if err != nil {
		return fmt.Errorf("source %q: %w", args[0], err)
	}
	target, err := db.GetNodeByName(args[1])
	if err != nil {
		return fmt.Errorf("target %q: %w", args[1], err)
	}

	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	minStrength, _ := cmd.Flags().GetFloat64("min-strength")
	all, _ := cmd.Flags().GetBool("all")

	if all {
		maxPaths, _ := cmd.Flags().GetInt("max-paths")
		paths, err := db.AllPaths(ctx, source.ID, target.ID, maxDepth, maxPaths, minStrength)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("No paths found.")
			return nil
		}
		for i, p := range paths {
			fmt.Printf("%d. %s (strength %.3f, %d hops)\n", i+1, p, p.TotalStrength(), p.Length())
		}
		return nil
	}

	path, err := db.ShortestPath(ctx, source.ID, target.ID, maxDepth, minStrength)
	if err != nil {
		return err
	}
	if path == nil {
		fmt.Println("No path found.")
		return nil
	}
	fmt.Printf("%s (strength %.3f, %d hops)\n", path, path.TotalStrength(), path.Length())
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := cliContext()
	defer cancel()

	node, err := db.GetNodeByName(args[0])
	if err != nil {
		return fmt.Errorf("node %q: %w", args[0], err)
	}

	maxHops, _ := cmd.Flags().GetInt("max-hops")
	minStrength, _ := cmd.Flags().GetFloat64("min-strength")

	conns, err := db.DiscoverConnections(ctx, node.ID, maxHops, minStrength)
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		fmt.Println("No non-obvious connections found.")
		return nil
	}

	for _, c := range conns {
		fmt.Printf("%s (distance %d, strength %.3f)\n", c.Target.Name, c.Distance, c.PathStrength)
		fmt.Printf("  via %s\n", c.Path)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.Snapshot()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Exported %d nodes and %d edges to %s\n", len(export.Nodes), len(export.Edges), args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var export graph.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if err := db.Load(&export); err != nil {
		return err
	}
	fmt.Printf("Imported %d nodes and %d edges from %s\n", len(export.Nodes), len(export.Edges), args[0])
	return nil
}

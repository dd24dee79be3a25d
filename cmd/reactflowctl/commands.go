package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/infrastructure/config"
	"github.com/panel-extensions/panel-reactflow/infrastructure/persistence/badger"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
)

// buildGraph loads path and adds its content through validation.
func buildGraph(path string, validate bool) (*config.GraphDefinition, *flow.Flow, error) {
	def, err := config.LoadGraphFile(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := def.Build(
		flow.WithValidateOnAdd(validate || def.ValidateOnAdd),
		flow.WithValidateOnPatch(validate || def.ValidateOnPatch),
	)
	if err != nil {
		return nil, nil, err
	}
	return def, f, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runValidate(cmd *cobra.Command, args []string) error {
	def, f, err := buildGraph(args[0], true)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d nodes, %d edges, %d node types, %d edge types)\n",
		args[0], len(f.Nodes()), len(f.Edges()), len(def.NodeTypes), len(def.EdgeTypes))
	if unplaced := def.Unplaced(); len(unplaced) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d nodes placed by layout: %v\n", len(unplaced), unplaced)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	multigraph, _ := cmd.Flags().GetBool("multigraph")
	_, f, err := buildGraph(args[0], false)
	if err != nil {
		return err
	}
	return printJSON(cmd, f.ToGraphModel(multigraph))
}

func runTypes(cmd *cobra.Command, args []string) error {
	edges, _ := cmd.Flags().GetBool("edges")
	_, f, err := buildGraph(args[0], false)
	if err != nil {
		return err
	}
	if edges {
		return printJSON(cmd, f.Types().EdgeTypes())
	}
	return printJSON(cmd, f.Types().NodeTypes())
}

type layoutEntry struct {
	ID string  `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

func runLayout(cmd *cobra.Command, args []string) error {
	def, err := config.LoadGraphFile(args[0])
	if err != nil {
		return err
	}
	positions := def.Layout()
	out := make([]layoutEntry, 0, len(positions))
	for id, p := range positions {
		out = append(out, layoutEntry{ID: id, X: p.X, Y: p.Y})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(map[string]any{"positions": out})
}

func runToken(cmd *cobra.Command, args []string) error {
	secret, _ := cmd.Flags().GetString("secret")
	issuer, _ := cmd.Flags().GetString("issuer")
	user, _ := cmd.Flags().GetString("user")
	graphs, _ := cmd.Flags().GetStringSlice("graph")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if user == "" {
		return fmt.Errorf("--user is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	v, err := auth.NewValidator(secret, issuer)
	if err != nil {
		return err
	}
	token, err := v.Generate(user, graphs, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func openStore(cmd *cobra.Command) (*badger.Store, error) {
	dir, _ := cmd.Flags().GetString("data-dir")
	return badger.Open(badger.Options{Dir: dir}, zap.NewNop())
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, snap)
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "snapshot of %s deleted\n", args[0])
	return nil
}

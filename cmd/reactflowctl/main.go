// Package main provides reactflowctl, the command line companion of the
// graph server: it checks graph files, exports them and inspects snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reactflowctl",
		Short: "Inspect and validate panel-reactflow graphs",
		Long: `reactflowctl works on the YAML graph files and the snapshots the
graph server reads and writes.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reactflowctl v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Load a graph file and validate every node and edge against its type",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	})

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Print the graph as an interchange digraph (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().Bool("multigraph", false, "Key parallel edges by edge id")
	rootCmd.AddCommand(exportCmd)

	typesCmd := &cobra.Command{
		Use:   "types [file]",
		Short: "Print the normalized type descriptors of a graph file",
		Args:  cobra.ExactArgs(1),
		RunE:  runTypes,
	}
	typesCmd.Flags().Bool("edges", false, "Print edge types instead of node types")
	rootCmd.AddCommand(typesCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "layout [file]",
		Short: "Print computed positions for the nodes of a graph file (YAML)",
		Args:  cobra.ExactArgs(1),
		RunE:  runLayout,
	})

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for canvas clients",
		RunE:  runToken,
	}
	tokenCmd.Flags().String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	tokenCmd.Flags().String("issuer", "panel-reactflow", "Token issuer")
	tokenCmd.Flags().String("user", "", "User id (sub claim)")
	tokenCmd.Flags().StringSlice("graph", nil, "Graphs the token may open (default: all)")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default 24h)")
	rootCmd.AddCommand(tokenCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Snapshot operations on a badger data directory",
	}
	snapshotCmd.PersistentFlags().String("data-dir", "./data", "Badger data directory")
	snapshotCmd.AddCommand(&cobra.Command{
		Use:   "show [graph-id]",
		Short: "Print the latest snapshot of a graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotShow,
	})
	snapshotCmd.AddCommand(&cobra.Command{
		Use:   "delete [graph-id]",
		Short: "Delete the snapshot of a graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotDelete,
	})
	rootCmd.AddCommand(snapshotCmd)

	return rootCmd
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfmap/shelfmap/internal/config"
	"github.com/shelfmap/shelfmap/internal/model"
	"github.com/shelfmap/shelfmap/internal/store"
)

// NewTreeCmd creates the tree command.
func NewTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [retailer-id]",
		Short: "Print discovered category hierarchies",
		Long: `Tree prints the discovered category hierarchy from the local database.

Without arguments it prints the tree of every retailer. With a
retailer ID it prints only that retailer's tree.

Failed categories are marked with [failed]; categories that were
recorded but not explored because of the depth ceiling look like any
other leaf.

Examples:
  # Print every retailer's tree
  shelfmap tree

  # Print one retailer's tree with URLs
  shelfmap tree acme --urls`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTreeCmd,
	}

	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().BoolP("urls", "u", false,
		"Include category URLs in the output")

	return cmd
}

// runTreeCmd executes the tree command.
func runTreeCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	showURLs, err := cmd.Flags().GetBool("urls")
	if err != nil {
		return err
	}

	// The database must already exist; tree never creates one.
	st, err := store.Open(dbDir, store.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database (run 'shelfmap discover' first): %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	retailerIDs := args
	if len(retailerIDs) == 0 {
		retailerIDs, err = st.Retailers(ctx)
		if err != nil {
			return err
		}
		if len(retailerIDs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No categories discovered yet.")
			return nil
		}
	}

	out := cmd.OutOrStdout()
	for _, id := range retailerIDs {
		if err := printRetailerTree(ctx, out, st, id, showURLs); err != nil {
			return err
		}
	}
	return nil
}

// printRetailerTree prints one retailer's hierarchy.
func printRetailerTree(ctx context.Context, out io.Writer, st *store.Store, retailerID string, showURLs bool) error {
	roots, err := st.Roots(ctx, retailerID)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		fmt.Fprintf(out, "%s: no categories\n", retailerID)
		return nil
	}

	fmt.Fprintf(out, "%s\n", retailerID)
	for _, root := range roots {
		if err := printNode(ctx, out, st, root, 1, showURLs); err != nil {
			return err
		}
	}
	fmt.Fprintln(out)
	return nil
}

// printNode prints a node and recurses into its children.
func printNode(ctx context.Context, out io.Writer, st *store.Store, node *model.CategoryNode, indent int, showURLs bool) error {
	fmt.Fprintf(out, "%s%s%s\n", strings.Repeat("  ", indent), node.Name, nodeMarker(node))
	if showURLs {
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", indent+1), node.URL)
	}

	children, err := st.Children(ctx, node.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := printNode(ctx, out, st, child, indent+1, showURLs); err != nil {
			return err
		}
	}
	return nil
}

// nodeMarker annotates non-terminal and failed nodes.
func nodeMarker(node *model.CategoryNode) string {
	switch node.Status {
	case model.StatusFailedPermanent:
		return " [failed]"
	case model.StatusPending, model.StatusInProgress:
		return " [unexplored]"
	default:
		return ""
	}
}

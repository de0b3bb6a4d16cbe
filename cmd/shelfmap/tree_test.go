package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shelfmap/shelfmap/internal/model"
	"github.com/shelfmap/shelfmap/internal/store"
)

// TestNewTreeCmd tests the tree command creation.
func TestNewTreeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewTreeCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "tree [retailer-id]" {
			t.Errorf("expected use 'tree [retailer-id]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has db-dir flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("db-dir") == nil {
			t.Fatal("expected db-dir flag")
		}
	})

	t.Run("has urls flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("urls")
		if flag == nil {
			t.Fatal("expected urls flag")
		}
		if flag.Shorthand != "u" {
			t.Errorf("expected shorthand 'u', got %q", flag.Shorthand)
		}
	})
}

// populateTestHierarchy creates a database with a small two-retailer
// hierarchy and returns its directory.
func populateTestHierarchy(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(dir, store.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	create := func(node *model.CategoryNode) *model.CategoryNode {
		t.Helper()
		if _, err := st.CreateIfAbsent(ctx, node); err != nil {
			t.Fatalf("failed to create node: %v", err)
		}
		return node
	}

	root := create(&model.CategoryNode{
		RetailerID: "acme", Name: "Apparel", URL: "https://acme.test/c/apparel", Depth: 0,
	})
	shoes := create(&model.CategoryNode{
		RetailerID: "acme", Name: "Shoes", URL: "https://acme.test/c/shoes",
		ParentID: &root.ID, Depth: 1,
	})
	create(&model.CategoryNode{
		RetailerID: "acme", Name: "Sneakers", URL: "https://acme.test/c/sneakers",
		ParentID: &shoes.ID, Depth: 2,
	})
	broken := create(&model.CategoryNode{
		RetailerID: "acme", Name: "Clearance", URL: "https://acme.test/c/clearance",
		ParentID: &root.ID, Depth: 1,
	})
	create(&model.CategoryNode{
		RetailerID: "megamart", Name: "Garden", URL: "https://megamart.test/browse/garden", Depth: 0,
	})

	if err := st.SetStatus(ctx, root.ID, model.StatusProcessedHasChildren); err != nil {
		t.Fatal(err)
	}
	if err := st.SetStatus(ctx, shoes.ID, model.StatusProcessedHasChildren); err != nil {
		t.Fatal(err)
	}
	if err := st.SetStatus(ctx, broken.ID, model.StatusFailedPermanent); err != nil {
		t.Fatal(err)
	}
	return dir
}

// TestRunTreeCmd tests the tree command execution.
func TestRunTreeCmd(t *testing.T) {
	t.Run("fails without a database", func(t *testing.T) {
		cmd := NewTreeCmd()
		cmd.SetArgs([]string{"--db-dir", t.TempDir()})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
		if !strings.Contains(err.Error(), "shelfmap discover") {
			t.Errorf("expected hint to run discover, got: %v", err)
		}
	})

	t.Run("prints every retailer", func(t *testing.T) {
		dir := populateTestHierarchy(t)

		var buf bytes.Buffer
		cmd := NewTreeCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{"acme", "megamart", "Apparel", "Sneakers", "Garden"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("marks failed categories", func(t *testing.T) {
		dir := populateTestHierarchy(t)

		var buf bytes.Buffer
		cmd := NewTreeCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "Clearance [failed]") {
			t.Error("expected failed marker on Clearance")
		}
	})

	t.Run("indents children below parents", func(t *testing.T) {
		dir := populateTestHierarchy(t)

		var buf bytes.Buffer
		cmd := NewTreeCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir, "acme"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "  Apparel") {
			t.Error("expected root indented under retailer heading")
		}
		if !strings.Contains(out, "      Sneakers") {
			t.Error("expected grandchild indented three levels")
		}
	})

	t.Run("filters by retailer argument", func(t *testing.T) {
		dir := populateTestHierarchy(t)

		var buf bytes.Buffer
		cmd := NewTreeCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir, "megamart"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "Garden") {
			t.Error("expected megamart categories")
		}
		if strings.Contains(out, "Apparel") {
			t.Error("expected acme categories to be filtered out")
		}
	})

	t.Run("includes URLs with --urls", func(t *testing.T) {
		dir := populateTestHierarchy(t)

		var buf bytes.Buffer
		cmd := NewTreeCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir, "--urls", "acme"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "https://acme.test/c/shoes") {
			t.Error("expected URLs in output")
		}
	})

	t.Run("reports unknown retailer as empty", func(t *testing.T) {
		dir := populateTestHierarchy(t)

		var buf bytes.Buffer
		cmd := NewTreeCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir, "nosuch"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "nosuch: no categories") {
			t.Errorf("expected empty-retailer message, got %q", buf.String())
		}
	})
}

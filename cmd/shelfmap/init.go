package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed templates/shelfmap.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = ".shelfmap"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new shelfmap configuration file",
		Long: `Initialize creates a new .shelfmap configuration file in the current directory.

The generated file includes:
- A documented retailer entry with seed URLs and category patterns
- Commented examples for per-retailer overrides (depth, cookies, headers)
- Documentation for all available options

Examples:
  # Create .shelfmap in current directory
  shelfmap init

  # Create config file at a specific path
  shelfmap init -o myretailers.yaml

  # Force overwrite existing file
  shelfmap init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Read template from embedded filesystem
	content, err := configTemplate.ReadFile("templates/shelfmap.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write configuration file
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("Created configuration file: %s\n", outputPath)
	fmt.Println("\nEdit this file to configure retailers:")
	fmt.Println("  - Seed URLs where category discovery starts")
	fmt.Println("  - URL patterns identifying category pages")
	fmt.Println("  - Per-retailer depth ceilings, cookies, and headers")

	return nil
}

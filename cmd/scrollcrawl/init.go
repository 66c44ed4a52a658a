package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrollcrawl/internal/config"
)

//go:embed templates/sites.yaml
var sitesTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sites file",
		Long: `Init writes a commented sites file to the current directory.

The generated file includes:
- Entries for IGN, GameInformer and PC Gamer
- Defaults for politeness, discovery and rendering
- Documentation for every site field

Examples:
  # Create scrollcrawl.yaml in current directory
  scrollcrawl init

  # Create the file at a specific path
  scrollcrawl init -o ~/.config/scrollcrawl/sites.yaml

  # Force overwrite existing file
  scrollcrawl init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultSitesFile,
		"Output file path for the sites file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing sites file")

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

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("sites file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := sitesTemplate.ReadFile("templates/sites.yaml")
	if err != nil {
		return fmt.Errorf("failed to read sites template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write sites file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created sites file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - The sites to crawl and their listing pages")
	fmt.Fprintln(out, "  - Politeness delays and discovery limits")
	fmt.Fprintln(out, "  - Cookies, headers and URL patterns to ignore")

	return nil
}

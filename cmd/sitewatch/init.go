package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitewatch/internal/config"
)

//go:embed templates/sitewatch.yaml
var watchFileTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new SiteWatch watch file",
		Long: `Initialize creates a new .sitewatch watch file in the current directory.

The generated file includes:
- Default crawl depth, page budget, and re-crawl interval
- Commented examples for per-domain overrides and denylist rules
- A commented SMTP section for email digest delivery

Examples:
  # Create .sitewatch in current directory
  sitewatch init

  # Create the watch file at a specific path
  sitewatch init -o mysites.yaml

  # Force overwrite existing file
  sitewatch init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultWatchFile,
		"Output file path for the watch file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing watch file")

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
			return fmt.Errorf("watch file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := watchFileTemplate.ReadFile("templates/sitewatch.yaml")
	if err != nil {
		return fmt.Errorf("failed to read watch file template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write watch file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created watch file: %s\n", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit this file to configure:")
	fmt.Fprintln(cmd.OutOrStdout(), "  - The domains to monitor and their re-crawl intervals")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Denylist rules for volatile page elements")
	fmt.Fprintln(cmd.OutOrStdout(), "  - SMTP settings for email change digests")

	return nil
}

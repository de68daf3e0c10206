package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/database"
	"github.com/nao1215/sitewatch/internal/model"
)

// NewChangesCmd creates the changes command.
func NewChangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes [host]",
		Short: "Show the recorded change history for a watched domain",
		Long: `Changes queries the stored change history. Without arguments it lists
all watched domains; with a host argument it prints that domain's
changes, newest first.

Examples:
  # List watched domains
  sitewatch changes

  # All recorded changes for a domain
  sitewatch changes example.com

  # Only removals in the last day
  sitewatch changes --kind removed --since 24h example.com

  # Changes since a date, as JSON
  sitewatch changes --since 2026-08-01 --json example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChangesCmd,
	}

	cmd.Flags().StringP("since", "s", "",
		"Only changes after this duration ago (24h) or date (2006-01-02)")
	cmd.Flags().StringP("kind", "k", "",
		"Filter by change kind: new, modified, or removed")
	cmd.Flags().IntP("limit", "n", 0,
		"Maximum number of changes to show (0 = all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON instead of text")
	cmd.Flags().Bool("diffs", false,
		"Include unified diffs in text output")
	cmd.Flags().BoolP("runs", "r", false,
		"Show crawl run history instead of changes")

	return cmd
}

// runChangesCmd executes the changes command.
func runChangesCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(config.NewConfig().DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if len(args) == 0 {
		return listDomains(ctx, cmd, db)
	}
	host := strings.ToLower(args[0])

	showRuns, err := cmd.Flags().GetBool("runs")
	if err != nil {
		return err
	}
	if showRuns {
		return listRunHistory(ctx, cmd, db, host)
	}

	return listChanges(ctx, cmd, db, host)
}

// listDomains prints all registered watched domains.
func listDomains(ctx context.Context, cmd *cobra.Command, db *database.SiteDB) error {
	domains, err := db.ListDomains(ctx)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No watched domains yet. Run 'sitewatch crawl <url>' first.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Watched domains:")
	for _, d := range domains {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-30s %s\n", d.ScopeHost, d.RootURL)
	}
	return nil
}

// listChanges prints the change history for one host.
func listChanges(ctx context.Context, cmd *cobra.Command, db *database.SiteDB, host string) error {
	filter, err := buildChangeFilter(cmd, host)
	if err != nil {
		return err
	}

	changes, err := db.GetChanges(ctx, filter)
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(changes)
	}

	if len(changes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No recorded changes for %s.\n", host)
		return nil
	}

	showDiffs, err := cmd.Flags().GetBool("diffs")
	if err != nil {
		return err
	}

	for _, change := range changes {
		line := fmt.Sprintf("%s  %-10s %s",
			change.DetectedAt.Format("2006-01-02 15:04"),
			"["+change.Kind+"]",
			change.URL)
		if change.Kind == model.ChangeModified && change.Similarity != nil {
			line += fmt.Sprintf(" (similarity %.1f%%)", *change.Similarity*100)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)

		if sd := change.Structural; sd != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "    elements: %d added, %d removed, %d modified\n",
				len(sd.Added), len(sd.Removed), len(sd.Modified))
		}
		if showDiffs && change.Diff != "" {
			for _, diffLine := range strings.Split(change.Diff, "\n") {
				fmt.Fprintln(cmd.OutOrStdout(), "    "+diffLine)
			}
		}
	}
	return nil
}

// buildChangeFilter assembles the query filter from flags.
func buildChangeFilter(cmd *cobra.Command, host string) (database.ChangeFilter, error) {
	filter := database.ChangeFilter{ScopeHost: host}

	sinceValue, err := cmd.Flags().GetString("since")
	if err != nil {
		return filter, err
	}
	if filter.Since, err = sinceTime(sinceValue); err != nil {
		return filter, err
	}

	kindValue, err := cmd.Flags().GetString("kind")
	if err != nil {
		return filter, err
	}
	if kindValue != "" {
		kind := model.ChangeKind(strings.ToLower(kindValue))
		switch kind {
		case model.ChangeNew, model.ChangeModified, model.ChangeRemoved:
			filter.Kind = kind
		default:
			return filter, errors.New("invalid --kind value (use new, modified, or removed)")
		}
	}

	if filter.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return filter, err
	}
	return filter, nil
}

// listRunHistory prints crawl run summaries for one host.
func listRunHistory(ctx context.Context, cmd *cobra.Command, db *database.SiteDB, host string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	runs, err := db.GetRunHistory(ctx, host, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No recorded runs for %s.\n", host)
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-17s pages=%-4d failures=%-3d %s\n",
			run.StartedAt.Format("2006-01-02 15:04"),
			run.State,
			run.Pages,
			run.Failures,
			run.ID)
	}
	return nil
}

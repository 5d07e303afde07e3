package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/treefort-labs/dirstore/internal/ui"
)

func newScanCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Crawl the tracked root and summarize its contents",
		Long: `Crawl the tracked root and report what dirstore sees: how many
files are tracked, the newest modification time, and any files it had to
skip.

Examples:
  dirstore scan --root ./experiments
  dirstore scan --root ./experiments --max-depth 1 --include "*.json"
  dirstore scan --root ./experiments --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runScan(cmd *cobra.Command, format string) error {
	store, err := openStore(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(nil)
	if err != nil {
		return err
	}

	if format == "json" {
		summary := map[string]any{
			"root":     store.Root(),
			"files":    count,
			"warnings": len(store.Warnings()),
		}
		if lu := store.LastUpdated(); !lu.IsZero() {
			summary["last_updated"] = lu.Format(time.RFC3339)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	styles := ui.ForTerminal()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.Header.Render(store.Root()))
	fmt.Fprintf(out, "%s %d\n", styles.Key.Render("files:"), count)
	if lu := store.LastUpdated(); !lu.IsZero() {
		fmt.Fprintf(out, "%s %s\n", styles.Key.Render("last updated:"), lu.Format(time.RFC3339))
	}
	if n := len(store.Warnings()); n > 0 {
		fmt.Fprintf(out, "%s %d\n", styles.Warning.Render("skipped:"), n)
	}
	return nil
}

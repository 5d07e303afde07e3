package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treefort-labs/dirstore/internal/docstore"
	"github.com/treefort-labs/dirstore/internal/record"
	"github.com/treefort-labs/dirstore/internal/ui"
)

func newDiffCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "diff <other-root>",
		Short: "List files modified more recently in another copy of the tree",
		Long: `List files modified more recently in another copy of the tree.

Both roots are crawled with the same depth and pattern settings. A file is
reported when it exists in both trees (same root-relative path) and the
copy under <other-root> has a strictly later modification time. Files
present in only one tree are ignored.

Examples:
  dirstore diff /mnt/backup/experiments --root ./experiments
  dirstore diff /mnt/backup/experiments --root ./experiments --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runDiff(cmd *cobra.Command, otherRoot, format string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	local, err := connectStore(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}
	defer local.Close()

	otherCfg := *cfg
	otherCfg.Root = otherRoot
	otherCfg.ReadOnly = true
	other, err := connectStore(cmd.Context(), cmd, &otherCfg)
	if err != nil {
		return err
	}
	defer other.Close()

	ids, err := local.NewerIn(other)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		return enc.Encode(ids)
	}

	styles := ui.ForTerminal()
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, styles.Dim.Render("nothing newer"))
		return nil
	}
	for _, id := range ids {
		line := id
		if doc, found, qerr := other.QueryOne(docstore.Filter{record.Key: id}); qerr == nil && found {
			line = fmt.Sprintf("%s  %s", styles.Dim.Render(id), doc["path"])
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

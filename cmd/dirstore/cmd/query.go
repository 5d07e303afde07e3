package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treefort-labs/dirstore/internal/docstore"
	"github.com/treefort-labs/dirstore/internal/errors"
	"github.com/treefort-labs/dirstore/internal/ui"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	filter    string
	sort      string
	skip      int
	limit     int
	format    string
	countOnly bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query tracked files as documents",
		Long: `Query tracked files as documents.

Filters are JSON objects matched against document fields. Values match by
equality; a {"$regex": "..."} object matches Go regular expressions. Dotted
field names reach into metadata.

Sort specs are comma-separated field names; a leading '-' sorts descending.

Examples:
  dirstore query --root ./data
  dirstore query --root ./data --filter '{"name": "input.in"}'
  dirstore query --root ./data --filter '{"parent": {"$regex": "^calc"}}' --sort -last_updated
  dirstore query --root ./data --sort name --skip 10 --limit 5
  dirstore query --root ./data --filter '{"metadata.state": "done"}' --count`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.filter, "filter", "q", "", "Filter as a JSON object")
	cmd.Flags().StringVarP(&opts.sort, "sort", "s", "", "Sort spec, e.g. 'parent,-size'")
	cmd.Flags().IntVar(&opts.skip, "skip", 0, "Documents to skip")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum documents to return (0 = all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format: json, text")
	cmd.Flags().BoolVar(&opts.countOnly, "count", false, "Print the match count only")

	return cmd
}

func parseFilter(raw string) (docstore.Filter, error) {
	if raw == "" {
		return nil, nil
	}
	var filter docstore.Filter
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidFilter,
			fmt.Sprintf("filter is not a JSON object: %s", raw), err)
	}
	return filter, nil
}

func runQuery(cmd *cobra.Command, opts queryOptions) error {
	filter, err := parseFilter(opts.filter)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.countOnly {
		n, err := store.Count(filter)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	var qopts []docstore.QueryOption
	if opts.sort != "" {
		qopts = append(qopts, docstore.WithSort(docstore.ParseSortSpec(opts.sort)))
	}
	if opts.skip > 0 {
		qopts = append(qopts, docstore.WithSkip(opts.skip))
	}
	if opts.limit > 0 {
		qopts = append(qopts, docstore.WithLimit(opts.limit))
	}

	seq, err := store.Query(filter, qopts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "text" {
		styles := ui.ForTerminal()
		for doc := range seq {
			fmt.Fprintf(out, "%s  %v  %s\n",
				styles.Dim.Render(fmt.Sprint(doc["file_id"])),
				doc["size"],
				styles.Value.Render(fmt.Sprint(doc["path"])))
		}
		return nil
	}

	enc := json.NewEncoder(out)
	for doc := range seq {
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return nil
}

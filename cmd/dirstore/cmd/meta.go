package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/treefort-labs/dirstore/internal/docstore"
	"github.com/treefort-labs/dirstore/internal/errors"
	"github.com/treefort-labs/dirstore/internal/record"
)

func newMetaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Read and write user metadata on tracked files",
	}

	cmd.AddCommand(newMetaGetCmd())
	cmd.AddCommand(newMetaSetCmd())

	return cmd
}

func newMetaGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <file_id>",
		Short: "Print the metadata attached to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			doc, found, err := store.QueryOne(docstore.Filter{record.Key: args[0]})
			if err != nil {
				return err
			}
			if !found {
				return errors.New(errors.ErrCodeInvalidFilter,
					fmt.Sprintf("no tracked file with %s %q", record.Key, args[0]), nil)
			}

			meta, ok := doc["metadata"]
			if !ok {
				meta = map[string]any{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
}

func newMetaSetCmd() *cobra.Command {
	var rawJSON string
	var keyField string

	cmd := &cobra.Command{
		Use:   "set <key> [field=value ...]",
		Short: "Replace the metadata attached to matching files",
		Long: `Replace the metadata attached to matching files.

By default <key> is a file_id. With --key-field, <key> is matched against
another document field instead, updating every matching file.

Values given as field=value pairs are stored as strings; use --json for
typed metadata. The new metadata replaces any previous metadata wholesale.

Examples:
  dirstore meta set 1a2b3c4d5e6f7a8b state=done
  dirstore meta set 1a2b3c4d5e6f7a8b --json '{"runs": 3, "converged": true}'
  dirstore meta set input.in --key-field name kind=input`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := buildMetadata(args[1:], rawJSON)
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			field := keyField
			if field == "" {
				field = record.Key
			}
			doc := map[string]any{field: args[0], "metadata": meta}
			if err := store.Update([]map[string]any{doc}, field); err != nil {
				return err
			}
			return store.Close()
		},
	}

	cmd.Flags().StringVar(&rawJSON, "json", "", "Metadata as a JSON object (replaces field=value pairs)")
	cmd.Flags().StringVar(&keyField, "key-field", "", "Document field to match <key> against (default file_id)")

	return cmd
}

func buildMetadata(pairs []string, rawJSON string) (map[string]any, error) {
	if rawJSON != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(rawJSON), &meta); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("metadata is not a JSON object: %s", rawJSON), err)
		}
		return meta, nil
	}

	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("expected field=value, got %q", pair), nil)
		}
		meta[k] = v
	}
	if len(meta) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFilter,
			"no metadata given; pass field=value pairs or --json", nil)
	}
	return meta, nil
}

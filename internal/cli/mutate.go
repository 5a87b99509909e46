package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/firedesk/internal/specfile"
)

// WriteOptions holds flags for the bulk write commands.
type WriteOptions struct {
	*RootOptions
	Limit         int // chunk size; 0 uses the config
	MaxConcurrent int // in-flight chunk cap; 0 uses the config
}

func (o *WriteOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.Limit, "chunk-size", 0, "writes per atomic chunk (max 500, default from config)")
	cmd.Flags().IntVar(&o.MaxConcurrent, "max-concurrent", 0, "chunks committed at once (default from config, 0 = unlimited)")
}

// WriteResult is the JSON payload of create and delete.
type WriteResult struct {
	Paths  []string `json:"paths"`
	Chunks int      `json:"chunks"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <collection> <records-file>",
		Short: "Create documents from a records file",
		Long: `Create one document per record. A record's string "id" field names its
document; other records get generated ids. Records are read from JSON, YAML
or CUE ("-" reads JSON from stdin) and may use the marker objects
{"__ref__": path}, {"__timestamp__": ms} and {"__geo__": {...}}.

Writes are split into atomic chunks of at most 500 documents. When some
chunks fail the others stay committed and the failed chunk indices are
reported.

Exit codes:
  0 - All documents created
  1 - Some or all chunks failed
  2 - Command error (bad path, malformed records, config)

Examples:
  firedesk create users users.yaml
  firedesk create users/alice/posts posts.json --chunk-size 100`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := specfile.Records(args[1])
			if err != nil {
				return inputError("failed to read records", err)
			}

			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := e.writer(opts.Limit, opts.MaxConcurrent).Create(commandContext(cmd), args[0], records)
			if report == nil {
				return wrapOpError("create failed", err)
			}
			written := report.Written()
			if err != nil {
				return wrapOpError(fmt.Sprintf("created %d of %d documents", len(written), len(records)), err)
			}
			return e.out.Success(
				WriteResult{Paths: nonNil(written), Chunks: len(report.Chunks)},
				fmt.Sprintf("created %d documents in %d chunks", len(written), len(report.Chunks)),
			)
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <document> <updates-file>",
		Short: "Update fields of a document",
		Long: `Apply a flat list of alternating field selectors and values to one
document, in order. A selector is a dotted path ("address.city") or a list
of segments (["address", "zip.code"]). {"__undefined__": true} removes the
field.

Example updates file:
  ["age", 31, ["address", "city"], "Oslo", "legacy", {"__undefined__": true}]`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := specfile.Updates(args[1])
			if err != nil {
				return inputError("failed to read updates", err)
			}

			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.writer(0, 0).Update(commandContext(cmd), args[0], updates); err != nil {
				return wrapOpError("update failed", err)
			}
			fields := len(updates) / 2
			return e.out.Success(
				map[string]any{"path": args[0], "fields": fields},
				fmt.Sprintf("updated %s (%d fields)", args[0], fields),
			)
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <document>...",
		Short: "Delete documents",
		Long: `Delete the named documents in atomic chunks. Subcollections are left in
place; use rdelete to remove a document with its descendants. Deleting a
missing document is not an error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := e.writer(opts.Limit, opts.MaxConcurrent).Deletes(commandContext(cmd), args...)
			if report == nil {
				return wrapOpError("delete failed", err)
			}
			deleted := report.Written()
			if err != nil {
				return wrapOpError(fmt.Sprintf("deleted %d of %d documents", len(deleted), len(args)), err)
			}
			return e.out.Success(
				WriteResult{Paths: nonNil(deleted), Chunks: len(report.Chunks)},
				fmt.Sprintf("deleted %d documents", len(deleted)),
			)
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewRecursiveDeleteCommand creates the rdelete command.
func NewRecursiveDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rdelete <path>",
		Short: "Delete a document or collection with all descendants",
		Long: `Delete a document or a whole collection together with every nested
subcollection. The path's segment count decides which: odd for a
collection, even for a document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			kind, err := e.writer(0, 0).RecursiveDelete(commandContext(cmd), args[0])
			if err != nil {
				return wrapOpError("recursive delete failed", err)
			}
			return e.out.Success(
				map[string]any{"path": args[0], "kind": kind.String()},
				fmt.Sprintf("deleted %s %s and all descendants", kind, args[0]),
			)
		},
	}
}

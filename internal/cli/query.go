package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/firedesk/internal/query"
	"github.com/roach88/firedesk/internal/specfile"
	"github.com/roach88/firedesk/internal/wire"
)

// QueryOptions holds flags for the query and count commands.
type QueryOptions struct {
	*RootOptions
	SpecPath string
	Limit    int
}

// loadSpec reads the query spec file, or returns an empty spec when none
// was given. A positive --limit replaces the query spec's limit.
func (o *QueryOptions) loadSpec() (*query.Spec, error) {
	spec := &query.Spec{}
	if o.SpecPath != "" {
		s, err := specfile.Query(o.SpecPath)
		if err != nil {
			return nil, inputError("failed to read query spec", err)
		}
		spec = s
	}
	if o.Limit > 0 {
		spec.Limit = o.Limit
	}
	return spec, nil
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Run a query against a collection",
		Long: `Run a structured query and print the matching documents.

The query spec is a JSON, YAML or CUE object:

  where:        [[field, op, value], ...]
  orderBy:      [field, [field, "desc"], ...]
  limit:        n
  limitToLast:  n
  startAt, startAfter, endAt, endBefore:
                [value, ...] or {"__ref__": "collection/doc"}

Operators: < <= == != >= > array-contains array-contains-any in not-in.

Text output prints one line per document: its path and its data.

Examples:
  firedesk query users
  firedesk query users --spec adults.yaml --format json
  firedesk query users/alice/posts --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := opts.loadSpec()
			if err != nil {
				return err
			}

			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			docs, err := query.NewBuilder(e.store, query.WithLogger(e.logger)).
				Run(commandContext(cmd), args[0], spec)
			if err != nil {
				return wrapOpError("query failed", err)
			}
			if docs == nil {
				docs = []query.Document{}
			}

			text, err := documentLines(docs)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to format documents", err)
			}
			return e.out.Success(docs, text)
		},
	}

	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "query spec file (.json, .yaml, .cue, or - for JSON on stdin)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of documents (overrides the query spec)")

	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the documents matching a query",
		Long: `Count the documents of a collection that match the query spec's filters.
Orderings, limits and cursors in the query spec are ignored.

Examples:
  firedesk count users
  firedesk count users --spec adults.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := opts.loadSpec()
			if err != nil {
				return err
			}

			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := query.NewBuilder(e.store, query.WithLogger(e.logger)).
				Count(commandContext(cmd), args[0], spec)
			if err != nil {
				return wrapOpError("count failed", err)
			}
			return e.out.Success(map[string]any{"count": n}, strconv.FormatInt(n, 10))
		},
	}

	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "query spec file (.json, .yaml, .cue, or - for JSON on stdin)")

	return cmd
}

// documentLines renders docs as "path data" lines.
func documentLines(docs []query.Document) (string, error) {
	lines := make([]string, 0, len(docs))
	for _, d := range docs {
		data, err := wire.Marshal(d.Data)
		if err != nil {
			return "", err
		}
		lines = append(lines, d.Path+" "+string(data))
	}
	return strings.Join(lines, "\n"), nil
}

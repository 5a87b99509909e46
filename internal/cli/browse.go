package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/firedesk/internal/paths"
)

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections [document-path]",
		Short: "List collections",
		Long: `List the root collections, or the subcollections of a document.

Examples:
  firedesk collections
  firedesk collections users/alice --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := ""
			if len(args) == 1 {
				doc, err := paths.RequireDocument(args[0])
				if err != nil {
					return wrapOpError("invalid document path", err)
				}
				parent = doc
			}

			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			cols, err := e.store.ListCollections(commandContext(cmd), parent)
			if err != nil {
				return wrapOpError("failed to list collections", err)
			}
			return e.out.Success(nonNil(cols), strings.Join(cols, "\n"))
		},
	}
}

// NewDocumentsCommand creates the documents command.
func NewDocumentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "documents <collection>",
		Short: "List the documents of a collection",
		Long: `List the document paths in a collection, including documents that only
exist as parents of subcollections.

Examples:
  firedesk documents users
  firedesk documents users/alice/posts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := paths.RequireCollection(args[0])
			if err != nil {
				return wrapOpError("invalid collection path", err)
			}

			e, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			docs, err := e.store.ListDocuments(commandContext(cmd), collection)
			if err != nil {
				return wrapOpError("failed to list documents", err)
			}
			return e.out.Success(nonNil(docs), strings.Join(docs, "\n"))
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

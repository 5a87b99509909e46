package sqlite

import (
	"context"
	"fmt"

	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
)

// RecursiveDelete removes path and everything beneath it in one
// transaction. For a document that is the document itself plus all its
// subcollections; for a collection, every document under it.
func (s *Store) RecursiveDelete(ctx context.Context, path string, kind paths.Kind) error {
	if kind == paths.KindRoot {
		return store.NewProviderError("recursive delete", path, store.CodeInvalid,
			fmt.Errorf("refusing to delete the database root"))
	}

	prefix := path + paths.Delimiter

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.NewProviderError("recursive delete", path, store.CodeInternal, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT collection FROM documents
		WHERE path = ? OR substr(path, 1, length(?)) = ?
	`, path, prefix, prefix)
	if err != nil {
		return store.NewProviderError("recursive delete", path, store.CodeInternal, err)
	}
	var touched []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return store.NewProviderError("recursive delete", path, store.CodeInternal, err)
		}
		touched = append(touched, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return store.NewProviderError("recursive delete", path, store.CodeInternal, err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM documents
		WHERE path = ? OR substr(path, 1, length(?)) = ?
	`, path, prefix, prefix)
	if err != nil {
		return store.NewProviderError("recursive delete", path, store.CodeInternal, err)
	}

	if err := tx.Commit(); err != nil {
		return store.NewProviderError("recursive delete", path, store.CodeInternal, err)
	}

	for _, c := range touched {
		s.hub.notify(c)
	}
	return nil
}

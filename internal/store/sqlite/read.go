package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"

	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
)

// Get reads one document. A missing document is a snapshot with
// Exists == false, not an error.
func (s *Store) Get(ctx context.Context, documentPath string) (*store.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, data, create_time, update_time
		FROM documents
		WHERE path = ?
	`, documentPath)

	snap, err := s.scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &store.Snapshot{Path: documentPath}, nil
	}
	if err != nil {
		return nil, store.NewProviderError("get", documentPath, store.CodeInternal, err)
	}
	return &snap, nil
}

// readCollection returns every document directly in collection, ordered by
// id for deterministic results.
func (s *Store) readCollection(ctx context.Context, collection string) ([]store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, data, create_time, update_time
		FROM documents
		WHERE collection = ?
		ORDER BY id COLLATE BINARY ASC
	`, collection)
	if err != nil {
		return nil, store.NewProviderError("query", collection, store.CodeInternal, err)
	}
	snaps, err := scanSnapshots(s, rows)
	if err != nil {
		return nil, store.NewProviderError("query", collection, store.CodeInternal, err)
	}
	return snaps, nil
}

// RunQuery executes q once.
func (s *Store) RunQuery(ctx context.Context, q *store.Query) ([]store.Snapshot, error) {
	snaps, err := s.readCollection(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	return evaluate(q, snaps), nil
}

// Count returns the number of documents matching q's filters. Orderings,
// limits and cursors are ignored, as for a count aggregation over the
// filtered collection.
func (s *Store) Count(ctx context.Context, q *store.Query) (int64, error) {
	snaps, err := s.readCollection(ctx, q.Collection)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, snap := range snaps {
		if matchesAll(snap, q.Filters) {
			n++
		}
	}
	return n, nil
}

// ListCollections returns the collections directly under documentPath, or
// the root collections when documentPath is "".
func (s *Store) ListCollections(ctx context.Context, documentPath string) ([]string, error) {
	prefix := ""
	if documentPath != "" {
		prefix = documentPath + paths.Delimiter
	}
	children, err := s.childSegments(ctx, prefix)
	if err != nil {
		return nil, store.NewProviderError("list collections", documentPath, store.CodeInternal, err)
	}
	return children, nil
}

// ListDocuments returns the documents directly in collectionPath, including
// ones that only exist as parents of subcollections.
func (s *Store) ListDocuments(ctx context.Context, collectionPath string) ([]string, error) {
	children, err := s.childSegments(ctx, collectionPath+paths.Delimiter)
	if err != nil {
		return nil, store.NewProviderError("list documents", collectionPath, store.CodeInternal, err)
	}
	return children, nil
}

// childSegments returns the distinct paths formed by prefix plus the next
// segment of every stored path under prefix, sorted.
func (s *Store) childSegments(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path FROM documents
		WHERE substr(path, 1, length(?)) = ?
	`, prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]struct{}{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		rest := p[len(prefix):]
		if i := strings.Index(rest, paths.Delimiter); i >= 0 {
			rest = rest[:i]
		}
		seen[prefix+rest] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out, nil
}

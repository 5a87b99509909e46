package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
)

type writeKind int

const (
	writeCreate writeKind = iota
	writeDelete
)

type write struct {
	kind writeKind
	path string
	data map[string]any
}

// Batch queues creates and deletes and applies them in one transaction.
type Batch struct {
	s      *Store
	writes []write
}

// NewBatch starts an empty batch.
func (s *Store) NewBatch() store.Batch {
	return &Batch{s: s}
}

// Create queues a create of documentPath.
func (b *Batch) Create(documentPath string, data map[string]any) {
	b.writes = append(b.writes, write{kind: writeCreate, path: documentPath, data: data})
}

// Delete queues a delete of documentPath.
func (b *Batch) Delete(documentPath string) {
	b.writes = append(b.writes, write{kind: writeDelete, path: documentPath})
}

// Len returns the number of queued writes.
func (b *Batch) Len() int {
	return len(b.writes)
}

// Commit applies every queued write in one transaction. A create of an
// existing document rolls back the whole batch.
func (b *Batch) Commit(ctx context.Context) error {
	s := b.s
	if len(b.writes) > store.MaxBatchWrites {
		return store.NewProviderError("commit", "", store.CodeInvalid,
			fmt.Errorf("batch has %d writes, maximum is %d", len(b.writes), store.MaxBatchWrites))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.NewProviderError("commit", "", store.CodeInternal, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	now := s.stamp()
	touched := map[string]struct{}{}

	for _, w := range b.writes {
		switch w.kind {
		case writeCreate:
			if err := s.insert(ctx, tx, w.path, w.data, now); err != nil {
				return err
			}
		case writeDelete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, w.path); err != nil {
				return store.NewProviderError("delete", w.path, store.CodeInternal, err)
			}
		}
		touched[paths.Parent(w.path)] = struct{}{}
	}

	if err := tx.Commit(); err != nil {
		return store.NewProviderError("commit", "", store.CodeInternal, err)
	}

	for collection := range touched {
		s.hub.notify(collection)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, path string, data map[string]any, now int64) error {
	exists, err := rowExists(ctx, tx, path)
	if err != nil {
		return store.NewProviderError("create", path, store.CodeInternal, err)
	}
	if exists {
		return store.NewProviderError("create", path, store.CodeAlreadyExists, store.ErrAlreadyExists)
	}

	text, err := s.marshalData(data)
	if err != nil {
		return store.NewProviderError("create", path, store.CodeInvalid, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (path, collection, id, data, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`, path, paths.Parent(path), paths.Base(path), text, now, now)
	if err != nil {
		return store.NewProviderError("create", path, store.CodeInternal, err)
	}
	return nil
}

func rowExists(ctx context.Context, tx *sql.Tx, path string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE path = ?`, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update applies updates to an existing document in order. Updating a
// missing document fails with store.ErrNotFound.
func (s *Store) Update(ctx context.Context, documentPath string, updates []store.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.NewProviderError("update", documentPath, store.CodeInternal, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	var text string
	err = tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, documentPath).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return store.NewProviderError("update", documentPath, store.CodeNotFound, store.ErrNotFound)
	}
	if err != nil {
		return store.NewProviderError("update", documentPath, store.CodeInternal, err)
	}

	data, err := s.unmarshalData(text)
	if err != nil {
		return store.NewProviderError("update", documentPath, store.CodeInternal, err)
	}

	for _, u := range updates {
		segments := u.Field.Path()
		if len(segments) == 0 {
			return store.NewProviderError("update", documentPath, store.CodeInvalid,
				errors.New("empty field path"))
		}
		applyUpdate(data, segments, u.Value)
	}

	text, err = s.marshalData(data)
	if err != nil {
		return store.NewProviderError("update", documentPath, store.CodeInvalid, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE documents SET data = ?, update_time = ? WHERE path = ?`,
		text, s.stamp(), documentPath)
	if err != nil {
		return store.NewProviderError("update", documentPath, store.CodeInternal, err)
	}

	if err := tx.Commit(); err != nil {
		return store.NewProviderError("update", documentPath, store.CodeInternal, err)
	}

	s.hub.notify(paths.Parent(documentPath))
	return nil
}

// applyUpdate sets or removes the field at segments. Intermediate values
// that are not maps are replaced by maps when setting.
func applyUpdate(data map[string]any, segments []string, value any) {
	cur := data
	last := len(segments) - 1
	_, remove := value.(codec.Tombstone)

	for _, seg := range segments[:last] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			if remove {
				return
			}
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}

	if remove {
		delete(cur, segments[last])
		return
	}
	cur[segments[last]] = value
}

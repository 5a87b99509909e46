package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/roach88/firedesk/internal/store"
)

type op struct {
	create bool
	path   string
	data   map[string]any
}

// Batch commits its writes in one transaction.
type Batch struct {
	s   *Store
	ops []op
}

// NewBatch starts an empty batch.
func (s *Store) NewBatch() store.Batch {
	return &Batch{s: s}
}

// Create queues a create of documentPath.
func (b *Batch) Create(documentPath string, data map[string]any) {
	b.ops = append(b.ops, op{create: true, path: documentPath, data: data})
}

// Delete queues a delete of documentPath.
func (b *Batch) Delete(documentPath string) {
	b.ops = append(b.ops, op{path: documentPath})
}

// Len returns the number of queued writes.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Commit runs every queued write inside one transaction. Conversions happen
// before the transaction starts so a bad value never reaches the server.
func (b *Batch) Commit(ctx context.Context) error {
	s := b.s
	type prepared struct {
		ref  *firestore.DocumentRef
		data map[string]any
	}

	writes := make([]prepared, len(b.ops))
	for i, o := range b.ops {
		ref, err := s.doc("commit", o.path)
		if err != nil {
			return err
		}
		writes[i].ref = ref
		if o.create {
			data, err := s.mapToSDK(o.data)
			if err != nil {
				return store.NewProviderError("create", o.path, store.CodeInvalid, err)
			}
			writes[i].data = data
		}
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, w := range writes {
			var err error
			if w.data != nil {
				err = tx.Create(w.ref, w.data)
			} else {
				err = tx.Delete(w.ref)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", relativePath(w.ref.Path), err)
			}
		}
		return nil
	})
	return wrap("commit", "", err)
}

// Update applies updates to documentPath in one request. The document must
// exist.
func (s *Store) Update(ctx context.Context, documentPath string, updates []store.Update) error {
	ref, err := s.doc("update", documentPath)
	if err != nil {
		return err
	}

	sdk := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		v, err := s.toSDK(u.Value)
		if err != nil {
			return store.NewProviderError("update", documentPath, store.CodeInvalid, err)
		}
		if u.Field.Segments != nil {
			sdk = append(sdk, firestore.Update{FieldPath: firestore.FieldPath(u.Field.Segments), Value: v})
		} else {
			sdk = append(sdk, firestore.Update{Path: u.Field.Dotted, Value: v})
		}
	}

	_, err = ref.Update(ctx, sdk)
	return wrap("update", documentPath, err)
}

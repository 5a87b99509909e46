package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/firedesk/internal/store"
)

const countAlias = "count"

func snapshot(ds *firestore.DocumentSnapshot) store.Snapshot {
	snap := store.Snapshot{
		Path:   relativePath(ds.Ref.Path),
		Exists: ds.Exists(),
	}
	if snap.Exists {
		snap.Data = mapFromSDK(ds.Data())
		snap.CreateTime = ds.CreateTime.UTC()
		snap.UpdateTime = ds.UpdateTime.UTC()
	}
	return snap
}

// Get reads one document; a missing document is not an error.
func (s *Store) Get(ctx context.Context, documentPath string) (*store.Snapshot, error) {
	ref, err := s.doc("get", documentPath)
	if err != nil {
		return nil, err
	}
	ds, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return &store.Snapshot{Path: documentPath}, nil
	}
	if err != nil {
		return nil, wrap("get", documentPath, err)
	}
	snap := snapshot(ds)
	return &snap, nil
}

// sdkQuery builds the SDK query, applying filters, orderings, the limit
// clause and cursors in that order.
func (s *Store) sdkQuery(q *store.Query) (firestore.Query, error) {
	coll, err := s.collection("query", q.Collection)
	if err != nil {
		return firestore.Query{}, err
	}
	query := coll.Query

	for _, f := range q.Filters {
		v, err := s.toSDK(f.Value)
		if err != nil {
			return firestore.Query{}, store.NewProviderError("query", q.Collection, store.CodeInvalid, err)
		}
		query = query.Where(f.Field, string(f.Op), v)
	}

	for _, o := range q.Orders {
		query = query.OrderBy(o.Field, direction(string(o.Direction)))
	}

	switch {
	case q.Limit > 0:
		query = query.Limit(q.Limit)
	case q.LimitToLast > 0:
		query = query.LimitToLast(q.LimitToLast)
	}

	if q.StartAt != nil {
		values, err := s.cursorValues(q.StartAt)
		if err != nil {
			return firestore.Query{}, store.NewProviderError("query", q.Collection, store.CodeInvalid, err)
		}
		query = query.StartAt(values...)
	}
	if q.StartAfter != nil {
		values, err := s.cursorValues(q.StartAfter)
		if err != nil {
			return firestore.Query{}, store.NewProviderError("query", q.Collection, store.CodeInvalid, err)
		}
		query = query.StartAfter(values...)
	}
	if q.EndAt != nil {
		values, err := s.cursorValues(q.EndAt)
		if err != nil {
			return firestore.Query{}, store.NewProviderError("query", q.Collection, store.CodeInvalid, err)
		}
		query = query.EndAt(values...)
	}
	if q.EndBefore != nil {
		values, err := s.cursorValues(q.EndBefore)
		if err != nil {
			return firestore.Query{}, store.NewProviderError("query", q.Collection, store.CodeInvalid, err)
		}
		query = query.EndBefore(values...)
	}
	return query, nil
}

func (s *Store) cursorValues(c *store.Cursor) ([]any, error) {
	out := make([]any, len(c.Values))
	for i, v := range c.Values {
		conv, err := s.toSDK(v)
		if err != nil {
			return nil, fmt.Errorf("cursor value %d: %w", i, err)
		}
		out[i] = conv
	}
	return out, nil
}

// RunQuery executes q once.
func (s *Store) RunQuery(ctx context.Context, q *store.Query) ([]store.Snapshot, error) {
	query, err := s.sdkQuery(q)
	if err != nil {
		return nil, err
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("query", q.Collection, err)
	}
	return snapshots(docs), nil
}

func snapshots(docs []*firestore.DocumentSnapshot) []store.Snapshot {
	out := make([]store.Snapshot, 0, len(docs))
	for _, ds := range docs {
		out = append(out, snapshot(ds))
	}
	return out
}

// Count runs a count aggregation over q.
func (s *Store) Count(ctx context.Context, q *store.Query) (int64, error) {
	query, err := s.sdkQuery(q)
	if err != nil {
		return 0, err
	}
	res, err := query.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, wrap("count", q.Collection, err)
	}
	v, ok := res[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, store.NewProviderError("count", q.Collection, store.CodeInternal,
			fmt.Errorf("unexpected count result %T", res[countAlias]))
	}
	return v.GetIntegerValue(), nil
}

// ListCollections lists the collections under documentPath, or the root
// collections when documentPath is "".
func (s *Store) ListCollections(ctx context.Context, documentPath string) ([]string, error) {
	var it *firestore.CollectionIterator
	if documentPath == "" {
		it = s.client.Collections(ctx)
	} else {
		ref, err := s.doc("list collections", documentPath)
		if err != nil {
			return nil, err
		}
		it = ref.Collections(ctx)
	}

	var out []string
	for {
		coll, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrap("list collections", documentPath, err)
		}
		out = append(out, relativePath(coll.Path))
	}
	slices.Sort(out)
	return out, nil
}

// ListDocuments lists document references in collectionPath, including
// missing documents that have subcollections.
func (s *Store) ListDocuments(ctx context.Context, collectionPath string) ([]string, error) {
	coll, err := s.collection("list documents", collectionPath)
	if err != nil {
		return nil, err
	}

	refs, err := coll.DocumentRefs(ctx).GetAll()
	if err != nil {
		return nil, wrap("list documents", collectionPath, err)
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, relativePath(ref.Path))
	}
	slices.Sort(out)
	return out, nil
}

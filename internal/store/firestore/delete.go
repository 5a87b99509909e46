package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/roach88/firedesk/internal/paths"
)

// RecursiveDelete deletes path and every descendant through a BulkWriter.
// Descendants are enqueued depth first before their parents.
func (s *Store) RecursiveDelete(ctx context.Context, path string, kind paths.Kind) error {
	bw := s.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	enqueue := func(ref *firestore.DocumentRef) error {
		job, err := bw.Delete(ref)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
		return nil
	}

	var err error
	switch kind {
	case paths.KindDocument:
		var ref *firestore.DocumentRef
		ref, err = s.doc("recursive delete", path)
		if err == nil {
			err = s.walkDocument(ctx, ref, enqueue)
		}
	case paths.KindCollection:
		var coll *firestore.CollectionRef
		coll, err = s.collection("recursive delete", path)
		if err == nil {
			err = s.walkCollection(ctx, coll, enqueue)
		}
	default:
		err = fmt.Errorf("refusing to delete the database root")
	}
	bw.End()
	if err != nil {
		return wrap("recursive delete", path, err)
	}

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	return wrap("recursive delete", path, errors.Join(errs...))
}

func (s *Store) walkDocument(ctx context.Context, ref *firestore.DocumentRef, enqueue func(*firestore.DocumentRef) error) error {
	it := ref.Collections(ctx)
	for {
		coll, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return err
		}
		if err := s.walkCollection(ctx, coll, enqueue); err != nil {
			return err
		}
	}
	return enqueue(ref)
}

func (s *Store) walkCollection(ctx context.Context, coll *firestore.CollectionRef, enqueue func(*firestore.DocumentRef) error) error {
	refs, err := coll.DocumentRefs(ctx).GetAll()
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.walkDocument(ctx, ref, enqueue); err != nil {
			return err
		}
	}
	return nil
}

// Package store defines the contract between the core and a document store
// driver.
//
// The core speaks native values (see internal/codec) and slash-delimited
// paths; drivers translate both to their SDK. Two drivers exist:
// internal/store/firestore for Cloud Firestore and its emulator, and
// internal/store/sqlite for a local single-file (or in-memory) store.
//
// Every driver must be safe for concurrent use. Handles are created once per
// target (see internal/session) and borrowed read-only by the core.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/paths"
)

// MaxBatchWrites is the provider limit on writes in one atomic commit.
const MaxBatchWrites = 500

// Store is a document store driver.
type Store interface {
	// NewDocID returns a fresh document id for collectionPath.
	NewDocID(collectionPath string) string

	// NewBatch starts an atomic write batch.
	NewBatch() Batch

	// Update applies field updates to an existing document in order, in one
	// round trip. Values are native; codec.Delete removes the field.
	Update(ctx context.Context, documentPath string, updates []Update) error

	// Get reads one document. A missing document yields Exists == false.
	Get(ctx context.Context, documentPath string) (*Snapshot, error)

	// RunQuery executes q once.
	RunQuery(ctx context.Context, q *Query) ([]Snapshot, error)

	// Count runs the count aggregation over q.
	Count(ctx context.Context, q *Query) (int64, error)

	// Listen opens a live subscription to q. The first Next call returns
	// the current result set.
	Listen(ctx context.Context, q *Query) (Stream, error)

	// RecursiveDelete deletes a document or a collection together with every
	// descendant document and subcollection.
	RecursiveDelete(ctx context.Context, path string, kind paths.Kind) error

	// ListCollections returns the paths of the collections directly under
	// documentPath ("" for root collections), sorted.
	ListCollections(ctx context.Context, documentPath string) ([]string, error)

	// ListDocuments returns the paths of the documents directly in
	// collectionPath, including documents that only exist as parents of
	// subcollections, sorted.
	ListDocuments(ctx context.Context, collectionPath string) ([]string, error)

	Close() error
}

// Batch accumulates writes that commit atomically.
type Batch interface {
	// Create adds a write that fails the batch if the document exists.
	Create(documentPath string, data map[string]any)
	// Delete adds a delete; deleting a missing document is not an error.
	Delete(documentPath string)
	// Len returns the number of queued writes.
	Len() int
	// Commit applies every queued write or none of them.
	Commit(ctx context.Context) error
}

// Stream delivers successive full result sets of a live query.
// Next is called from one goroutine at a time.
type Stream interface {
	Next(ctx context.Context) ([]Snapshot, error)
	Stop()
}

// FieldSelector names a field either as a dotted path ("address.city") or
// as explicit segments, which allows segments that contain dots.
type FieldSelector struct {
	Dotted   string
	Segments []string
}

// Field builds a dotted selector.
func Field(dotted string) FieldSelector {
	return FieldSelector{Dotted: dotted}
}

// FieldPath builds a segment selector.
func FieldPath(segments ...string) FieldSelector {
	return FieldSelector{Segments: segments}
}

// Path returns the selector's segments.
func (f FieldSelector) Path() []string {
	if f.Segments != nil {
		return f.Segments
	}
	return strings.Split(f.Dotted, ".")
}

func (f FieldSelector) String() string {
	if f.Segments != nil {
		return strings.Join(f.Segments, ".")
	}
	return f.Dotted
}

// Update is one positional (selector, value) pair of an update call.
type Update struct {
	Field FieldSelector
	Value any
}

// Snapshot is a document read from a store. Data holds native values.
type Snapshot struct {
	Path       string
	Exists     bool
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// ID returns the document id.
func (s Snapshot) ID() string {
	return paths.Base(s.Path)
}

// Lookup returns the value at a dotted field path. DocumentID resolves to
// the document's own reference.
func (s Snapshot) Lookup(field string) (any, bool) {
	if field == DocumentID {
		return codec.Reference{Path: s.Path}, true
	}
	return LookupPath(s.Data, strings.Split(field, "."))
}

// LookupPath walks nested maps along segments.
func LookupPath(data map[string]any, segments []string) (any, bool) {
	var cur any = data
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

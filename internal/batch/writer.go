// Package batch implements bulk document mutations on top of a store
// driver: chunked creates and deletes, positional field updates and
// recursive deletes.
//
// Creates and deletes are split into chunks of at most Options.Limit writes.
// Each chunk commits atomically as one store batch; chunks are committed
// concurrently and independently, so one failing chunk neither cancels nor
// rolls back its siblings. The caller receives a *PartialBatchFailure naming
// the failed chunk indices.
//
// Path parity and value decoding are checked before the first store call.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/metrics"
	"github.com/roach88/firedesk/internal/paths"
	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/wire"
)

// IDField is the record field that names the document to create.
const IDField = "id"

// Options tunes chunking.
type Options struct {
	// Limit is the chunk size, clamped to 1..store.MaxBatchWrites. Zero
	// means store.MaxBatchWrites.
	Limit int

	// MaxConcurrentChunks caps in-flight chunk commits. Zero means no cap.
	MaxConcurrentChunks int
}

func (o Options) limit() int {
	switch {
	case o.Limit <= 0 || o.Limit > store.MaxBatchWrites:
		return store.MaxBatchWrites
	default:
		return o.Limit
	}
}

// Writer performs bulk mutations against one store. It borrows the store
// and never closes it. A Writer is safe for concurrent use.
type Writer struct {
	store   store.Store
	codec   *codec.Codec
	logger  *slog.Logger
	metrics *metrics.Metrics
	opts    Options
}

// Option configures a Writer.
type Option func(*Writer)

// WithCodec sets the codec used to decode values (default: wall clock).
func WithCodec(c *codec.Codec) Option {
	return func(w *Writer) { w.codec = c }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// WithMetrics records chunk outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// WithOptions sets chunking options.
func WithOptions(o Options) Option {
	return func(w *Writer) { w.opts = o }
}

// NewWriter creates a Writer over s.
func NewWriter(s store.Store, opts ...Option) *Writer {
	w := &Writer{
		store:  s,
		codec:  codec.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ChunkResult is the outcome of one chunk.
type ChunkResult struct {
	Index int
	Paths []string
	Err   error
}

// Report describes a chunked write. Chunks are in index order.
type Report struct {
	Chunks []ChunkResult
}

// Written returns the paths of every document in a committed chunk, in
// request order.
func (r *Report) Written() []string {
	var out []string
	for _, c := range r.Chunks {
		if c.Err == nil {
			out = append(out, c.Paths...)
		}
	}
	return out
}

// Err returns the PartialBatchFailure for the failed chunks, or nil.
func (r *Report) Err() error {
	var failure PartialBatchFailure
	for _, c := range r.Chunks {
		if c.Err != nil {
			failure.FailedChunkIndices = append(failure.FailedChunkIndices, c.Index)
			failure.Causes = append(failure.Causes, c.Err)
		}
	}
	if len(failure.FailedChunkIndices) == 0 {
		return nil
	}
	failure.Total = len(r.Chunks)
	return &failure
}

type write struct {
	path string
	data map[string]any // nil for deletes
}

// Create creates one document per record in collectionPath. A record's
// string "id" field names its document (the field stays in the data);
// otherwise the store assigns an id. Every record is decoded before any
// write is issued, so a malformed record aborts the call with nothing
// written. Chunk failures are reported as *PartialBatchFailure alongside
// the report.
func (w *Writer) Create(ctx context.Context, collectionPath string, records []wire.Map) (*Report, error) {
	collection, err := paths.RequireCollection(collectionPath)
	if err != nil {
		return nil, err
	}

	writes := make([]write, len(records))
	for i, rec := range records {
		data, err := w.codec.DecodeData(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		id, err := recordID(data)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		writes[i].data = data
		if id != "" {
			writes[i].path = paths.Join(collection, id)
		}
	}
	for i := range writes {
		if writes[i].path == "" {
			writes[i].path = paths.Join(collection, w.store.NewDocID(collection))
		}
	}

	return w.commit(ctx, "create", writes)
}

func recordID(data map[string]any) (string, error) {
	raw, ok := data[IDField]
	if !ok {
		return "", nil
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", nil
	}
	if strings.Contains(id, paths.Delimiter) {
		return "", &codec.SchemaViolation{Path: "$." + IDField, Reason: fmt.Sprintf("document id %q must not contain %q", id, paths.Delimiter)}
	}
	return id, nil
}

// Deletes deletes every document in documentPaths. All paths are checked
// before any write; deleting a missing document is not an error.
func (w *Writer) Deletes(ctx context.Context, documentPaths ...string) (*Report, error) {
	writes := make([]write, len(documentPaths))
	for i, p := range documentPaths {
		doc, err := paths.RequireDocument(p)
		if err != nil {
			return nil, err
		}
		writes[i].path = doc
	}
	return w.commit(ctx, "delete", writes)
}

// commit splits writes into chunks and commits them concurrently.
func (w *Writer) commit(ctx context.Context, op string, writes []write) (*Report, error) {
	chunks := Split(writes, w.opts.limit())
	report := &Report{Chunks: make([]ChunkResult, len(chunks))}
	if len(chunks) == 0 {
		return report, nil
	}

	w.logger.DebugContext(ctx, "committing chunks",
		"op", op,
		"documents", len(writes),
		"chunks", len(chunks),
		"limit", w.opts.limit())

	// Plain Group: a failed chunk must not cancel its siblings.
	var g errgroup.Group
	if w.opts.MaxConcurrentChunks > 0 {
		g.SetLimit(w.opts.MaxConcurrentChunks)
	}

	for i, chunk := range chunks {
		g.Go(func() error {
			b := w.store.NewBatch()
			ps := make([]string, len(chunk))
			for j, wr := range chunk {
				ps[j] = wr.path
				if wr.data != nil {
					b.Create(wr.path, wr.data)
				} else {
					b.Delete(wr.path)
				}
			}

			err := b.Commit(ctx)
			report.Chunks[i] = ChunkResult{Index: i, Paths: ps, Err: err}
			w.metrics.ChunkDone(op, len(chunk), err)

			if err != nil {
				w.logger.WarnContext(ctx, "chunk failed",
					"op", op,
					"chunk", i,
					"size", len(chunk),
					"error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return report, report.Err()
}

// Update applies a flat sequence of (field selector, value) pairs to
// documentPath in one store call. A selector is a dotted String or a List of
// String segments and is passed through unchanged; each value is decoded
// through the codec, so the deletion marker removes a field. Pairs keep
// their order and may repeat a field.
func (w *Writer) Update(ctx context.Context, documentPath string, updates []wire.Value) error {
	doc, err := paths.RequireDocument(documentPath)
	if err != nil {
		return err
	}
	if len(updates)%2 != 0 {
		return &codec.SchemaViolation{
			Path:   "$",
			Reason: fmt.Sprintf("updates must be (field, value) pairs, got %d elements", len(updates)),
		}
	}

	pairs := make([]store.Update, 0, len(updates)/2)
	for i := 0; i < len(updates); i += 2 {
		field, err := selector(updates[i], i)
		if err != nil {
			return err
		}
		value, err := w.codec.Decode(updates[i+1])
		if err != nil {
			return atIndex(err, i+1)
		}
		pairs = append(pairs, store.Update{Field: field, Value: value})
	}

	w.logger.DebugContext(ctx, "updating document", "path", doc, "fields", len(pairs))
	return w.store.Update(ctx, doc, pairs)
}

func selector(v wire.Value, index int) (store.FieldSelector, error) {
	at := fmt.Sprintf("$[%d]", index)
	switch s := v.(type) {
	case wire.String:
		if s == "" {
			return store.FieldSelector{}, &codec.SchemaViolation{Path: at, Reason: "empty field selector"}
		}
		return store.Field(string(s)), nil
	case wire.List:
		if len(s) == 0 {
			return store.FieldSelector{}, &codec.SchemaViolation{Path: at, Reason: "empty field path"}
		}
		segments := make([]string, len(s))
		for j, elem := range s {
			seg, ok := elem.(wire.String)
			if !ok || seg == "" {
				return store.FieldSelector{}, &codec.SchemaViolation{
					Path:   fmt.Sprintf("%s[%d]", at, j),
					Reason: "field path segments must be non-empty strings",
				}
			}
			segments[j] = string(seg)
		}
		return store.FieldPath(segments...), nil
	default:
		return store.FieldSelector{}, &codec.SchemaViolation{
			Path:   at,
			Reason: fmt.Sprintf("field selector must be a string or a list of strings, got %s", wire.KindOf(v)),
		}
	}
}

// atIndex re-roots a schema violation from a single value at $[index].
func atIndex(err error, index int) error {
	sv, ok := err.(*codec.SchemaViolation)
	if !ok {
		return err
	}
	return &codec.SchemaViolation{
		Path:   fmt.Sprintf("$[%d]%s", index, strings.TrimPrefix(sv.Path, "$")),
		Reason: sv.Reason,
	}
}

// RecursiveDelete deletes a document or a collection with all descendants
// and returns how path was classified.
func (w *Writer) RecursiveDelete(ctx context.Context, path string) (paths.Kind, error) {
	segs, err := paths.Segments(path)
	if err != nil {
		return paths.KindRoot, &paths.PathParityError{Path: path, Expected: paths.KindDocument, Reason: err.Error()}
	}
	kind, _ := paths.Classify(path)
	if kind == paths.KindRoot {
		return kind, &paths.PathParityError{
			Path:     path,
			Expected: paths.KindDocument,
			Actual:   paths.KindRoot,
			Reason:   "recursive delete needs a document or collection path",
		}
	}

	normalized := strings.Join(segs, paths.Delimiter)
	w.logger.InfoContext(ctx, "recursive delete", "path", normalized, "kind", kind.String())
	if err := w.store.RecursiveDelete(ctx, normalized, kind); err != nil {
		return kind, err
	}
	return kind, nil
}

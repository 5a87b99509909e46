package batch

import (
	"errors"
	"fmt"
	"strings"
)

// PartialBatchFailure reports the chunks of a bulk write that failed while
// the others committed. Callers can retry exactly the failed subset.
type PartialBatchFailure struct {
	// FailedChunkIndices lists failed chunks in ascending order.
	FailedChunkIndices []int

	// Causes[i] is the error of chunk FailedChunkIndices[i].
	Causes []error

	// Total is the number of chunks in the request.
	Total int
}

func (e *PartialBatchFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d chunks failed:", len(e.FailedChunkIndices), e.Total)
	for i, idx := range e.FailedChunkIndices {
		fmt.Fprintf(&b, " [chunk %d: %v]", idx, e.Causes[i])
	}
	return b.String()
}

// Unwrap exposes the chunk causes to errors.Is and errors.As.
func (e *PartialBatchFailure) Unwrap() []error {
	return e.Causes
}

// IsPartialBatchFailure reports whether err is (or wraps) a
// PartialBatchFailure.
func IsPartialBatchFailure(err error) bool {
	var pbf *PartialBatchFailure
	return errors.As(err, &pbf)
}

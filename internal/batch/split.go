package batch

import "slices"

// Split partitions items into consecutive chunks of at most limit elements,
// preserving order. The last chunk may be shorter. A limit below 1 is
// treated as 1. Split of an empty slice is empty.
func Split[T any](items []T, limit int) [][]T {
	if limit < 1 {
		limit = 1
	}
	chunks := make([][]T, 0, (len(items)+limit-1)/limit)
	for chunk := range slices.Chunk(items, limit) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

package chunker

import (
	"fmt"
	"iter"

	"paperrag/internal/domain"
)

// DefaultBatchSize keeps one embedding request well under provider input limits.
const DefaultBatchSize = 166

// Batches yields consecutive sub-slices of at most size segments, in order.
// The sequence is lazy and can be ranged over again from the start.
func Batches(segments []domain.Segment, size int) (iter.Seq[[]domain.Segment], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", domain.ErrInvalidConfiguration, size)
	}
	return func(yield func([]domain.Segment) bool) {
		for start := 0; start < len(segments); start += size {
			end := min(start+size, len(segments))
			if !yield(segments[start:end:end]) {
				return
			}
		}
	}, nil
}

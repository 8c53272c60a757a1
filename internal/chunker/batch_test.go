package chunker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperrag/internal/domain"
)

func numbered(n int) []domain.Segment {
	segments := make([]domain.Segment, n)
	for i := range segments {
		segments[i] = domain.Segment{ID: fmt.Sprintf("s:none:%d", i)}
	}
	return segments
}

func collect(t *testing.T, segments []domain.Segment, size int) [][]domain.Segment {
	t.Helper()
	seq, err := Batches(segments, size)
	require.NoError(t, err)
	var out [][]domain.Segment
	for batch := range seq {
		out = append(out, batch)
	}
	return out
}

func TestBatchesCount(t *testing.T) {
	tests := []struct {
		n, size int
		sizes   []int
	}{
		{n: 0, size: 3, sizes: nil},
		{n: 1, size: 3, sizes: []int{1}},
		{n: 6, size: 3, sizes: []int{3, 3}},
		{n: 7, size: 3, sizes: []int{3, 3, 1}},
		{n: 5, size: 166, sizes: []int{5}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			var sizes []int
			for _, b := range collect(t, numbered(tt.n), tt.size) {
				sizes = append(sizes, len(b))
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

func TestBatchesPreserveOrder(t *testing.T) {
	segments := numbered(10)
	var flat []domain.Segment
	for _, b := range collect(t, segments, 4) {
		flat = append(flat, b...)
	}
	assert.Equal(t, segments, flat)
}

func TestBatchesCanBeRestarted(t *testing.T) {
	segments := numbered(5)
	seq, err := Batches(segments, 2)
	require.NoError(t, err)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())
}

func TestBatchesStopEarly(t *testing.T) {
	seq, err := Batches(numbered(9), 2)
	require.NoError(t, err)

	seen := 0
	for range seq {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestBatchesRejectNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Batches(numbered(3), size)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	}
}

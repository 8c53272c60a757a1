package lexical

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func norm(v []float32) float64 {
	return math.Sqrt(cosine(v, v))
}

func TestEmbedShapeAndNormalization(t *testing.T) {
	e := NewEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{"Transformers use self-attention.", "the and of"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	assert.Len(t, vecs[0], 256)
	assert.InDelta(t, 1.0, norm(vecs[0]), 1e-5)
	assert.Zero(t, norm(vecs[1]), "stopwords only")
}

func TestEmbedIsDeterministicAcrossInstances(t *testing.T) {
	text := "Retrieval augmented generation grounds answers in retrieved passages 2024"
	a, err := NewEmbedder(0).Embed(context.Background(), []string{text})
	require.NoError(t, err)
	b, err := NewEmbedder(0).Embed(context.Background(), []string{text})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a[0], DefaultDimension)
}

func TestEmbedRanksSharedTermsHigher(t *testing.T) {
	vecs, err := NewEmbedder(0).Embed(context.Background(), []string{
		"attention mechanism transformer",
		"How does the transformer use attention?",
		"cooking pasta recipe",
	})
	require.NoError(t, err)

	related := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	assert.Greater(t, related, 0.5)
	assert.Greater(t, related, unrelated)
}

func TestEmbedStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

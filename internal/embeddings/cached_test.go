package embeddings

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	queries atomic.Int32
	batches atomic.Int32
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.queries.Add(1)
	return []float32{float32(len(text))}, nil
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (e *countingEmbedder) Dimension() int { return 1 }

func TestCachedEmbedderQueryHit(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := cached.EmbedQuery(ctx, "bảo đảm dự thầu")
	require.NoError(t, err)
	second, err := cached.EmbedQuery(ctx, "bảo đảm dự thầu")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.queries.Load(), "second call served from cache")
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.EmbedQuery(ctx, "một")
	require.NoError(t, err)

	out, err := cached.EmbedDocuments(ctx, []string{"một", "hai", "ba"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, vec := range out {
		assert.NotNil(t, vec, "missing vector at %d", i)
	}
	assert.Equal(t, int32(1), inner.batches.Load())

	// Fully cached batch skips the provider.
	_, err = cached.EmbedDocuments(ctx, []string{"hai", "ba"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.batches.Load())
}

func TestCachedEmbedderEmptyInput(t *testing.T) {
	cached := NewCachedEmbedder(&countingEmbedder{}, 10)
	_, err := cached.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestCachedEmbedderDimensionPassthrough(t *testing.T) {
	cached := NewCachedEmbedder(&countingEmbedder{}, 10)
	assert.Equal(t, 1, cached.Dimension())
}

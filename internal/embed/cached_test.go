package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	inner *LocalEmbedder
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}
func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.inner.EmbedBatch(ctx, texts)
}
func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *countingEmbedder) Name() string    { return "counting" }
func (c *countingEmbedder) Close() error    { return nil }

func TestCachedEmbedderAvoidsDuplicateCalls(t *testing.T) {
	inner := &countingEmbedder{inner: NewLocalEmbedder(32)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	v1, err := cached.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedderBatchOnlyFetchesMisses(t *testing.T) {
	inner := &countingEmbedder{inner: NewLocalEmbedder(32)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "already cached")
	require.NoError(t, err)
	inner.calls = 0

	results, err := cached.EmbedBatch(ctx, []string{"already cached", "new text"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, inner.calls)
}

package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishgancheg/wiki-rag/ai/mock"
)

// charCount makes token estimates deterministic in tests: one token per
// character.
func charCount(s string) int { return len(s) }

func newTestBatcher(embedder *mock.MockEmbedder, budget int) *Batcher {
	return New(embedder,
		WithTokenBudget(budget),
		WithBatchDelay(0),
		WithTokenEstimator(charCount),
	)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 4
	b := newTestBatcher(embedder, 1000)

	texts := []string{"alpha", "beta", "gamma"}
	result := b.EmbedBatch(context.Background(), texts)

	require.Len(t, result.Vectors, 3)
	assert.Empty(t, result.Failed)
	for i, text := range texts {
		assert.Equal(t, mock.DeterministicVector(text, 4), result.Vectors[i])
	}
}

func TestEmbedBatchPacksUnderBudget(t *testing.T) {
	var groupSizes []int
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		groupSizes = append(groupSizes, len(texts))
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{1}
		}
		return vectors, nil
	}
	b := newTestBatcher(embedder, 10)

	// 4+4 fits one group of 8 tokens, the third starts a new group.
	result := b.EmbedBatch(context.Background(), []string{"aaaa", "bbbb", "cccc"})

	assert.Equal(t, []int{2, 1}, groupSizes)
	assert.Empty(t, result.Failed)
}

func TestEmbedBatchOversizedInputSentAlone(t *testing.T) {
	var groupSizes []int
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		groupSizes = append(groupSizes, len(texts))
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{1}
		}
		return vectors, nil
	}
	b := newTestBatcher(embedder, 10)

	result := b.EmbedBatch(context.Background(), []string{"aa", "this input is far beyond the budget", "bb"})

	assert.Equal(t, []int{1, 1, 1}, groupSizes)
	assert.Empty(t, result.Failed)
	for i := range result.Vectors {
		assert.NotNil(t, result.Vectors[i])
	}
}

func TestEmbedBatchGroupFailureIsolated(t *testing.T) {
	call := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		call++
		if call == 2 {
			return nil, errors.New("rate limited")
		}
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{float32(call)}
		}
		return vectors, nil
	}
	// budget 8, each text 4 tokens: groups are [0,1], [2,3], [4].
	b := newTestBatcher(embedder, 8)

	result := b.EmbedBatch(context.Background(), []string{"aaaa", "bbbb", "cccc", "dddd", "eeee"})

	require.Len(t, result.Vectors, 5)
	assert.Equal(t, []int{2, 3}, result.Failed)
	assert.NotNil(t, result.Vectors[0])
	assert.NotNil(t, result.Vectors[1])
	assert.Nil(t, result.Vectors[2])
	assert.Nil(t, result.Vectors[3])
	assert.NotNil(t, result.Vectors[4])
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	b := newTestBatcher(embedder, 100)

	result := b.EmbedBatch(context.Background(), nil)

	assert.Empty(t, result.Vectors)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 0, embedder.CallCount())
}

func TestEmbedBatchUsage(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 2
	b := New(embedder,
		WithTokenBudget(100),
		WithBatchDelay(0),
		WithTokenEstimator(charCount),
		WithPricing(20), // 20 per million tokens
	)

	result := b.EmbedBatch(context.Background(), []string{"aaaa", "bb"})

	assert.Equal(t, 6, result.Usage.TotalTokens)
	assert.InDelta(t, 6.0*20/1e6, result.Usage.Cost, 1e-12)
}

func TestEmbedBatchCancelledContextFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		cancel()
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{1}
		}
		return vectors, nil
	}
	b := New(embedder,
		WithTokenBudget(4),
		WithBatchDelay(0), // cancellation must be seen even without a delay
		WithTokenEstimator(charCount),
	)

	result := b.EmbedBatch(ctx, []string{"aaaa", "bbbb"})

	require.Len(t, result.Vectors, 2)
	assert.NotNil(t, result.Vectors[0])
	assert.Nil(t, result.Vectors[1])
	assert.Equal(t, []int{1}, result.Failed)
	assert.Equal(t, 1, embedder.CallCount(), "no requests after cancellation")
}

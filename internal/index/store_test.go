package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsearch/internal/model"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Length mismatch and zero vectors score zero instead of erroring.
	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, cosineSimilarity(nil, nil))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func embeddedChunk(id uint, vec []float32) model.Chunk {
	c := model.Chunk{ID: id}
	c.SetEmbedding(vec)
	return c
}

func TestRankByCosineOrdersAndTruncates(t *testing.T) {
	query := []float32{1, 0}
	// In query order: identical, 45 degrees, orthogonal, opposite; chunk 4
	// carries no embedding and must be skipped entirely.
	cands := []model.Chunk{
		embeddedChunk(1, []float32{0, 1}),
		embeddedChunk(2, []float32{1, 0}),
		embeddedChunk(3, []float32{1, 1}),
		{ID: 4},
		embeddedChunk(5, []float32{-1, 0}),
	}

	ranked := rankByCosine(cands, query, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, uint(2), ranked[0].id)
	assert.Equal(t, uint(3), ranked[1].id)
	assert.Equal(t, uint(1), ranked[2].id)
	assert.Greater(t, ranked[0].score, ranked[1].score)
}

func TestRankByCosineTieBreaksByID(t *testing.T) {
	query := []float32{1, 0}
	cands := []model.Chunk{
		embeddedChunk(9, []float32{1, 0}),
		embeddedChunk(2, []float32{1, 0}),
		embeddedChunk(5, []float32{1, 0}),
	}

	ranked := rankByCosine(cands, query, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, uint(2), ranked[0].id)
	assert.Equal(t, uint(5), ranked[1].id)
	assert.Equal(t, uint(9), ranked[2].id)
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	s := &Store{retryAttempts: 3, retryBackoff: time.Millisecond}

	calls := 0
	err := s.withRetry(context.Background(), "write", func() error {
		calls++
		if calls < 3 {
			return errors.New("deadlock")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	s := &Store{retryAttempts: 3, retryBackoff: time.Millisecond}

	boom := errors.New("disk full")
	calls := 0
	err := s.withRetry(context.Background(), "write", func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnContextCancel(t *testing.T) {
	s := &Store{retryAttempts: 5, retryBackoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := s.withRetry(ctx, "write", func() error {
		calls++
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls) // canceled while waiting out the first backoff
}

func TestWithRetryDoesNotRetryContextErrors(t *testing.T) {
	s := &Store{retryAttempts: 5, retryBackoff: time.Millisecond}

	calls := 0
	err := s.withRetry(context.Background(), "write", func() error {
		calls++
		return context.DeadlineExceeded
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

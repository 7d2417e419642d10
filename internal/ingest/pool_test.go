package ingest

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllSubmittedTasks(t *testing.T) {
	pool := NewPool(4, 32)

	var ran int64
	for i := 0; i < 20; i++ {
		require.True(t, pool.Submit(func() { atomic.AddInt64(&ran, 1) }))
	}
	pool.Close()

	assert.Equal(t, int64(20), atomic.LoadInt64(&ran))
}

func TestPoolSubmitReportsFullQueue(t *testing.T) {
	pool := NewPool(1, 1)

	started := make(chan struct{})
	gate := make(chan struct{})
	require.True(t, pool.Submit(func() {
		close(started)
		<-gate
	}))
	<-started

	// The single worker is busy, so one slot remains before Submit fails.
	require.True(t, pool.Submit(func() {}))
	assert.False(t, pool.Submit(func() {}), "a full queue must reject, not block")

	close(gate)
	pool.Close()
}

func TestPoolCloseWaitsForInFlightTasks(t *testing.T) {
	pool := NewPool(2, 4)

	var done atomic.Bool
	require.True(t, pool.Submit(func() { done.Store(true) }))
	pool.Close()

	assert.True(t, done.Load(), "Close must wait for queued tasks to finish")
}

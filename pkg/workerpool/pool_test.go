package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_PreservesSubmissionOrder(t *testing.T) {
	pool := New(Config{MaxConcurrent: 3}, zap.NewNop())

	items := make([]Item[string], 6)
	for i := range items {
		delay := time.Duration(len(items)-i) * 5 * time.Millisecond
		id := fmt.Sprintf("task%d", i)
		items[i] = Item[string]{ID: id, Execute: func(ctx context.Context) (string, error) {
			time.Sleep(delay)
			return "result-" + id, nil
		}}
	}

	results := Process(context.Background(), pool, items)

	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("task%d", i), r.ID)
		assert.Equal(t, fmt.Sprintf("result-task%d", i), r.Result)
		assert.NoError(t, r.Err)
	}
}

func TestProcess_ErrorsAndPanicsAreIsolated(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	expectedErr := errors.New("backend down")

	results := Process(context.Background(), pool, []Item[int]{
		{ID: "ok", Execute: func(context.Context) (int, error) { return 1, nil }},
		{ID: "fails", Execute: func(context.Context) (int, error) { return 0, expectedErr }},
		{ID: "panics", Execute: func(context.Context) (int, error) { panic("boom") }},
	})

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Result)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, expectedErr)
	assert.ErrorContains(t, results[2].Err, "panicked")
}

func TestProcess_Empty(t *testing.T) {
	pool := New(Config{}, zap.NewNop())

	assert.Nil(t, Process[int](context.Background(), pool, nil))
	assert.Equal(t, DefaultMaxConcurrent, pool.MaxConcurrent())
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	const limit = 3
	pool := New(Config{MaxConcurrent: limit}, zap.NewNop())

	var current, maxObserved atomic.Int32
	items := make([]Item[struct{}], 10)
	for i := range items {
		items[i] = Item[struct{}]{ID: fmt.Sprint(i), Execute: func(context.Context) (struct{}, error) {
			n := current.Add(1)
			defer current.Add(-1)
			for {
				seen := maxObserved.Load()
				if n <= seen || maxObserved.CompareAndSwap(seen, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			return struct{}{}, nil
		}}
	}

	Process(context.Background(), pool, items)

	assert.LessOrEqual(t, maxObserved.Load(), int32(limit))
	assert.GreaterOrEqual(t, maxObserved.Load(), int32(2))
}

func TestProcess_CancelledContext(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	results := Process(ctx, pool, []Item[int]{
		{ID: "a", Execute: func(context.Context) (int, error) { ran.Add(1); return 1, nil }},
		{ID: "b", Execute: func(context.Context) (int, error) { ran.Add(1); return 2, nil }},
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, ran.Load())
}

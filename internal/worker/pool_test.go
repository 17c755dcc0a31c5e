package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Execute(t *testing.T) {
	var calls atomic.Int32
	pool := NewPool[int, int](3, func(ctx context.Context, n int) (int, error) {
		calls.Add(1)
		if n == 4 {
			return 0, errors.New("boom")
		}
		return n * n, nil
	})

	tasks := pool.Execute(context.Background(), []int{1, 2, 3, 4, 5})
	require.Len(t, tasks, 5)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 9, tasks[2].Result)
	assert.Equal(t, 3, tasks[2].Input)
	assert.EqualError(t, tasks[3].Err, "boom")
	assert.NoError(t, tasks[4].Err)
}

func TestPool_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPool[int, int](0, func(ctx context.Context, n int) (int, error) { return n, nil })
	tasks := pool.Execute(ctx, []int{1, 2, 3})

	require.Len(t, tasks, 3)
	for _, task := range tasks {
		// A worker may win the race against cancellation for an input.
		if task.Err != nil {
			assert.ErrorIs(t, task.Err, context.Canceled)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool[int, int](4, func(ctx context.Context, n int) (int, error) { return n, nil })
	assert.Empty(t, pool.Execute(context.Background(), nil))
}

func TestBatch(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, Batch([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]int{{1}, {2}}, Batch([]int{1, 2}, 0))
	assert.Nil(t, Batch([]int{}, 3))
}

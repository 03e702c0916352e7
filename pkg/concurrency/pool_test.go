package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPoolRunsAllTasks(t *testing.T) {
	var count int64
	p := NewTaskPool(context.Background(), 4)
	for i := 0; i < 10; i++ {
		p.Go(func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	}
	require.NoError(t, p.Wait())
	assert.Equal(t, int64(10), count)
}

func TestTaskPoolCancelsOnFirstError(t *testing.T) {
	p := NewTaskPool(context.Background(), 2)
	boom := errors.New("boom")
	p.Go(func(ctx context.Context) error { return boom })
	err := p.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestMapPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results, err := Map(context.Background(), 3, items, func(ctx context.Context, item int) (int, error) {
		return item * item, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25}, results)
}

func TestMapStopsOnError(t *testing.T) {
	items := []int{1, 2, 3}
	boom := errors.New("boom")
	_, err := Map(context.Background(), 3, items, func(ctx context.Context, item int) (int, error) {
		if item == 2 {
			return 0, boom
		}
		return item, nil
	})
	require.Error(t, err)
}

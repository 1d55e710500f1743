package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueue_Defaults(t *testing.T) {
	q := NewQueue[int](QueueConfig{})
	assert.Equal(t, 256, q.Cap())
	assert.Equal(t, 0, q.Len())

	q = NewQueue[int](QueueConfig{Capacity: 4, Overflow: "bogus"})
	assert.Equal(t, 4, q.Cap())
	assert.Equal(t, DropOldest, q.policy)
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int](QueueConfig{Capacity: 8})
	for i := 1; i <= 5; i++ {
		evicted, err := q.Push(i)
		require.NoError(t, err)
		assert.False(t, evicted)
	}

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		v, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DropOldest(t *testing.T) {
	q := NewQueue[string](QueueConfig{Capacity: 2, Overflow: DropOldest})

	_, _ = q.Push("a")
	_, _ = q.Push("b")
	evicted, err := q.Push("c")
	require.NoError(t, err)
	assert.True(t, evicted)

	ctx := context.Background()
	v, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	v, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", v)

	stats := q.Stats()
	assert.Equal(t, int64(3), stats.Pushed)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, 0, stats.Pending)
}

func TestQueue_Reject(t *testing.T) {
	q := NewQueue[string](QueueConfig{Capacity: 1, Overflow: Reject})

	_, err := q.Push("a")
	require.NoError(t, err)
	_, err = q.Push("b")
	assert.ErrorIs(t, err, ErrFull)

	v, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, int64(1), q.Stats().Dropped)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue[int](DefaultQueueConfig())

	got := make(chan int, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := q.Push(42)
	require.NoError(t, err)

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestQueue_PopContextCancel(t *testing.T) {
	q := NewQueue[int](DefaultQueueConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseDiscardsAndWakes(t *testing.T) {
	q := NewQueue[int](DefaultQueueConfig())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 0, q.Close())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("close did not wake consumer")
	}

	_, err := q.Push(1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, q.Close(), "second close is a no-op")

	q2 := NewQueue[int](DefaultQueueConfig())
	_, _ = q2.Push(1)
	_, _ = q2.Push(2)
	assert.Equal(t, 2, q2.Close())
	_, err = q2.Pop(context.Background())
	assert.ErrorIs(t, err, ErrClosed, "pending values are discarded on close")

	select {
	case <-q2.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	const producers, perProducer = 4, 200
	q := NewQueue[[2]int](QueueConfig{Capacity: producers * perProducer})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_, _ = q.Push([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for n := 0; n < producers*perProducer; n++ {
		v, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Greater(t, v[1], last[v[0]])
		last[v[0]] = v[1]
	}
}

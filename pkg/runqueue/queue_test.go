package runqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	assert.True(t, q.IsEmpty())

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.PushTail(i))
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []int{1, 2, 3}, q.Snapshot())

	for want := 1; want <= 3; want++ {
		got, ok := q.PopHead()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := q.PopHead()
	assert.False(t, ok, "pop on empty queue should report empty")
}

func TestQueue_RoundRobinReinsert(t *testing.T) {
	q := New[string]()
	require.NoError(t, q.PushTail("a"))
	require.NoError(t, q.PushTail("b"))

	head, _ := q.PopHead()
	require.NoError(t, q.PushTail(head))

	assert.Equal(t, []string{"b", "a"}, q.Snapshot())
}

func TestQueue_Duplicate(t *testing.T) {
	q := New[int]()
	require.NoError(t, q.PushTail(7))

	err := q.PushTail(7)
	assert.ErrorIs(t, err, types.ErrDuplicateEntry)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Remove(t *testing.T) {
	q := New[int]()
	for i := 0; i < 4; i++ {
		require.NoError(t, q.PushTail(i))
	}

	assert.True(t, q.Remove(2))
	assert.False(t, q.Remove(2))
	assert.False(t, q.Contains(2))
	assert.Equal(t, []int{0, 1, 3}, q.Snapshot())

	// a removed entry may be queued again
	require.NoError(t, q.PushTail(2))
	assert.Equal(t, []int{0, 1, 3, 2}, q.Snapshot())
}

func TestQueue_WaitNonEmpty(t *testing.T) {
	q := New[int]()

	done := make(chan error, 1)
	go func() {
		done <- q.WaitNonEmpty(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("WaitNonEmpty returned on an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.PushTail(1))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitNonEmpty did not wake up after PushTail")
	}
}

func TestQueue_WaitNonEmptyStaleSignal(t *testing.T) {
	q := New[int]()
	require.NoError(t, q.PushTail(1))
	_, _ = q.PopHead()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// the token left by the earlier push must not be mistaken for a ready entry
	err := q.WaitNonEmpty(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_WaitNonEmptyCanceled(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, q.WaitNonEmpty(ctx), context.Canceled)
}

func TestQueue_ConcurrentAccess(t *testing.T) {
	q := New[int]()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.PushTail(base*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())

	seen := make(map[int]bool)
	for {
		v, ok := q.PopHead()
		if !ok {
			break
		}
		assert.False(t, seen[v], "value %d popped twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, producers*perProducer)
}

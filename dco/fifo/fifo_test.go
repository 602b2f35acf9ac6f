package fifo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPreserved(t *testing.T) {
	f := New(4)
	stop := make(chan struct{})

	go func() {
		for i := uint32(0); i < 100; i++ {
			f.Push(i, stop)
		}
	}()

	for i := uint32(0); i < 100; i++ {
		count, ok := f.Pop(stop)
		require.True(t, ok)
		assert.Equal(t, i, count, "counts must come out in production order")
	}
}

func TestTryPopEmpty(t *testing.T) {
	f := New(4)
	_, ok := f.TryPop()
	assert.False(t, ok, "TryPop on an empty queue reports the underrun condition")
}

func TestPushBlocksWhenFull(t *testing.T) {
	f := New(2)
	stop := make(chan struct{})

	require.True(t, f.Push(1, stop))
	require.True(t, f.Push(2, stop))
	assert.Equal(t, 2, f.Len())

	pushed := make(chan struct{})
	go func() {
		f.Push(3, stop)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok := f.TryPop()
	require.True(t, ok)

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("Push should complete once space frees up")
	}
}

func TestStopUnblocks(t *testing.T) {
	f := New(1)
	stop := make(chan struct{})
	require.True(t, f.Push(1, stop))

	results := make(chan bool, 2)
	go func() { results <- f.Push(2, stop) }() // blocks: full
	go func() {
		f.Pop(stop) // drains the one element, may let the push through
		_, ok := f.Pop(stop)
		results <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)

	// Whatever the interleaving, both goroutines must return promptly once
	// stop closes.
	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-time.After(time.Second):
			t.Fatal("stop must unblock both sides")
		}
	}
}

func TestDrain(t *testing.T) {
	f := New(8)
	stop := make(chan struct{})
	for i := uint32(0); i < 5; i++ {
		require.True(t, f.Push(i, stop))
	}

	assert.Equal(t, 5, f.Drain())
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, 0, f.Drain())
}

func TestDefaultDepth(t *testing.T) {
	assert.Equal(t, DefaultDepth, New(0).Cap())
	assert.Equal(t, DefaultDepth, New(-1).Cap())
	assert.Equal(t, 16, New(16).Cap())
}

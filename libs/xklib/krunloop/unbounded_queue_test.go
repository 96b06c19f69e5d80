package krunloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnboundedQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewUnboundedQueue[*testResource]()
	for i := 0; i < 5; i++ {
		q.Enqueue(newTestEvent(string(rune('a' + i))))
	}
	assert.Equal(t, 5, q.GetSize())
	for i := 0; i < 5; i++ {
		ev, ok := q.Dequeue(ctx)
		assert.True(t, ok)
		assert.Equal(t, string(rune('a'+i)), ev.(*testEvent).msg)
	}
	assert.Equal(t, 0, q.GetSize())
}

func TestUnboundedQueue_BlocksUntilEnqueue(t *testing.T) {
	q := NewUnboundedQueue[*testResource]()
	got := make(chan string, 1)
	go func() {
		ev, ok := q.Dequeue(context.Background())
		if ok {
			got <- ev.(*testEvent).msg
		}
	}()
	time.Sleep(10 * time.Millisecond)
	q.Enqueue(newTestEvent("x"))
	select {
	case msg := <-got:
		assert.Equal(t, "x", msg)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up")
	}
}

func TestUnboundedQueue_CloseDrains(t *testing.T) {
	q := NewUnboundedQueue[*testResource]()
	q.Enqueue(newTestEvent("a"))
	q.Close()
	assert.False(t, q.Enqueue(newTestEvent("b")))
	_, ok := q.Dequeue(context.Background())
	assert.True(t, ok)
	_, ok = q.Dequeue(context.Background())
	assert.False(t, ok)
}

func TestUnboundedQueue_CtxDone(t *testing.T) {
	q := NewUnboundedQueue[*testResource]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.Dequeue(ctx)
	assert.False(t, ok)
}

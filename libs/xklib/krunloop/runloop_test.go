package krunloop

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testResource struct {
	mu        sync.Mutex
	processed []string
}

func (tr *testResource) IsResource() {}

type testEvent struct {
	msg      string
	executed chan struct{}
	block    chan struct{} // optional: Process waits on it
}

func newTestEvent(msg string) *testEvent {
	return &testEvent{msg: msg, executed: make(chan struct{})}
}

func (te *testEvent) GetName() string {
	return "TestEvent"
}

func (te *testEvent) Process(ctx context.Context, res *testResource) {
	if te.block != nil {
		select {
		case <-te.block:
		case <-ctx.Done():
		}
	}
	res.mu.Lock()
	res.processed = append(res.processed, te.msg)
	res.mu.Unlock()
	close(te.executed)
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestRunLoop_ProcessInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res := &testResource{}
	rl := NewRunLoop[*testResource](ctx, res, "test")
	go rl.Run(ctx)

	events := make([]*testEvent, 200)
	for i := range events {
		events[i] = newTestEvent(strconv.Itoa(i))
		assert.True(t, rl.PostEvent(events[i]))
	}
	for i, ev := range events {
		waitClosed(t, ev.executed, "event "+strconv.Itoa(i))
	}
	res.mu.Lock()
	defer res.mu.Unlock()
	for i, msg := range res.processed {
		assert.Equal(t, strconv.Itoa(i), msg)
	}
}

func TestRunLoop_PostBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRunLoop[*testResource](ctx, &testResource{}, "test")
	ev := newTestEvent("early")
	rl.PostEvent(ev)
	assert.Equal(t, 1, rl.QueueSize())
	go rl.Run(ctx)
	waitClosed(t, ev.executed, "early event")
}

func TestRunLoop_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rl := NewRunLoop[*testResource](ctx, &testResource{}, "test")
	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()
	cancel()
	waitClosed(t, done, "run loop exit")
}

func TestRunLoop_StopAndWaitForExit(t *testing.T) {
	ctx := context.Background()
	rl := NewRunLoop[*testResource](ctx, &testResource{}, "test")
	rl.StopAndWaitForExit() // never started: no-op

	started := make(chan struct{})
	go func() {
		close(started)
		rl.Run(ctx)
	}()
	<-started
	ev := newTestEvent("blocking")
	ev.block = make(chan struct{}) // released only by ctx cancel
	rl.PostEvent(ev)
	assert.Eventually(t, func() bool { return rl.CurrentEventName() == "TestEvent" }, time.Second, time.Millisecond)

	rl.StopAndWaitForExit()
	waitClosed(t, ev.executed, "blocking event")
	assert.Equal(t, "", rl.CurrentEventName())
	assert.False(t, rl.PostEvent(newTestEvent("late")))
}

func TestRunLoop_AcceptedEventsRunAfterCancel(t *testing.T) {
	for round := 0; round < 50; round++ {
		ctx, cancel := context.WithCancel(context.Background())
		rl := NewRunLoop[*testResource](ctx, &testResource{}, "test")
		exited := make(chan struct{})
		go func() {
			rl.Run(ctx)
			close(exited)
		}()

		var accepted []*testEvent
		go cancel()
		for i := 0; i < 100; i++ {
			ev := newTestEvent(strconv.Itoa(i))
			if rl.PostEvent(ev) {
				accepted = append(accepted, ev)
			}
		}
		waitClosed(t, exited, "run loop exit")
		for _, ev := range accepted {
			waitClosed(t, ev.executed, "accepted event "+ev.msg)
		}
		assert.False(t, rl.PostEvent(newTestEvent("late")))
	}
}

package krunloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kmetrics"
)

var (
	RunLoopElapsedMsMetric = kmetrics.CreateKmetric(context.Background(), "runloop_elapsed_ms", "time spent per event", []string{"name", "event"})
)

// CriticalResource is the state owned by a RunLoop. Only events running on that loop touch it.
type CriticalResource interface {
	// IsResource is a marker method
	IsResource()
}

// IEvent is processed on the loop goroutine, one at a time, in post order.
type IEvent[T CriticalResource] interface {
	GetName() string
	Process(ctx context.Context, resource T)
}

type EventPoster[T CriticalResource] interface {
	PostEvent(event IEvent[T]) bool
}

// RunLoop is a single goroutine event loop over one resource. Implements EventPoster.
type RunLoop[T CriticalResource] struct {
	name             string // for logging/metrics only
	resource         T
	queue            *UnboundedQueue[T]
	currentEventName atomic.Value // string
	mu               sync.Mutex   // protects cancel/stopped
	cancel           context.CancelFunc
	stopped          bool
	exited           chan struct{}
}

func NewRunLoop[T CriticalResource](ctx context.Context, resource T, name string) *RunLoop[T] {
	rl := &RunLoop[T]{
		name:     name,
		resource: resource,
		queue:    NewUnboundedQueue[T](),
		exited:   make(chan struct{}),
	}
	rl.currentEventName.Store("")
	return rl
}

// PostEvent never blocks. Returns false if the loop is already stopping.
func (rl *RunLoop[T]) PostEvent(event IEvent[T]) bool {
	return rl.queue.Enqueue(event)
}

// CurrentEventName is "" when idle.
func (rl *RunLoop[T]) CurrentEventName() string {
	return rl.currentEventName.Load().(string)
}

func (rl *RunLoop[T]) QueueSize() int {
	return rl.queue.GetSize()
}

// Run blocks until ctx is done or StopAndWaitForExit is called.
func (rl *RunLoop[T]) Run(ctx context.Context) {
	rl.mu.Lock()
	ctx, rl.cancel = context.WithCancel(ctx)
	if rl.stopped {
		rl.cancel()
	}
	rl.mu.Unlock()
	defer close(rl.exited)

	for {
		event, ok := rl.queue.Dequeue(ctx)
		if !ok {
			break
		}
		rl.process(ctx, event)
	}
	// Events accepted before Close still run, on the done ctx, so no poster is left waiting.
	rl.queue.Close()
	drained := 0
	for {
		event, ok := rl.queue.Dequeue(ctx)
		if !ok {
			break
		}
		rl.process(ctx, event)
		drained++
	}
	klogging.Info(ctx).With("name", rl.name).With("drained", drained).Log("RunLoopExit", "run loop stopped")
}

func (rl *RunLoop[T]) process(ctx context.Context, event IEvent[T]) {
	start := kcommon.GetMonoTimeMs()
	eveName := event.GetName()
	rl.currentEventName.Store(eveName)
	defer func() {
		rl.currentEventName.Store("")
		RunLoopElapsedMsMetric.GetTimeSequence(ctx, rl.name, eveName).Add(kcommon.GetMonoTimeMs() - start)
	}()
	event.Process(ctx, rl.resource)
}

// StopAndWaitForExit cancels the loop ctx and waits for the current event to return.
// If Run has not started yet it returns right away; a later Run exits immediately.
func (rl *RunLoop[T]) StopAndWaitForExit() {
	rl.mu.Lock()
	rl.stopped = true
	cancel := rl.cancel
	rl.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-rl.exited
}

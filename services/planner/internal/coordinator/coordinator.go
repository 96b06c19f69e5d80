package coordinator

import (
	"context"
	"math/rand"
	"sync"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kmetrics"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/krunloop"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/costfunc"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/solver"
)

const (
	ErrComputationFailure = "ComputationFailure"
	ErrCoordinatorStopped = "CoordinatorStopped"
)

var (
	RunCountMetrics     = kmetrics.CreateKmetric(context.Background(), "planner_run_count", "finished runs by terminal state", []string{"result"}).CountOnly()
	RunElapsedMsMetrics = kmetrics.CreateKmetric(context.Background(), "planner_run_elapsed_ms", "submit to finish latency", []string{"result"})
	BestCostMetrics     = kmetrics.CreateKmetric(context.Background(), "planner_best_cost", "best cost of delivered runs", []string{})
)

// SolverParamsProvider is read once per Solve call.
type SolverParamsProvider func() solver.SolverParams

// solveFunc is the search invoked by the worker.
type solveFunc func(ctx context.Context, snapshot *costfunc.ProblemSnapshot, params solver.SolverParams, rnd *rand.Rand) (*solver.SolveResult, *kerror.Kerror)

func geneticSolve(ctx context.Context, snapshot *costfunc.ProblemSnapshot, params solver.SolverParams, rnd *rand.Rand) (*solver.SolveResult, *kerror.Kerror) {
	return solver.NewGeneticSolver(params).SolveWithStats(ctx, snapshot, rnd)
}

// Coordinator runs at most one optimization at a time. A new Solve supersedes (cancels) the
// active run; only the active run's result is ever delivered.
// Solve/Cancel may be called from any goroutine; runs execute serially on one run loop.
type Coordinator struct {
	ctx            context.Context
	paramsProvider SolverParamsProvider

	mu      sync.Mutex // protects active/latest/stopped
	active  *RunHandle
	latest  *RunHandle
	stopped bool

	runLoop *krunloop.RunLoop[*runWorker]
}

func NewCoordinator(ctx context.Context, paramsProvider SolverParamsProvider) *Coordinator {
	return newCoordinator(ctx, paramsProvider, geneticSolve)
}

func newCoordinator(ctx context.Context, paramsProvider SolverParamsProvider, solve solveFunc) *Coordinator {
	if paramsProvider == nil {
		paramsProvider = solver.DefaultSolverParams
	}
	c := &Coordinator{
		ctx:            ctx,
		paramsProvider: paramsProvider,
	}
	c.runLoop = krunloop.NewRunLoop(ctx, &runWorker{coordinator: c, solve: solve}, "coordinator")
	go c.runLoop.Run(ctx)
	return c
}

// Solve never blocks. The returned handle is already terminal (Failed) if snapshot is nil or the
// coordinator is stopped.
func (c *Coordinator) Solve(snapshot *costfunc.ProblemSnapshot) *RunHandle {
	h := newRunHandle(c.ctx, snapshot, c.paramsProvider())
	if snapshot == nil {
		ke := kerror.Create(costfunc.ErrInvalidSnapshot, "nil snapshot").WithErrorCode(kerror.EC_INVALID_PARAMETER)
		c.conclude(h, RS_Failed, nil, nil, 0, ke)
		return h
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.conclude(h, RS_Failed, nil, nil, 0, kerror.Create(ErrCoordinatorStopped, "coordinator is stopped").WithErrorCode(kerror.EC_UNAVAILABLE))
		return h
	}
	superseded := c.active
	if superseded != nil {
		c.cancelLocked(superseded)
	}
	c.active = h
	c.mu.Unlock()

	klogging.Info(c.ctx).
		With("runId", h.RunId).
		With("snapshotId", snapshot.SnapshotId).
		With("volunteers", snapshot.VolunteerCount()).
		With("services", snapshot.ServiceCount()).
		Log("RunSubmitted", "")
	if superseded != nil {
		klogging.Debug(c.ctx).With("runId", superseded.RunId).With("by", h.RunId).Log("RunSuperseded", "")
	}

	if !c.runLoop.PostEvent(&runEvent{handle: h}) {
		c.mu.Lock()
		if c.active == h {
			c.active = nil
		}
		c.mu.Unlock()
		c.conclude(h, RS_Failed, nil, nil, 0, kerror.Create(ErrCoordinatorStopped, "run loop is stopped").WithErrorCode(kerror.EC_UNAVAILABLE))
	}
	return h
}

// Cancel signals the run to stop and ends its handle as Cancelled right away. Whatever the run
// computes afterwards is dropped. No-op for a terminal handle.
func (c *Coordinator) Cancel(h *RunHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(h)
}

func (c *Coordinator) cancelLocked(h *RunHandle) {
	if c.active == h {
		c.active = nil
	}
	c.conclude(h, RS_Cancelled, nil, nil, 0, runCancelled(h))
}

// Active returns the in-flight run, nil when idle.
func (c *Coordinator) Active() *RunHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Latest returns the most recently delivered (Completed or Failed) run, nil if none yet.
func (c *Coordinator) Latest() *RunHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// StopAndWaitForExit cancels the active run and waits for the worker to exit.
// Later Solve calls fail with CoordinatorStopped.
func (c *Coordinator) StopAndWaitForExit() {
	c.mu.Lock()
	c.stopped = true
	if c.active != nil {
		c.cancelLocked(c.active)
	}
	c.mu.Unlock()
	c.runLoop.StopAndWaitForExit()
}

// deliver is called by the worker when a run returns. The result only counts if h is still active.
func (c *Coordinator) deliver(ctx context.Context, h *RunHandle, stats *solver.SolveResult, seed int64, ke *kerror.Kerror) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != h {
		// superseded or cancelled; the handle is normally terminal already
		c.conclude(h, RS_Cancelled, nil, nil, seed, runCancelled(h))
		klogging.Debug(ctx).With("runId", h.RunId).Log("RunResultDropped", "run is no longer active")
		return
	}
	c.active = nil
	switch {
	case ke == nil:
		if c.conclude(h, RS_Completed, stats.Genes, stats, seed, nil) {
			c.latest = h
			BestCostMetrics.GetTimeSequence(ctx).Add(int64(stats.BestCost))
			klogging.Info(ctx).
				With("runId", h.RunId).
				With("bestCost", stats.BestCost).
				With("generations", stats.GenerationsRun).
				With("seed", seed).
				With("elapsedMs", stats.ElapsedMs).
				Log("RunCompleted", "")
		}
	case kerror.IsType(ke, solver.ErrRunCancelled):
		c.conclude(h, RS_Cancelled, nil, nil, seed, ke)
	default:
		if c.conclude(h, RS_Failed, nil, nil, seed, ke) {
			c.latest = h
			klogging.Error(ctx).With("runId", h.RunId).WithError(ke).Log("RunFailed", "")
		}
	}
}

// conclude finishes h and records metrics if this call was the one that finished it.
func (c *Coordinator) conclude(h *RunHandle, state RunState, genes []uint, stats *solver.SolveResult, seed int64, ke *kerror.Kerror) bool {
	if !h.finish(state, genes, stats, seed, ke) {
		return false
	}
	RunCountMetrics.GetTimeSequence(c.ctx, state.String()).Add(1)
	RunElapsedMsMetrics.GetTimeSequence(c.ctx, state.String()).Add(h.finishedMs - h.SubmittedAtMs)
	return true
}

func runCancelled(h *RunHandle) *kerror.Kerror {
	return kerror.Create(solver.ErrRunCancelled, "run was cancelled").
		WithErrorCode(kerror.EC_CANCELLED).
		With("runId", h.RunId)
}

// runWorker is the critical resource of the coordinator run loop.
type runWorker struct {
	coordinator *Coordinator
	solve       solveFunc
}

func (w *runWorker) IsResource() {}

// runEvent executes one run on the loop goroutine.
type runEvent struct {
	handle *RunHandle
}

func (e *runEvent) GetName() string {
	return "RunEvent"
}

func (e *runEvent) Process(ctx context.Context, w *runWorker) {
	h := e.handle
	if !h.start() {
		return // cancelled while queued
	}
	ctx, info := klogging.CreateCtxInfo(h.ctx)
	info.With("runId", h.RunId)

	rnd, seed := kcommon.NewSeededRand(ctx, h.Params.Seed)
	var stats *solver.SolveResult
	var ke *kerror.Kerror
	panicErr := kcommon.TryCatchRun(ctx, func() {
		stats, ke = w.solve(ctx, h.Snapshot, h.Params, rnd)
	})
	if panicErr != nil {
		ke = kerror.Wrap(panicErr, ErrComputationFailure, "run panicked", false).
			WithErrorCode(kerror.EC_INTERNAL_ERROR).
			With("runId", h.RunId).
			With("snapshotId", h.Snapshot.SnapshotId)
	} else if ke == nil && stats == nil {
		ke = kerror.Create(ErrComputationFailure, "search returned no result").WithErrorCode(kerror.EC_INTERNAL_ERROR)
	}
	w.coordinator.deliver(ctx, h, stats, seed, ke)
}

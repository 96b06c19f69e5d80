package coordinator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/costfunc"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/solver"
)

type RunState int32

const (
	RS_Pending RunState = iota
	RS_Running
	RS_Completed
	RS_Failed
	RS_Cancelled
)

func (rs RunState) String() string {
	switch rs {
	case RS_Pending:
		return "Pending"
	case RS_Running:
		return "Running"
	case RS_Completed:
		return "Completed"
	case RS_Failed:
		return "Failed"
	case RS_Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

func (rs RunState) IsTerminal() bool {
	return rs >= RS_Completed
}

// RunHandle is the caller's view of one optimization run.
// It reaches exactly one terminal state; after Done() is closed nothing in it changes.
type RunHandle struct {
	RunId         string
	Snapshot      *costfunc.ProblemSnapshot
	Params        solver.SolverParams
	SubmittedAtMs int64

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
	once   sync.Once
	done   chan struct{}

	// set once, before done is closed
	genes      []uint
	stats      *solver.SolveResult
	err        *kerror.Kerror
	seed       int64
	finishedMs int64
}

func newRunHandle(parent context.Context, snapshot *costfunc.ProblemSnapshot, params solver.SolverParams) *RunHandle {
	ctx, cancel := context.WithCancel(parent)
	h := &RunHandle{
		RunId:         uuid.NewString(),
		Snapshot:      snapshot,
		Params:        params,
		SubmittedAtMs: kcommon.GetWallTimeMs(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	h.state.Store(int32(RS_Pending))
	return h
}

func (h *RunHandle) State() RunState {
	return RunState(h.state.Load())
}

// Done is closed once the handle is terminal.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the handle is terminal or ctx is done.
// Completed: genes, nil. Failed: nil, the failure. Cancelled: nil, a RunCancelled error.
func (h *RunHandle) Wait(ctx context.Context) ([]uint, *kerror.Kerror) {
	select {
	case <-h.done:
		return h.genes, h.err
	case <-ctx.Done():
		return nil, kerror.Wrap(ctx.Err(), "WaitAborted", "gave up waiting for run", false).
			WithErrorCode(kerror.EC_TIMEOUT).
			With("runId", h.RunId)
	}
}

// Result is non-blocking: ok is false while the run is still pending/running.
func (h *RunHandle) Result() (genes []uint, err *kerror.Kerror, ok bool) {
	select {
	case <-h.done:
		return h.genes, h.err, true
	default:
		return nil, nil, false
	}
}

// Stats is nil unless the run completed.
func (h *RunHandle) Stats() *solver.SolveResult {
	select {
	case <-h.done:
		return h.stats
	default:
		return nil
	}
}

// Seed is the seed the run's generator actually used (0 until the run started).
func (h *RunHandle) Seed() int64 {
	select {
	case <-h.done:
		return h.seed
	default:
		return 0
	}
}

func (h *RunHandle) FinishedAtMs() int64 {
	select {
	case <-h.done:
		return h.finishedMs
	default:
		return 0
	}
}

// start moves Pending -> Running. False if the handle was already finished (cancelled).
func (h *RunHandle) start() bool {
	return h.state.CompareAndSwap(int32(RS_Pending), int32(RS_Running))
}

// finish is first-wins; later calls are no-ops. Returns true if this call set the terminal state.
func (h *RunHandle) finish(state RunState, genes []uint, stats *solver.SolveResult, seed int64, err *kerror.Kerror) bool {
	finished := false
	h.once.Do(func() {
		h.genes = genes
		h.stats = stats
		h.seed = seed
		h.err = err
		h.finishedMs = kcommon.GetWallTimeMs()
		h.state.Store(int32(state))
		h.cancel()
		close(h.done)
		finished = true
	})
	return finished
}

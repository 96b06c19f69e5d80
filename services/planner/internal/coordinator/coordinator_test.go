package coordinator

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/costfunc"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/solver"
)

func pref(id string, ranked ...data.ServiceId) data.VolunteerPreference {
	return data.VolunteerPreference{VolunteerId: data.VolunteerId(id), RankedServiceIds: ranked}
}

func createThreeVolunteerSnapshot(t *testing.T) *costfunc.ProblemSnapshot {
	snap, ke := costfunc.NewProblemSnapshot(
		[]data.VolunteerPreference{pref("v1", "s1", "s2"), pref("v2", "s1"), pref("v3", "s2")},
		[]data.ServiceSlot{{Id: "s1", Capacity: 2}, {Id: "s2", Capacity: 2}},
		costfunc.DefaultPenaltyConstant)
	require.Nil(t, ke)
	return snap
}

func fixedParams(params solver.SolverParams) SolverParamsProvider {
	return func() solver.SolverParams { return params }
}

// firstHeavyParams: the first Solve gets an effectively endless run, later ones the defaults.
func firstHeavyParams() SolverParamsProvider {
	var calls atomic.Int32
	return func() solver.SolverParams {
		if calls.Add(1) == 1 {
			return solver.SolverParams{PopulationSize: 10, Generations: 1 << 30, MutationRate: 0.1, Seed: 1}
		}
		params := solver.DefaultSolverParams()
		params.Seed = 1
		return params
	}
}

func waitDone(t *testing.T, h *RunHandle) {
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("run %s did not finish, state=%s", h.RunId, h.State())
	}
}

func TestCoordinator_Completes(t *testing.T) {
	ctx := context.Background()
	params := solver.DefaultSolverParams()
	params.Seed = 7
	c := NewCoordinator(ctx, fixedParams(params))
	defer c.StopAndWaitForExit()

	h := c.Solve(createThreeVolunteerSnapshot(t))
	genes, ke := h.Wait(ctx)
	require.Nil(t, ke)
	assert.Equal(t, []uint{0, 0, 1}, genes)
	assert.Equal(t, RS_Completed, h.State())
	assert.Equal(t, int64(7), h.Seed())
	require.NotNil(t, h.Stats())
	assert.Equal(t, 0.0, h.Stats().BestCost)
	assert.Same(t, h, c.Latest())
	assert.Nil(t, c.Active())
}

func TestCoordinator_SameSeedSameResult(t *testing.T) {
	ctx := context.Background()
	snap := createThreeVolunteerSnapshot(t)
	params := solver.SolverParams{PopulationSize: 4, Generations: 3, MutationRate: 0.5, Seed: 99}
	c := NewCoordinator(ctx, fixedParams(params))
	defer c.StopAndWaitForExit()

	g1, ke := c.Solve(snap).Wait(ctx)
	require.Nil(t, ke)
	g2, ke := c.Solve(snap).Wait(ctx)
	require.Nil(t, ke)
	assert.Equal(t, g1, g2)
}

func TestCoordinator_SupersededRunIsNeverDelivered(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(ctx, firstHeavyParams())
	defer c.StopAndWaitForExit()
	snap := createThreeVolunteerSnapshot(t)

	a := c.Solve(snap)
	assert.Eventually(t, func() bool { return a.State() == RS_Running }, 5*time.Second, time.Millisecond)

	b := c.Solve(snap)
	// a ends as soon as b is accepted
	assert.Equal(t, RS_Cancelled, a.State())
	genes, ke := a.Wait(ctx)
	assert.Nil(t, genes)
	require.NotNil(t, ke)
	assert.True(t, kerror.IsType(ke, solver.ErrRunCancelled))

	genes, ke = b.Wait(ctx)
	require.Nil(t, ke)
	assert.Equal(t, []uint{0, 0, 1}, genes)
	assert.Same(t, b, c.Latest())
	// a stays cancelled even though its worker returned later
	assert.Equal(t, RS_Cancelled, a.State())
	_, _, ok := a.Result()
	assert.True(t, ok)
	assert.Nil(t, a.Stats())
}

func TestCoordinator_BackToBackSubmissions(t *testing.T) {
	ctx := context.Background()
	params := solver.DefaultSolverParams()
	params.Seed = 3
	c := NewCoordinator(ctx, fixedParams(params))
	defer c.StopAndWaitForExit()
	snap := createThreeVolunteerSnapshot(t)

	handles := make([]*RunHandle, 5)
	for i := range handles {
		handles[i] = c.Solve(snap)
	}
	last := handles[len(handles)-1]
	_, ke := last.Wait(ctx)
	require.Nil(t, ke)
	for _, h := range handles[:len(handles)-1] {
		waitDone(t, h)
		assert.Equal(t, RS_Cancelled, h.State())
	}
	assert.Equal(t, RS_Completed, last.State())
	assert.Same(t, last, c.Latest())
}

func TestCoordinator_ExplicitCancel(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(ctx, firstHeavyParams())
	defer c.StopAndWaitForExit()

	h := c.Solve(createThreeVolunteerSnapshot(t))
	c.Cancel(h)
	waitDone(t, h)
	assert.Equal(t, RS_Cancelled, h.State())
	assert.Nil(t, c.Active())
	assert.Nil(t, c.Latest())

	// the worker is free again
	next := c.Solve(createThreeVolunteerSnapshot(t))
	_, ke := next.Wait(ctx)
	assert.Nil(t, ke)
}

func TestCoordinator_PanicBecomesComputationFailure(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	solve := func(ctx context.Context, snap *costfunc.ProblemSnapshot, params solver.SolverParams, rnd *rand.Rand) (*solver.SolveResult, *kerror.Kerror) {
		if calls.Add(1) == 1 {
			panic(kerror.Create("Boom", "cost evaluation exploded"))
		}
		return geneticSolve(ctx, snap, params, rnd)
	}
	c := newCoordinator(ctx, fixedParams(solver.DefaultSolverParams()), solve)
	defer c.StopAndWaitForExit()

	failed := c.Solve(createThreeVolunteerSnapshot(t))
	genes, ke := failed.Wait(ctx)
	assert.Nil(t, genes)
	require.NotNil(t, ke)
	assert.Equal(t, ErrComputationFailure, ke.Type)
	assert.True(t, kerror.IsType(ke, "Boom"))
	assert.Equal(t, RS_Failed, failed.State())
	assert.Same(t, failed, c.Latest())

	// worker survived
	ok := c.Solve(createThreeVolunteerSnapshot(t))
	genes, ke = ok.Wait(ctx)
	assert.Nil(t, ke)
	assert.Len(t, genes, 3)
}

func TestCoordinator_InvalidParamsFail(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(ctx, fixedParams(solver.SolverParams{PopulationSize: 0, Generations: 1}))
	defer c.StopAndWaitForExit()

	h := c.Solve(createThreeVolunteerSnapshot(t))
	_, ke := h.Wait(ctx)
	require.NotNil(t, ke)
	assert.Equal(t, solver.ErrInvalidSolverParams, ke.Type)
	assert.Equal(t, RS_Failed, h.State())
}

func TestCoordinator_NilSnapshot(t *testing.T) {
	c := NewCoordinator(context.Background(), nil)
	defer c.StopAndWaitForExit()

	h := c.Solve(nil)
	assert.Equal(t, RS_Failed, h.State())
	_, ke, ok := h.Result()
	assert.True(t, ok)
	assert.Equal(t, costfunc.ErrInvalidSnapshot, ke.Type)
}

func TestCoordinator_WaitGivesUp(t *testing.T) {
	c := NewCoordinator(context.Background(), firstHeavyParams())
	defer c.StopAndWaitForExit()

	h := c.Solve(createThreeVolunteerSnapshot(t))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ke := h.Wait(ctx)
	require.NotNil(t, ke)
	assert.Equal(t, kerror.EC_TIMEOUT, ke.ErrorCode)
	assert.False(t, h.State().IsTerminal())
}

func TestCoordinator_StopCancelsActiveRun(t *testing.T) {
	c := NewCoordinator(context.Background(), firstHeavyParams())
	h := c.Solve(createThreeVolunteerSnapshot(t))
	assert.Eventually(t, func() bool { return h.State() == RS_Running }, 5*time.Second, time.Millisecond)

	c.StopAndWaitForExit()
	assert.Equal(t, RS_Cancelled, h.State())

	after := c.Solve(createThreeVolunteerSnapshot(t))
	_, ke := after.Wait(context.Background())
	require.NotNil(t, ke)
	assert.Equal(t, ErrCoordinatorStopped, ke.Type)
}

func TestRunState_String(t *testing.T) {
	assert.Equal(t, "Pending", RS_Pending.String())
	assert.Equal(t, "Cancelled", RS_Cancelled.String())
	assert.False(t, RS_Running.IsTerminal())
	assert.True(t, RS_Failed.IsTerminal())
}

func TestCoordinator_SolveRacingParentCancelAlwaysTerminates(t *testing.T) {
	for round := 0; round < 20; round++ {
		ctx, cancel := context.WithCancel(context.Background())
		c := NewCoordinator(ctx, fixedParams(solver.SolverParams{PopulationSize: 4, Generations: 50, MutationRate: 0.2, Seed: 3}))
		snap := createThreeVolunteerSnapshot(t)

		handles := make(chan *RunHandle, 32)
		go func() {
			for i := 0; i < 32; i++ {
				handles <- c.Solve(snap)
			}
			close(handles)
		}()
		cancel()
		for h := range handles {
			waitDone(t, h)
			assert.True(t, h.State().IsTerminal())
		}
		c.StopAndWaitForExit()
	}
}

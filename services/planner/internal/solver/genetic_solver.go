package solver

import (
	"context"
	"math/rand"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kmetrics"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/costfunc"
)

const ErrRunCancelled = "RunCancelled"

var (
	SolverElapsedMsMetrics    = kmetrics.CreateKmetric(context.Background(), "solver_elapsed_ms", "time spent in GeneticSolver.Solve", []string{"result"})
	SolverGenerationsMetrics  = kmetrics.CreateKmetric(context.Background(), "solver_generations", "generations executed per solve", []string{"result"})
	SolverImprovementsMetrics = kmetrics.CreateKmetric(context.Background(), "solver_best_improved", "how many children beat the best-ever candidate", []string{}).CountOnly()
)

// SolveResult is the best-ever candidate plus some run statistics.
type SolveResult struct {
	Genes           []uint
	BestCost        float64
	InitialBestCost float64
	GenerationsRun  int
	LastImprovedGen int // -1 when no child ever beat the initial best
	// cost range of the population left at the end; with unconditional replacement this may be
	// worse than BestCost
	FinalPopulationMin float64
	FinalPopulationMax float64
	ElapsedMs          int64
}

// GeneticSolver is a steady-state genetic search: one child per generation, the child always
// replaces the current worst member. The answer is the best candidate ever seen, tracked on the
// side; the population itself is not guaranteed to keep it.
type GeneticSolver struct {
	params SolverParams
}

func NewGeneticSolver(params SolverParams) *GeneticSolver {
	return &GeneticSolver{params: params}
}

func (gs *GeneticSolver) Params() SolverParams {
	return gs.params
}

// Solve returns the best gene vector found. rnd is owned by this call.
func (gs *GeneticSolver) Solve(ctx context.Context, snap *costfunc.ProblemSnapshot, rnd *rand.Rand) ([]uint, *kerror.Kerror) {
	result, ke := gs.SolveWithStats(ctx, snap, rnd)
	if ke != nil {
		return nil, ke
	}
	return result.Genes, nil
}

// SolveWithStats checks ctx before every generation; a cancelled ctx returns a RunCancelled error.
// Cost evaluation panics (*kerror.Kerror) are not recovered here.
func (gs *GeneticSolver) SolveWithStats(ctx context.Context, snap *costfunc.ProblemSnapshot, rnd *rand.Rand) (*SolveResult, *kerror.Kerror) {
	if ke := gs.params.Validate(); ke != nil {
		return nil, ke
	}
	start := kcommon.GetMonoTimeMs()
	volunteerCount := snap.VolunteerCount()
	serviceCount := snap.ServiceCount()
	if volunteerCount == 0 {
		return &SolveResult{Genes: []uint{}, LastImprovedGen: -1}, nil
	}

	pop := gs.initPopulation(snap, rnd)
	bestEver := pop[0]
	result := &SolveResult{InitialBestCost: bestEver.Cost(), LastImprovedGen: -1}

	for gen := 0; gen < gs.params.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			gs.report(ctx, "cancelled", start, gen)
			return nil, kerror.Wrap(err, ErrRunCancelled, "search cancelled", false).
				WithErrorCode(kerror.EC_CANCELLED).
				With("generation", gen)
		}
		p1 := pop.tournament(rnd)
		p2 := pop.tournament(rnd)
		child := Crossover(rnd, p1, p2)
		if rnd.Float64() < gs.params.MutationRate {
			child.Mutate(rnd, serviceCount)
		}
		child.ComputeCost(snap)

		pop.SortDescending()
		pop[0] = child

		if child.Cost() < bestEver.Cost() {
			bestEver = child
			result.LastImprovedGen = gen
			SolverImprovementsMetrics.GetTimeSequence(ctx).Add(1)
		}
		result.GenerationsRun = gen + 1
	}

	result.Genes = append([]uint(nil), bestEver.Genes...)
	result.BestCost = bestEver.Cost()
	result.FinalPopulationMin, result.FinalPopulationMax = pop.MinMaxCost()
	result.ElapsedMs = gs.report(ctx, "completed", start, result.GenerationsRun)
	klogging.Debug(ctx).
		With("volunteers", volunteerCount).
		With("services", serviceCount).
		With("bestCost", result.BestCost).
		With("initialBestCost", result.InitialBestCost).
		With("lastImprovedGen", result.LastImprovedGen).
		With("finalPopMin", result.FinalPopulationMin).
		With("finalPopMax", result.FinalPopulationMax).
		With("elapsedMs", result.ElapsedMs).
		Log("SolveDone", "")
	return result, nil
}

// initPopulation: P random candidates, costed, sorted best first.
func (gs *GeneticSolver) initPopulation(snap *costfunc.ProblemSnapshot, rnd *rand.Rand) Population {
	pop := make(Population, gs.params.PopulationSize)
	for i := range pop {
		pop[i] = NewRandomCandidate(rnd, snap.VolunteerCount(), snap.ServiceCount())
		pop[i].ComputeCost(snap)
	}
	pop.SortAscending()
	return pop
}

func (gs *GeneticSolver) report(ctx context.Context, result string, start int64, generations int) int64 {
	elapsedMs := kcommon.GetMonoTimeMs() - start
	SolverElapsedMsMetrics.GetTimeSequence(ctx, result).Add(elapsedMs)
	SolverGenerationsMetrics.GetTimeSequence(ctx, result).Add(int64(generations))
	return elapsedMs
}

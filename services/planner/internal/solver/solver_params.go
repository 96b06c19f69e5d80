package solver

import (
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
)

const ErrInvalidSolverParams = "InvalidSolverParams"

// SolverParams are the tuning knobs of GeneticSolver.
type SolverParams struct {
	PopulationSize int     // P
	Generations    int     // G, one child per generation
	MutationRate   float64 // m, probability that a child gets one mutation
	Seed           int64   // 0 = a fresh random seed per run
}

func DefaultSolverParams() SolverParams {
	return SolverParams{
		PopulationSize: 50,
		Generations:    400,
		MutationRate:   0.12,
	}
}

func (sp SolverParams) Validate() *kerror.Kerror {
	switch {
	case sp.PopulationSize < 1:
		return kerror.Create(ErrInvalidSolverParams, "population size must be >= 1").With("populationSize", sp.PopulationSize).WithErrorCode(kerror.EC_INVALID_PARAMETER)
	case sp.Generations < 0:
		return kerror.Create(ErrInvalidSolverParams, "generations must be >= 0").With("generations", sp.Generations).WithErrorCode(kerror.EC_INVALID_PARAMETER)
	case sp.MutationRate < 0 || sp.MutationRate > 1:
		return kerror.Create(ErrInvalidSolverParams, "mutation rate must be in [0,1]").With("mutationRate", sp.MutationRate).WithErrorCode(kerror.EC_INVALID_PARAMETER)
	}
	return nil
}

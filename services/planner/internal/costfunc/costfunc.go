package costfunc

import (
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
)

const (
	// CapacityPenaltyPerUnit: each volunteer above a service's capacity costs this much.
	// Large enough to dominate any preference cost, so the search is pushed to feasibility.
	CapacityPenaltyPerUnit = 1000.0

	ErrGeneOutOfRange  = "GeneOutOfRange"
	ErrGeneLenMismatch = "GeneLengthMismatch"
)

// CostBreakdown is TotalCost split into its parts.
type CostBreakdown struct {
	PreferenceCost float64
	CapacityCost   float64
	Loads          []uint // Loads[s] = volunteers assigned to service s
	RankHistogram  []int  // RankHistogram[r] = volunteers that got their rank-r choice
	UnrankedCount  int    // volunteers assigned to a service they did not rank
	OverflowCount  uint   // sum over services of max(0, load-capacity)
}

func (cb *CostBreakdown) Total() float64 {
	return cb.PreferenceCost + cb.CapacityCost
}

// TotalCost scores genes against snap, lower is better:
//
//	sum over volunteers: rank^2 if the assigned service is ranked, else penaltyConstant*Ns^2
//	sum over services:   1000*(load-capacity) if load > capacity
//
// Pure function. Panics with a *kerror.Kerror if genes does not fit snap.
func TotalCost(genes []uint, snap *ProblemSnapshot) float64 {
	checkGenes(genes, snap)
	cost := 0.0
	loads := make([]uint, len(snap.services))
	for v, g := range genes {
		loads[g]++
		if rank := snap.rankTable[v][g]; rank >= 0 {
			cost += float64(rank * rank)
		} else {
			cost += snap.unrankedCost[v]
		}
	}
	for s, svc := range snap.services {
		if loads[s] > svc.Capacity {
			cost += CapacityPenaltyPerUnit * float64(loads[s]-svc.Capacity)
		}
	}
	return cost
}

// GetCostBreakdown: same numbers as TotalCost, with details. Not used in the search hot loop.
func GetCostBreakdown(genes []uint, snap *ProblemSnapshot) *CostBreakdown {
	checkGenes(genes, snap)
	cb := &CostBreakdown{
		Loads:         make([]uint, len(snap.services)),
		RankHistogram: make([]int, maxRankedLen(snap)),
	}
	for v, g := range genes {
		cb.Loads[g]++
		if rank := snap.rankTable[v][g]; rank >= 0 {
			cb.PreferenceCost += float64(rank * rank)
			cb.RankHistogram[rank]++
		} else {
			cb.PreferenceCost += snap.unrankedCost[v]
			cb.UnrankedCount++
		}
	}
	for s, svc := range snap.services {
		if cb.Loads[s] > svc.Capacity {
			over := cb.Loads[s] - svc.Capacity
			cb.OverflowCount += over
			cb.CapacityCost += CapacityPenaltyPerUnit * float64(over)
		}
	}
	return cb
}

func maxRankedLen(snap *ProblemSnapshot) int {
	max := 0
	for _, vp := range snap.volunteers {
		if len(vp.RankedServiceIds) > max {
			max = len(vp.RankedServiceIds)
		}
	}
	return max
}

func checkGenes(genes []uint, snap *ProblemSnapshot) {
	if len(genes) != len(snap.volunteers) {
		panic(kerror.Create(ErrGeneLenMismatch, "gene vector length differs from volunteer count").
			With("genes", len(genes)).
			With("volunteers", len(snap.volunteers)))
	}
	for v, g := range genes {
		if g >= uint(len(snap.services)) {
			panic(kerror.Create(ErrGeneOutOfRange, "gene is not a valid service index").
				With("volunteer", v).
				With("gene", g).
				With("services", len(snap.services)))
		}
	}
}

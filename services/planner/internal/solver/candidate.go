package solver

import (
	"math/rand"
	"sort"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/costfunc"
)

const (
	ErrCostNotComputed        = "CostNotComputed"
	ErrCrossoverLenMismatch   = "CrossoverLengthMismatch"
	ErrCandidateEmptyServices = "CandidateEmptyServices"
)

// Candidate is one trial assignment: Genes[v] is the service index of volunteer v.
// The cached cost is only valid after ComputeCost, any gene change invalidates it.
type Candidate struct {
	Genes     []uint
	cost      float64
	costValid bool
}

// NewCandidate copies genes.
func NewCandidate(genes []uint) *Candidate {
	return &Candidate{Genes: append([]uint(nil), genes...)}
}

// NewRandomCandidate draws every gene independently and uniformly from [0, serviceCount).
func NewRandomCandidate(rnd *rand.Rand, volunteerCount int, serviceCount int) *Candidate {
	if serviceCount <= 0 {
		panic(kerror.Create(ErrCandidateEmptyServices, "serviceCount must be positive").With("serviceCount", serviceCount))
	}
	genes := make([]uint, volunteerCount)
	for i := range genes {
		genes[i] = uint(rnd.Intn(serviceCount))
	}
	return &Candidate{Genes: genes}
}

// Mutate re-draws one uniformly chosen gene from [0, serviceCount) (may draw the same value).
func (c *Candidate) Mutate(rnd *rand.Rand, serviceCount int) {
	if len(c.Genes) == 0 {
		return
	}
	idx := rnd.Intn(len(c.Genes))
	c.Genes[idx] = uint(rnd.Intn(serviceCount))
	c.costValid = false
}

// Crossover is single point: child = a[:cut] + b[cut:], cut uniform in [1, len-2].
// With fewer than 3 genes there is no such cut; the child is then a copy of a.
// Parents are never modified.
func Crossover(rnd *rand.Rand, a, b *Candidate) *Candidate {
	n := len(a.Genes)
	if n != len(b.Genes) {
		panic(kerror.Create(ErrCrossoverLenMismatch, "parents must have the same length").
			With("lenA", n).
			With("lenB", len(b.Genes)))
	}
	if n < 3 {
		return NewCandidate(a.Genes)
	}
	cut := 1 + rnd.Intn(n-2)
	child := make([]uint, n)
	copy(child[:cut], a.Genes[:cut])
	copy(child[cut:], b.Genes[cut:])
	return &Candidate{Genes: child}
}

// ComputeCost recomputes and caches the cost.
func (c *Candidate) ComputeCost(snap *costfunc.ProblemSnapshot) float64 {
	c.cost = costfunc.TotalCost(c.Genes, snap)
	c.costValid = true
	return c.cost
}

// Cost panics if the cached cost is stale.
func (c *Candidate) Cost() float64 {
	if !c.costValid {
		panic(kerror.Create(ErrCostNotComputed, "cost read before ComputeCost"))
	}
	return c.cost
}

func (c *Candidate) IsCostValid() bool {
	return c.costValid
}

func (c *Candidate) Clone() *Candidate {
	return &Candidate{Genes: append([]uint(nil), c.Genes...), cost: c.cost, costValid: c.costValid}
}

// CandidateLess orders by ascending cost (lower is better).
func CandidateLess(a, b *Candidate) bool {
	return a.Cost() < b.Cost()
}

// Population is owned by one solver invocation.
type Population []*Candidate

// SortAscending: best first. Stable, ties keep their relative order.
func (p Population) SortAscending() {
	sort.SliceStable(p, func(i, j int) bool { return CandidateLess(p[i], p[j]) })
}

// SortDescending: worst first. Stable.
func (p Population) SortDescending() {
	sort.SliceStable(p, func(i, j int) bool { return CandidateLess(p[j], p[i]) })
}

// MinMaxCost scans without sorting. Empty population returns (0, 0).
func (p Population) MinMaxCost() (min float64, max float64) {
	for i, c := range p {
		cost := c.Cost()
		if i == 0 || cost < min {
			min = cost
		}
		if i == 0 || cost > max {
			max = cost
		}
	}
	return
}

// tournament draws two members uniformly (with replacement) and keeps the cheaper one.
func (p Population) tournament(rnd *rand.Rand) *Candidate {
	a := p[rnd.Intn(len(p))]
	b := p[rnd.Intn(len(p))]
	if a.Cost() < b.Cost() {
		return a
	}
	return b
}

package costfunc

import (
	"github.com/google/uuid"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
)

const (
	// DefaultPenaltyConstant: unranked assignment costs 10 * Ns^2, with Ns <= 5 this always
	// exceeds the worst ranked cost (4^2).
	DefaultPenaltyConstant = 10.0

	ErrInvalidSnapshot = "InvalidSnapshot"
)

// ProblemSnapshot is the immutable input of one optimization run.
// Built by NewProblemSnapshot, never modified afterwards; safe to share between goroutines.
type ProblemSnapshot struct {
	SnapshotId      string
	volunteers      []data.VolunteerPreference
	services        []data.ServiceSlot
	serviceIndex    map[data.ServiceId]int
	penaltyConstant float64

	// rankTable[v][s] = rank of services[s] in volunteers[v]'s list, -1 if unranked
	rankTable [][]int
	// unrankedCost[v] = penaltyConstant * Ns^2
	unrankedCost []float64
}

// NewProblemSnapshot copies its inputs, so callers may reuse/modify the slices afterwards.
// Returns an InvalidSnapshot error when:
// - services is empty, or a service id appears twice
// - a volunteer id appears twice, or its ranked list is empty / longer than data.MaxRankedServices
// - a ranked list references an unknown service id
func NewProblemSnapshot(volunteers []data.VolunteerPreference, services []data.ServiceSlot, penaltyConstant float64) (*ProblemSnapshot, *kerror.Kerror) {
	if len(services) == 0 {
		return nil, invalidSnapshot("no services")
	}
	snap := &ProblemSnapshot{
		SnapshotId:      uuid.NewString(),
		volunteers:      make([]data.VolunteerPreference, len(volunteers)),
		services:        append([]data.ServiceSlot(nil), services...),
		serviceIndex:    make(map[data.ServiceId]int, len(services)),
		penaltyConstant: penaltyConstant,
		rankTable:       make([][]int, len(volunteers)),
		unrankedCost:    make([]float64, len(volunteers)),
	}
	for i, svc := range services {
		if _, ok := snap.serviceIndex[svc.Id]; ok {
			return nil, invalidSnapshot("duplicate service id").With("serviceId", svc.Id)
		}
		snap.serviceIndex[svc.Id] = i
	}

	seen := make(map[data.VolunteerId]bool, len(volunteers))
	for v, vp := range volunteers {
		if seen[vp.VolunteerId] {
			return nil, invalidSnapshot("duplicate volunteer id").With("volunteerId", vp.VolunteerId)
		}
		seen[vp.VolunteerId] = true
		ns := len(vp.RankedServiceIds)
		if ns == 0 || ns > data.MaxRankedServices {
			return nil, invalidSnapshot("ranked list size out of range").
				With("volunteerId", vp.VolunteerId).
				With("size", ns)
		}
		row := make([]int, len(services))
		for s := range row {
			row[s] = -1
		}
		for rank, id := range vp.RankedServiceIds {
			s, ok := snap.serviceIndex[id]
			if !ok {
				return nil, invalidSnapshot("unknown service id in ranked list").
					With("volunteerId", vp.VolunteerId).
					With("serviceId", id)
			}
			if row[s] < 0 { // first occurrence wins
				row[s] = rank
			}
		}
		snap.volunteers[v] = vp.Clone()
		snap.rankTable[v] = row
		snap.unrankedCost[v] = penaltyConstant * float64(ns*ns)
	}
	return snap, nil
}

func invalidSnapshot(msg string) *kerror.Kerror {
	return kerror.Create(ErrInvalidSnapshot, msg).WithErrorCode(kerror.EC_INVALID_PARAMETER).WithoutStack()
}

func (snap *ProblemSnapshot) VolunteerCount() int {
	return len(snap.volunteers)
}

func (snap *ProblemSnapshot) ServiceCount() int {
	return len(snap.services)
}

func (snap *ProblemSnapshot) PenaltyConstant() float64 {
	return snap.penaltyConstant
}

// Volunteer returns a copy of the i-th volunteer preference.
func (snap *ProblemSnapshot) Volunteer(i int) data.VolunteerPreference {
	return snap.volunteers[i].Clone()
}

func (snap *ProblemSnapshot) Service(i int) data.ServiceSlot {
	return snap.services[i]
}

// Services returns a copy, in index order.
func (snap *ProblemSnapshot) Services() []data.ServiceSlot {
	return append([]data.ServiceSlot(nil), snap.services...)
}

// ServiceIndex: position of serviceId in Services().
func (snap *ProblemSnapshot) ServiceIndex(serviceId data.ServiceId) (int, bool) {
	idx, ok := snap.serviceIndex[serviceId]
	return idx, ok
}

// Rank of service s for volunteer v, -1 when unranked.
func (snap *ProblemSnapshot) Rank(v int, s int) int {
	return snap.rankTable[v][s]
}

// ZipAssignments turns a gene vector (same order as this snapshot) into assignment lines.
func (snap *ProblemSnapshot) ZipAssignments(genes []uint) []data.Assignment {
	checkGenes(genes, snap)
	out := make([]data.Assignment, len(genes))
	for v, g := range genes {
		out[v] = data.Assignment{
			VolunteerId:   snap.volunteers[v].VolunteerId,
			VolunteerName: snap.volunteers[v].VolunteerName,
			Service:       snap.services[g],
			Rank:          snap.rankTable[v][g],
		}
	}
	return out
}

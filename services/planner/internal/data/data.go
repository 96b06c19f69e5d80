package data

import (
	"strings"
)

// ServiceId identifies a ServiceSlot, for exp. "svc-reception".
type ServiceId string

// VolunteerId identifies a volunteer (one preference record per volunteer).
type VolunteerId string

const (
	// MaxRankedServices is the max length of a volunteer's ranked list.
	MaxRankedServices = 5
)

// ServiceSlot is one capacity-limited service volunteers can be assigned to.
type ServiceSlot struct {
	Id          ServiceId
	Name        string
	Description string
	Capacity    uint
}

// VolunteerPreference: RankedServiceIds[0] is the most preferred.
type VolunteerPreference struct {
	VolunteerId      VolunteerId
	VolunteerName    string
	RankedServiceIds []ServiceId
}

// RankOf returns the 0-based rank of serviceId, or -1 when not ranked.
func (vp *VolunteerPreference) RankOf(serviceId ServiceId) int {
	for i, id := range vp.RankedServiceIds {
		if id == serviceId {
			return i
		}
	}
	return -1
}

func (vp *VolunteerPreference) Clone() VolunteerPreference {
	return VolunteerPreference{
		VolunteerId:      vp.VolunteerId,
		VolunteerName:    vp.VolunteerName,
		RankedServiceIds: append([]ServiceId(nil), vp.RankedServiceIds...),
	}
}

func (vp *VolunteerPreference) String() string {
	ids := make([]string, len(vp.RankedServiceIds))
	for i, id := range vp.RankedServiceIds {
		ids[i] = string(id)
	}
	return string(vp.VolunteerId) + ":[" + strings.Join(ids, ",") + "]"
}

// Assignment is one line of the broadcast result: who goes where.
type Assignment struct {
	VolunteerId   VolunteerId
	VolunteerName string
	Service       ServiceSlot
	Rank          int // rank of Service in the volunteer's list, -1 if unranked
}

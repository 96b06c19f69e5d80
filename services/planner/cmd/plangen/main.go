package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/services/planner/api"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/costfunc"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/prefstore"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/solver"
)

/*
Offline plan generator: runs one search and prints the assignment report as JSON.

export PLANGEN_INPUT=prefs.json   # list of {volunteer_id, volunteer_name, ranked_service_ids}
export PLANGEN_VOLUNTEERS=20      # used when PLANGEN_INPUT is empty: random preferences
export GA_SEED=42
export CATALOG_FILE=catalog.yaml
./bin/plangen
*/
func main() {
	ctx := context.Background()
	klogging.SetDefaultLogger(klogging.NewLogrusLogger(ctx).SetConfig(ctx, kcommon.GetEnvString("LOG_LEVEL", "warn"), "text"))

	catalog, ke := prefstore.LoadServiceCatalog(kcommon.GetEnvString("CATALOG_FILE", ""))
	if ke != nil {
		panic(ke)
	}
	params := solver.DefaultSolverParams()
	params.Seed = kcommon.GetEnvInt64("GA_SEED", 0)
	rnd, seed := kcommon.NewSeededRand(ctx, params.Seed)

	var prefs []data.VolunteerPreference
	if path := kcommon.GetEnvString("PLANGEN_INPUT", ""); path != "" {
		prefs = readPreferences(path)
	} else {
		prefs = randomPreferences(rnd, catalog, kcommon.GetEnvInt("PLANGEN_VOLUNTEERS", 20))
	}

	report, ke := generate(ctx, catalog, prefs, params, rnd)
	if ke != nil {
		panic(ke)
	}
	klogging.Info(ctx).With("seed", seed).Log("PlanGenerated", "")
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}

func generate(ctx context.Context, catalog *prefstore.ServiceCatalog, prefs []data.VolunteerPreference, params solver.SolverParams, rnd *rand.Rand) (*api.AssignmentReportResponse, *kerror.Kerror) {
	snapshot, ke := costfunc.NewProblemSnapshot(prefs, catalog.Services(), costfunc.DefaultPenaltyConstant)
	if ke != nil {
		return nil, ke
	}
	result, ke := solver.NewGeneticSolver(params).SolveWithStats(ctx, snapshot, rnd)
	if ke != nil {
		return nil, ke
	}
	breakdown := costfunc.GetCostBreakdown(result.Genes, snapshot)
	report := &api.AssignmentReportResponse{
		SnapshotId:   snapshot.SnapshotId,
		TotalCost:    breakdown.Total(),
		CapacityCost: breakdown.CapacityCost,
		FinishedAtMs: kcommon.GetWallTimeMs(),
	}
	for _, a := range snapshot.ZipAssignments(result.Genes) {
		report.Assignments = append(report.Assignments, api.AssignmentJson{
			VolunteerId:   string(a.VolunteerId),
			VolunteerName: a.VolunteerName,
			Service: api.ServiceJson{
				Id:          string(a.Service.Id),
				Name:        a.Service.Name,
				Description: a.Service.Description,
				Capacity:    a.Service.Capacity,
			},
			Rank: a.Rank,
		})
	}
	return report, nil
}

func readPreferences(path string) []data.VolunteerPreference {
	content, err := os.ReadFile(path)
	if err != nil {
		panic(kerror.Wrap(err, "InputReadError", "failed to read preferences", false).With("path", path))
	}
	var reqs []api.SubmitPreferenceRequest
	if err := json.Unmarshal(content, &reqs); err != nil {
		panic(kerror.Wrap(err, "UnmarshalError", "failed to parse preferences", false).With("path", path))
	}
	prefs := make([]data.VolunteerPreference, len(reqs))
	for i, req := range reqs {
		prefs[i] = data.VolunteerPreference{VolunteerId: data.VolunteerId(req.VolunteerId), VolunteerName: req.VolunteerName}
		for _, id := range req.RankedServiceIds {
			prefs[i].RankedServiceIds = append(prefs[i].RankedServiceIds, data.ServiceId(id))
		}
	}
	return prefs
}

// randomPreferences: each volunteer ranks 1..MaxRankedServices distinct services.
func randomPreferences(rnd *rand.Rand, catalog *prefstore.ServiceCatalog, count int) []data.VolunteerPreference {
	services := catalog.Services()
	prefs := make([]data.VolunteerPreference, count)
	for i := range prefs {
		n := 1 + rnd.Intn(min(data.MaxRankedServices, len(services)))
		perm := rnd.Perm(len(services))[:n]
		prefs[i] = data.VolunteerPreference{
			VolunteerId:   data.VolunteerId(fmt.Sprintf("vol-%03d", i)),
			VolunteerName: fmt.Sprintf("Volunteer %d", i),
		}
		for _, s := range perm {
			prefs[i].RankedServiceIds = append(prefs[i].RankedServiceIds, services[s].Id)
		}
	}
	return prefs
}

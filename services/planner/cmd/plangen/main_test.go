package main

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/prefstore"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/solver"
)

func TestRandomPreferences(t *testing.T) {
	catalog := prefstore.DefaultServiceCatalog()
	prefs := randomPreferences(rand.New(rand.NewSource(1)), catalog, 30)
	require.Len(t, prefs, 30)
	for _, p := range prefs {
		assert.GreaterOrEqual(t, len(p.RankedServiceIds), 1)
		assert.LessOrEqual(t, len(p.RankedServiceIds), data.MaxRankedServices)
		seen := map[data.ServiceId]bool{}
		for _, id := range p.RankedServiceIds {
			_, ok := catalog.Lookup(id)
			assert.True(t, ok)
			assert.False(t, seen[id])
			seen[id] = true
		}
	}
}

func TestGenerate(t *testing.T) {
	catalog := prefstore.DefaultServiceCatalog()
	rnd := rand.New(rand.NewSource(3))
	prefs := randomPreferences(rnd, catalog, 12)
	report, ke := generate(context.Background(), catalog, prefs, solver.DefaultSolverParams(), rnd)
	require.Nil(t, ke)
	require.Len(t, report.Assignments, 12)
	assert.Equal(t, "vol-000", report.Assignments[0].VolunteerId)
	assert.GreaterOrEqual(t, report.TotalCost, 0.0)
}

func TestGenerate_UnknownService(t *testing.T) {
	prefs := []data.VolunteerPreference{{VolunteerId: "a", RankedServiceIds: []data.ServiceId{"svc-nope"}}}
	_, ke := generate(context.Background(), prefstore.DefaultServiceCatalog(), prefs, solver.DefaultSolverParams(), rand.New(rand.NewSource(1)))
	require.NotNil(t, ke)
	assert.Equal(t, "InvalidSnapshot", ke.Type)
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
)

func TestPlannerConfig_Defaults(t *testing.T) {
	cfg := ParsePlannerConfigFromJson("")
	assert.Equal(t, 50, cfg.Solver.PopulationSize)
	assert.Equal(t, 400, cfg.Solver.Generations)
	assert.Equal(t, 0.12, cfg.Solver.MutationRate)
	assert.Equal(t, int64(0), cfg.Solver.Seed)
	assert.Equal(t, 10.0, cfg.PenaltyConstant)
	assert.Equal(t, 3, cfg.MinVolunteers)
	assert.Equal(t, PSK_Memory, cfg.PrefStore.Kind)
	assert.Nil(t, cfg.Validate())
}

func TestPlannerConfig_PartialJson(t *testing.T) {
	cfg := ParsePlannerConfigFromJson(`{"solver":{"generations":1000,"seed":42},"pref_store":{"kind":"ETCD","etcd_endpoints":["a:2379","b:2379"]}}`)
	assert.Equal(t, 50, cfg.Solver.PopulationSize)
	assert.Equal(t, 1000, cfg.Solver.Generations)
	assert.Equal(t, int64(42), cfg.Solver.Seed)
	assert.Equal(t, PSK_Etcd, cfg.PrefStore.Kind)
	assert.Equal(t, []string{"a:2379", "b:2379"}, cfg.PrefStore.EtcdEndpoints)
	assert.Equal(t, "/planner/preferences/", cfg.PrefStore.EtcdPrefix)
	assert.Equal(t, cfg.Solver, cfg.GetSolverParams())
}

func TestPlannerConfig_Yaml(t *testing.T) {
	cfg := ParsePlannerConfigFromYaml(`
solver:
  population_size: 80
  mutation_rate: 0.2
penalty_constant: 12.5
min_volunteers: 5
catalog_file: /etc/planner/catalog.yaml
`)
	assert.Equal(t, 80, cfg.Solver.PopulationSize)
	assert.Equal(t, 0.2, cfg.Solver.MutationRate)
	assert.Equal(t, 400, cfg.Solver.Generations)
	assert.Equal(t, 12.5, cfg.PenaltyConstant)
	assert.Equal(t, 5, cfg.MinVolunteers)
	assert.Equal(t, "/etc/planner/catalog.yaml", cfg.CatalogFile)
}

func TestPlannerConfig_BadJsonPanics(t *testing.T) {
	ke := kcommon.TryCatchRun(context.Background(), func() {
		ParsePlannerConfigFromJson(`{"solver":`)
	})
	require.NotNil(t, ke)
	assert.Equal(t, "UnmarshalError", ke.Type)
}

func TestPlannerConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PlannerConfig)
	}{
		{"population", func(c *PlannerConfig) { c.Solver.PopulationSize = 0 }},
		{"mutation", func(c *PlannerConfig) { c.Solver.MutationRate = -0.1 }},
		{"penalty", func(c *PlannerConfig) { c.PenaltyConstant = 0 }},
		{"minVolunteers", func(c *PlannerConfig) { c.MinVolunteers = 0 }},
		{"storeKind", func(c *PlannerConfig) { c.PrefStore.Kind = "redis" }},
		{"etcdNoEndpoints", func(c *PlannerConfig) { c.PrefStore.Kind = PSK_Etcd; c.PrefStore.EtcdEndpoints = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewPlannerConfig()
			tc.mutate(cfg)
			ke := cfg.Validate()
			require.NotNil(t, ke)
			assert.Equal(t, ErrInvalidConfig, ke.Type)
			assert.Equal(t, kerror.EC_INVALID_PARAMETER, ke.ErrorCode)
		})
	}
}

func TestLoadPlannerConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  generations: 10\n"), 0o644))
	t.Setenv("PLANNER_CONFIG", path)
	t.Setenv("API_PORT", "18080")
	t.Setenv("GA_SEED", "7")
	t.Setenv("PREF_STORE", "etcd")
	t.Setenv("ETCD_ENDPOINTS", " e1:2379 , e2:2379,")
	t.Setenv("ETCD_DIAL_TIMEOUT", "250")

	cfg := LoadPlannerConfig(context.Background())
	assert.Equal(t, 10, cfg.Solver.Generations)
	assert.Equal(t, int64(7), cfg.Solver.Seed)
	assert.Equal(t, 18080, cfg.ApiPort)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, PSK_Etcd, cfg.PrefStore.Kind)
	assert.Equal(t, []string{"e1:2379", "e2:2379"}, cfg.PrefStore.EtcdEndpoints)
	assert.Equal(t, 250, cfg.PrefStore.EtcdDialTimeoutMs)
}

func TestLoadPlannerConfig_MissingFilePanics(t *testing.T) {
	t.Setenv("PLANNER_CONFIG", filepath.Join(t.TempDir(), "nope.json"))
	ke := kcommon.TryCatchRun(context.Background(), func() {
		LoadPlannerConfig(context.Background())
	})
	require.NotNil(t, ke)
	assert.Equal(t, "ConfigReadError", ke.Type)
}

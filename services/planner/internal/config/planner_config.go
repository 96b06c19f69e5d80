package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/services/planner/api"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/costfunc"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/solver"
	"gopkg.in/yaml.v3"
)

const ErrInvalidConfig = "InvalidConfig"

type PrefStoreKind string

const (
	PSK_Memory PrefStoreKind = "memory"
	PSK_Etcd   PrefStoreKind = "etcd"
)

// PlannerConfig is immutable once loaded.
type PlannerConfig struct {
	Solver          solver.SolverParams
	PenaltyConstant float64
	MinVolunteers   int // no optimisation runs below this many preferences
	PrefStore       PrefStoreConfig
	CatalogFile     string // empty: built-in catalog

	// env only
	ApiPort     int
	MetricsPort int
}

type PrefStoreConfig struct {
	Kind              PrefStoreKind
	EtcdEndpoints     []string
	EtcdDialTimeoutMs int
	EtcdPrefix        string
}

func NewPlannerConfig() *PlannerConfig {
	return &PlannerConfig{
		Solver:          solver.DefaultSolverParams(),
		PenaltyConstant: costfunc.DefaultPenaltyConstant,
		MinVolunteers:   3,
		PrefStore: PrefStoreConfig{
			Kind:              PSK_Memory,
			EtcdEndpoints:     []string{"localhost:2379"},
			EtcdDialTimeoutMs: 5000,
			EtcdPrefix:        "/planner/preferences/",
		},
		ApiPort:     8080,
		MetricsPort: 9090,
	}
}

// GetSolverParams can be handed to the coordinator as its params provider.
func (pc *PlannerConfig) GetSolverParams() solver.SolverParams {
	return pc.Solver
}

func (pc *PlannerConfig) Validate() *kerror.Kerror {
	if ke := pc.Solver.Validate(); ke != nil {
		return kerror.Wrap(ke, ErrInvalidConfig, "bad solver section", false).WithErrorCode(kerror.EC_INVALID_PARAMETER)
	}
	if pc.PenaltyConstant <= 0 {
		return kerror.Create(ErrInvalidConfig, "penalty_constant must be positive").With("penaltyConstant", pc.PenaltyConstant).WithErrorCode(kerror.EC_INVALID_PARAMETER)
	}
	if pc.MinVolunteers < 1 {
		return kerror.Create(ErrInvalidConfig, "min_volunteers must be >= 1").With("minVolunteers", pc.MinVolunteers).WithErrorCode(kerror.EC_INVALID_PARAMETER)
	}
	switch pc.PrefStore.Kind {
	case PSK_Memory:
	case PSK_Etcd:
		if len(pc.PrefStore.EtcdEndpoints) == 0 {
			return kerror.Create(ErrInvalidConfig, "etcd pref store needs endpoints").WithErrorCode(kerror.EC_INVALID_PARAMETER)
		}
	default:
		return kerror.Create(ErrInvalidConfig, "unknown pref store kind").With("kind", pc.PrefStore.Kind).WithErrorCode(kerror.EC_INVALID_PARAMETER)
	}
	return nil
}

// PlannerConfigJsonToConfig fills every nil field with its default.
func PlannerConfigJsonToConfig(pcj *api.PlannerConfigJson) *PlannerConfig {
	cfg := NewPlannerConfig()
	if pcj == nil {
		return cfg
	}
	if sj := pcj.Solver; sj != nil {
		if sj.PopulationSize != nil {
			cfg.Solver.PopulationSize = int(*sj.PopulationSize)
		}
		if sj.Generations != nil {
			cfg.Solver.Generations = int(*sj.Generations)
		}
		if sj.MutationRate != nil {
			cfg.Solver.MutationRate = *sj.MutationRate
		}
		if sj.Seed != nil {
			cfg.Solver.Seed = *sj.Seed
		}
	}
	if pcj.PenaltyConstant != nil {
		cfg.PenaltyConstant = *pcj.PenaltyConstant
	}
	if pcj.MinVolunteers != nil {
		cfg.MinVolunteers = int(*pcj.MinVolunteers)
	}
	if ps := pcj.PrefStore; ps != nil {
		if ps.Kind != nil {
			cfg.PrefStore.Kind = PrefStoreKind(strings.ToLower(*ps.Kind))
		}
		if len(ps.EtcdEndpoints) > 0 {
			cfg.PrefStore.EtcdEndpoints = append([]string(nil), ps.EtcdEndpoints...)
		}
		if ps.EtcdDialTimeoutMs != nil {
			cfg.PrefStore.EtcdDialTimeoutMs = int(*ps.EtcdDialTimeoutMs)
		}
		if ps.EtcdPrefix != nil {
			cfg.PrefStore.EtcdPrefix = *ps.EtcdPrefix
		}
	}
	if pcj.CatalogFile != nil {
		cfg.CatalogFile = *pcj.CatalogFile
	}
	return cfg
}

func ParsePlannerConfigFromJson(data string) *PlannerConfig {
	pcj := &api.PlannerConfigJson{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), pcj); err != nil {
			panic(kerror.Wrap(err, "UnmarshalError", "failed to unmarshal PlannerConfigJson", false).WithErrorCode(kerror.EC_INVALID_PARAMETER))
		}
	}
	return PlannerConfigJsonToConfig(pcj)
}

func ParsePlannerConfigFromYaml(data string) *PlannerConfig {
	pcj := &api.PlannerConfigJson{}
	if data != "" {
		if err := yaml.Unmarshal([]byte(data), pcj); err != nil {
			panic(kerror.Wrap(err, "UnmarshalError", "failed to unmarshal planner yaml config", false).WithErrorCode(kerror.EC_INVALID_PARAMETER))
		}
	}
	return PlannerConfigJsonToConfig(pcj)
}

// LoadPlannerConfig reads $PLANNER_CONFIG (.yaml/.yml or JSON) if set, then applies env overrides:
// API_PORT, METRICS_PORT, GA_SEED, PREF_STORE, ETCD_ENDPOINTS (comma separated),
// ETCD_DIAL_TIMEOUT (ms), CATALOG_FILE.
// Panics (*kerror.Kerror) on an unreadable/invalid file or an invalid result.
func LoadPlannerConfig(ctx context.Context) *PlannerConfig {
	cfg := NewPlannerConfig()
	if path := kcommon.GetEnvString("PLANNER_CONFIG", ""); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			panic(kerror.Wrap(err, "ConfigReadError", "failed to read planner config", false).With("path", path))
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			cfg = ParsePlannerConfigFromYaml(string(content))
		default:
			cfg = ParsePlannerConfigFromJson(string(content))
		}
		klogging.Info(ctx).With("path", path).Log("PlannerConfigLoaded", "")
	}
	ApplyEnvOverrides(cfg)
	if ke := cfg.Validate(); ke != nil {
		panic(ke)
	}
	klogging.Info(ctx).
		With("populationSize", cfg.Solver.PopulationSize).
		With("generations", cfg.Solver.Generations).
		With("mutationRate", cfg.Solver.MutationRate).
		With("seed", cfg.Solver.Seed).
		With("prefStore", cfg.PrefStore.Kind).
		With("minVolunteers", cfg.MinVolunteers).
		Log("PlannerConfig", "")
	return cfg
}

func ApplyEnvOverrides(cfg *PlannerConfig) {
	cfg.ApiPort = kcommon.GetEnvInt("API_PORT", cfg.ApiPort)
	cfg.MetricsPort = kcommon.GetEnvInt("METRICS_PORT", cfg.MetricsPort)
	cfg.Solver.Seed = kcommon.GetEnvInt64("GA_SEED", cfg.Solver.Seed)
	cfg.PrefStore.Kind = PrefStoreKind(strings.ToLower(kcommon.GetEnvString("PREF_STORE", string(cfg.PrefStore.Kind))))
	if endpoints := kcommon.GetEnvString("ETCD_ENDPOINTS", ""); endpoints != "" {
		cfg.PrefStore.EtcdEndpoints = splitEndpoints(endpoints)
	}
	cfg.PrefStore.EtcdDialTimeoutMs = kcommon.GetEnvInt("ETCD_DIAL_TIMEOUT", cfg.PrefStore.EtcdDialTimeoutMs)
	cfg.CatalogFile = kcommon.GetEnvString("CATALOG_FILE", cfg.CatalogFile)
}

func splitEndpoints(s string) []string {
	var out []string
	for _, ep := range strings.Split(s, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			out = append(out, ep)
		}
	}
	return out
}

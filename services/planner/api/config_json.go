package api

import (
	"encoding/json"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
)

// PlannerConfigJson is the file form of the planner config (JSON or YAML). Every field is
// optional; a nil field keeps its default.
type PlannerConfigJson struct {
	Solver          *SolverConfigJson `json:"solver" yaml:"solver"`
	PenaltyConstant *float64          `json:"penalty_constant" yaml:"penalty_constant"`
	MinVolunteers   *int32            `json:"min_volunteers" yaml:"min_volunteers"`
	PrefStore       *PrefStoreJson    `json:"pref_store" yaml:"pref_store"`
	CatalogFile     *string           `json:"catalog_file" yaml:"catalog_file"`
}

type SolverConfigJson struct {
	PopulationSize *int32   `json:"population_size" yaml:"population_size"`
	Generations    *int32   `json:"generations" yaml:"generations"`
	MutationRate   *float64 `json:"mutation_rate" yaml:"mutation_rate"`
	Seed           *int64   `json:"seed" yaml:"seed"` // 0 or absent: fresh seed per run
}

type PrefStoreJson struct {
	Kind              *string  `json:"kind" yaml:"kind"` // "memory" (default) or "etcd"
	EtcdEndpoints     []string `json:"etcd_endpoints" yaml:"etcd_endpoints"`
	EtcdDialTimeoutMs *int32   `json:"etcd_dial_timeout_ms" yaml:"etcd_dial_timeout_ms"`
	EtcdPrefix        *string  `json:"etcd_prefix" yaml:"etcd_prefix"`
}

func (pcj *PlannerConfigJson) ToJson() string {
	data, err := json.Marshal(pcj)
	if err != nil {
		ke := kerror.Wrap(err, "MarshalError", "failed to marshal PlannerConfigJson", false)
		panic(ke)
	}
	return string(data)
}

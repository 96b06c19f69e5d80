package api

// ServiceJson is one entry of GET /api/services.
type ServiceJson struct {
	Id          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Capacity    uint   `json:"capacity" yaml:"capacity"`
}

// ServiceListResponse is the body of GET /api/services.
type ServiceListResponse struct {
	Services []ServiceJson `json:"services"`
}

// SubmitPreferenceRequest is the body of POST /api/preferences.
// RankedServiceIds is best first, 1 to 5 distinct service ids.
type SubmitPreferenceRequest struct {
	VolunteerId      string   `json:"volunteer_id"`
	VolunteerName    string   `json:"volunteer_name"`
	RankedServiceIds []string `json:"ranked_service_ids"`
}

type SubmitPreferenceResponse struct {
	VolunteerCount int    `json:"volunteer_count"`
	RunId          string `json:"run_id,omitempty"` // set when this submission started a run
}

type AssignmentJson struct {
	VolunteerId   string      `json:"volunteer_id"`
	VolunteerName string      `json:"volunteer_name"`
	Service       ServiceJson `json:"service"`
	Rank          int         `json:"rank"` // -1 when the service is not in the volunteer's list
}

// AssignmentReportResponse is the body of GET /api/assignments.
type AssignmentReportResponse struct {
	RunId        string           `json:"run_id"`
	SnapshotId   string           `json:"snapshot_id"`
	TotalCost    float64          `json:"total_cost"`
	CapacityCost float64          `json:"capacity_cost"`
	FinishedAtMs int64            `json:"finished_at_ms"`
	Assignments  []AssignmentJson `json:"assignments"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version        string `json:"version"`
	VolunteerCount int    `json:"volunteer_count"`
	ActiveRunId    string `json:"active_run_id,omitempty"`
	ActiveRunState string `json:"active_run_state,omitempty"`
	LatestRunId    string `json:"latest_run_id,omitempty"`
	LatestRunState string `json:"latest_run_state,omitempty"`
	LatestRunError string `json:"latest_run_error,omitempty"`
}

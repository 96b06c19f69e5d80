package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/services/planner/api"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/biz"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
)

type Handler struct {
	app *biz.App
}

func NewHandler(app *biz.App) *Handler {
	return &Handler{app: app}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/api/services", ErrorHandlingMiddleware(http.HandlerFunc(h.ServicesHandler)))
	mux.Handle("/api/preferences", ErrorHandlingMiddleware(http.HandlerFunc(h.PreferencesHandler)))
	mux.Handle("/api/assignments", ErrorHandlingMiddleware(http.HandlerFunc(h.AssignmentsHandler)))
	mux.Handle("/api/status", ErrorHandlingMiddleware(http.HandlerFunc(h.StatusHandler)))
}

// ServicesHandler: GET /api/services
func (h *Handler) ServicesHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodGet)
	resp := &api.ServiceListResponse{Services: []api.ServiceJson{}}
	for _, svc := range h.app.Catalog().Services() {
		resp.Services = append(resp.Services, toServiceJson(svc))
	}
	writeJson(w, resp)
}

// PreferencesHandler: POST /api/preferences
func (h *Handler) PreferencesHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodPost)
	var req api.SubmitPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		panic(kerror.Create("BadRequest", "invalid request format").
			WithErrorCode(kerror.EC_INVALID_PARAMETER).
			With("error", err.Error()))
	}
	pref := data.VolunteerPreference{
		VolunteerId:      data.VolunteerId(req.VolunteerId),
		VolunteerName:    req.VolunteerName,
		RankedServiceIds: make([]data.ServiceId, len(req.RankedServiceIds)),
	}
	for i, id := range req.RankedServiceIds {
		pref.RankedServiceIds[i] = data.ServiceId(id)
	}
	count, handle, ke := h.app.SubmitPreference(r.Context(), pref)
	if ke != nil {
		panic(ke)
	}
	resp := &api.SubmitPreferenceResponse{VolunteerCount: count}
	if handle != nil {
		resp.RunId = handle.RunId
	}
	klogging.Debug(r.Context()).With("volunteerId", req.VolunteerId).With("runId", resp.RunId).Log("PreferenceAccepted", "")
	writeJson(w, resp)
}

// AssignmentsHandler: GET /api/assignments, 404 until the first run completed.
func (h *Handler) AssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodGet)
	report := h.app.LatestReport()
	if report == nil {
		panic(kerror.Create("NoAssignments", "no assignment has been computed yet").WithErrorCode(kerror.EC_NOT_FOUND))
	}
	resp := &api.AssignmentReportResponse{
		RunId:        report.RunId,
		SnapshotId:   report.SnapshotId,
		TotalCost:    report.Breakdown.Total(),
		CapacityCost: report.Breakdown.CapacityCost,
		FinishedAtMs: report.FinishedAtMs,
		Assignments:  make([]api.AssignmentJson, len(report.Assignments)),
	}
	for i, a := range report.Assignments {
		resp.Assignments[i] = api.AssignmentJson{
			VolunteerId:   string(a.VolunteerId),
			VolunteerName: a.VolunteerName,
			Service:       toServiceJson(a.Service),
			Rank:          a.Rank,
		}
	}
	writeJson(w, resp)
}

// StatusHandler: GET /api/status
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	requireMethod(r, http.MethodGet)
	status := h.app.Status(r.Context())
	resp := &api.StatusResponse{
		Version:        biz.GetVersion(),
		VolunteerCount: status.VolunteerCount,
	}
	if status.Active != nil {
		resp.ActiveRunId = status.Active.RunId
		resp.ActiveRunState = status.Active.State().String()
	}
	if status.Latest != nil {
		resp.LatestRunId = status.Latest.RunId
		resp.LatestRunState = status.Latest.State().String()
		if _, ke, ok := status.Latest.Result(); ok && ke != nil {
			resp.LatestRunError = ke.Type
		}
	}
	writeJson(w, resp)
}

func requireMethod(r *http.Request, method string) {
	if r.Method != method {
		panic(kerror.Create("MethodNotAllowed", "only "+method+" is allowed").
			WithErrorCode(kerror.EC_INVALID_PARAMETER).
			With("method", r.Method))
	}
}

func writeJson(w http.ResponseWriter, resp interface{}) {
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		panic(kerror.Create("EncodingError", "failed to encode response").
			WithErrorCode(kerror.EC_INTERNAL_ERROR).
			With("error", err.Error()))
	}
}

func toServiceJson(svc data.ServiceSlot) api.ServiceJson {
	return api.ServiceJson{
		Id:          string(svc.Id),
		Name:        svc.Name,
		Description: svc.Description,
		Capacity:    svc.Capacity,
	}
}

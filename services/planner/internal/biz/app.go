package biz

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kmetrics"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/config"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/coordinator"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/costfunc"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/prefstore"
)

const ErrInvalidPreference = "InvalidPreference"

var (
	version = "dev"

	PreferenceSubmitMetrics = kmetrics.CreateKmetric(context.Background(), "planner_preference_submit", "preference submissions", []string{"result"}).CountOnly()
	ReportPublishMetrics    = kmetrics.CreateKmetric(context.Background(), "planner_report_published", "assignment reports sent to listeners", []string{}).CountOnly()
)

func SetVersion(v string) {
	version = v
}

func GetVersion() string {
	return version
}

// AssignmentReport is the published outcome of one completed run.
type AssignmentReport struct {
	RunId        string
	SnapshotId   string
	Assignments  []data.Assignment // snapshot order (sorted by volunteer id)
	Breakdown    *costfunc.CostBreakdown
	FinishedAtMs int64
}

// AssignmentListener is called on its own goroutine once per published report.
type AssignmentListener func(report *AssignmentReport)

// Status is a point in time view for the status endpoint.
type Status struct {
	VolunteerCount int
	Active         *coordinator.RunHandle
	Latest         *coordinator.RunHandle
}

// App ties the preference store and catalog to the coordinator: every accepted preference
// (once enough exist) starts a fresh run over the full current data; the newest completed run
// is published to listeners.
type App struct {
	cfg         *config.PlannerConfig
	catalog     *prefstore.ServiceCatalog
	store       prefstore.PreferenceStore
	coordinator *coordinator.Coordinator

	listeners *xsync.Map[uint64, AssignmentListener]
	nextId    atomic.Uint64

	mu           sync.Mutex // protects below
	runSeq       int64      // incremented per triggered run
	latestSeq    int64      // seq of latestReport
	latestReport *AssignmentReport
}

func NewApp(ctx context.Context, cfg *config.PlannerConfig, catalog *prefstore.ServiceCatalog, store prefstore.PreferenceStore) *App {
	return &App{
		cfg:         cfg,
		catalog:     catalog,
		store:       store,
		coordinator: coordinator.NewCoordinator(ctx, cfg.GetSolverParams),
		listeners:   xsync.NewMap[uint64, AssignmentListener](),
	}
}

func (app *App) Catalog() *prefstore.ServiceCatalog {
	return app.catalog
}

// SubmitPreference validates and stores pref (replacing the volunteer's previous one). Once at
// least MinVolunteers preferences are stored it also starts a run; handle is nil otherwise.
func (app *App) SubmitPreference(ctx context.Context, pref data.VolunteerPreference) (count int, handle *coordinator.RunHandle, ke *kerror.Kerror) {
	if ke = app.ValidatePreference(pref); ke != nil {
		PreferenceSubmitMetrics.GetTimeSequence(ctx, "invalid").Add(1)
		return 0, nil, ke
	}
	app.store.Save(ctx, pref)
	PreferenceSubmitMetrics.GetTimeSequence(ctx, "ok").Add(1)
	count = app.store.Count(ctx)
	klogging.Info(ctx).
		With("volunteerId", pref.VolunteerId).
		With("ranked", pref.String()).
		With("count", count).
		Log("PreferenceSaved", "")
	if count < app.cfg.MinVolunteers {
		return count, nil, nil
	}
	handle, ke = app.TriggerOptimization(ctx)
	return count, handle, ke
}

// ValidatePreference: non-empty volunteer id, 1..MaxRankedServices distinct ids, all in the catalog.
func (app *App) ValidatePreference(pref data.VolunteerPreference) *kerror.Kerror {
	if pref.VolunteerId == "" {
		return invalidPreference("volunteer id is required")
	}
	n := len(pref.RankedServiceIds)
	if n < 1 || n > data.MaxRankedServices {
		return invalidPreference("ranked list must have 1 to 5 services").With("count", n)
	}
	seen := make(map[data.ServiceId]bool, n)
	for _, id := range pref.RankedServiceIds {
		if seen[id] {
			return invalidPreference("service ranked twice").With("serviceId", id)
		}
		seen[id] = true
		if _, ok := app.catalog.Lookup(id); !ok {
			return invalidPreference("unknown service id").With("serviceId", id)
		}
	}
	return nil
}

func invalidPreference(msg string) *kerror.Kerror {
	return kerror.Create(ErrInvalidPreference, msg).WithErrorCode(kerror.EC_INVALID_PARAMETER)
}

// TriggerOptimization snapshots the current store and catalog and submits a run. Any run still in
// flight is superseded.
func (app *App) TriggerOptimization(ctx context.Context) (*coordinator.RunHandle, *kerror.Kerror) {
	handle, seq, ke := app.solveLatest(ctx)
	if ke != nil {
		klogging.Warning(ctx).WithError(ke).Log("SnapshotRejected", "")
		return nil, ke
	}
	go app.awaitRun(ctx, seq, handle)
	return handle, nil
}

// solveLatest reads the store and submits under app.mu, so the last run submitted always sees the
// newest preferences.
func (app *App) solveLatest(ctx context.Context) (*coordinator.RunHandle, int64, *kerror.Kerror) {
	app.mu.Lock()
	defer app.mu.Unlock()
	snapshot, ke := costfunc.NewProblemSnapshot(app.store.OrderedSnapshot(ctx), app.catalog.Services(), app.cfg.PenaltyConstant)
	if ke != nil {
		return nil, 0, ke
	}
	app.runSeq++
	return app.coordinator.Solve(snapshot), app.runSeq, nil
}

func (app *App) awaitRun(ctx context.Context, seq int64, handle *coordinator.RunHandle) {
	<-handle.Done()
	genes, ke, _ := handle.Result()
	if handle.State() != coordinator.RS_Completed {
		if handle.State() == coordinator.RS_Failed {
			klogging.Warning(ctx).With("runId", handle.RunId).WithError(ke).Log("RunNotPublished", "run failed")
		}
		return
	}
	var report *AssignmentReport
	zipErr := kcommon.TryCatchRun(ctx, func() {
		report = &AssignmentReport{
			RunId:        handle.RunId,
			SnapshotId:   handle.Snapshot.SnapshotId,
			Assignments:  handle.Snapshot.ZipAssignments(genes),
			Breakdown:    costfunc.GetCostBreakdown(genes, handle.Snapshot),
			FinishedAtMs: handle.FinishedAtMs(),
		}
	})
	if zipErr != nil {
		klogging.Error(ctx).With("runId", handle.RunId).WithError(zipErr).Log("ReportBuildFailed", "")
		return
	}

	app.mu.Lock()
	if seq < app.latestSeq {
		app.mu.Unlock()
		return
	}
	app.latestSeq = seq
	app.latestReport = report
	app.mu.Unlock()

	klogging.Info(ctx).
		With("runId", report.RunId).
		With("volunteers", len(report.Assignments)).
		With("totalCost", report.Breakdown.Total()).
		With("overflow", report.Breakdown.OverflowCount).
		Log("AssignmentsPublished", "")
	ReportPublishMetrics.GetTimeSequence(ctx).Add(1)
	app.listeners.Range(func(_ uint64, listener AssignmentListener) bool {
		go listener(report)
		return true
	})
}

// Subscribe registers listener for future reports. Call the returned func to unsubscribe.
func (app *App) Subscribe(listener AssignmentListener) (unsubscribe func()) {
	id := app.nextId.Add(1)
	app.listeners.Store(id, listener)
	return func() {
		app.listeners.LoadAndDelete(id)
	}
}

// LatestReport is nil until the first run completes.
func (app *App) LatestReport() *AssignmentReport {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.latestReport
}

func (app *App) Status(ctx context.Context) Status {
	return Status{
		VolunteerCount: app.store.Count(ctx),
		Active:         app.coordinator.Active(),
		Latest:         app.coordinator.Latest(),
	}
}

func (app *App) Stop() {
	app.coordinator.StopAndWaitForExit()
}

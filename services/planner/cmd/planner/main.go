package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kmetrics"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/ksysmetrics"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/biz"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/config"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/handler"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/prefstore"
	"go.opencensus.io/metric/metricproducer"
)

// injected with -ldflags
var Version string = "dev"
var GitCommit string = "unknown"
var BuildTime string = "unknown"

/*
export API_PORT=8080
export METRICS_PORT=9090
export LOG_LEVEL=info
export LOG_FORMAT=json
export PREF_STORE=memory
export GA_SEED=0
./bin/planner
*/
func main() {
	ctx := context.Background()
	logLevel := kcommon.GetEnvString("LOG_LEVEL", "info")
	logFormat := kcommon.GetEnvString("LOG_FORMAT", "json")
	logrusLogger := klogging.NewLogrusLogger(ctx).WithMetricsReporter(logMetricsReporter{})
	logrusLogger.SetConfig(ctx, logLevel, logFormat)
	klogging.SetDefaultLogger(logrusLogger)
	klogging.Info(ctx).With("logLevel", logLevel).With("logFormat", logFormat).Log("LogLevelSet", "")

	biz.SetVersion(Version)
	klogging.Info(ctx).With("version", Version).With("commit", GitCommit).With("buildTime", BuildTime).Log("ServerStarting", "starting planner")

	cfg := config.LoadPlannerConfig(ctx)
	catalog, ke := prefstore.LoadServiceCatalog(cfg.CatalogFile)
	if ke != nil {
		panic(ke)
	}
	store, closeStore := createPreferenceStore(ctx, cfg)
	defer closeStore()

	pe, err := prometheus.NewExporter(prometheus.Options{Namespace: "planner"})
	if err != nil {
		panic(kerror.Wrap(err, "PrometheusExporterError", "failed to create prometheus exporter", false))
	}
	kmetrics.GetKmetricsRegistry().AddGlobalTag("version", Version)
	metricproducer.GlobalManager().AddProducer(kmetrics.GetKmetricsRegistry())
	sysMetrics := ksysmetrics.NewSysMetrics(Version)
	metricproducer.GlobalManager().AddProducer(sysMetrics.GetRegistry())
	sysMetrics.StartCollector(ctx, 15*time.Second)

	app := biz.NewApp(ctx, cfg, catalog, store)
	mainMux := http.NewServeMux()
	handler.NewHandler(app).RegisterRoutes(mainMux)
	mainServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ApiPort),
		Handler: mainMux,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", pe)
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	klogging.Info(ctx).
		With("api_port", cfg.ApiPort).
		With("metrics_port", cfg.MetricsPort).
		With("services", catalog.Size()).
		With("capacity", catalog.TotalCapacity()).
		Log("ServerConfig", "")

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		klogging.Info(ctx).Log("ServerShutdown", "shutting down servers")
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := mainServer.Shutdown(ctx); err != nil {
			klogging.Error(ctx).WithError(err).Log("MainServerShutdownError", "")
		}
		if err := metricsServer.Shutdown(ctx); err != nil {
			klogging.Error(ctx).WithError(err).Log("MetricsServerShutdownError", "")
		}
	}()

	go func() {
		klogging.Info(ctx).With("addr", metricsServer.Addr).Log("MetricsServerStarting", "")
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			klogging.Error(ctx).WithError(err).Log("MetricsServerError", "")
		}
	}()

	klogging.Info(ctx).With("addr", mainServer.Addr).Log("MainServerStarting", "")
	if err := mainServer.ListenAndServe(); err != http.ErrServerClosed {
		klogging.Error(ctx).WithError(err).Log("MainServerError", "")
	}
	app.Stop()
	klogging.Info(ctx).Log("ServerShutdown", "servers stopped")
}

func createPreferenceStore(ctx context.Context, cfg *config.PlannerConfig) (prefstore.PreferenceStore, func()) {
	switch cfg.PrefStore.Kind {
	case config.PSK_Etcd:
		provider := prefstore.NewDefaultEtcdProvider(ctx, cfg.PrefStore.EtcdEndpoints, cfg.PrefStore.EtcdDialTimeoutMs)
		return prefstore.NewEtcdPreferenceStore(provider, cfg.PrefStore.EtcdPrefix), provider.Close
	default:
		return prefstore.NewMemoryPreferenceStore(), func() {}
	}
}

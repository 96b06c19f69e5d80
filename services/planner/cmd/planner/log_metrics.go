package main

import (
	"context"
	"strconv"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kmetrics"
)

var (
	LogSizeBytesMetrics  = kmetrics.CreateKmetric(context.Background(), "log_size_bytes", "estimated bytes written per log event", []string{"level", "event"})
	LogEventCountMetrics = kmetrics.CreateKmetric(context.Background(), "log_event_count", "log events, logged or filtered", []string{"level", "event", "logged"}).CountOnly()
)

// logMetricsReporter implements klogging.LoggerMetricsReporter.
type logMetricsReporter struct{}

func (logMetricsReporter) ReportLogSizeBytes(ctx context.Context, size int, logLevel, eventType string) {
	LogSizeBytesMetrics.GetTimeSequence(ctx, logLevel, eventType).Add(int64(size))
}

func (logMetricsReporter) ReportLogEventCount(ctx context.Context, count int, logLevel, eventType string, isLogged bool) {
	LogEventCountMetrics.GetTimeSequence(ctx, logLevel, eventType, strconv.FormatBool(isLogged)).Add(int64(count))
}

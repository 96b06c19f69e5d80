package klogging

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
)

// LogrusLogger implements klogging.Logger, formatting/writing is delegated to logrus.
type LogrusLogger struct {
	ctx             context.Context
	RusLogger       *logrus.Logger
	logLevel        Level
	logFormat       LogFormat
	metricsReporter LoggerMetricsReporter
}

// TimestampFormat: ms resolution, with timezone, sort friendly.
const TimestampFormat = "2006-01-02T15:04:05.999Z07:00"

// LoggerMetricsReporter receives per-event log volume, see cmd/planner.
type LoggerMetricsReporter interface {
	ReportLogSizeBytes(ctx context.Context, size int, logLevel, eventType string)
	ReportLogEventCount(ctx context.Context, count int, logLevel, eventType string, isLogged bool)
}

type LogFormat uint32

const (
	TextFormat LogFormat = iota + 1
	JsonFormat
	SimpleFormat
)

func (e LogFormat) String() string {
	switch e {
	case TextFormat:
		return "text"
	case JsonFormat:
		return "json"
	case SimpleFormat:
		return "simple"
	default:
		return fmt.Sprintf("%d", int(e))
	}
}

func ParseLogFormat(str string) LogFormat {
	switch {
	case strings.EqualFold("text", str):
		return TextFormat
	case strings.EqualFold("json", str):
		return JsonFormat
	case strings.EqualFold("simple", str):
		return SimpleFormat
	}
	panic(kerror.Create("UnknownLogFormat", "parse log format failed").With("str", str))
}

func NewLogrusLogger(ctx context.Context) *LogrusLogger {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		TimestampFormat: TimestampFormat,
		FullTimestamp:   true,
	})
	// threshold is evaluated by LogrusLogger, logrus itself accepts everything
	log.SetLevel(logrus.TraceLevel)
	return &LogrusLogger{
		ctx:       ctx,
		RusLogger: log,
		logLevel:  InfoLevel,
		logFormat: TextFormat,
	}
}

func (logger *LogrusLogger) WithMetricsReporter(reporter LoggerMetricsReporter) *LogrusLogger {
	logger.metricsReporter = reporter
	return logger
}

// SetConfig: level in fatal/error/warn/info/debug/verbose, format in text/json/simple.
// Invalid input is logged and ignored.
func (logger *LogrusLogger) SetConfig(ctx context.Context, levelStr string, formatStr string) *LogrusLogger {
	defer func() {
		if r := recover(); r != nil {
			Warning(ctx).WithPanic(r).Log("UpdateLogConfigFailed", "log config not applied")
		}
	}()
	newLevel := ParseLogLevel(levelStr)
	newFormat := ParseLogFormat(formatStr)
	if logger.logLevel != newLevel {
		Info(ctx).With("oldLogLevel", logger.logLevel).With("newLogLevel", newLevel).Log("UpdateLogLevel", "")
		logger.logLevel = newLevel
	}
	if logger.logFormat != newFormat {
		switch newFormat {
		case TextFormat:
			logger.RusLogger.SetFormatter(&logrus.TextFormatter{TimestampFormat: TimestampFormat, FullTimestamp: true})
		case JsonFormat:
			logger.RusLogger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimestampFormat})
		case SimpleFormat:
			logger.RusLogger.SetFormatter(NewSimpleFormatter())
		}
		Info(ctx).With("oldLogFormat", logger.logFormat).With("newLogFormat", newFormat).Log("UpdateLogFormat", "")
		logger.logFormat = newFormat
	}
	return logger
}

func estimateLength(obj interface{}) int {
	if str, ok := obj.(fmt.Stringer); ok {
		return len(str.String())
	}
	return len(fmt.Sprintf("%+v", obj))
}

// Log implements klogging.Logger. Skipped entries (shouldLog=false) are still counted.
func (logger *LogrusLogger) Log(entry *LogEntry, shouldLog bool) {
	if logger.metricsReporter != nil {
		if NeedLog(entry.Level, DebugLevel) {
			logger.metricsReporter.ReportLogEventCount(logger.ctx, 1, entry.Level.String(), entry.LogType, shouldLog)
		}
	}
	if !shouldLog {
		return
	}
	fields := make(logrus.Fields, len(entry.Details)+1)
	logSize := len(entry.Msg) + len(entry.LogType)
	for _, item := range entry.Details {
		logSize += len(item.K) + estimateLength(item.V)
		fields[item.K] = item.V
	}
	if logger.metricsReporter != nil {
		logger.metricsReporter.ReportLogSizeBytes(logger.ctx, logSize, entry.Level.String(), entry.LogType)
	}
	fields["event"] = entry.LogType
	ent := logger.RusLogger.WithFields(fields)
	ent.Time = entry.Timestamp
	ent.Log(kloggingLevel2Logrus(entry.Level), entry.Msg)
}

func kloggingLevel2Logrus(level Level) logrus.Level {
	return logrus.Level(int(level))
}

func (logger *LogrusLogger) Level() Level {
	return logger.logLevel
}

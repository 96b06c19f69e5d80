package klogging

import (
	"context"
	"strings"
	"sync"
)

type ctxKey int

var ctxInfoKey ctxKey

// Importance decides at which log level a ctx detail gets attached to log entries.
type Importance uint32

const (
	// HighImportance: included in all log events
	HighImportance Importance = 1
	// MidImportance: included in debug (and more verbose) events
	MidImportance Importance = 5
	// LowImportance: included in verbose events only
	LowImportance Importance = 6
)

type KVL struct {
	K string
	V string
	L Importance
}

// CtxInfo is a chain of key/values carried in a context. Every log entry created from that
// context gets them (parents first).
type CtxInfo struct {
	Parent  *CtxInfo
	mu      sync.RWMutex
	details []KVL
}

func GetCurrentCtxInfo(ctx context.Context) *CtxInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(ctxInfoKey).(*CtxInfo)
	return info
}

// CreateCtxInfo: new child info using the current one (if any) as parent.
func CreateCtxInfo(ctx context.Context) (context.Context, *CtxInfo) {
	info := &CtxInfo{Parent: GetCurrentCtxInfo(ctx)}
	return context.WithValue(ctx, ctxInfoKey, info), info
}

func GetOrCreateCtxInfo(ctx context.Context) (context.Context, *CtxInfo) {
	if info := GetCurrentCtxInfo(ctx); info != nil {
		return ctx, info
	}
	return CreateCtxInfo(ctx)
}

// EmbedTraceId returns a child ctx whose log entries carry traceId.
func EmbedTraceId(ctx context.Context, traceId string) context.Context {
	ctx2, info := CreateCtxInfo(ctx)
	info.With("traceId", traceId)
	return ctx2
}

func (info *CtxInfo) With(k string, v string) *CtxInfo {
	return info.WithImportance(k, v, HighImportance)
}

// WithImportance sets k (overwrites if this node already has k).
func (info *CtxInfo) WithImportance(k string, v string, l Importance) *CtxInfo {
	info.mu.Lock()
	defer info.mu.Unlock()
	for i := range info.details {
		if info.details[i].K == k {
			info.details[i] = KVL{k, v, l}
			return info
		}
	}
	info.details = append(info.details, KVL{k, v, l})
	return info
}

func importance2LoggingLevel(imp Importance) Level {
	switch imp {
	case HighImportance:
		return FatalLevel
	case MidImportance:
		return DebugLevel
	default:
		return VerboseLevel
	}
}

// VisitForward visits parents first, then this node. visitor returns false to stop early.
// Returns false if the visit was terminated early.
func (info *CtxInfo) VisitForward(visitor func(k string, v string) bool, threshold Level) bool {
	if info == nil {
		return true
	}
	if !info.Parent.VisitForward(visitor, threshold) {
		return false
	}
	info.mu.RLock()
	defer info.mu.RUnlock()
	for _, item := range info.details {
		if item.V == "" || !NeedLog(importance2LoggingLevel(item.L), threshold) {
			continue
		}
		if !visitor(item.K, item.V) {
			return false
		}
	}
	return true
}

// FindByKey searches this node then its parents; fallback if not found (or empty).
func (info *CtxInfo) FindByKey(k string, fallback string) string {
	if info == nil {
		return fallback
	}
	info.mu.RLock()
	for _, item := range info.details {
		if item.K == k {
			info.mu.RUnlock()
			if item.V == "" {
				return fallback
			}
			return item.V
		}
	}
	info.mu.RUnlock()
	return info.Parent.FindByKey(k, fallback)
}

func (info *CtxInfo) String() string {
	var b strings.Builder
	info.VisitForward(func(k, v string) bool {
		b.WriteString(", ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(v)
		return true
	}, InfoLevel)
	return b.String()
}

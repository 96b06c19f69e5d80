package kmetrics

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"go.opencensus.io/metric/metricdata"
	"go.opencensus.io/resource"
)

// Kmetric is one metric family. It exports "<name>_count" and (unless CountOnly) "<name>_sum".
// Each distinct tag value combination is one TimeSequence.
type Kmetric struct {
	mu          sync.Mutex // held only while adding a new TimeSequence
	metricName  string
	description string
	tagNames    []string
	sequences   atomic.Pointer[map[string]*TimeSequence] // copy-on-write
	startTime   time.Time
	countOnly   bool
}

// CreateKmetric creates and registers into the default registry.
func CreateKmetric(ctx context.Context, name string, description string, tags []string) *Kmetric {
	km := &Kmetric{
		metricName:  name,
		description: description,
		tagNames:    tags,
		startTime:   time.Now(),
	}
	empty := map[string]*TimeSequence{}
	km.sequences.Store(&empty)
	GetKmetricsRegistry().RegisterKmetric(km)
	return km
}

func (km *Kmetric) CountOnly() *Kmetric {
	km.countOnly = true
	return km
}

func (km *Kmetric) Name() string {
	return km.metricName
}

// GetTimeSequence: tags must match tagNames (same length, same order).
func (km *Kmetric) GetTimeSequence(ctx context.Context, tags ...string) *TimeSequence {
	key := strings.Join(tags, "-")
	if seq, ok := (*km.sequences.Load())[key]; ok {
		return seq
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	current := *km.sequences.Load()
	if seq, ok := current[key]; ok {
		return seq
	}
	if len(tags) != len(km.tagNames) {
		panic(kerror.Create("InvalidTagValues", "number of tag values does not match tag names").
			With("metric", km.metricName).
			With("expectedLen", len(km.tagNames)).
			With("gotLen", len(tags)))
	}
	seq := newTimeSequence(km, tags)
	next := make(map[string]*TimeSequence, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[key] = seq
	km.sequences.Store(&next)
	return seq
}

func (km *Kmetric) read(suffix string, value func(*TimeSequence) int64) *metricdata.Metric {
	keys := make([]metricdata.LabelKey, len(km.tagNames))
	for i, tagName := range km.tagNames {
		keys[i] = metricdata.LabelKey{Key: tagName}
	}
	now := time.Now()
	sequences := *km.sequences.Load()
	timeSeries := make([]*metricdata.TimeSeries, 0, len(sequences))
	for _, ts := range sequences {
		timeSeries = append(timeSeries, &metricdata.TimeSeries{
			LabelValues: ts.labelValues,
			Points:      []metricdata.Point{{Time: now, Value: value(ts)}},
			StartTime:   km.startTime,
		})
	}
	return &metricdata.Metric{
		Descriptor: metricdata.Descriptor{
			Name:        km.metricName + suffix,
			Description: km.description,
			Unit:        metricdata.UnitDimensionless,
			Type:        metricdata.TypeCumulativeInt64,
			LabelKeys:   keys,
		},
		Resource:   &resource.Resource{Type: "planner", Labels: map[string]string{}},
		TimeSeries: timeSeries,
	}
}

func (km *Kmetric) ReadSum() *metricdata.Metric {
	return km.read("_sum", func(ts *TimeSequence) int64 { _, sum := ts.Get(); return sum })
}

func (km *Kmetric) ReadCount() *metricdata.Metric {
	return km.read("_count", func(ts *TimeSequence) int64 { count, _ := ts.Get(); return count })
}

// TimeSequence is one unique tag value combination of a Kmetric.
type TimeSequence struct {
	tagValues   []string
	labelValues []metricdata.LabelValue
	count       atomic.Int64
	sum         atomic.Int64
}

func newTimeSequence(parent *Kmetric, tagValues []string) *TimeSequence {
	values := make([]metricdata.LabelValue, len(tagValues))
	for i, item := range tagValues {
		values[i] = metricdata.NewLabelValue(item)
	}
	return &TimeSequence{
		tagValues:   append([]string(nil), tagValues...),
		labelValues: values,
	}
}

func (ts *TimeSequence) Add(val int64) {
	ts.count.Add(1)
	ts.sum.Add(val)
}

// Touch makes sure this sequence is exported (as 0) before the first Add.
func (ts *TimeSequence) Touch() {}

func (ts *TimeSequence) Get() (count int64, sum int64) {
	return ts.count.Load(), ts.sum.Load()
}

package kmetrics

import (
	"sort"
	"sync"

	"go.opencensus.io/metric/metricdata"
)

// KmetricsRegistry implements metricproducer.Producer.
type KmetricsRegistry struct {
	mu         sync.RWMutex
	metrics    map[string]*Kmetric
	globalTags map[string]string
}

func NewKmetricsRegistry() *KmetricsRegistry {
	return &KmetricsRegistry{
		metrics:    map[string]*Kmetric{},
		globalTags: map[string]string{},
	}
}

var kmetricsRegistry = NewKmetricsRegistry()

// GetKmetricsRegistry returns the process wide registry.
func GetKmetricsRegistry() *KmetricsRegistry {
	return kmetricsRegistry
}

func (registry *KmetricsRegistry) RegisterKmetric(km *Kmetric) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.metrics[km.metricName] = km
}

// AddGlobalTag attaches key=value to every exported time series (for exp. version).
func (registry *KmetricsRegistry) AddGlobalTag(key, value string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.globalTags[key] = value
}

// Read implements metricproducer.Producer.
func (registry *KmetricsRegistry) Read() []*metricdata.Metric {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.metrics))
	for name := range registry.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]*metricdata.Metric, 0, 2*len(names))
	for _, name := range names {
		km := registry.metrics[name]
		list = append(list, registry.attachGlobalTags(km.ReadCount()))
		if !km.countOnly {
			list = append(list, registry.attachGlobalTags(km.ReadSum()))
		}
	}
	return list
}

func (registry *KmetricsRegistry) attachGlobalTags(metric *metricdata.Metric) *metricdata.Metric {
	for key, value := range registry.globalTags {
		metric.Descriptor.LabelKeys = append(metric.Descriptor.LabelKeys, metricdata.LabelKey{Key: key})
		for _, ts := range metric.TimeSeries {
			ts.LabelValues = append(ts.LabelValues, metricdata.NewLabelValue(value))
		}
	}
	return metric
}

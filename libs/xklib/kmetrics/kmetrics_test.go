package kmetrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKmetricAddAndRead(t *testing.T) {
	ctx := context.Background()
	km := CreateKmetric(ctx, "test_run_elapsed_ms", "desc", []string{"result"})
	km.GetTimeSequence(ctx, "completed").Add(10)
	km.GetTimeSequence(ctx, "completed").Add(5)
	km.GetTimeSequence(ctx, "cancelled").Touch()

	count, sum := km.GetTimeSequence(ctx, "completed").Get()
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(15), sum)

	m := km.ReadSum()
	assert.Equal(t, "test_run_elapsed_ms_sum", m.Descriptor.Name)
	assert.Len(t, m.TimeSeries, 2)
	assert.Equal(t, "test_run_elapsed_ms_count", km.ReadCount().Descriptor.Name)
}

func TestKmetricWrongTagCountPanics(t *testing.T) {
	km := CreateKmetric(context.Background(), "test_wrong_tags", "desc", []string{"a", "b"})
	assert.Panics(t, func() {
		km.GetTimeSequence(context.Background(), "only-one")
	})
}

func TestRegistryRead(t *testing.T) {
	ctx := context.Background()
	registry := NewKmetricsRegistry()
	registry.AddGlobalTag("version", "v1")

	km := &Kmetric{metricName: "reg_test", tagNames: []string{"x"}}
	empty := map[string]*TimeSequence{}
	km.sequences.Store(&empty)
	registry.RegisterKmetric(km)
	km.GetTimeSequence(ctx, "1").Add(3)

	metrics := registry.Read()
	assert.Len(t, metrics, 2) // count + sum
	for _, m := range metrics {
		assert.Equal(t, "version", m.Descriptor.LabelKeys[len(m.Descriptor.LabelKeys)-1].Key)
	}

	registry.RegisterKmetric(km.CountOnly())
	assert.Len(t, registry.Read(), 1)
}

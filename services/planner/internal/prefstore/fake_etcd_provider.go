package prefstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// FakeEtcdProvider is an in-memory EtcdProvider for tests.
type FakeEtcdProvider struct {
	mu       sync.RWMutex
	data     map[string]EtcdKvItem
	revision int64
}

func NewFakeEtcdProvider() *FakeEtcdProvider {
	return &FakeEtcdProvider{data: make(map[string]EtcdKvItem)}
}

func (f *FakeEtcdProvider) Get(ctx context.Context, key string) EtcdKvItem {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if item, ok := f.data[key]; ok {
		return item
	}
	return EtcdKvItem{Key: key}
}

func (f *FakeEtcdProvider) Set(ctx context.Context, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revision++
	f.data[key] = EtcdKvItem{Key: key, Value: value, ModRevision: f.revision}
}

func (f *FakeEtcdProvider) List(ctx context.Context, prefix string) []EtcdKvItem {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var items []EtcdKvItem
	for k, item := range f.data {
		if strings.HasPrefix(k, prefix) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items
}

func (f *FakeEtcdProvider) Close() {}

package prefstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
)

func pref(id string, name string, ranked ...data.ServiceId) data.VolunteerPreference {
	return data.VolunteerPreference{VolunteerId: data.VolunteerId(id), VolunteerName: name, RankedServiceIds: ranked}
}

func storesUnderTest() map[string]PreferenceStore {
	return map[string]PreferenceStore{
		"memory": NewMemoryPreferenceStore(),
		"etcd":   NewEtcdPreferenceStore(NewFakeEtcdProvider(), "/planner/preferences/"),
	}
}

func TestPreferenceStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest() {
		t.Run(name, func(t *testing.T) {
			store.Save(ctx, pref("v2", "Bob", "svc-food"))
			store.Save(ctx, pref("v1", "Ann", "svc-tech", "svc-info"))
			store.Save(ctx, pref("v2", "Bobby", "svc-clean", "svc-food"))

			assert.Equal(t, 2, store.Count(ctx))
			got, ok := store.Get(ctx, "v2")
			require.True(t, ok)
			assert.Equal(t, "Bobby", got.VolunteerName)
			assert.Equal(t, []data.ServiceId{"svc-clean", "svc-food"}, got.RankedServiceIds)

			_, ok = store.Get(ctx, "v9")
			assert.False(t, ok)
		})
	}
}

func TestPreferenceStore_OrderedSnapshot(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest() {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"c", "a", "d", "b"} {
				store.Save(ctx, pref(id, id, "svc-info"))
			}
			snap := store.OrderedSnapshot(ctx)
			ids := make([]data.VolunteerId, len(snap))
			for i, p := range snap {
				ids[i] = p.VolunteerId
			}
			assert.Equal(t, []data.VolunteerId{"a", "b", "c", "d"}, ids)

			// the snapshot is a copy
			snap[0].RankedServiceIds[0] = "svc-tech"
			again, _ := store.Get(ctx, "a")
			assert.Equal(t, data.ServiceId("svc-info"), again.RankedServiceIds[0])
		})
	}
}

func TestMemoryPreferenceStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPreferenceStore()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.Save(ctx, pref(fmt.Sprintf("v%03d", i), fmt.Sprintf("writer%d", g), "svc-info"))
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 50, store.Count(ctx))
	assert.Len(t, store.OrderedSnapshot(ctx), 50)
}

func TestEtcdPreferenceStore_SkipsBadValues(t *testing.T) {
	ctx := context.Background()
	provider := NewFakeEtcdProvider()
	store := NewEtcdPreferenceStore(provider, "/p/")
	store.Save(ctx, pref("ok", "Ok", "svc-info"))
	provider.Set(ctx, "/p/broken", "{not json")
	provider.Set(ctx, "/other/x", `{"volunteer_id":"x"}`)

	snap := store.OrderedSnapshot(ctx)
	require.Len(t, snap, 1)
	assert.Equal(t, data.VolunteerId("ok"), snap[0].VolunteerId)
	assert.Equal(t, `{"volunteer_id":"ok","volunteer_name":"Ok","ranked_service_ids":["svc-info"]}`, provider.Get(ctx, "/p/ok").Value)
}

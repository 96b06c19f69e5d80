package prefstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
)

// PreferenceStore keeps one preference per volunteer, last write wins.
// Safe for concurrent use.
type PreferenceStore interface {
	Save(ctx context.Context, pref data.VolunteerPreference)
	Get(ctx context.Context, volunteerId data.VolunteerId) (data.VolunteerPreference, bool)
	// OrderedSnapshot is a point in time copy sorted by volunteer id.
	OrderedSnapshot(ctx context.Context) []data.VolunteerPreference
	Count(ctx context.Context) int
}

// MemoryPreferenceStore implements PreferenceStore.
type MemoryPreferenceStore struct {
	prefs *xsync.Map[data.VolunteerId, data.VolunteerPreference]
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: xsync.NewMap[data.VolunteerId, data.VolunteerPreference]()}
}

func (store *MemoryPreferenceStore) Save(ctx context.Context, pref data.VolunteerPreference) {
	store.prefs.Store(pref.VolunteerId, pref.Clone())
}

func (store *MemoryPreferenceStore) Get(ctx context.Context, volunteerId data.VolunteerId) (data.VolunteerPreference, bool) {
	pref, ok := store.prefs.Load(volunteerId)
	if !ok {
		return data.VolunteerPreference{}, false
	}
	return pref.Clone(), true
}

func (store *MemoryPreferenceStore) OrderedSnapshot(ctx context.Context) []data.VolunteerPreference {
	list := make([]data.VolunteerPreference, 0, store.prefs.Size())
	store.prefs.Range(func(_ data.VolunteerId, pref data.VolunteerPreference) bool {
		list = append(list, pref.Clone())
		return true
	})
	sortByVolunteerId(list)
	return list
}

func (store *MemoryPreferenceStore) Count(ctx context.Context) int {
	return store.prefs.Size()
}

// EtcdPreferenceStore implements PreferenceStore, one JSON value per volunteer under prefix.
type EtcdPreferenceStore struct {
	provider EtcdProvider
	prefix   string
}

func NewEtcdPreferenceStore(provider EtcdProvider, prefix string) *EtcdPreferenceStore {
	return &EtcdPreferenceStore{provider: provider, prefix: prefix}
}

type preferenceJson struct {
	VolunteerId      string   `json:"volunteer_id"`
	VolunteerName    string   `json:"volunteer_name"`
	RankedServiceIds []string `json:"ranked_service_ids"`
}

func (store *EtcdPreferenceStore) key(volunteerId data.VolunteerId) string {
	return store.prefix + string(volunteerId)
}

func (store *EtcdPreferenceStore) Save(ctx context.Context, pref data.VolunteerPreference) {
	pj := preferenceJson{
		VolunteerId:      string(pref.VolunteerId),
		VolunteerName:    pref.VolunteerName,
		RankedServiceIds: make([]string, len(pref.RankedServiceIds)),
	}
	for i, id := range pref.RankedServiceIds {
		pj.RankedServiceIds[i] = string(id)
	}
	value, err := json.Marshal(pj)
	if err != nil {
		panic(kerror.Wrap(err, "MarshalError", "failed to marshal preference", false).With("volunteerId", pref.VolunteerId))
	}
	store.provider.Set(ctx, store.key(pref.VolunteerId), string(value))
}

func (store *EtcdPreferenceStore) Get(ctx context.Context, volunteerId data.VolunteerId) (data.VolunteerPreference, bool) {
	item := store.provider.Get(ctx, store.key(volunteerId))
	if item.ModRevision == 0 {
		return data.VolunteerPreference{}, false
	}
	return store.decode(ctx, item)
}

func (store *EtcdPreferenceStore) OrderedSnapshot(ctx context.Context) []data.VolunteerPreference {
	items := store.provider.List(ctx, store.prefix)
	list := make([]data.VolunteerPreference, 0, len(items))
	for _, item := range items {
		if pref, ok := store.decode(ctx, item); ok {
			list = append(list, pref)
		}
	}
	sortByVolunteerId(list)
	return list
}

func (store *EtcdPreferenceStore) Count(ctx context.Context) int {
	return len(store.provider.List(ctx, store.prefix))
}

// decode skips (and logs) values that are not valid preference JSON.
func (store *EtcdPreferenceStore) decode(ctx context.Context, item EtcdKvItem) (data.VolunteerPreference, bool) {
	var pj preferenceJson
	if err := json.Unmarshal([]byte(item.Value), &pj); err != nil {
		klogging.Warning(ctx).With("key", item.Key).WithError(err).Log("BadPreferenceValue", "skipped")
		return data.VolunteerPreference{}, false
	}
	pref := data.VolunteerPreference{
		VolunteerId:      data.VolunteerId(pj.VolunteerId),
		VolunteerName:    pj.VolunteerName,
		RankedServiceIds: make([]data.ServiceId, len(pj.RankedServiceIds)),
	}
	for i, id := range pj.RankedServiceIds {
		pref.RankedServiceIds[i] = data.ServiceId(id)
	}
	return pref, true
}

func sortByVolunteerId(list []data.VolunteerPreference) {
	sort.Slice(list, func(i, j int) bool { return list[i].VolunteerId < list[j].VolunteerId })
}

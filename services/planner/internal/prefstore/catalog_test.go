package prefstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
)

func TestDefaultServiceCatalog(t *testing.T) {
	sc := DefaultServiceCatalog()
	assert.Equal(t, 10, sc.Size())
	assert.Equal(t, uint(33), sc.TotalCapacity())
	first := sc.Services()[0]
	assert.Equal(t, data.ServiceId("svc-reception"), first.Id)
	tech, ok := sc.Lookup("svc-tech")
	require.True(t, ok)
	assert.Equal(t, "A/V & projector ops", tech.Description)
	assert.Equal(t, uint(2), tech.Capacity)
	_, ok = sc.Lookup("svc-bar")
	assert.False(t, ok)
}

func TestParseServiceCatalogYaml(t *testing.T) {
	sc, ke := ParseServiceCatalogYaml([]byte(`
services:
  - id: s1
    name: Door
    description: front door
    capacity: 2
  - id: s2
    name: Bar
    capacity: 1
`))
	require.Nil(t, ke)
	assert.Equal(t, []data.ServiceSlot{
		{Id: "s1", Name: "Door", Description: "front door", Capacity: 2},
		{Id: "s2", Name: "Bar", Capacity: 1},
	}, sc.Services())
}

func TestParseServiceCatalogYaml_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"empty":     "services: []",
		"duplicate": "services:\n  - id: a\n  - id: a\n",
		"noId":      "services:\n  - name: x\n",
		"badYaml":   "services: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, ke := ParseServiceCatalogYaml([]byte(content))
			require.NotNil(t, ke)
			assert.Equal(t, ErrInvalidCatalog, ke.Type)
		})
	}
}

func TestLoadServiceCatalog(t *testing.T) {
	sc, ke := LoadServiceCatalog("")
	require.Nil(t, ke)
	assert.Equal(t, 10, sc.Size())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - id: only\n    capacity: 3\n"), 0o644))
	sc, ke = LoadServiceCatalog(path)
	require.Nil(t, ke)
	assert.Equal(t, 1, sc.Size())

	_, ke = LoadServiceCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, ke)
}

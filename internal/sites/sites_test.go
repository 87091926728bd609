package sites

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSitesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeSitesFile(t, `site_id,name,latitude,longitude,land_cover
US-Ha1,Harvard Forest,42.5378,-72.1715,deciduous broadleaf
US-MMS,Morgan-Monroe,39.3232,-86.4131,deciduous broadleaf
`)

	sites, err := Load(path)
	require.NoError(t, err)
	require.Len(t, sites, 2)

	assert.Equal(t, "US-Ha1", sites[0].ID)
	assert.Equal(t, "Harvard Forest", sites[0].Name)
	assert.InDelta(t, 42.5378, sites[0].Latitude, 1e-9)
	assert.InDelta(t, -72.1715, sites[0].Longitude, 1e-9)
	assert.Equal(t, "deciduous broadleaf", sites[0].LandCover)
	assert.Equal(t, "US-MMS", sites[1].ID)
}

func TestLoadWithoutLandCover(t *testing.T) {
	path := writeSitesFile(t, "US-Ha1,Harvard Forest,42.5378,-72.1715\n")

	sites, err := Load(path)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Empty(t, sites[0].LandCover)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"missing site id", ",Harvard Forest,42.5,-72.1\n"},
		{"bad latitude", "US-Ha1,Harvard Forest,north,-72.1\n"},
		{"latitude out of range", "US-Ha1,Harvard Forest,95.0,-72.1\n"},
		{"bad longitude", "US-Ha1,Harvard Forest,42.5,west\n"},
		{"longitude out of range", "US-Ha1,Harvard Forest,42.5,-200.0\n"},
		{"too few columns", "US-Ha1,Harvard Forest\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSitesFile(t, tt.contents)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	all := []Site{
		{ID: "US-Ha1", Name: "Harvard Forest"},
		{ID: "US-MMS", Name: "Morgan-Monroe"},
	}

	got, ok := Find(all, "US-MMS")
	require.True(t, ok)
	assert.Equal(t, "Morgan-Monroe", got.Name)

	_, ok = Find(all, "US-XXX")
	assert.False(t, ok)
}

package geo

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/dermassist/pkg/models"
)

var delhi = models.Location{Lat: 28.6139, Lon: 77.2090}

func TestDefaultCityTable(t *testing.T) {
	table, err := DefaultCityTable()
	require.NoError(t, err)

	assert.Equal(t, 8, table.Len())
	assert.Equal(t, []string{
		"Ahmedabad", "Chandigarh", "Chennai", "Delhi",
		"Hyderabad", "Kochi", "Mumbai", "Pune",
	}, table.Names())

	loc, ok := table.Lookup("Mumbai")
	assert.True(t, ok)
	assert.Equal(t, models.Location{Lat: 19.0760, Lon: 72.8777}, loc)
}

func TestLookup(t *testing.T) {
	table, err := NewCityTable([]models.City{
		{Name: "Delhi", Location: delhi},
	})
	require.NoError(t, err)

	testCases := []struct {
		name  string
		query string
		found bool
	}{
		{"exact", "Delhi", true},
		{"case folded", "delhi", true},
		{"padded", "  DELHI ", true},
		{"unknown", "Jaipur", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			loc, ok := table.Lookup(tc.query)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, delhi, loc)
			} else {
				assert.Equal(t, models.Location{}, loc)
			}
		})
	}
}

func TestNewCityTableRejectsInvalid(t *testing.T) {
	_, err := NewCityTable([]models.City{{Name: " ", Location: delhi}})
	assert.ErrorIs(t, err, ErrInvalidCity)

	testCases := []struct {
		name string
		loc  models.Location
	}{
		{"lat too high", models.Location{Lat: 91}},
		{"lon too low", models.Location{Lon: -180.5}},
		{"NaN lat", models.Location{Lat: math.NaN(), Lon: 10}},
		{"NaN lon", models.Location{Lat: 10, Lon: math.NaN()}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCityTable([]models.City{{Name: "Nowhere", Location: tc.loc}})
			assert.ErrorIs(t, err, ErrInvalidCity)
		})
	}
}

func TestLoadCityTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.yaml")
	err := os.WriteFile(path, []byte(`
cities:
  - name: Jaipur
    lat: 26.9124
    lng: 75.7873
  - name: Lucknow
    lat: 26.8467
    lng: 80.9462
`), 0o644)
	require.NoError(t, err)

	table, err := LoadCityTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jaipur", "Lucknow"}, table.Names())

	loc, ok := table.Lookup("jaipur")
	assert.True(t, ok)
	assert.InDelta(t, 75.7873, loc.Lon, 1e-9)

	_, err = LoadCityTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseCityTable([]byte("cities: [oops"))
	assert.Error(t, err)
}

func TestNearest(t *testing.T) {
	table, err := DefaultCityTable()
	require.NoError(t, err)

	results := table.Nearest(delhi, 3)
	require.Len(t, results, 3)

	assert.Equal(t, "Delhi", results[0].Name)
	assert.Equal(t, 0.0, results[0].DistanceKm)
	assert.Equal(t, "Chandigarh", results[1].Name)
	assert.Equal(t, "Ahmedabad", results[2].Name)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].DistanceKm, results[i].DistanceKm)
	}

	assert.Len(t, table.Nearest(delhi, 100), table.Len())
	assert.Nil(t, table.Nearest(delhi, 0))
}

func TestNearestAcrossAntimeridian(t *testing.T) {
	table, err := NewCityTable([]models.City{
		{Name: "A", Location: models.Location{Lat: 0, Lon: -179.9}},
		{Name: "B", Location: models.Location{Lat: 0, Lon: 178}},
		{Name: "C", Location: models.Location{Lat: 0, Lon: 177.5}},
		{Name: "D", Location: models.Location{Lat: 0, Lon: 177}},
	})
	require.NoError(t, err)

	results := table.Nearest(models.Location{Lat: 0, Lon: 179.9}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Name)
	assert.InDelta(t, 22.2, results[0].DistanceKm, 0.1)

	results = table.Nearest(models.Location{Lat: 0, Lon: 179.9}, 4)
	require.Len(t, results, 4)
	assert.Equal(t, []string{"A", "B", "C", "D"}, []string{
		results[0].Name, results[1].Name, results[2].Name, results[3].Name,
	})
}

func TestNearestHighLatitude(t *testing.T) {
	table, err := NewCityTable([]models.City{
		{Name: "N1", Location: models.Location{Lat: 82, Lon: 10}},
		{Name: "FarLon", Location: models.Location{Lat: 80, Lon: 20}},
	})
	require.NoError(t, err)

	results := table.Nearest(models.Location{Lat: 80, Lon: 10}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "FarLon", results[0].Name)
	assert.InDelta(t, 192.9, results[0].DistanceKm, 0.5)
}

func TestNearestOverPole(t *testing.T) {
	table, err := NewCityTable([]models.City{
		{Name: "Near", Location: models.Location{Lat: 89, Lon: -170}},
		{Name: "Far", Location: models.Location{Lat: 85, Lon: 10}},
	})
	require.NoError(t, err)

	results := table.Nearest(models.Location{Lat: 89, Lon: 10}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, "Near", results[0].Name)
	assert.InDelta(t, 222.4, results[0].DistanceKm, 0.5)
	assert.Equal(t, "Far", results[1].Name)
}

func TestConcurrentLookups(t *testing.T) {
	table, err := DefaultCityTable()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := table.Lookup("Kochi")
			assert.True(t, ok)
			assert.NotEmpty(t, table.Nearest(delhi, 2))
		}()
	}
	wg.Wait()
}

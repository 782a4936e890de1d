package geo

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"
	"gopkg.in/yaml.v3"

	"github.com/1F47E/dermassist/data"
	"github.com/1F47E/dermassist/pkg/models"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2

	// Nearest starts searching at initialRadius km and doubles it up to
	// half the earth's circumference
	initialRadius = 250.0
	maxRadius     = math.Pi * earthRadius
)

// ErrInvalidCity is returned when a dataset entry has no name or out of range coordinates
var ErrInvalidCity = errors.New("invalid city")

// cityItem wraps a city to implement rtreego.Spatial
type cityItem struct {
	city models.City
	rect rtreego.Rect
}

func (ci *cityItem) Bounds() rtreego.Rect {
	return ci.rect
}

// NearbyCity is a city annotated with its distance from a query point
type NearbyCity struct {
	models.City
	DistanceKm float64 `json:"distance_km"`
}

// CityTable maps city names to coordinates. It is immutable once built and
// safe for concurrent use.
type CityTable struct {
	byKey map[string]models.City
	tree  *rtreego.Rtree
}

type cityFile struct {
	Cities []models.City `yaml:"cities"`
}

// NewCityTable builds a table from cities. A later entry with the same name
// replaces an earlier one.
func NewCityTable(cities []models.City) (*CityTable, error) {
	t := &CityTable{
		byKey: make(map[string]models.City, len(cities)),
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren),
	}

	for i, c := range cities {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidCity, i)
		}
		if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return nil, fmt.Errorf("%w: %s has coordinates (%f, %f)", ErrInvalidCity, c.Name, c.Lat, c.Lon)
		}
		c.Name = strings.TrimSpace(c.Name)
		t.byKey[cityKey(c.Name)] = c
	}

	for _, c := range t.byKey {
		p := rtreego.Point{c.Lat, c.Lon}
		t.tree.Insert(&cityItem{city: c, rect: p.ToRect(tolerance)})
	}

	return t, nil
}

// ParseCityTable reads a YAML dataset
func ParseCityTable(raw []byte) (*CityTable, error) {
	var f cityFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse city dataset: %w", err)
	}
	return NewCityTable(f.Cities)
}

// LoadCityTable reads a YAML dataset from path
func LoadCityTable(path string) (*CityTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read city dataset: %w", err)
	}
	return ParseCityTable(raw)
}

// DefaultCityTable returns the table built from the embedded dataset
func DefaultCityTable() (*CityTable, error) {
	return ParseCityTable(data.Cities)
}

// Lookup returns the coordinates of a city. Names are matched ignoring case
// and surrounding whitespace. A nil table knows no cities.
func (t *CityTable) Lookup(name string) (models.Location, bool) {
	if t == nil {
		return models.Location{}, false
	}
	c, ok := t.byKey[cityKey(name)]
	if !ok {
		return models.Location{}, false
	}
	return c.Location, true
}

// Len returns the number of cities in the table
func (t *CityTable) Len() int {
	return len(t.byKey)
}

// Cities returns all cities sorted by name
func (t *CityTable) Cities() []models.City {
	out := make([]models.City, 0, len(t.byKey))
	for _, c := range t.byKey {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all city names sorted
func (t *CityTable) Names() []string {
	cities := t.Cities()
	names := make([]string, len(cities))
	for i, c := range cities {
		names[i] = c.Name
	}
	return names
}

// Nearest returns up to k cities ordered by great-circle distance from loc
func (t *CityTable) Nearest(loc models.Location, k int) []NearbyCity {
	if t == nil || k <= 0 || len(t.byKey) == 0 {
		return nil
	}
	if k > len(t.byKey) {
		k = len(t.byKey)
	}

	// Grow a search radius until it holds k cities. Every city within the
	// radius is inside its bounding boxes, so the k closest of those are the
	// k closest overall.
	var nearby []NearbyCity
	for radius := initialRadius; ; radius *= 2 {
		nearby = t.within(loc, radius)
		if len(nearby) >= k || radius >= maxRadius {
			break
		}
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].DistanceKm != nearby[j].DistanceKm {
			return nearby[i].DistanceKm < nearby[j].DistanceKm
		}
		return nearby[i].Name < nearby[j].Name
	})
	if len(nearby) > k {
		nearby = nearby[:k]
	}
	return nearby
}

// within returns the cities at most radius km from loc, unordered
func (t *CityTable) within(loc models.Location, radius float64) []NearbyCity {
	seen := make(map[*cityItem]struct{})
	var out []NearbyCity

	for _, box := range boundingBoxes(loc, radius) {
		for _, result := range t.tree.SearchIntersect(box) {
			item, ok := result.(*cityItem)
			if !ok || item == nil {
				continue
			}
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}

			d := Between(loc, item.city.Location)
			if d <= radius {
				out = append(out, NearbyCity{City: item.city, DistanceKm: d})
			}
		}
	}
	return out
}

// boundingBoxes covers every point within radius km of loc with lat/lon
// rectangles. Boxes crossing the antimeridian are split in two and boxes
// reaching a pole span all longitudes.
func boundingBoxes(loc models.Location, radius float64) []rtreego.Rect {
	angular := radius / earthRadius
	dLat := angular * 180 / math.Pi

	minLat := loc.Lat - dLat
	maxLat := loc.Lat + dLat

	minLon, maxLon := -180.0, 180.0
	ratio := math.Sin(angular) / math.Cos(loc.Lat*math.Pi/180)
	if minLat <= -90 || maxLat >= 90 || angular >= math.Pi/2 || ratio >= 1 {
		minLat = math.Max(minLat, -90)
		maxLat = math.Min(maxLat, 90)
	} else {
		dLon := math.Asin(ratio) * 180 / math.Pi
		minLon = loc.Lon - dLon
		maxLon = loc.Lon + dLon
	}

	// pad by the item tolerance so boundary cities still intersect
	minLat -= tolerance
	maxLat += tolerance

	spans := [][2]float64{{minLon, maxLon}}
	switch {
	case maxLon-minLon >= 360:
		spans = [][2]float64{{-180, 180}}
	case minLon < -180:
		spans = [][2]float64{{-180, maxLon}, {minLon + 360, 180}}
	case maxLon > 180:
		spans = [][2]float64{{minLon, 180}, {-180, maxLon - 360}}
	}

	boxes := make([]rtreego.Rect, 0, len(spans))
	for _, span := range spans {
		lo := span[0] - tolerance
		hi := span[1] + tolerance
		rect, err := rtreego.NewRect(rtreego.Point{minLat, lo}, []float64{maxLat - minLat, hi - lo})
		if err != nil {
			continue
		}
		boxes = append(boxes, rect)
	}
	return boxes
}

func cityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Package directory provides the dermatologist directory: a static in-memory
// list, an HTTP client of the backend, or (in package postgres) a database.
package directory

import (
	"context"
	"sort"
	"strings"

	"github.com/1F47E/dermassist/pkg/models"
)

// Filter narrows a directory listing. Empty fields match everything.
type Filter struct {
	City   string `url:"city,omitempty" form:"city"`
	Search string `url:"search,omitempty" form:"search"`
}

// Directory lists doctors and the cities they practice in
type Directory interface {
	Doctors(ctx context.Context, f Filter) ([]models.Doctor, error)
	Cities(ctx context.Context) ([]string, error)
}

// Match reports whether d passes f. The city must match case-insensitively;
// the search term may appear in the name, specialty, any specialization or
// the city.
func (f Filter) Match(d models.Doctor) bool {
	if f.City != "" && !strings.EqualFold(d.City, f.City) {
		return false
	}
	if f.Search == "" {
		return true
	}

	s := strings.ToLower(f.Search)
	if contains(d.Name, s) || contains(d.Specialty, s) || contains(d.City, s) {
		return true
	}
	for _, spec := range d.SpecializesIn {
		if contains(spec, s) {
			return true
		}
	}
	return false
}

func contains(field, lowered string) bool {
	return strings.Contains(strings.ToLower(field), lowered)
}

// Apply returns the doctors that pass f, in their original order
func (f Filter) Apply(doctors []models.Doctor) []models.Doctor {
	out := make([]models.Doctor, 0, len(doctors))
	for _, d := range doctors {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

// CityNames returns the sorted unique cities of doctors
func CityNames(doctors []models.Doctor) []string {
	seen := make(map[string]struct{}, len(doctors))
	names := make([]string, 0, len(doctors))
	for _, d := range doctors {
		if _, ok := seen[d.City]; ok {
			continue
		}
		seen[d.City] = struct{}{}
		names = append(names, d.City)
	}
	sort.Strings(names)
	return names
}

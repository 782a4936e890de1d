// Package ranking attaches distances from the user to doctor records and
// orders them nearest first.
package ranking

import (
	"math"
	"sort"

	"github.com/1F47E/dermassist/pkg/geo"
	"github.com/1F47E/dermassist/pkg/models"
)

// CityLookup resolves a city name to its coordinates
type CityLookup interface {
	Lookup(city string) (models.Location, bool)
}

// Rank returns a new slice of doctors. When user is nil the records are
// returned as given, in order, without distances. Otherwise every copy gets a
// DistanceKm rounded to whole kilometers, or an unknown distance when its city
// is missing from cities. With sortEnabled the result is stably sorted
// ascending with unknown distances last.
//
// Input records are never modified.
func Rank(doctors []models.Doctor, user *models.Location, sortEnabled bool, cities CityLookup) []models.Doctor {
	ranked := make([]models.Doctor, len(doctors))
	copy(ranked, doctors)

	if user == nil {
		return ranked
	}

	for i := range ranked {
		ranked[i].DistanceKm = distanceTo(*user, ranked[i].City, cities)
	}

	if sortEnabled {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].DistanceKm.Less(*ranked[j].DistanceKm)
		})
	}

	return ranked
}

func distanceTo(user models.Location, city string, cities CityLookup) *models.Distance {
	if cities == nil {
		return models.UnknownDistance()
	}
	loc, ok := cities.Lookup(city)
	if !ok {
		return models.UnknownDistance()
	}
	return models.KnownDistance(int(math.Round(geo.Between(user, loc))))
}

// Package geo provides great-circle distance and a reference table of city
// coordinates indexed with an R-Tree.
package geo

import (
	"math"

	"github.com/1F47E/dermassist/pkg/models"
)

const earthRadius = 6371.0 // km

// Distance calculates the Haversine distance between two points in kilometers.
// Inputs are trusted to be valid degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0

	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

// Between is Distance for two locations
func Between(a, b models.Location) float64 {
	return Distance(a.Lat, a.Lon, b.Lat, b.Lon)
}

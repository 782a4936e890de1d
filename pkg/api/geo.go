package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/1F47E/dermassist/pkg/geo"
	"github.com/1F47E/dermassist/pkg/models"
)

const (
	defaultNearestK = 3
	maxNearestK     = 50
)

// parseGeoPosition parses a "lat;lng" pair
func parseGeoPosition(geoPosition string) (models.Location, error) {
	positions := strings.Split(geoPosition, ";")
	if len(positions) != 2 {
		return models.Location{}, fmt.Errorf("invalid geo-position value %q", geoPosition)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(positions[0]), 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(positions[1]), 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("invalid longitude: %w", err)
	}

	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return models.Location{}, fmt.Errorf("geo-position %q out of range", geoPosition)
	}
	return models.Location{Lat: lat, Lon: lng}, nil
}

// optionalGeoPosition returns nil for an empty value
func optionalGeoPosition(geoPosition string) (*models.Location, error) {
	if geoPosition == "" {
		return nil, nil
	}
	loc, err := parseGeoPosition(geoPosition)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *Server) distance(c *gin.Context) {
	from, err := parseGeoPosition(c.Query("from"))
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}
	to, err := parseGeoPosition(c.Query("to"))
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"distance_km": geo.Between(from, to)})
}

func (s *Server) nearestCities(c *gin.Context) {
	loc, err := parseGeoPosition(c.Query("geo_position"))
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}

	k := defaultNearestK
	if raw := c.Query("k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil || k < 1 || k > maxNearestK {
			abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, fmt.Errorf("k must be between 1 and %d", maxNearestK))
			return
		}
	}

	nearby := s.cities.Nearest(loc, k)
	if nearby == nil {
		nearby = []geo.NearbyCity{}
	}
	c.JSON(http.StatusOK, gin.H{"cities": nearby})
}

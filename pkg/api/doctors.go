package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/1F47E/dermassist/pkg/directory"
	"github.com/1F47E/dermassist/pkg/ranking"
)

const sortByDistance = "distance"

type doctorsQuery struct {
	directory.Filter
	GeoPosition string `form:"geo_position"`
	Sort        string `form:"sort"`
}

func (s *Server) listDoctors(c *gin.Context) {
	var q doctorsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}

	user, err := optionalGeoPosition(q.GeoPosition)
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}

	doctors, err := s.directory.Doctors(c.Request.Context(), q.Filter)
	if err != nil {
		abortWithEncoding(c, http.StatusBadGateway, errorDirectoryUnavailable, err)
		return
	}

	ranked := ranking.Rank(doctors, user, q.Sort == sortByDistance, s.cities)
	c.JSON(http.StatusOK, gin.H{"doctors": ranked, "total": len(ranked)})
}

func (s *Server) listDoctorCities(c *gin.Context) {
	cities, err := s.directory.Cities(c.Request.Context())
	if err != nil {
		abortWithEncoding(c, http.StatusBadGateway, errorDirectoryUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

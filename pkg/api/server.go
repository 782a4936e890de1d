// Package api exposes distances, the ranked doctor directory, the city table
// and report rendering over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/1F47E/dermassist/pkg/directory"
	"github.com/1F47E/dermassist/pkg/geo"
	"github.com/1F47E/dermassist/pkg/report"
)

const shutdownTimeout = 10 * time.Second

// Options are the collaborators of a Server. Sink may be nil, in which case
// rendered reports are only returned to the caller.
type Options struct {
	Cities    *geo.CityTable
	Directory directory.Directory
	Renderer  *report.Renderer
	Sink      report.Sink
}

type Server struct {
	router    *gin.Engine
	cities    *geo.CityTable
	directory directory.Directory
	renderer  *report.Renderer
	sink      report.Sink
}

// NewServer wires the routes
func NewServer(opts Options) *Server {
	s := &Server{
		cities:    opts.Cities,
		directory: opts.Directory,
		renderer:  opts.Renderer,
		sink:      opts.Sink,
	}
	if s.cities == nil {
		if cities, err := geo.DefaultCityTable(); err == nil {
			s.cities = cities
		}
	}
	if s.renderer == nil {
		s.renderer = report.NewRenderer(report.DefaultLoadTimeout)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger)

	r.GET("/healthz", s.health)
	r.GET("/distance", s.distance)
	r.GET("/doctors", s.listDoctors)
	r.GET("/doctors/cities", s.listDoctorCities)
	r.GET("/cities/nearest", s.nearestCities)
	r.POST("/reports", s.createReport)

	s.router = r
	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("prefix", "api").WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.WithField("prefix", "api").Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs every request once it has been served
func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	entry := log.WithFields(log.Fields{
		"prefix":  "gin",
		"status":  c.Writer.Status(),
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"latency": time.Since(start),
	})
	if c.Writer.Status() >= http.StatusInternalServerError {
		entry.Warn("request failed")
		return
	}
	entry.Debug("request served")
}

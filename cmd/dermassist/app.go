package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/1F47E/dermassist/pkg/config"
	"github.com/1F47E/dermassist/pkg/directory"
	"github.com/1F47E/dermassist/pkg/geo"
	"github.com/1F47E/dermassist/pkg/postgres"
	"github.com/1F47E/dermassist/pkg/report"
	"github.com/1F47E/dermassist/pkg/storage"
)

func loadCities(cfg *config.Config) (*geo.CityTable, error) {
	if cfg.Cities.File == "" {
		return geo.DefaultCityTable()
	}
	return geo.LoadCityTable(cfg.Cities.File)
}

func loadStatic(cfg *config.Config) (*directory.Static, error) {
	if cfg.Directory.SeedFile == "" {
		return directory.DefaultStatic()
	}
	return directory.LoadStatic(cfg.Directory.SeedFile)
}

// openDirectory returns the configured directory and a function releasing it
func openDirectory(ctx context.Context, cfg *config.Config) (directory.Directory, func(), error) {
	noop := func() {}

	switch cfg.Directory.Source {
	case config.SourceHTTP:
		return directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.Timeout), noop, nil
	case config.SourcePostgres:
		store, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		static, err := loadStatic(cfg)
		if err != nil {
			return nil, nil, err
		}
		return static, noop, nil
	}
}

func newStorage(ctx context.Context, cfg *config.Config) (*storage.MinioSink, error) {
	sink, err := storage.New(storage.Options{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
	})
	if err != nil {
		return nil, err
	}
	if err := sink.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.WithField("prefix", "storage").
		WithField("endpoint", cfg.Storage.Endpoint).
		WithField("bucket", sink.Bucket()).
		Info("object storage ready")
	return sink, nil
}

// reportSink combines the local directory (if any) with object storage when
// upload is requested
func reportSink(ctx context.Context, cfg *config.Config, dir string, upload bool) (report.Sink, error) {
	var sinks report.MultiSink
	if dir != "" {
		sinks = append(sinks, report.DirSink{Dir: dir})
	}
	if upload {
		s3, err := newStorage(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up storage: %w", err)
		}
		sinks = append(sinks, s3)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

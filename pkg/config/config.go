// Package config loads settings from an optional config file, a .env file and
// DERMASSIST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "DERMASSIST"

// Directory sources
const (
	SourceStatic   = "static"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Cities    CitiesConfig    `mapstructure:"cities"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Report    ReportConfig    `mapstructure:"report"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CitiesConfig struct {
	// File is a YAML city table. Empty means the embedded one.
	File string `mapstructure:"file"`
}

type DirectoryConfig struct {
	Source   string        `mapstructure:"source"`
	SeedFile string        `mapstructure:"seed_file"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ReportConfig struct {
	OutputDir   string        `mapstructure:"output_dir"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cities.file", "")
	v.SetDefault("directory.source", SourceStatic)
	v.SetDefault("directory.seed_file", "")
	v.SetDefault("directory.base_url", "http://localhost:8000")
	v.SetDefault("directory.timeout", 10*time.Second)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.load_timeout", 5*time.Second)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "dermassist-reports")
	v.SetDefault("server.addr", ":8080")
}

// Load reads the configuration. An explicit path must exist; otherwise a
// config.yaml in the working directory is used when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Directory.Source {
	case SourceStatic, SourceHTTP:
	case SourcePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required when directory.source is postgres")
		}
	default:
		return fmt.Errorf("unknown directory.source %q", c.Directory.Source)
	}

	if c.Storage.Enabled && c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint is required when storage is enabled")
	}
	if c.Report.LoadTimeout < 0 {
		return errors.New("report.load_timeout must not be negative")
	}
	return nil
}

// SetupLogging applies the log level and formatter to the standard logger
func SetupLogging(c LogConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	log.SetLevel(level)

	switch c.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log.format %q", c.Format)
	}
	return nil
}

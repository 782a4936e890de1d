package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray config.yaml or .env is read
func chdir(t *testing.T) string {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, SourceStatic, cfg.Directory.Source)
	assert.Equal(t, "http://localhost:8000", cfg.Directory.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, "reports", cfg.Report.OutputDir)
	assert.Equal(t, 5*time.Second, cfg.Report.LoadTimeout)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, "dermassist-reports", cfg.Storage.Bucket)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
directory:
  source: http
  base_url: http://backend:9000
  timeout: 3s
report:
  load_timeout: 250ms
`), 0o600))

	t.Setenv("DERMASSIST_SERVER_ADDR", ":9999")
	t.Setenv("DERMASSIST_DIRECTORY_BASE_URL", "http://override:1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, SourceHTTP, cfg.Directory.Source)
	assert.Equal(t, "http://override:1", cfg.Directory.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Report.LoadTimeout)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DERMASSIST_REPORT_OUTPUT_DIR=out\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DERMASSIST_REPORT_OUTPUT_DIR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.Report.OutputDir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t)

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"static", func(c *Config) {}, ""},
		{"unknown source", func(c *Config) { c.Directory.Source = "ldap" }, "unknown directory.source"},
		{"postgres without dsn", func(c *Config) { c.Directory.Source = SourcePostgres }, "postgres.dsn"},
		{"postgres with dsn", func(c *Config) {
			c.Directory.Source = SourcePostgres
			c.Postgres.DSN = "postgres://localhost/dermassist"
		}, ""},
		{"storage without endpoint", func(c *Config) { c.Storage.Enabled = true }, "storage.endpoint"},
		{"negative timeout", func(c *Config) { c.Report.LoadTimeout = -time.Second }, "load_timeout"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Directory: DirectoryConfig{Source: SourceStatic}}
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	require.NoError(t, SetupLogging(LogConfig{Level: "warn", Format: "json"}))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, SetupLogging(LogConfig{Level: "loud"}))
	assert.Error(t, SetupLogging(LogConfig{Level: "info", Format: "xml"}))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendLocal, cfg.Backend.Mode)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, uint32(5), cfg.Backend.Breaker.ConsecutiveFailures)
	assert.Equal(t, 2, cfg.WorkLog.PreviewLimit)
	assert.Equal(t, 2*time.Hour, cfg.Verification.SessionTTL)

	days, err := cfg.WorkLog.Weekdays()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, days)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9090
backend:
  mode: remote
  base_url: http://inventory.internal
  timeout: 5s
worklog:
  weekend_days: [friday, saturday]
  save_concurrency: 2
export:
  output_dir: /tmp/exports
`)
	t.Setenv("WORKLOG_BACKEND_URL", "http://override.internal")
	t.Setenv("WORKLOG_LOGGER_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, BackendRemote, cfg.Backend.Mode)
	assert.Equal(t, "http://override.internal", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 2, cfg.WorkLog.SaveConcurrency)

	cc, err := cfg.ToContainerConfig()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, cc.WorkLog.Calendar.WeekendDays)
	assert.Equal(t, "http://override.internal", cc.Backend.Client.BaseURL)
	assert.Equal(t, "/tmp/exports", cc.Storage.ExportDir)
	require.NoError(t, cc.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, ".env", "WORKLOG_DB_PATH=from-dotenv.db\n")
	t.Cleanup(func() { os.Unsetenv("WORKLOG_DB_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())

	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"unknown mode":       func(c *Config) { c.Backend.Mode = "cloud" },
		"remote without url": func(c *Config) { c.Backend.Mode = BackendRemote; c.Backend.BaseURL = "" },
		"bad weekday":        func(c *Config) { c.WorkLog.WeekendDays = []string{"caturday"} },
		"zero concurrency":   func(c *Config) { c.WorkLog.SaveConcurrency = 0 },
		"negative preview":   func(c *Config) { c.WorkLog.PreviewLimit = -1 },
		"missing export dir": func(c *Config) { c.Export.OutputDir = "" },
		"port out of range":  func(c *Config) { c.Server.Port = 70000 },
		"local without db":   func(c *Config) { c.Database.Path = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := *base
			cfg.WorkLog.WeekendDays = append([]string(nil), base.WorkLog.WeekendDays...)
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

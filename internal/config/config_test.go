package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/src-lua/apogee/internal/engine"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"APOGEE_CONFIG", "APOGEE_DB", "APOGEE_USER", "APOGEE_TZ", "APOGEE_LOG_LEVEL", "APOGEE_SWEEP_INTERVAL"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apogee.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APOGEE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
user: ana
timezone: America/Sao_Paulo
ledger:
  rounding: floor
  hard_cap: 300
streaks:
  cache_max_age: 12h
sweep:
  interval: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ana", cfg.User)
	assert.Equal(t, "floor", cfg.Ledger.Rounding)
	assert.Equal(t, 300, cfg.Ledger.HardCap)
	assert.Equal(t, 200, cfg.Ledger.DailyCap, "unset keys keep their defaults")
	assert.Equal(t, 12*time.Hour, cfg.Streaks.CacheMaxAge)
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "user: ana\ndb_path: /tmp/file.db\n")
	t.Setenv("APOGEE_USER", "bo")
	t.Setenv("APOGEE_DB", "/tmp/env.db")
	t.Setenv("APOGEE_SWEEP_INTERVAL", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bo", cfg.User)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, 2*time.Minute, cfg.Sweep.Interval)

	t.Setenv("APOGEE_SWEEP_INTERVAL", "soon")
	_, err = Load(path)
	assert.ErrorContains(t, err, "APOGEE_SWEEP_INTERVAL")
}

func TestValidateNamesYAMLFields(t *testing.T) {
	cfg := Default()
	cfg.User = ""
	cfg.Ledger.Rounding = "ceil"
	cfg.Ledger.HardCap = 100
	cfg.Timezone = "Mars/Olympus"

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"user", "ledger.rounding", "ledger.hard_cap", "timezone"} {
		assert.ErrorContains(t, err, field)
	}

	assert.NoError(t, Default().Validate())
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Ledger.GraceHours = 3
	cfg.Ledger.Rounding = "floor"
	cfg.Timezone = "UTC"

	opts, err := cfg.EngineOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, opts.GracePeriod)
	assert.Equal(t, engine.RoundFloor, opts.XP.Rounding)
	assert.Equal(t, 250, opts.XP.HardCap)
	assert.Equal(t, 10, opts.DiamondsPerLevel)
	assert.Equal(t, time.UTC, opts.Location)
	assert.Equal(t, 256, opts.Streaks.CacheSoftLimit)
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	assert.Equal(t, "DEBUG", cfg.SlogLevel().String())
	cfg.LogLevel = "nonsense"
	assert.Equal(t, "INFO", cfg.SlogLevel().String())
}

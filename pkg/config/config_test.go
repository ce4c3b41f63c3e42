package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("ENV", EnvTest)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 7, cfg.Progress.ModulesPerSemester)
	assert.Equal(t, 49, cfg.Progress.TotalModules)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ProgressTTL)
	assert.True(t, cfg.Database.MigrateOnStart)
	assert.False(t, cfg.Fees.SchedulerEnabled)
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	inTempDir(t)
	t.Setenv("ENV", EnvProduction)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv("ENV", EnvTest)
	t.Setenv("CACHE_PROGRESS_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("PROGRESS_MODULES_PER_SEMESTER", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Cache.ProgressTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 6, cfg.Progress.ModulesPerSemester)
}

func TestDatabaseDSN(t *testing.T) {
	dsn := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable"}.DSN()
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", dsn)
}

func inTempDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

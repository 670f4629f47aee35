package common

import (
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/strategy-lab/internal/monitoring"
)

func TestCommonFlags_Level(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := RegisterCommonFlags(fs)
	require.NoError(t, fs.Parse([]string{"-log-level", "error"}))
	assert.Equal(t, "error", flags.Level("info"))

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	flags = RegisterCommonFlags(fs)
	require.NoError(t, fs.Parse([]string{"-verbose", "-silent"}))
	assert.Equal(t, "warn", flags.Level("info"))

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	flags = RegisterCommonFlags(fs)
	require.NoError(t, fs.Parse(nil))
	assert.Equal(t, "info", flags.Level("info"))
	assert.Equal(t, ".env", *flags.EnvFile)
}

func TestFlagValidator(t *testing.T) {
	v := NewFlagValidator()
	assert.NoError(t, v.GetError())

	v.ValidateChoice("mode", "fast", []string{"slow", "medium"}).
		ValidateFile("job", "", true).
		ValidateFile("data", filepath.Join(t.TempDir(), "missing.csv"), false)

	require.True(t, v.HasErrors())
	err := v.GetError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode must be one of [slow, medium]")
	assert.Contains(t, err.Error(), "job is required")
	assert.Contains(t, err.Error(), "data file does not exist")
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(""))
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STRATEGY_LAB_TEST_KEY=hello\n"), 0o644))
	t.Setenv("STRATEGY_LAB_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("STRATEGY_LAB_TEST_KEY"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "hello", os.Getenv("STRATEGY_LAB_TEST_KEY"))
}

func TestSetup_FlagOverrides(t *testing.T) {
	t.Setenv("DATA_ROOT", "env-data")
	t.Setenv("LOG_LEVEL", "info")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := RegisterCommonFlags(fs)
	require.NoError(t, fs.Parse([]string{"-env", "", "-data-root", "flag-data", "-metrics", ":0", "-verbose"}))

	cfg, _, err := Setup(flags)
	require.NoError(t, err)
	assert.Equal(t, "flag-data", cfg.DataRoot)
	assert.Equal(t, ":0", cfg.Monitoring.MetricsAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestMonitoringMux(t *testing.T) {
	health := monitoring.NewHealthChecker(time.Hour)
	health.ObserveBar(time.Now(), 2300)
	mux := NewMonitoringMux(health)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

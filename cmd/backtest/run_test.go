package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	envconfig "github.com/ducminhle1904/strategy-lab/internal/config"
	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/strategy"
)

const strategyJSON = `{
    "name": "sma cross",
    "symbol": "XAUUSD",
    "direction": "long",
    "indicators": [
      {"id": "fast", "type": "sma", "period": 5},
      {"id": "slow", "type": "sma", "period": 20}
    ],
    "entry_rules": [
      {"left": {"kind": "indicator", "ref": "fast"}, "op": "crosses_above",
       "right": {"kind": "indicator", "ref": "slow"}, "direction": "long"}
    ]
  }`

// writeBars writes an hourly sine wave so the averages cross several times.
func writeBars(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := 2000.0
	for i := 0; i < n; i++ {
		c := 2000 + 30*math.Sin(float64(i)/12)
		hi, lo := math.Max(prev, c)+1, math.Min(prev, c)-1
		fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,%d\n", start.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05"), prev, hi, lo, c, 100+i)
		prev = c
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func writeJob(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testEnv(t *testing.T) *envconfig.Config {
	return &envconfig.Config{ResultsDir: t.TempDir(), DataRoot: t.TempDir(), Workers: 2}
}

func TestRun_Backtest(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "XAUUSD", "1h.csv")
	writeBars(t, dataPath, 300)
	job := writeJob(t, fmt.Sprintf(`{"kind": "backtest", "name": "bt", "data": {"file": %q}, "strategy": %s}`, dataPath, strategyJSON))

	env := testEnv(t)
	var out bytes.Buffer
	written, err := run(context.Background(), options{JobPath: job}, env, &out, zerolog.Nop())
	require.NoError(t, err)

	dir := filepath.Join(env.ResultsDir, "XAUUSD_1h")
	assert.Contains(t, written, filepath.Join(dir, "equity.csv"))
	assert.Contains(t, written, filepath.Join(dir, "report.xlsx"))
	assert.Contains(t, written, filepath.Join(dir, "result.json"))
	for _, p := range written {
		assert.FileExists(t, p)
	}
	assert.NotEmpty(t, out.String())
}

func TestRun_LocatesDataAndHonorsConsoleOnly(t *testing.T) {
	env := testEnv(t)
	writeBars(t, filepath.Join(env.DataRoot, "XAUUSD", "1h.csv"), 200)
	job := writeJob(t, fmt.Sprintf(`{"kind": "walk_forward", "data": {"symbol": "XAUUSD", "interval": "1h"},
		"strategy": %s, "walk_forward": {"n_folds": 3}}`, strategyJSON))

	written, err := run(context.Background(), options{JobPath: job, ConsoleOnly: true}, env, &bytes.Buffer{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestRun_OptimizeWritesBestConfig(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "bars_1h.csv")
	writeBars(t, dataPath, 300)
	job := writeJob(t, fmt.Sprintf(`{"kind": "optimize", "data": {"file": %q, "symbol": "XAUUSD"}, "strategy": %s,
		"optimize": {"method": "random", "n_trials": 6, "seed": 7,
		  "ranges": [{"path": "indicators[0].period", "kind": "int", "min": 2, "max": 10}]}}`, dataPath, strategyJSON))

	out := filepath.Join(t.TempDir(), "search")
	written, err := run(context.Background(), options{JobPath: job, OutputDir: out}, testEnv(t), &bytes.Buffer{}, zerolog.Nop())
	require.NoError(t, err)

	best := filepath.Join(out, "best.json")
	require.Contains(t, written, best)

	raw, err := os.ReadFile(best)
	require.NoError(t, err)
	var def strategy.Definition
	require.NoError(t, json.Unmarshal(raw, &def))
	require.Len(t, def.Indicators, 2)
	assert.GreaterOrEqual(t, def.Indicators[0].Period, 2)
	assert.LessOrEqual(t, def.Indicators[0].Period, 10)
	assert.Equal(t, 20, def.Indicators[1].Period)
}

func TestRun_Errors(t *testing.T) {
	_, err := run(context.Background(), options{JobPath: filepath.Join(t.TempDir(), "none.json")}, testEnv(t), &bytes.Buffer{}, zerolog.Nop())
	assert.True(t, errs.IsConfiguration(err))

	job := writeJob(t, fmt.Sprintf(`{"kind": "backtest", "data": {"symbol": "EURUSD", "interval": "1h"}, "strategy": %s}`, strategyJSON))
	_, err = run(context.Background(), options{JobPath: job}, testEnv(t), &bytes.Buffer{}, zerolog.Nop())
	require.Error(t, err)
	assert.Equal(t, errs.CategoryData, errs.CategoryOf(err))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

const crossJSON = `{
  "kind": "optimize",
  "name": "sma cross search",
  "data": {"file": "data/XAUUSD/1h/bars.csv", "start": "2024-01-01"},
  "strategy": {
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
  },
  "simulation": {"initial_balance": 5000, "spread_points": 2},
  "optimize": {
    "method": "genetic",
    "n_trials": 40,
    "ranges": [
      {"path": "indicators[0].period", "kind": "int", "min": 2, "max": 10},
      {"path": "indicators[1].period", "kind": "int", "min": 15, "max": 50, "step": 5}
    ],
    "score_walk_forward": true
  },
  "walk_forward": {"n_folds": 4, "mode": "rolling"}
}`

const crossYAML = `
kind: walk_forward
data:
  symbol: XAUUSD
  interval: 1h
  trailing: 90d
strategy:
  name: sma cross
  direction: long
  indicators:
    - {id: fast, type: sma, period: 5}
    - {id: slow, type: sma, period: 20}
  entry_rules:
    - left: {kind: indicator, ref: fast}
      op: crosses_above
      right: {kind: indicator, ref: slow}
      direction: long
  risk:
    sizing: {mode: fixed, value: 2, lot_step: 0.01}
    stop_loss: {mode: atr, value: 1.5}
walk_forward:
  n_folds: 3
  train_pct: 60
reporting:
  excel_enabled: false
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_JSONOptimizeJob(t *testing.T) {
	job, err := NewJobManager().Load(writeFile(t, "job.json", crossJSON))
	require.NoError(t, err)

	assert.Equal(t, JobOptimize, job.Kind)
	assert.Equal(t, "XAUUSD", job.Symbol())
	assert.Equal(t, "1h", job.Interval())

	// explicit values override, omitted ones keep defaults
	assert.Equal(t, 5000.0, job.Simulation.InitialBalance)
	assert.Equal(t, 1.0, job.Simulation.PointValue)
	assert.Equal(t, 4, job.WalkForward.NFolds)
	assert.Equal(t, validation.ModeRolling, job.WalkForward.Mode)
	assert.Equal(t, 70.0, job.WalkForward.TrainPct)
	assert.True(t, job.WalkForward.WarmupContext)
	assert.Equal(t, DefaultMetric, job.Optimize.Objective)
	assert.Equal(t, 10, job.Optimize.Config.PopulationSize)

	req := job.Request(nil, nil)
	assert.Equal(t, optimization.MethodGenetic, req.Method)
	assert.Equal(t, 40, req.NTrials)
	require.Len(t, req.Ranges, 2)
	assert.Equal(t, 5.0, req.Ranges[1].Step)
	require.NotNil(t, req.WalkForward)
	assert.Equal(t, 4, req.WalkForward.NFolds)
	assert.Equal(t, "sma cross", req.Template.Name)
}

func TestLoad_YAMLWalkForwardJob(t *testing.T) {
	job, err := NewJobManager().Load(writeFile(t, "job.yaml", crossYAML))
	require.NoError(t, err)

	assert.Equal(t, JobWalkForward, job.Kind)
	assert.Equal(t, "XAUUSD", job.Symbol())
	assert.Equal(t, 3, job.WalkForward.NFolds)
	assert.Equal(t, 60.0, job.WalkForward.TrainPct)
	assert.Equal(t, validation.ModeAnchored, job.WalkForward.Mode)
	assert.True(t, job.WalkForward.WarmupContext)
	assert.Equal(t, 0.01, job.Strategy.Risk.Sizing.LotStep)
	assert.Equal(t, "atr", job.Strategy.Risk.StopLoss.Mode)
	assert.False(t, job.Reporting.ExcelEnabled)
	assert.True(t, job.Reporting.CSVEnabled)

	sel, err := job.Data.Selection()
	require.NoError(t, err)
	assert.Equal(t, "90d", sel.Trailing)
}

func TestRequest_WithoutWalkForwardScoring(t *testing.T) {
	job, err := Parse([]byte(crossJSON), "json")
	require.NoError(t, err)
	job.Optimize.ScoreWalkForward = false
	assert.Nil(t, job.Request(nil, nil).WalkForward)
}

func TestParse_DefaultsToBacktest(t *testing.T) {
	job, err := Parse([]byte(`{"data": {"file": "bars.csv"}}`), "json")
	require.NoError(t, err)
	assert.Equal(t, JobBacktest, job.Kind)
	assert.Equal(t, DefaultDataRoot, job.Data.Root)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"kind": "backtest", "simulaton": {}}`), "json")
	assert.True(t, errs.IsConfiguration(err))

	_, err = Parse([]byte("kind: backtest\nstrategy:\n  nme: x\n"), "yaml")
	assert.True(t, errs.IsConfiguration(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewJobManager().Load(filepath.Join(t.TempDir(), "none.json"))
	assert.True(t, errs.IsConfiguration(err))
}

func TestValidate_Errors(t *testing.T) {
	valid := func() *Job {
		job, err := Parse([]byte(crossJSON), "json")
		require.NoError(t, err)
		return job
	}

	tests := []struct {
		name   string
		mutate func(j *Job)
	}{
		{"unknown kind", func(j *Job) { j.Kind = "paper" }},
		{"no data", func(j *Job) { j.Data = DataConfig{} }},
		{"bad format", func(j *Job) { j.Data.Format = "parquet" }},
		{"bad start", func(j *Job) { j.Data.Start = "yesterday" }},
		{"end before start", func(j *Job) { j.Data.End = "2023-01-01" }},
		{"zero balance", func(j *Job) { j.Simulation.InitialBalance = 0 }},
		{"negative spread", func(j *Job) { j.Simulation.SpreadPoints = -1 }},
		{"negative commission", func(j *Job) { j.Simulation.CommissionPerLot = -1 }},
		{"no entry rules", func(j *Job) { j.Strategy.EntryRules = nil }},
		{"no optimize section", func(j *Job) { j.Optimize = nil }},
		{"too many trials", func(j *Job) { j.Optimize.NTrials = optimization.MaxTrials + 1 }},
		{"unknown method", func(j *Job) { j.Optimize.Method = "annealing" }},
		{"bad range path", func(j *Job) { j.Optimize.Ranges[0].Path = "indicators[9].period" }},
		{"bad folds", func(j *Job) { j.WalkForward.NFolds = 0 }},
		{"walk forward without section", func(j *Job) { j.Kind = JobWalkForward; j.WalkForward = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := valid()
			tt.mutate(job)
			err := NewJobValidator().Validate(job)
			require.Error(t, err)
			assert.True(t, errs.IsConfiguration(err), err.Error())
		})
	}

	assert.NoError(t, NewJobValidator().Validate(valid()))
}

func TestSaveRoundTrip(t *testing.T) {
	m := NewJobManager()
	job, err := Parse([]byte(crossYAML), "yaml")
	require.NoError(t, err)

	for _, name := range []string{"out/job.json", "out/job.yml"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, m.Save(job, path))
		loaded, err := m.Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, job.Strategy.Indicators, loaded.Strategy.Indicators, name)
		assert.Equal(t, job.Strategy.EntryRules, loaded.Strategy.EntryRules, name)
		assert.Equal(t, job.Strategy.Risk, loaded.Strategy.Risk, name)
		assert.Equal(t, job.WalkForward, loaded.WalkForward, name)
	}
}

func TestCSVFormat(t *testing.T) {
	f, err := DataConfig{Format: "MetaTrader"}.CSVFormat()
	require.NoError(t, err)
	assert.Equal(t, data.MetaTraderCSVFormat, f)

	f, err = DataConfig{}.CSVFormat()
	require.NoError(t, err)
	assert.Equal(t, data.DefaultCSVFormat, f)
}

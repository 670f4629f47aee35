package backtest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/internal/strategy"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

var gateStart = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

// zigzagBars builds hourly bars whose mid price walks one unit per bar through points.
func zigzagBars(start time.Time, points ...float64) []types.OHLCV {
	mids := []float64{points[0]}
	for k := 1; k < len(points); k++ {
		step := 1.0
		if points[k] < points[k-1] {
			step = -1
		}
		for m := points[k-1] + step; (step > 0 && m <= points[k]) || (step < 0 && m >= points[k]); m += step {
			mids = append(mids, m)
		}
	}

	bars := make([]types.OHLCV, len(mids))
	for i, m := range mids {
		d := 1.0
		if i > 0 && mids[i] < mids[i-1] {
			d = -1
		}
		bars[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      m - 0.2*d, High: m + 0.5, Low: m - 0.5, Close: m + 0.2*d, Volume: 100,
		}
	}
	return bars
}

func withBar(bars []types.OHLCV, open, high, low, close float64) []types.OHLCV {
	ts := bars[len(bars)-1].Timestamp.Add(time.Hour)
	return append(bars, types.OHLCV{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: 100})
}

// structureShiftBars steps down in lower highs and lower lows until bar 64 closes at 95,
// above the last swing high (93.5); the swing low below is 83.5. Bar 65 opens at 95.
func structureShiftBars(start time.Time) []types.OHLCV {
	bars := zigzagBars(start, 105, 95, 101, 91, 97, 87, 93, 84, 90)
	bars = withBar(bars, 90.2, 95.3, 90, 95)
	return withBar(bars, 95, 96, 94.5, 95.5)
}

func mssGate(mode string, adrOverride float64) *strategy.SignalGate {
	return &strategy.SignalGate{
		Engine:        signals.EngineMSS,
		Mode:          mode,
		ADR10Override: adrOverride,
		Config:        signals.Config{MSS: signals.MSSConfig{LookbackBars: 60, SwingStrength: 2}},
	}
}

func gatedDefinition(gate *strategy.SignalGate, tp strategy.LevelConfig) strategy.Definition {
	return strategy.Definition{
		Name:       "mss gate",
		Symbol:     "XAUUSD",
		SignalGate: gate,
		Risk: strategy.RiskConfig{
			Sizing:     strategy.SizingConfig{Mode: strategy.SizingFixed, Value: 1},
			StopLoss:   strategy.LevelConfig{Mode: strategy.LevelSignal},
			TakeProfit: tp,
		},
	}
}

func TestRunBacktest_SignalGate(t *testing.T) {
	alwaysRule := func(dir string) []strategy.Rule {
		return []strategy.Rule{{
			Left: strategy.Operand{Kind: strategy.OperandPrice, Ref: "close"}, Op: ">",
			Right: strategy.Operand{Kind: strategy.OperandValue, Value: 0}, Direction: dir,
		}}
	}
	// bar 66 runs through the 2R target at 120
	bars := withBar(structureShiftBars(gateStart), 95.5, 121, 95, 119)

	tests := []struct {
		name      string
		mode      string
		rules     []strategy.Rule
		direction string
		wantTrade bool
	}{
		{"only mode trades the signal", strategy.GateOnly, nil, "", true},
		{"confirm mode with agreeing rule", strategy.GateConfirm, alwaysRule("long"), "", true},
		{"confirm mode with opposing rule", strategy.GateConfirm, alwaysRule("short"), "", false},
		{"signal side not allowed", strategy.GateOnly, nil, "short_only", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := gatedDefinition(mssGate(tt.mode, 20), strategy.LevelConfig{Mode: strategy.LevelRR, Value: 2})
			def.EntryRules = tt.rules
			def.Direction = tt.direction

			stats, trades, equity, err := RunBacktest(def, bars, nil, DefaultSimulationConfig())
			require.NoError(t, err)
			assert.Len(t, equity, len(bars))
			if !tt.wantTrade {
				assert.Empty(t, trades)
				assert.Equal(t, Stats{}, stats)
				return
			}

			require.Len(t, trades, 1)
			tr := trades[0]
			assert.Equal(t, types.Long, tr.Direction)
			assert.Equal(t, 65, tr.EntryBar)
			assert.Equal(t, 95.0, tr.EntryPrice)
			assert.InDelta(t, 82.5, tr.StopLoss, 1e-9)
			assert.InDelta(t, 120.0, tr.TakeProfit, 1e-9)
			assert.Equal(t, 66, tr.ExitBar)
			assert.Equal(t, ExitTakeProfit, tr.ExitReason)
			assert.InDelta(t, 25.0, tr.PnL, 1e-9)
			assert.Contains(t, tr.EntryReason, "structure broken")
			if tt.mode == strategy.GateConfirm {
				assert.Contains(t, tr.EntryReason, "confirmed")
			}
		})
	}
}

func TestRunBacktest_SignalGateReversalExit(t *testing.T) {
	bars := structureShiftBars(gateStart)
	// higher highs and higher lows, then bar 105 closes at 98.8 below the 99.5 swing low
	bars = append(bars, zigzagBars(bars[len(bars)-1].Timestamp.Add(time.Hour), 96, 101, 97, 105, 100, 108, 98)...)
	require.Len(t, bars, 107)

	tests := []struct {
		name       string
		exit       bool
		wantBar    int
		wantReason ExitReason
		wantPrice  float64
	}{
		{"exit on reversal", true, 105, ExitSignal, 98.8},
		{"hold through reversal", false, 106, ExitEndOfData, bars[106].Close},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := mssGate(strategy.GateOnly, 20)
			gate.ExitOnReversal = tt.exit
			def := gatedDefinition(gate, strategy.LevelConfig{Mode: strategy.LevelNone})

			_, trades, _, err := RunBacktest(def, bars, nil, DefaultSimulationConfig())
			require.NoError(t, err)
			require.Len(t, trades, 1)
			tr := trades[0]
			assert.Equal(t, 65, tr.EntryBar)
			assert.Equal(t, tt.wantBar, tr.ExitBar)
			assert.Equal(t, tt.wantReason, tr.ExitReason)
			assert.InDelta(t, tt.wantPrice, tr.ExitPrice, 1e-9)
			assert.InDelta(t, tt.wantPrice-95, tr.PnL, 1e-9)
		})
	}
}

func TestRunBacktest_SignalGateADRFromCompleteDays(t *testing.T) {
	// ten flat days with a 22.125 range; with Jan 10 (12) and Jan 11 (11) the last
	// ten complete days average exactly 20. Counting the forming Jan 12 would not.
	var bars []types.OHLCV
	for h := 240; h > 0; h-- {
		bars = append(bars, types.OHLCV{
			Timestamp: gateStart.Add(-time.Duration(h) * time.Hour),
			Open:      105, High: 116.0625, Low: 93.9375, Close: 105, Volume: 100,
		})
	}
	bars = append(bars, structureShiftBars(gateStart)...)

	def := gatedDefinition(mssGate(strategy.GateOnly, 0), strategy.LevelConfig{Mode: strategy.LevelRR, Value: 2})
	runner, err := strategy.Compile(def, bars, nil)
	require.NoError(t, err)

	res, err := NewBacktestEngine(DefaultSimulationConfig(), zerolog.Nop()).Run(bars, runner)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, 240+65, tr.EntryBar)
	assert.InDelta(t, 82.5, tr.StopLoss, 1e-9)
	assert.InDelta(t, 120.0, tr.TakeProfit, 1e-9)
	assert.Equal(t, ExitEndOfData, tr.ExitReason)

	summary := runner.Evaluator().StateSummary()
	assert.InDelta(t, 20.0, summary.ADR10, 1e-9)
	assert.Equal(t, signals.PhaseActive, summary.Phase)
}

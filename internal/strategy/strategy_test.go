package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

func barsFromCloses(closes ...float64) []types.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		}
	}
	return bars
}

func crossDefinition() Definition {
	return Definition{
		Name:   "sma cross",
		Symbol: "BTCUSDT",
		Indicators: []IndicatorDef{
			{ID: "fast", Type: "sma", Period: 2},
			{ID: "slow", Type: "sma", Period: 3},
		},
		EntryRules: []Rule{
			{Left: Operand{Kind: OperandIndicator, Ref: "fast"}, Op: "crosses_above", Right: Operand{Kind: OperandIndicator, Ref: "slow"}, Direction: "long"},
		},
		ExitRules: []Rule{
			{Left: Operand{Kind: OperandIndicator, Ref: "fast"}, Op: "crosses_below", Right: Operand{Kind: OperandIndicator, Ref: "slow"}, Direction: "long"},
		},
	}
}

func TestValidate_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Definition)
		want   string
	}{
		{"unknown indicator type", func(d *Definition) { d.Indicators[0].Type = "vwap" }, "unknown type"},
		{"unknown ref", func(d *Definition) { d.EntryRules[0].Right.Ref = "missing" }, "unknown indicator"},
		{"bad field", func(d *Definition) { d.EntryRules[0].Right.Ref = "slow.upper" }, "no field"},
		{"bad operator", func(d *Definition) { d.EntryRules[0].Op = "=>" }, "unknown operator"},
		{"entry needs side", func(d *Definition) { d.EntryRules[0].Direction = "" }, "direction"},
		{"no rules", func(d *Definition) { d.EntryRules = nil }, "no entry rules"},
		{"rr without stop", func(d *Definition) { d.Risk.TakeProfit = LevelConfig{Mode: LevelRR, Value: 2} }, "requires a stop-loss"},
		{"risk sizing without stop", func(d *Definition) { d.Risk.Sizing = SizingConfig{Mode: SizingRiskPercent, Value: 1} }, "requires a stop-loss"},
		{"signal stop without gate", func(d *Definition) { d.Risk.StopLoss = LevelConfig{Mode: LevelSignal} }, "signal_gate"},
		{"unknown gate", func(d *Definition) { d.SignalGate = &SignalGate{Engine: "wyckoff"} }, "unknown signal engine"},
		{"bad direction", func(d *Definition) { d.Direction = "sideways" }, "direction"},
		{"ml threshold", func(d *Definition) { d.MLFilter = &MLFilter{Threshold: 1.5} }, "threshold"},
		{"session hours", func(d *Definition) { d.Filters.SessionEndHour = 24 }, "session hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := crossDefinition()
			tt.mutate(&def)
			err := def.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsConfiguration(err), err.Error())
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoError(t, crossDefinition().Validate())
}

func TestCompile_CrossEntryAndExit(t *testing.T) {
	bars := barsFromCloses(10, 9, 8, 9, 11, 12, 11, 9, 8)
	r, err := Compile(crossDefinition(), bars, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Warmup())

	var entries, exits []int
	for i := range bars {
		dec, err := r.Decide(i, Portfolio{})
		require.NoError(t, err)
		if dec.Entry == types.Long {
			entries = append(entries, i)
		}
		if dec.ExitLong {
			exits = append(exits, i)
		}
		assert.False(t, dec.ExitShort)
	}
	// fast: -, 9.5, 8.5, 8.5, 10, 11.5, 11.5, 10, 8.5
	// slow: -, -, 9, 8.67, 9.33, 10.67, 11.33, 10.67, 9.33
	assert.Equal(t, []int{4}, entries)
	assert.Equal(t, []int{7}, exits)
}

func TestCompile_OrGroupsAndShift(t *testing.T) {
	def := Definition{
		EntryRules: []Rule{
			{Left: Operand{Kind: OperandPrice, Ref: "close"}, Op: ">", Right: Operand{Kind: OperandValue, Value: 100}, Direction: "long"},
			{Left: Operand{Kind: OperandPrice, Ref: "close"}, Op: ">", Right: Operand{Kind: OperandPrice, Ref: "close", Shift: 1}, Direction: "long"},
			{Left: Operand{Kind: OperandPrice, Ref: "close"}, Op: "==", Right: Operand{Kind: OperandValue, Value: 50}, Direction: "long", Join: "or"},
		},
	}
	bars := barsFromCloses(101, 102, 101, 50, 99)
	r, err := Compile(def, bars, nil)
	require.NoError(t, err)

	want := []types.Direction{types.Flat, types.Long, types.Flat, types.Long, types.Flat}
	for i, w := range want {
		dec, err := r.Decide(i, Portfolio{})
		require.NoError(t, err)
		assert.Equal(t, w, dec.Entry, "bar %d", i)
	}
}

func TestCompile_FiltersAndML(t *testing.T) {
	def := Definition{
		Direction: "both",
		EntryRules: []Rule{
			{Left: Operand{Kind: OperandPrice, Ref: "close"}, Op: ">", Right: Operand{Kind: OperandValue, Value: 0}, Direction: "long"},
		},
		Filters:  FilterConfig{SessionStartHour: 1, SessionEndHour: 3},
		MLFilter: &MLFilter{Threshold: 0.6},
	}
	bars := barsFromCloses(1, 1, 1, 1)
	_, err := Compile(def, bars, []float64{0.9})
	assert.True(t, errs.IsConfiguration(err))

	r, err := Compile(def, bars, []float64{0.9, 0.5, math.NaN(), 0.9})
	require.NoError(t, err)

	var got []types.Direction
	for i := range bars {
		dec, _ := r.Decide(i, Portfolio{})
		got = append(got, dec.Entry)
	}
	// hour 0 and 3 fall outside the session, bar 1 fails the threshold, bar 2 has no prediction
	assert.Equal(t, []types.Direction{types.Flat, types.Flat, types.Flat, types.Flat}, got)

	def.Filters = FilterConfig{}
	r, err = Compile(def, bars, []float64{0.9, 0.5, math.NaN(), 0.9})
	require.NoError(t, err)
	dec, _ := r.Decide(0, Portfolio{})
	assert.Equal(t, types.Long, dec.Entry)
	dec, _ = r.Decide(3, Portfolio{})
	assert.Equal(t, types.Long, dec.Entry)
}

func TestCompile_LongOnlyIgnoresShortRules(t *testing.T) {
	def := Definition{
		Direction: "long_only",
		EntryRules: []Rule{
			{Left: Operand{Kind: OperandPrice, Ref: "close"}, Op: "<", Right: Operand{Kind: OperandValue, Value: 5}, Direction: "short"},
		},
	}
	r, err := Compile(def, barsFromCloses(1, 2), nil)
	require.NoError(t, err)
	dec, _ := r.Decide(1, Portfolio{})
	assert.Equal(t, types.Flat, dec.Entry)
}

func TestApplyParams(t *testing.T) {
	def := crossDefinition()
	def.Risk.StopLoss = LevelConfig{Mode: LevelFixed, Value: 50}

	out, err := ApplyParams(def, map[string]interface{}{
		"indicators[1].period":     7,
		"risk.stop_loss.value":     120.5,
		"entry_rules[0].op":        "crosses_below",
		"risk.take_profit.mode":    "rr",
		"filters.session_end_hour": 22,
	})
	require.NoError(t, err)

	assert.Equal(t, 7, out.Indicators[1].Period)
	assert.Equal(t, 120.5, out.Risk.StopLoss.Value)
	assert.Equal(t, "crosses_below", out.EntryRules[0].Op)
	assert.Equal(t, LevelRR, out.Risk.TakeProfit.Mode)
	assert.Equal(t, 22, out.Filters.SessionEndHour)

	// template untouched
	assert.Equal(t, 3, def.Indicators[1].Period)
	assert.Equal(t, "crosses_above", def.EntryRules[0].Op)

	v, err := ResolvePath(out, "indicators[1].period")
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
}

func TestApplyParams_BadPaths(t *testing.T) {
	def := crossDefinition()
	for _, path := range []string{
		"indicators[5].period",
		"indicators.period",
		"risk.stop_loss.bogus",
		"signal_gate.mode",
		"",
		"indicators[x].period",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := ApplyParams(def, map[string]interface{}{path: 1})
			assert.True(t, errs.IsConfiguration(err))
		})
	}

	_, err := ApplyParams(def, map[string]interface{}{"indicators[0].period": 2.5})
	assert.True(t, errs.IsConfiguration(err))
}

func TestSandbox(t *testing.T) {
	bars := barsFromCloses(1, 2, 3, 4)

	t.Run("panic becomes strategy error", func(t *testing.T) {
		r, err := NewExternalRunner(DeciderFunc(func(ctx DecisionContext) ([]Intent, error) {
			if ctx.Index == 2 {
				var m map[string]int
				m["boom"]++
			}
			return nil, nil
		}), bars, nil, RiskConfig{}, 1, 0)
		require.NoError(t, err)

		_, err = r.Decide(1, Portfolio{})
		require.NoError(t, err)
		_, err = r.Decide(2, Portfolio{})
		require.Error(t, err)
		assert.Equal(t, errs.CategoryStrategy, errs.CategoryOf(err))
		assert.Contains(t, err.Error(), "panic at bar 2")
	})

	t.Run("budget", func(t *testing.T) {
		r, err := NewExternalRunner(DeciderFunc(func(ctx DecisionContext) ([]Intent, error) {
			time.Sleep(2 * time.Millisecond)
			return nil, nil
		}), bars, nil, RiskConfig{}, 1, time.Millisecond)
		require.NoError(t, err)
		_, err = r.Decide(0, Portfolio{})
		assert.ErrorContains(t, err, "budget")
	})

	t.Run("intents and read-only view", func(t *testing.T) {
		r, err := NewExternalRunner(DeciderFunc(func(ctx DecisionContext) ([]Intent, error) {
			assert.Equal(t, ctx.Index+1, ctx.Bars.Len())
			if len(ctx.Portfolio.Positions) > 0 {
				ctx.Portfolio.Positions[0].Size = 99
			}
			return []Intent{
				{Action: ActionOpen, Direction: types.Short, Reason: "fade"},
				{Action: ActionClose, Direction: types.Long},
			}, nil
		}), bars, nil, RiskConfig{}, 1, 0)
		require.NoError(t, err)

		positions := []Position{{Direction: types.Long, Size: 1}}
		dec, err := r.Decide(3, Portfolio{Positions: positions})
		require.NoError(t, err)
		assert.Equal(t, types.Short, dec.Entry)
		assert.True(t, dec.ExitLong)
		assert.False(t, dec.ExitShort)
		assert.Equal(t, 1.0, positions[0].Size)
	})
}

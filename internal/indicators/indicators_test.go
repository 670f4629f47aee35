package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/ducminhle1904/strategy-lab/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestData(n int) []types.OHLCV {
	bars := make([]types.OHLCV, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		base := 100 + float64(i) + 3*math.Sin(float64(i)/4)
		bars[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      base - 0.5,
			High:      base + 1,
			Low:       base - 1,
			Close:     base,
			Volume:    1000,
		}
	}
	return bars
}

func TestSMASeries(t *testing.T) {
	out := SMASeries([]float64{1, 2, 3, 4, 5}, 3)

	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEMASeries_SeededWithSMA(t *testing.T) {
	out := EMASeries([]float64{2, 4, 6, 8}, 3)

	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 4.0, out[2], 1e-12)
	// alpha = 0.5
	assert.InDelta(t, 6.0, out[3], 1e-12)
}

func TestRSISeries(t *testing.T) {
	t.Run("only gains", func(t *testing.T) {
		out := RSISeries([]float64{1, 2, 3, 4, 5, 6}, 3)
		assert.True(t, math.IsNaN(out[2]))
		assert.Equal(t, 100.0, out[3])
		assert.Equal(t, 100.0, out[5])
	})

	t.Run("flat", func(t *testing.T) {
		out := RSISeries([]float64{5, 5, 5, 5}, 2)
		assert.Equal(t, 50.0, out[3])
	})

	t.Run("bounded", func(t *testing.T) {
		out := RSISeries(types.Closes(generateTestData(100)), 14)
		for _, v := range out[14:] {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	})
}

func TestATRSeries(t *testing.T) {
	bars := []types.OHLCV{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 14, Low: 10, Close: 13},
		{High: 13, Low: 12, Close: 12.5},
	}
	out := ATRSeries(bars, 2)

	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 2.0, out[1], 1e-12)
	// TR[2] = max(4, 4, 0) = 4 -> (2*1 + 4) / 2
	assert.InDelta(t, 3.0, out[2], 1e-12)
	// TR[3] = max(1, 0, 1) = 1 -> (3 + 1) / 2
	assert.InDelta(t, 2.0, out[3], 1e-12)
}

func TestBollingerSeries(t *testing.T) {
	b := BollingerSeries([]float64{1, 1, 1, 3}, 2, 2)

	assert.True(t, math.IsNaN(b.Middle[0]))
	assert.InDelta(t, 1.0, b.Upper[1], 1e-12)
	assert.InDelta(t, 2.0, b.Middle[3], 1e-12)
	assert.InDelta(t, 4.0, b.Upper[3], 1e-12)
	assert.InDelta(t, 0.0, b.Lower[3], 1e-12)
}

func TestMACDSeries(t *testing.T) {
	values := types.Closes(generateTestData(60))
	m := MACDSeries(values, 3, 6, 3)

	assert.True(t, math.IsNaN(m.MACD[4]))
	assert.False(t, math.IsNaN(m.MACD[5]))
	assert.True(t, math.IsNaN(m.Signal[6]))
	assert.False(t, math.IsNaN(m.Signal[7]))
	assert.InDelta(t, m.MACD[20]-m.Signal[20], m.Hist[20], 1e-12)
}

func TestDonchianSeries(t *testing.T) {
	bars := []types.OHLCV{
		{High: 5, Low: 1}, {High: 7, Low: 2}, {High: 6, Low: 0.5}, {High: 4, Low: 3},
	}
	ch := DonchianSeries(bars, 3)

	assert.True(t, math.IsNaN(ch.Upper[1]))
	assert.Equal(t, 7.0, ch.Upper[2])
	assert.Equal(t, 0.5, ch.Lower[3])
	assert.Equal(t, 3.75, ch.Middle[3])
}

func TestBuildCache(t *testing.T) {
	bars := generateTestData(80)
	specs := []Spec{
		{ID: "fast", Type: TypeEMA, Period: 5},
		{ID: "bb", Type: TypeBollinger, Period: 20, StdDev: 2},
		{ID: "m", Type: TypeMACD, Fast: 12, Slow: 26, Signal: 9},
		{ID: "rsi", Type: TypeRSI, Period: 14, Source: "hlc3"},
	}

	c, err := Build(bars, specs)
	require.NoError(t, err)

	assert.Equal(t, 34, c.Warmup())
	for _, ref := range []string{"fast", "fast.value", "bb", "bb.upper", "m.signal", "m.hist", "rsi"} {
		_, ok := c.Series(ref)
		assert.True(t, ok, ref)
	}
	mid, _ := c.Series("bb")
	middle, _ := c.Series("bb.middle")
	assert.Equal(t, middle[30], mid[30])

	// first defined value sits at Warmup()-1
	assert.False(t, math.IsNaN(c.Value("m.signal", c.Warmup()-1)))
	assert.True(t, math.IsNaN(c.Value("m.signal", c.Warmup()-2)))
	assert.True(t, math.IsNaN(c.Value("missing", 10)))
}

func TestBuildCache_Errors(t *testing.T) {
	bars := generateTestData(10)
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown type", Spec{ID: "x", Type: "vwap", Period: 3}},
		{"zero period", Spec{ID: "x", Type: TypeSMA}},
		{"missing id", Spec{Type: TypeSMA, Period: 3}},
		{"dotted id", Spec{ID: "a.b", Type: TypeSMA, Period: 3}},
		{"fast above slow", Spec{ID: "m", Type: TypeMACD, Fast: 26, Slow: 12, Signal: 9}},
		{"bad source", Spec{ID: "x", Type: TypeSMA, Period: 3, Source: "typical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(bars, []Spec{tt.spec})
			assert.Error(t, err)
		})
	}

	_, err := Build(bars, []Spec{{ID: "a", Type: TypeSMA, Period: 2}, {ID: "a", Type: TypeEMA, Period: 2}})
	assert.ErrorContains(t, err, "duplicate")
}

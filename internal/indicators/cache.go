package indicators

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// Supported indicator types.
const (
	TypeSMA       = "sma"
	TypeEMA       = "ema"
	TypeRSI       = "rsi"
	TypeATR       = "atr"
	TypeBollinger = "bollinger"
	TypeMACD      = "macd"
	TypeDonchian  = "donchian"
)

// Spec describes one indicator instance of a strategy.
type Spec struct {
	ID     string
	Type   string
	Period int
	Fast   int
	Slow   int
	Signal int
	StdDev float64
	Source string
}

// Fields lists the addressable outputs of an indicator type; the first is the default.
func Fields(indicatorType string) []string {
	switch indicatorType {
	case TypeBollinger, TypeDonchian:
		return []string{"middle", "upper", "lower"}
	case TypeMACD:
		return []string{"macd", "signal", "hist"}
	case TypeSMA, TypeEMA, TypeRSI, TypeATR:
		return []string{"value"}
	}
	return nil
}

// Validate checks the spec parameters for its type.
func (s Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("indicator id is required")
	}
	if strings.Contains(s.ID, ".") {
		return fmt.Errorf("indicator id %q must not contain '.'", s.ID)
	}
	switch s.Type {
	case TypeSMA, TypeEMA, TypeRSI, TypeATR, TypeDonchian:
		if s.Period <= 0 {
			return fmt.Errorf("indicator %s: period must be positive, got %d", s.ID, s.Period)
		}
	case TypeBollinger:
		if s.Period <= 0 {
			return fmt.Errorf("indicator %s: period must be positive, got %d", s.ID, s.Period)
		}
		if s.StdDev <= 0 {
			return fmt.Errorf("indicator %s: stddev must be positive, got %v", s.ID, s.StdDev)
		}
	case TypeMACD:
		if s.Fast <= 0 || s.Slow <= 0 || s.Signal <= 0 {
			return fmt.Errorf("indicator %s: fast, slow and signal must be positive", s.ID)
		}
		if s.Fast >= s.Slow {
			return fmt.Errorf("indicator %s: fast period %d must be below slow period %d", s.ID, s.Fast, s.Slow)
		}
	default:
		return fmt.Errorf("indicator %s: unknown type %q", s.ID, s.Type)
	}
	if _, err := sourceFunc(s.Source); err != nil {
		return fmt.Errorf("indicator %s: %w", s.ID, err)
	}
	return nil
}

// Lookback is the number of bars before the first defined value.
func (s Spec) Lookback() int {
	switch s.Type {
	case TypeRSI:
		return s.Period + 1
	case TypeMACD:
		return s.Slow + s.Signal - 1
	default:
		return s.Period
	}
}

// Cache holds every indicator output of a run, computed once, indexed by bar.
type Cache struct {
	series  map[string][]float64
	warmup  int
	barsLen int
}

// Build computes all specs over bars.
func Build(bars []types.OHLCV, specs []Spec) (*Cache, error) {
	c := &Cache{series: make(map[string][]float64), barsLen: len(bars)}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.series[s.ID]; dup {
			return nil, fmt.Errorf("duplicate indicator id %q", s.ID)
		}
		src, _ := sourceFunc(s.Source)
		values := make([]float64, len(bars))
		for i, b := range bars {
			values[i] = src(b)
		}

		switch s.Type {
		case TypeSMA:
			c.put(s.ID, "value", SMASeries(values, s.Period))
		case TypeEMA:
			c.put(s.ID, "value", EMASeries(values, s.Period))
		case TypeRSI:
			c.put(s.ID, "value", RSISeries(values, s.Period))
		case TypeATR:
			c.put(s.ID, "value", ATRSeries(bars, s.Period))
		case TypeBollinger:
			b := BollingerSeries(values, s.Period, s.StdDev)
			c.putBands(s.ID, b)
		case TypeDonchian:
			c.putBands(s.ID, DonchianSeries(bars, s.Period))
		case TypeMACD:
			m := MACDSeries(values, s.Fast, s.Slow, s.Signal)
			c.put(s.ID, "macd", m.MACD)
			c.put(s.ID, "signal", m.Signal)
			c.put(s.ID, "hist", m.Hist)
		}
		if lb := s.Lookback(); lb > c.warmup {
			c.warmup = lb
		}
	}
	return c, nil
}

func (c *Cache) put(id, field string, values []float64) {
	c.series[id+"."+field] = values
	if _, ok := c.series[id]; !ok {
		c.series[id] = values
	}
}

func (c *Cache) putBands(id string, b Bands) {
	c.put(id, "middle", b.Middle)
	c.put(id, "upper", b.Upper)
	c.put(id, "lower", b.Lower)
}

// Series returns the output addressed by "id" or "id.field".
func (c *Cache) Series(ref string) ([]float64, bool) {
	s, ok := c.series[ref]
	return s, ok
}

// Value returns the output at bar i, NaN when out of range or undefined.
func (c *Cache) Value(ref string, i int) float64 {
	s, ok := c.series[ref]
	if !ok || i < 0 || i >= len(s) {
		return math.NaN()
	}
	return s[i]
}

// Warmup is the largest lookback of all cached indicators.
func (c *Cache) Warmup() int {
	return c.warmup
}

// Refs lists every addressable reference, sorted.
func (c *Cache) Refs() []string {
	refs := make([]string, 0, len(c.series))
	for k := range c.series {
		refs = append(refs, k)
	}
	sort.Strings(refs)
	return refs
}

func sourceFunc(source string) (func(types.OHLCV) float64, error) {
	switch strings.ToLower(source) {
	case "", "close":
		return func(b types.OHLCV) float64 { return b.Close }, nil
	case "open":
		return func(b types.OHLCV) float64 { return b.Open }, nil
	case "high":
		return func(b types.OHLCV) float64 { return b.High }, nil
	case "low":
		return func(b types.OHLCV) float64 { return b.Low }, nil
	case "hl2":
		return func(b types.OHLCV) float64 { return (b.High + b.Low) / 2 }, nil
	case "hlc3":
		return func(b types.OHLCV) float64 { return (b.High + b.Low + b.Close) / 3 }, nil
	case "volume":
		return func(b types.OHLCV) float64 { return b.Volume }, nil
	}
	return nil, fmt.Errorf("unknown source %q", source)
}

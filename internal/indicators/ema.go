package indicators

// EMA represents the Exponential Moving Average technical indicator.
// The first value is the SMA of the first period inputs.
type EMA struct {
	period      int
	alpha       float64
	seed        float64
	seen        int
	lastValue   float64
	initialized bool
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Update feeds one value. The bool is false until period values were seen.
func (e *EMA) Update(value float64) (float64, bool) {
	if !e.initialized {
		e.seed += value
		e.seen++
		if e.seen < e.period {
			return 0, false
		}
		e.lastValue = e.seed / float64(e.period)
		e.initialized = true
		return e.lastValue, true
	}

	e.lastValue = value*e.alpha + e.lastValue*(1-e.alpha)
	return e.lastValue, true
}

func (e *EMA) Ready() bool {
	return e.initialized
}

func (e *EMA) Value() float64 {
	return e.lastValue
}

// EMASeries returns the EMA for every index, NaN during warm-up. NaN inputs are skipped.
func EMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	ema := NewEMA(period)
	for i, v := range values {
		if v != v {
			continue
		}
		if val, ok := ema.Update(v); ok {
			out[i] = val
		}
	}
	return out
}

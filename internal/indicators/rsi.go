package indicators

// RSI represents the Relative Strength Index with Wilder smoothing
type RSI struct {
	period    int
	prev      float64
	seen      int
	avgGain   float64
	avgLoss   float64
	lastValue float64
}

// NewRSI creates a new RSI indicator
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Update feeds one close. Ready after period+1 values.
func (r *RSI) Update(value float64) (float64, bool) {
	r.seen++
	if r.seen == 1 {
		r.prev = value
		return 0, false
	}

	change := value - r.prev
	r.prev = value
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	p := float64(r.period)
	switch {
	case r.seen <= r.period:
		r.avgGain += gain
		r.avgLoss += loss
		return 0, false
	case r.seen == r.period+1:
		r.avgGain = (r.avgGain + gain) / p
		r.avgLoss = (r.avgLoss + loss) / p
	default:
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	}

	switch {
	case r.avgLoss == 0 && r.avgGain == 0:
		r.lastValue = 50
	case r.avgLoss == 0:
		r.lastValue = 100
	default:
		rs := r.avgGain / r.avgLoss
		r.lastValue = 100 - 100/(1+rs)
	}
	return r.lastValue, true
}

func (r *RSI) Value() float64 {
	return r.lastValue
}

// RSISeries returns RSI values, NaN for the first period bars.
func RSISeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	rsi := NewRSI(period)
	for i, v := range values {
		if val, ok := rsi.Update(v); ok {
			out[i] = val
		}
	}
	return out
}

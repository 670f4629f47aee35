package indicators

import "math"

// SMA represents the Simple Moving Average technical indicator
type SMA struct {
	period    int
	window    []float64
	next      int
	count     int
	sum       float64
	lastValue float64
}

// NewSMA creates a new SMA indicator
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		window: make([]float64, period),
	}
}

// Update feeds one value and returns the current average once period values were seen.
func (s *SMA) Update(value float64) (float64, bool) {
	if s.count == s.period {
		s.sum -= s.window[s.next]
	} else {
		s.count++
	}
	s.window[s.next] = value
	s.sum += value
	s.next = (s.next + 1) % s.period

	if s.count < s.period {
		return 0, false
	}
	s.lastValue = s.sum / float64(s.period)
	return s.lastValue, true
}

// Ready reports whether a full window has been seen.
func (s *SMA) Ready() bool {
	return s.count == s.period
}

func (s *SMA) Value() float64 {
	return s.lastValue
}

// SMASeries returns the SMA for every index, NaN before the first full window.
func SMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	sma := NewSMA(period)
	for i, v := range values {
		if avg, ok := sma.Update(v); ok {
			out[i] = avg
		}
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

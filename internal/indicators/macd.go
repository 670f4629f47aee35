package indicators

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD   []float64
	Signal []float64
	Hist   []float64
}

// MACDSeries computes MACD(fast, slow, signal) over values.
func MACDSeries(values []float64, fast, slow, signal int) MACDResult {
	n := len(values)
	res := MACDResult{MACD: nanSeries(n), Signal: nanSeries(n), Hist: nanSeries(n)}
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return res
	}

	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	for i := 0; i < n; i++ {
		if isNaN(fastEMA[i]) || isNaN(slowEMA[i]) {
			continue
		}
		res.MACD[i] = fastEMA[i] - slowEMA[i]
	}

	res.Signal = EMASeries(res.MACD, signal)
	for i := 0; i < n; i++ {
		if isNaN(res.MACD[i]) || isNaN(res.Signal[i]) {
			continue
		}
		res.Hist[i] = res.MACD[i] - res.Signal[i]
	}
	return res
}

func isNaN(v float64) bool {
	return v != v
}

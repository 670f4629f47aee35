package validation

import "math"

// ConsistencyScore rates how evenly a strategy performed out of sample, in [0,100]:
//
//	100 * positiveFraction * (0.50 / (1 + CV(net profit))
//	                        + 0.25 * (1 - 2*stddev(win rate))
//	                        + 0.25 / (1 + CV(profit factor)))
//
// positiveFraction is the share of folds with positive test net profit. CV is the
// population standard deviation over the absolute mean; a zero mean with nonzero
// spread scores that term 0. One fold scores 100*positiveFraction.
func ConsistencyScore(folds []Fold) float64 {
	if len(folds) == 0 {
		return 0
	}
	net := make([]float64, len(folds))
	winRate := make([]float64, len(folds))
	pf := make([]float64, len(folds))
	positive := 0
	for k, f := range folds {
		net[k] = f.TestStats.NetProfit
		winRate[k] = f.TestStats.WinRate
		pf[k] = f.TestStats.ProfitFactor
		if net[k] > 0 {
			positive++
		}
	}
	if positive == 0 {
		return 0
	}

	wr := 1 - 2*popStdDev(winRate)
	if wr < 0 {
		wr = 0
	}
	blend := 0.5*inverseCV(net) + 0.25*wr + 0.25*inverseCV(pf)
	return 100 * float64(positive) / float64(len(folds)) * blend
}

// inverseCV returns 1/(1+CV).
func inverseCV(values []float64) float64 {
	sd := popStdDev(values)
	if sd == 0 {
		return 1
	}
	mean := math.Abs(average(values))
	if mean == 0 {
		return 0
	}
	return 1 / (1 + sd/mean)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func popStdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	avg := average(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

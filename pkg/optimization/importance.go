package optimization

import (
	"fmt"
	"sort"
)

const importanceBins = 5

// ParamImportance estimates how much of the score variance each parameter
// explains, as the correlation ratio eta² of score grouped by parameter value:
// categorical ranges group by choice, numeric ranges by quantile bins. Failed
// trials are ignored. The values are normalized to sum to 1, or all 0 when no
// parameter explains anything.
func ParamImportance(ranges []ParamRange, trials []Trial) map[string]float64 {
	out := make(map[string]float64, len(ranges))
	var scored []Trial
	for _, t := range trials {
		if !t.Failed {
			scored = append(scored, t)
		}
	}
	for _, r := range ranges {
		out[r.Path] = 0
	}
	if len(scored) < 2 {
		return out
	}

	var total float64
	for _, r := range ranges {
		groups := groupTrials(r, scored)
		eta := etaSquared(groups)
		out[r.Path] = eta
		total += eta
	}
	if total > 0 {
		for p := range out {
			out[p] /= total
		}
	}
	return out
}

func groupTrials(r ParamRange, trials []Trial) [][]float64 {
	if r.Kind == KindCategorical {
		byChoice := make(map[string][]float64)
		var order []string
		for _, t := range trials {
			key := fmt.Sprint(t.Params[r.Path])
			if _, ok := byChoice[key]; !ok {
				order = append(order, key)
			}
			byChoice[key] = append(byChoice[key], t.Score)
		}
		groups := make([][]float64, 0, len(order))
		for _, k := range order {
			groups = append(groups, byChoice[k])
		}
		return groups
	}

	type pair struct{ value, score float64 }
	pairs := make([]pair, 0, len(trials))
	for _, t := range trials {
		v, _ := toFloat(t.Params[r.Path])
		pairs = append(pairs, pair{v, t.Score})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].value < pairs[j].value })

	// equal values never straddle a bin edge
	groups := make([][]float64, 0, importanceBins)
	var current []float64
	per := float64(len(pairs)) / importanceBins
	for i, p := range pairs {
		if len(current) > 0 && float64(i) >= per*float64(len(groups)+1) && p.value != pairs[i-1].value {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, p.score)
	}
	return append(groups, current)
}

func etaSquared(groups [][]float64) float64 {
	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}
	mean, _ := meanStd(all)
	var ssTotal, ssBetween float64
	for _, v := range all {
		ssTotal += (v - mean) * (v - mean)
	}
	if ssTotal == 0 {
		return 0
	}
	for _, g := range groups {
		gm, _ := meanStd(g)
		ssBetween += float64(len(g)) * (gm - mean) * (gm - mean)
	}
	return ssBetween / ssTotal
}

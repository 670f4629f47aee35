package optimization

import (
	"math"
	"math/rand"
)

// tournament picks the fittest of k random members.
func tournament(pop *population, k int, rng *rand.Rand) individual {
	best := pop.individuals[rng.Intn(pop.size())]
	for i := 1; i < k; i++ {
		candidate := pop.individuals[rng.Intn(pop.size())]
		if candidate.fitter(best) {
			best = candidate
		}
	}
	return best
}

// crossover mixes genes uniformly. With probability 1-rate the child copies p1.
func crossover(p1, p2 individual, rate float64, rng *rand.Rand) []float64 {
	child := p1.copyGenes()
	if rng.Float64() >= rate {
		return child
	}
	for i := range child {
		if rng.Intn(2) == 1 {
			child[i] = p2.genes[i]
		}
	}
	return child
}

// mutate perturbs each gene with probability rate. Numeric genes move by a
// gaussian step of width scale and stay inside [0,1]; categorical genes are redrawn.
func mutate(genes []float64, sp space, rate, scale float64, rng *rand.Rand) {
	for i := range genes {
		if rng.Float64() >= rate {
			continue
		}
		if sp[i].Kind == KindCategorical {
			genes[i] = rng.Float64()
			continue
		}
		step := rng.NormFloat64() * scale
		if m := sp[i].levels(); m > 0 && math.Abs(step) < 1/float64(m) {
			// move at least one level
			step = math.Copysign(1/float64(m), step)
		}
		genes[i] = reflect01(genes[i] + step)
	}
}

// reflect01 folds x back into [0,1].
func reflect01(x float64) float64 {
	for x < 0 || x > 1 {
		if x < 0 {
			x = -x
		}
		if x > 1 {
			x = 2 - x
		}
	}
	return x
}

package optimization

import "math/rand"

// latinHypercube draws n points in [0,1]^d with exactly one point per stratum
// and dimension.
func latinHypercube(d, n int, rng *rand.Rand) [][]float64 {
	points := make([][]float64, n)
	for k := range points {
		points[k] = make([]float64, d)
	}
	for dim := 0; dim < d; dim++ {
		perm := rng.Perm(n)
		for k := 0; k < n; k++ {
			points[k][dim] = (float64(perm[k]) + rng.Float64()) / float64(n)
		}
	}
	return points
}

func randomPoint(d int, rng *rand.Rand) []float64 {
	u := make([]float64, d)
	for i := range u {
		u[i] = rng.Float64()
	}
	return u
}

// seenKeys indexes the assignments already tried.
func seenKeys(history []Trial) map[string]bool {
	seen := make(map[string]bool, len(history))
	for _, t := range history {
		seen[t.Params.Key()] = true
	}
	return seen
}

// randomProposer samples batches by latin hypercube.
type randomProposer struct {
	space space
	batch int
	rng   *rand.Rand
}

func (p *randomProposer) propose(history []Trial, n int) []Assignment {
	points := latinHypercube(len(p.space), p.batch, p.rng)
	out := make([]Assignment, 0, len(points))
	for _, u := range points {
		out = append(out, p.space.assignment(u))
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// hybridProposer explores with the genetic proposer until switchAt trials exist,
// then refines with the bayesian proposer over the whole history.
type hybridProposer struct {
	genetic  *geneticProposer
	bayesian *bayesianProposer
	switchAt int
}

func (p *hybridProposer) propose(history []Trial, n int) []Assignment {
	if left := p.switchAt - len(history); left > 0 {
		if n > left {
			n = left
		}
		return p.genetic.propose(history, n)
	}
	return p.bayesian.propose(history, n)
}

package optimization

import (
	"math"
	"math/rand"
	"sort"
)

const (
	gpLengthScale   = 0.25
	gpNoise         = 1e-4
	gpMaxPoints     = 200
	eiExploration   = 0.01
	localCandidates = 64
	localSpread     = 0.1
)

// bayesianProposer fits a gaussian process to the scored history and proposes
// the candidate with the highest expected improvement. Until InitialRandom trials
// exist it serves a latin hypercube seed design.
type bayesianProposer struct {
	space   space
	cfg     OptimizationConfig
	rng     *rand.Rand
	initial []Assignment
	served  int
}

func newBayesianProposer(sp space, cfg OptimizationConfig, rng *rand.Rand) *bayesianProposer {
	return &bayesianProposer{space: sp, cfg: cfg, rng: rng}
}

func (b *bayesianProposer) propose(history []Trial, n int) []Assignment {
	obs := observations(history)
	if len(obs) < b.cfg.InitialRandom {
		if b.initial == nil {
			for _, u := range latinHypercube(len(b.space), b.cfg.InitialRandom, b.rng) {
				b.initial = append(b.initial, b.space.assignment(u))
			}
		}
		if b.served < len(b.initial) {
			end := b.served + n
			if end > len(b.initial) {
				end = len(b.initial)
			}
			out := b.initial[b.served:end]
			b.served = end
			return out
		}
	}
	if len(obs) < 2 {
		return []Assignment{b.space.assignment(randomPoint(len(b.space), b.rng))}
	}
	return []Assignment{b.next(history, obs)}
}

// observations returns non-failed trials, best first, capped for the GP.
// Infeasible trials count with the lowest feasible score seen.
func observations(history []Trial) []Trial {
	obs := make([]Trial, 0, len(history))
	floor := math.Inf(1)
	for _, t := range history {
		if t.Failed {
			continue
		}
		obs = append(obs, t)
		if t.Feasible && t.Score < floor {
			floor = t.Score
		}
	}
	if math.IsInf(floor, 1) {
		floor = 0
	}
	for i := range obs {
		if !obs[i].Feasible && obs[i].Score > floor {
			obs[i].Score = floor
		}
	}
	sort.SliceStable(obs, func(i, j int) bool { return better(obs[i], obs[j]) })
	if len(obs) > gpMaxPoints {
		obs = obs[:gpMaxPoints]
	}
	return obs
}

func (b *bayesianProposer) next(history, obs []Trial) Assignment {
	x := make([][]float64, len(obs))
	y := make([]float64, len(obs))
	for i, t := range obs {
		x[i] = b.space.unit(t.Params)
		y[i] = t.Score
	}
	mean, sd := meanStd(y)
	if sd == 0 {
		sd = 1
	}
	for i := range y {
		y[i] = (y[i] - mean) / sd
	}
	best := y[0]
	for _, v := range y {
		if v > best {
			best = v
		}
	}

	gp, err := fitGP(x, y, gpLengthScale, gpNoise)
	seen := seenKeys(history)
	if err != nil {
		return b.fallback(seen)
	}

	var (
		bestEI  = -1.0
		bestPos Assignment
	)
	consider := func(u []float64) {
		a := b.space.assignment(u)
		if seen[a.Key()] {
			return
		}
		mu, sigma := gp.predict(b.space.unit(a))
		if ei := expectedImprovement(mu, sigma, best, eiExploration); ei > bestEI {
			bestEI, bestPos = ei, a
		}
	}
	for i := 0; i < b.cfg.Candidates; i++ {
		consider(randomPoint(len(b.space), b.rng))
	}
	top := len(x)
	if top > 3 {
		top = 3
	}
	for i := 0; i < localCandidates; i++ {
		center := x[i%top]
		u := make([]float64, len(center))
		for d := range u {
			u[d] = reflect01(center[d] + b.rng.NormFloat64()*localSpread)
		}
		consider(u)
	}

	if bestPos == nil {
		return b.fallback(seen)
	}
	return bestPos
}

func (b *bayesianProposer) fallback(seen map[string]bool) Assignment {
	a := b.space.assignment(randomPoint(len(b.space), b.rng))
	for attempt := 0; seen[a.Key()] && attempt < maxDuplicateRetries; attempt++ {
		a = b.space.assignment(randomPoint(len(b.space), b.rng))
	}
	return a
}

// gaussianProcess is a zero-mean GP with an RBF kernel.
type gaussianProcess struct {
	x           [][]float64
	chol        [][]float64
	alpha       []float64
	lengthScale float64
}

func rbf(a, b []float64, lengthScale float64) float64 {
	var d2 float64
	for i := range a {
		diff := a[i] - b[i]
		d2 += diff * diff
	}
	return math.Exp(-d2 / (2 * lengthScale * lengthScale))
}

func fitGP(x [][]float64, y []float64, lengthScale, noise float64) (*gaussianProcess, error) {
	n := len(x)
	k := make([][]float64, n)
	for i := range k {
		k[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			v := rbf(x[i], x[j], lengthScale)
			k[i][j], k[j][i] = v, v
		}
		k[i][i] += noise
	}
	l, err := cholesky(k)
	if err != nil {
		return nil, err
	}
	alpha := backSubstitute(l, forwardSubstitute(l, y))
	return &gaussianProcess{x: x, chol: l, alpha: alpha, lengthScale: lengthScale}, nil
}

func (g *gaussianProcess) predict(u []float64) (float64, float64) {
	ks := make([]float64, len(g.x))
	var mu float64
	for i, xi := range g.x {
		ks[i] = rbf(u, xi, g.lengthScale)
		mu += ks[i] * g.alpha[i]
	}
	v := forwardSubstitute(g.chol, ks)
	variance := 1.0
	for _, vi := range v {
		variance -= vi * vi
	}
	if variance < 1e-12 {
		variance = 1e-12
	}
	return mu, math.Sqrt(variance)
}

type notPositiveDefinite struct{}

func (notPositiveDefinite) Error() string { return "matrix is not positive definite" }

// cholesky returns lower-triangular L with L*L^T = a.
func cholesky(a [][]float64) ([][]float64, error) {
	n := len(a)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, notPositiveDefinite{}
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

// forwardSubstitute solves L*x = b.
func forwardSubstitute(l [][]float64, b []float64) []float64 {
	x := make([]float64, len(b))
	for i := range b {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}

// backSubstitute solves L^T*x = b.
func backSubstitute(l [][]float64, b []float64) []float64 {
	n := len(b)
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for k := i + 1; k < n; k++ {
			sum -= l[k][i] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}

func expectedImprovement(mu, sigma, best, xi float64) float64 {
	if sigma <= 0 {
		return math.Max(0, mu-best-xi)
	}
	imp := mu - best - xi
	z := imp / sigma
	return imp*normCDF(z) + sigma*normPDF(z)
}

func normCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

func normPDF(z float64) float64 {
	return math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}

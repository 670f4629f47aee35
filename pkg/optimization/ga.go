package optimization

import "math/rand"

const maxDuplicateRetries = 20

// geneticProposer evolves generations of PopulationSize assignments. The first
// generation is a latin hypercube so every stratum of every range is visited.
// Later generations breed from the best PopulationSize trials of the whole history:
// EliteSize mutated copies of the elite first, then tournament-selected parents
// with uniform crossover and bounded mutation. Children already tried are
// re-mutated before being accepted.
type geneticProposer struct {
	space space
	cfg   OptimizationConfig
	rng   *rand.Rand
}

func newGeneticProposer(sp space, cfg OptimizationConfig, rng *rand.Rand) *geneticProposer {
	return &geneticProposer{space: sp, cfg: cfg, rng: rng}
}

func (g *geneticProposer) propose(history []Trial, n int) []Assignment {
	size := g.cfg.PopulationSize
	var out []Assignment
	if len(history) == 0 {
		for _, u := range latinHypercube(len(g.space), size, g.rng) {
			out = append(out, g.space.assignment(u))
		}
	} else {
		out = g.nextGeneration(history, size)
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (g *geneticProposer) nextGeneration(history []Trial, size int) []Assignment {
	pop := populationFrom(g.space, history, size)
	seen := seenKeys(history)
	out := make([]Assignment, 0, size)

	for _, e := range pop.elite(g.cfg.EliteSize) {
		if len(out) == size {
			break
		}
		out = append(out, g.unique(e.copyGenes(), seen, 1))
	}
	for len(out) < size {
		p1 := tournament(pop, g.cfg.TournamentSize, g.rng)
		p2 := tournament(pop, g.cfg.TournamentSize, g.rng)
		child := crossover(p1, p2, g.cfg.CrossoverRate, g.rng)
		mutate(child, g.space, g.cfg.MutationRate, 0.1, g.rng)
		out = append(out, g.unique(child, seen, g.cfg.MutationRate))
	}
	return out
}

// unique mutates genes until they decode to an untried assignment, records it in
// seen and returns it. A finite space that is exhausted yields a repeat.
func (g *geneticProposer) unique(genes []float64, seen map[string]bool, rate float64) Assignment {
	a := g.space.assignment(genes)
	for attempt := 0; seen[a.Key()] && attempt < maxDuplicateRetries; attempt++ {
		scale := 0.1 * float64(attempt+1)
		mutate(genes, g.space, rate+float64(attempt)/maxDuplicateRetries, scale, g.rng)
		a = g.space.assignment(genes)
	}
	if seen[a.Key()] {
		if total := g.space.size(); total < 0 || len(seen) < total {
			for attempt := 0; seen[a.Key()] && attempt < maxDuplicateRetries; attempt++ {
				a = g.space.assignment(randomPoint(len(g.space), g.rng))
			}
		}
	}
	seen[a.Key()] = true
	return a
}

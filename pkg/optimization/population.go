package optimization

import "sort"

// population is the parent pool of the genetic proposer.
type population struct {
	individuals []individual
}

// populationFrom keeps the best size trials of the whole history, so the best
// assignments found so far always stay eligible as parents.
func populationFrom(sp space, history []Trial, size int) *population {
	p := &population{individuals: make([]individual, 0, len(history))}
	for _, t := range history {
		p.individuals = append(p.individuals, newIndividual(sp, t))
	}
	p.sortByFitness()
	if len(p.individuals) > size {
		p.individuals = p.individuals[:size]
	}
	return p
}

func (p *population) size() int {
	return len(p.individuals)
}

// sortByFitness sorts best first
func (p *population) sortByFitness() {
	sort.SliceStable(p.individuals, func(i, j int) bool {
		return p.individuals[i].fitter(p.individuals[j])
	})
}

// elite returns the top n individuals. The population must be sorted.
func (p *population) elite(n int) []individual {
	if n > len(p.individuals) {
		n = len(p.individuals)
	}
	return p.individuals[:n]
}

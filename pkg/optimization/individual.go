package optimization

// individual is a trial placed in the unit cube of the search space.
type individual struct {
	genes []float64
	trial Trial
}

func newIndividual(sp space, t Trial) individual {
	return individual{genes: sp.unit(t.Params), trial: t}
}

// fitter reports whether a ranks above b.
func (a individual) fitter(b individual) bool {
	return better(a.trial, b.trial)
}

func (a individual) copyGenes() []float64 {
	return append([]float64(nil), a.genes...)
}

package validation

import (
	"math"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
)

// Validate checks the fold configuration.
func (c WalkForwardConfig) Validate() error {
	if c.NFolds < 1 || c.NFolds > MaxFolds {
		return errs.NewConfigurationError("walkforward", "n_folds must be in [1,%d], got %d", MaxFolds, c.NFolds)
	}
	if c.TrainPct <= 0 || c.TrainPct >= 100 || math.IsNaN(c.TrainPct) {
		return errs.NewConfigurationError("walkforward", "train_pct must be in (0,100), got %v", c.TrainPct)
	}
	switch c.Mode {
	case ModeAnchored, ModeRolling:
	default:
		return errs.NewConfigurationError("walkforward", "unknown mode %q", c.Mode)
	}
	if c.Workers < 0 {
		return errs.NewConfigurationError("walkforward", "workers must not be negative")
	}
	return nil
}

// Partition splits n bars into folds. The last round(n*(100-TrainPct)/100) bars
// form the test region, cut into NFolds consecutive chunks whose sizes differ by at
// most one (later folds take the extra bars). Anchored folds train on everything
// before their test chunk; rolling folds train on the n-testTotal bars right before it.
func Partition(n int, cfg WalkForwardConfig) ([]Window, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	testTotal := int(math.Round(float64(n) * (100 - cfg.TrainPct) / 100))
	trainLen := n - testTotal
	if testTotal < cfg.NFolds || trainLen < 1 {
		return nil, errs.NewConfigurationError("walkforward",
			"%d bars cannot hold %d folds at train_pct %v", n, cfg.NFolds, cfg.TrainPct)
	}

	base, extra := testTotal/cfg.NFolds, testTotal%cfg.NFolds
	windows := make([]Window, cfg.NFolds)
	start := trainLen
	for k := range windows {
		size := base
		if k >= cfg.NFolds-extra {
			size++
		}
		train := Range{Start: 0, End: start}
		if cfg.Mode == ModeRolling {
			train.Start = start - trainLen
		}
		windows[k] = Window{Index: k, Train: train, Test: Range{Start: start, End: start + size}}
		start += size
	}
	return windows, nil
}

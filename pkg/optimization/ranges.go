package optimization

import (
	"fmt"
	"math"
	"sort"
	"strings"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/strategy"
)

// Kind is the value domain of a ParamRange.
type Kind string

const (
	KindInt         Kind = "int"
	KindFloat       Kind = "float"
	KindCategorical Kind = "categorical"
)

// ParamRange is one searchable dimension: a definition path and its domain.
// Int ranges step by Step (default 1). Float ranges are continuous when Step is 0.
type ParamRange struct {
	Path    string        `json:"path" yaml:"path"`
	Kind    Kind          `json:"kind" yaml:"kind"`
	Min     float64       `json:"min,omitempty" yaml:"min,omitempty"`
	Max     float64       `json:"max,omitempty" yaml:"max,omitempty"`
	Step    float64       `json:"step,omitempty" yaml:"step,omitempty"`
	Choices []interface{} `json:"choices,omitempty" yaml:"choices,omitempty"`
	Label   string        `json:"label,omitempty" yaml:"label,omitempty"`
}

// Assignment maps parameter paths to concrete values.
type Assignment map[string]interface{}

// Key is a stable identity used for duplicate detection.
func (a Assignment) Key() string {
	paths := make([]string, 0, len(a))
	for p := range a {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s=%v;", p, a[p])
	}
	return b.String()
}

// Name returns the label or the path.
func (r ParamRange) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Path
}

// Validate checks the range itself and that its path exists in template.
func (r ParamRange) Validate(template strategy.Definition) error {
	if r.Path == "" {
		return errs.NewConfigurationError("optimization", "param range without path")
	}
	switch r.Kind {
	case KindInt, KindFloat:
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
			return errs.NewConfigurationError("optimization", "range %s: min %v > max %v", r.Path, r.Min, r.Max)
		}
		if r.Step < 0 {
			return errs.NewConfigurationError("optimization", "range %s: negative step", r.Path)
		}
		if r.Kind == KindInt && (r.Min != math.Trunc(r.Min) || r.Max != math.Trunc(r.Max) || r.Step != math.Trunc(r.Step)) {
			return errs.NewConfigurationError("optimization", "range %s: int bounds and step must be whole numbers", r.Path)
		}
	case KindCategorical:
		if len(r.Choices) == 0 {
			return errs.NewConfigurationError("optimization", "range %s: no choices", r.Path)
		}
	default:
		return errs.NewConfigurationError("optimization", "range %s: unknown kind %q", r.Path, r.Kind)
	}
	if _, err := strategy.ResolvePath(template, r.Path); err != nil {
		return errs.NewConfigurationError("optimization", "range %s: %v", r.Path, err)
	}
	return nil
}

func (r ParamRange) step() float64 {
	if r.Kind == KindInt && r.Step == 0 {
		return 1
	}
	return r.Step
}

// levels is the number of distinct values, 0 for a continuous range.
func (r ParamRange) levels() int {
	if r.Kind == KindCategorical {
		return len(r.Choices)
	}
	s := r.step()
	if s == 0 {
		if r.Max == r.Min {
			return 1
		}
		return 0
	}
	return int(math.Floor((r.Max-r.Min)/s+1e-9)) + 1
}

// fromUnit maps u in [0,1] onto the range. Discrete ranges split [0,1] into equal bins.
func (r ParamRange) fromUnit(u float64) interface{} {
	u = math.Max(0, math.Min(1, u))
	m := r.levels()
	if m == 0 {
		return r.Min + u*(r.Max-r.Min)
	}
	idx := int(u * float64(m))
	if idx >= m {
		idx = m - 1
	}
	switch r.Kind {
	case KindCategorical:
		return r.Choices[idx]
	case KindInt:
		return int(r.Min) + idx*int(r.step())
	}
	return roundTo(r.Min+float64(idx)*r.step(), r.step())
}

// toUnit maps a value back to the center of its bin.
func (r ParamRange) toUnit(v interface{}) float64 {
	m := r.levels()
	if r.Kind == KindCategorical {
		key := fmt.Sprint(v)
		for i, c := range r.Choices {
			if fmt.Sprint(c) == key {
				return (float64(i) + 0.5) / float64(m)
			}
		}
		return 0.5
	}
	f, ok := toFloat(v)
	if !ok {
		return 0.5
	}
	if m == 0 {
		if r.Max == r.Min {
			return 0.5
		}
		return (f - r.Min) / (r.Max - r.Min)
	}
	idx := math.Round((f - r.Min) / r.step())
	idx = math.Max(0, math.Min(float64(m-1), idx))
	return (idx + 0.5) / float64(m)
}

func roundTo(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	// trims float noise like 0.30000000000000004
	digits := math.Max(0, math.Ceil(-math.Log10(step))+2)
	p := math.Pow(10, digits)
	return math.Round(v*p) / p
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}

// space is the ordered set of ranges being searched.
type space []ParamRange

func (s space) assignment(unit []float64) Assignment {
	a := make(Assignment, len(s))
	for d, r := range s {
		a[r.Path] = r.fromUnit(unit[d])
	}
	return a
}

func (s space) unit(a Assignment) []float64 {
	u := make([]float64, len(s))
	for d, r := range s {
		u[d] = r.toUnit(a[r.Path])
	}
	return u
}

// size is the number of distinct assignments, or -1 when any range is continuous.
func (s space) size() int {
	n := 1
	for _, r := range s {
		m := r.levels()
		if m == 0 {
			return -1
		}
		if n > math.MaxInt32/m {
			return -1
		}
		n *= m
	}
	return n
}

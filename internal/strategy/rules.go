package strategy

import (
	"fmt"
	"math"
	"strings"

	"github.com/ducminhle1904/strategy-lab/internal/indicators"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

type comparator int

const (
	opGT comparator = iota
	opLT
	opGE
	opLE
	opEQ
	opCrossAbove
	opCrossBelow
)

var comparators = map[string]comparator{
	">":             opGT,
	"<":             opLT,
	">=":            opGE,
	"<=":            opLE,
	"==":            opEQ,
	"crosses_above": opCrossAbove,
	"crosses_below": opCrossBelow,
}

var priceFields = map[string]func(types.OHLCV) float64{
	"open":   func(b types.OHLCV) float64 { return b.Open },
	"high":   func(b types.OHLCV) float64 { return b.High },
	"low":    func(b types.OHLCV) float64 { return b.Low },
	"close":  func(b types.OHLCV) float64 { return b.Close },
	"volume": func(b types.OHLCV) float64 { return b.Volume },
	"hl2":    func(b types.OHLCV) float64 { return (b.High + b.Low) / 2 },
	"hlc3":   func(b types.OHLCV) float64 { return (b.High + b.Low + b.Close) / 3 },
}

func validateRule(r Rule, known map[string]string) error {
	if _, ok := comparators[strings.ToLower(r.Op)]; !ok {
		return fmt.Errorf("unknown operator %q", r.Op)
	}
	switch strings.ToLower(r.Join) {
	case "", "and", "or":
	default:
		return fmt.Errorf("join must be and or or, got %q", r.Join)
	}
	if err := validateOperand(r.Left, known); err != nil {
		return fmt.Errorf("left: %w", err)
	}
	if err := validateOperand(r.Right, known); err != nil {
		return fmt.Errorf("right: %w", err)
	}
	return nil
}

func validateOperand(o Operand, known map[string]string) error {
	if o.Shift < 0 {
		return fmt.Errorf("shift must be non-negative, got %d", o.Shift)
	}
	switch strings.ToLower(o.Kind) {
	case OperandValue:
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return fmt.Errorf("value must be finite")
		}
		return nil
	case OperandPrice:
		if _, ok := priceFields[strings.ToLower(o.Ref)]; !ok {
			return fmt.Errorf("unknown price field %q", o.Ref)
		}
		return nil
	case OperandIndicator:
		id, field, _ := strings.Cut(o.Ref, ".")
		typ, ok := known[id]
		if !ok {
			return fmt.Errorf("unknown indicator %q", id)
		}
		if field == "" {
			return nil
		}
		for _, f := range indicators.Fields(typ) {
			if f == field {
				return nil
			}
		}
		return fmt.Errorf("indicator %q (%s) has no field %q", id, typ, field)
	}
	return fmt.Errorf("unknown operand kind %q", o.Kind)
}

// operand is the compiled form of Operand: either a bound series or a constant.
type operand struct {
	constant bool
	value    float64
	series   []float64
	shift    int
}

func (o operand) at(i int) float64 {
	if o.constant {
		return o.value
	}
	j := i - o.shift
	if j < 0 || j >= len(o.series) {
		return math.NaN()
	}
	return o.series[j]
}

type condition struct {
	op          comparator
	left, right operand
}

func (c condition) eval(i int) bool {
	l, r := c.left.at(i), c.right.at(i)
	if math.IsNaN(l) || math.IsNaN(r) {
		return false
	}
	switch c.op {
	case opGT:
		return l > r
	case opLT:
		return l < r
	case opGE:
		return l >= r
	case opLE:
		return l <= r
	case opEQ:
		return math.Abs(l-r) <= 1e-9*math.Max(1, math.Max(math.Abs(l), math.Abs(r)))
	case opCrossAbove, opCrossBelow:
		pl, pr := c.left.at(i-1), c.right.at(i-1)
		if math.IsNaN(pl) || math.IsNaN(pr) {
			return false
		}
		if c.op == opCrossAbove {
			return pl <= pr && l > r
		}
		return pl >= pr && l < r
	}
	return false
}

// ruleSet is an OR of AND-groups.
type ruleSet struct {
	groups [][]condition
}

func (rs ruleSet) empty() bool {
	return len(rs.groups) == 0
}

func (rs ruleSet) eval(i int) bool {
	for _, g := range rs.groups {
		ok := true
		for _, c := range g {
			if !c.eval(i) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// binder resolves operands against one run's bars and indicator cache.
type binder struct {
	cache  *indicators.Cache
	prices map[string][]float64
	bars   []types.OHLCV
}

func newBinder(bars []types.OHLCV, cache *indicators.Cache) *binder {
	return &binder{cache: cache, prices: make(map[string][]float64), bars: bars}
}

func (b *binder) operand(o Operand) (operand, error) {
	switch strings.ToLower(o.Kind) {
	case OperandValue:
		return operand{constant: true, value: o.Value}, nil
	case OperandPrice:
		field := strings.ToLower(o.Ref)
		series, ok := b.prices[field]
		if !ok {
			fn := priceFields[field]
			series = make([]float64, len(b.bars))
			for i, bar := range b.bars {
				series[i] = fn(bar)
			}
			b.prices[field] = series
		}
		return operand{series: series, shift: o.Shift}, nil
	case OperandIndicator:
		series, ok := b.cache.Series(o.Ref)
		if !ok {
			return operand{}, fmt.Errorf("unknown indicator reference %q", o.Ref)
		}
		return operand{series: series, shift: o.Shift}, nil
	}
	return operand{}, fmt.Errorf("unknown operand kind %q", o.Kind)
}

// compileRules groups the rows matching keep into an OR of AND-groups.
func (b *binder) compileRules(rows []Rule, keep func(Rule) bool) (ruleSet, error) {
	var rs ruleSet
	var group []condition
	for _, r := range rows {
		if !keep(r) {
			continue
		}
		left, err := b.operand(r.Left)
		if err != nil {
			return ruleSet{}, err
		}
		right, err := b.operand(r.Right)
		if err != nil {
			return ruleSet{}, err
		}
		if strings.EqualFold(r.Join, "or") && len(group) > 0 {
			rs.groups = append(rs.groups, group)
			group = nil
		}
		group = append(group, condition{op: comparators[strings.ToLower(r.Op)], left: left, right: right})
	}
	if len(group) > 0 {
		rs.groups = append(rs.groups, group)
	}
	return rs, nil
}

package strategy

import (
	"strings"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/internal/indicators"
	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// Definition is a declarative trading strategy. The core never mutates it;
// optimization works on copies produced by ApplyParams. JSON names double as
// parameter paths, so fields are never omitted.
type Definition struct {
	Name       string         `json:"name" yaml:"name"`
	Symbol     string         `json:"symbol" yaml:"symbol"`
	Direction  string         `json:"direction" yaml:"direction"`
	Indicators []IndicatorDef `json:"indicators" yaml:"indicators"`
	EntryRules []Rule         `json:"entry_rules" yaml:"entry_rules"`
	ExitRules  []Rule         `json:"exit_rules" yaml:"exit_rules"`
	Risk       RiskConfig     `json:"risk" yaml:"risk"`
	Filters    FilterConfig   `json:"filters" yaml:"filters"`
	SignalGate *SignalGate    `json:"signal_gate" yaml:"signal_gate"`
	MLFilter   *MLFilter      `json:"ml_filter" yaml:"ml_filter"`
}

// IndicatorDef declares one indicator; see indicators.Spec for the meaning of each field.
type IndicatorDef struct {
	ID     string  `json:"id" yaml:"id"`
	Type   string  `json:"type" yaml:"type"`
	Period int     `json:"period" yaml:"period"`
	Fast   int     `json:"fast" yaml:"fast"`
	Slow   int     `json:"slow" yaml:"slow"`
	Signal int     `json:"signal" yaml:"signal"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
	Source string  `json:"source" yaml:"source"`
}

func (d IndicatorDef) spec() indicators.Spec {
	return indicators.Spec{
		ID: d.ID, Type: strings.ToLower(d.Type), Period: d.Period,
		Fast: d.Fast, Slow: d.Slow, Signal: d.Signal, StdDev: d.StdDev, Source: d.Source,
	}
}

// Operand kinds.
const (
	OperandIndicator = "indicator"
	OperandPrice     = "price"
	OperandValue     = "value"
)

// Operand is one side of a rule comparison. Shift reads the value that many bars back.
type Operand struct {
	Kind  string  `json:"kind" yaml:"kind"`
	Ref   string  `json:"ref" yaml:"ref"`
	Value float64 `json:"value" yaml:"value"`
	Shift int     `json:"shift" yaml:"shift"`
}

// Rule is one comparison row. Rows are AND-ed; a row with Join "or" starts a new OR group.
// Entry rows name the side they open; exit rows name the side they close (empty closes both).
type Rule struct {
	Left      Operand `json:"left" yaml:"left"`
	Op        string  `json:"op" yaml:"op"`
	Right     Operand `json:"right" yaml:"right"`
	Direction string  `json:"direction" yaml:"direction"`
	Join      string  `json:"join" yaml:"join"`
}

// Sizing modes.
const (
	SizingFixed         = "fixed"
	SizingRiskPercent   = "risk_percent"
	SizingEquityPercent = "equity_percent"
)

// Stop-loss and take-profit modes.
const (
	LevelNone    = "none"
	LevelFixed   = "fixed"
	LevelPercent = "percent"
	LevelATR     = "atr"
	LevelSignal  = "signal"
	LevelRR      = "rr"
)

type SizingConfig struct {
	Mode    string  `json:"mode" yaml:"mode"`
	Value   float64 `json:"value" yaml:"value"`
	LotStep float64 `json:"lot_step" yaml:"lot_step"`
	MinSize float64 `json:"min_size" yaml:"min_size"`
	MaxSize float64 `json:"max_size" yaml:"max_size"`
}

// LevelConfig places a stop-loss or take-profit. Fixed values are in points,
// percent values in percent of entry price, atr and rr values are multiples.
type LevelConfig struct {
	Mode  string  `json:"mode" yaml:"mode"`
	Value float64 `json:"value" yaml:"value"`
}

type RiskConfig struct {
	Sizing       SizingConfig `json:"sizing" yaml:"sizing"`
	StopLoss     LevelConfig  `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit   LevelConfig  `json:"take_profit" yaml:"take_profit"`
	ATRPeriod    int          `json:"atr_period" yaml:"atr_period"`
	MaxPositions int          `json:"max_positions" yaml:"max_positions"`
}

// FilterConfig restricts when entries may fire. Hours are UTC; a start after the
// end wraps midnight; equal hours disable the session filter.
type FilterConfig struct {
	SessionStartHour int     `json:"session_start_hour" yaml:"session_start_hour"`
	SessionEndHour   int     `json:"session_end_hour" yaml:"session_end_hour"`
	Weekdays         []int   `json:"weekdays" yaml:"weekdays"`
	MinATR           float64 `json:"min_atr" yaml:"min_atr"`
	MaxATR           float64 `json:"max_atr" yaml:"max_atr"`
}

// Gate modes.
const (
	GateConfirm = "confirm"
	GateOnly    = "only"
)

// SignalGate attaches a breakout evaluator. In confirm mode the rules and the signal
// must agree on the side; in only mode the signal alone opens trades.
type SignalGate struct {
	Engine         string         `json:"engine" yaml:"engine"`
	Mode           string         `json:"mode" yaml:"mode"`
	ExitOnReversal bool           `json:"exit_on_reversal" yaml:"exit_on_reversal"`
	MinConfidence  float64        `json:"min_confidence" yaml:"min_confidence"`
	ADR10Override  float64        `json:"adr10_override" yaml:"adr10_override"`
	Config         signals.Config `json:"config" yaml:"config"`
}

// MLFilter gates entries on a precomputed probability-of-up series aligned to bars.
// Longs need p >= Threshold, shorts need p <= 1-Threshold.
type MLFilter struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// WithDefaults fills zero risk fields.
func (d Definition) WithDefaults() Definition {
	if d.Direction == "" {
		d.Direction = "both"
	}
	if d.Risk.Sizing.Mode == "" {
		d.Risk.Sizing.Mode = SizingFixed
	}
	if d.Risk.Sizing.Mode == SizingFixed && d.Risk.Sizing.Value == 0 {
		d.Risk.Sizing.Value = 1
	}
	if d.Risk.StopLoss.Mode == "" {
		d.Risk.StopLoss.Mode = LevelNone
	}
	if d.Risk.TakeProfit.Mode == "" {
		d.Risk.TakeProfit.Mode = LevelNone
	}
	if d.Risk.ATRPeriod == 0 {
		d.Risk.ATRPeriod = 14
	}
	if d.Risk.MaxPositions == 0 {
		d.Risk.MaxPositions = 1
	}
	if d.SignalGate != nil && d.SignalGate.Mode == "" {
		gate := *d.SignalGate
		gate.Mode = GateConfirm
		d.SignalGate = &gate
	}
	return d
}

// Validate checks everything that can be checked without bars.
func (d Definition) Validate() error {
	d = d.WithDefaults()

	if _, err := d.allowedDirections(); err != nil {
		return err
	}

	known := make(map[string]string, len(d.Indicators))
	for _, ind := range d.Indicators {
		if err := ind.spec().Validate(); err != nil {
			return errs.NewConfigurationError("strategy", "%v", err)
		}
		if _, dup := known[ind.ID]; dup {
			return errs.NewConfigurationError("strategy", "duplicate indicator id %q", ind.ID)
		}
		known[ind.ID] = strings.ToLower(ind.Type)
	}

	for i, r := range d.EntryRules {
		if err := validateRule(r, known); err != nil {
			return errs.NewConfigurationError("strategy", "entry_rules[%d]: %v", i, err)
		}
		if dir, err := types.ParseDirection(r.Direction); err != nil || dir == types.Flat {
			return errs.NewConfigurationError("strategy", "entry_rules[%d]: direction must be long or short, got %q", i, r.Direction)
		}
	}
	for i, r := range d.ExitRules {
		if err := validateRule(r, known); err != nil {
			return errs.NewConfigurationError("strategy", "exit_rules[%d]: %v", i, err)
		}
		if _, err := types.ParseDirection(r.Direction); err != nil {
			return errs.NewConfigurationError("strategy", "exit_rules[%d]: %v", i, err)
		}
	}

	if err := d.Risk.validate(d.SignalGate != nil); err != nil {
		return err
	}
	if err := d.Filters.validate(); err != nil {
		return err
	}

	if g := d.SignalGate; g != nil {
		if _, err := signals.New(g.Engine, d.Symbol, g.Config); err != nil {
			return err
		}
		if g.Mode != GateConfirm && g.Mode != GateOnly {
			return errs.NewConfigurationError("strategy", "signal_gate mode must be confirm or only, got %q", g.Mode)
		}
		if g.MinConfidence < 0 || g.MinConfidence > 1 {
			return errs.NewConfigurationError("strategy", "signal_gate min_confidence must be within [0,1]")
		}
	} else if len(d.EntryRules) == 0 {
		return errs.NewConfigurationError("strategy", "strategy %q has no entry rules and no signal gate", d.Name)
	}

	if m := d.MLFilter; m != nil && (m.Threshold < 0 || m.Threshold > 1) {
		return errs.NewConfigurationError("strategy", "ml_filter threshold must be within [0,1], got %v", m.Threshold)
	}
	return nil
}

func (d Definition) allowedDirections() ([]types.Direction, error) {
	switch strings.ToLower(d.Direction) {
	case "", "both":
		return []types.Direction{types.Long, types.Short}, nil
	case "long_only", "long":
		return []types.Direction{types.Long}, nil
	case "short_only", "short":
		return []types.Direction{types.Short}, nil
	}
	return nil, errs.NewConfigurationError("strategy", "direction must be both, long_only or short_only, got %q", d.Direction)
}

func (r RiskConfig) validate(hasGate bool) error {
	switch r.Sizing.Mode {
	case SizingFixed, SizingRiskPercent, SizingEquityPercent:
	default:
		return errs.NewConfigurationError("strategy", "unknown sizing mode %q", r.Sizing.Mode)
	}
	if r.Sizing.Value <= 0 {
		return errs.NewConfigurationError("strategy", "sizing value must be positive, got %v", r.Sizing.Value)
	}
	if r.Sizing.Mode == SizingRiskPercent && r.StopLoss.Mode == LevelNone {
		return errs.NewConfigurationError("strategy", "risk_percent sizing requires a stop-loss")
	}
	if r.Sizing.LotStep < 0 || r.Sizing.MinSize < 0 || r.Sizing.MaxSize < 0 {
		return errs.NewConfigurationError("strategy", "lot_step, min_size and max_size must be non-negative")
	}

	switch r.StopLoss.Mode {
	case LevelNone:
	case LevelFixed, LevelPercent, LevelATR:
		if r.StopLoss.Value <= 0 {
			return errs.NewConfigurationError("strategy", "stop_loss value must be positive for mode %q", r.StopLoss.Mode)
		}
	case LevelSignal:
		if !hasGate {
			return errs.NewConfigurationError("strategy", "stop_loss mode signal requires a signal_gate")
		}
	default:
		return errs.NewConfigurationError("strategy", "unknown stop_loss mode %q", r.StopLoss.Mode)
	}

	switch r.TakeProfit.Mode {
	case LevelNone:
	case LevelFixed, LevelPercent, LevelATR:
		if r.TakeProfit.Value <= 0 {
			return errs.NewConfigurationError("strategy", "take_profit value must be positive for mode %q", r.TakeProfit.Mode)
		}
	case LevelRR:
		if r.TakeProfit.Value <= 0 {
			return errs.NewConfigurationError("strategy", "take_profit rr ratio must be positive")
		}
		if r.StopLoss.Mode == LevelNone {
			return errs.NewConfigurationError("strategy", "take_profit mode rr requires a stop-loss")
		}
	default:
		return errs.NewConfigurationError("strategy", "unknown take_profit mode %q", r.TakeProfit.Mode)
	}

	if r.ATRPeriod <= 0 {
		return errs.NewConfigurationError("strategy", "atr_period must be positive")
	}
	if r.MaxPositions <= 0 {
		return errs.NewConfigurationError("strategy", "max_positions must be positive")
	}
	return nil
}

func (f FilterConfig) validate() error {
	if f.SessionStartHour < 0 || f.SessionStartHour > 23 || f.SessionEndHour < 0 || f.SessionEndHour > 23 {
		return errs.NewConfigurationError("strategy", "session hours must be within 0..23")
	}
	for _, wd := range f.Weekdays {
		if wd < 0 || wd > 6 {
			return errs.NewConfigurationError("strategy", "weekday %d outside 0..6", wd)
		}
	}
	if f.MinATR < 0 || f.MaxATR < 0 || (f.MaxATR > 0 && f.MinATR > f.MaxATR) {
		return errs.NewConfigurationError("strategy", "invalid ATR filter [%v, %v]", f.MinATR, f.MaxATR)
	}
	return nil
}

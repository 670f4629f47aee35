package types

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the side of a trade or signal.
type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Sign returns +1 for long, -1 for short and 0 for flat.
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// Opposite returns the other side. Flat stays flat.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Flat
	}
}

// ParseDirection accepts "long"/"buy" and "short"/"sell".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	case "", "flat", "none":
		return Flat, nil
	}
	return Flat, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Signal is a breakout signal produced by an evaluator for a single closed bar.
// It is valid only for the bar that produced it.
type Signal struct {
	Direction      Direction `json:"direction"`
	EntryPriceHint float64   `json:"entry_price_hint"`
	StopLossHint   float64   `json:"stop_loss_hint"`
	Confidence     float64   `json:"confidence"`
	Reason         string    `json:"reason"`
	Engine         string    `json:"engine"`
	Time           time.Time `json:"time"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s @ %.5f sl=%.5f conf=%.2f (%s)",
		s.Engine, s.Direction, s.EntryPriceHint, s.StopLossHint, s.Confidence, s.Reason)
}

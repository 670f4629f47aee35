package backtest

import (
	"time"

	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// ExitReason records why a trade was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSignal     ExitReason = "signal_exit"
	ExitEndOfData  ExitReason = "end_of_data"
)

// SimulationConfig holds the account and cost model of a run.
type SimulationConfig struct {
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
	// SpreadPoints is added to long fills and subtracted from short fills.
	SpreadPoints     float64 `json:"spread_points" yaml:"spread_points"`
	CommissionPerLot float64 `json:"commission_per_lot" yaml:"commission_per_lot"`
	// PointValue is the account currency gained per 1.0 price move per lot.
	PointValue float64 `json:"point_value" yaml:"point_value"`
	// PointSize is the price distance of one point.
	PointSize float64 `json:"point_size" yaml:"point_size"`
	// TradeFrom marks the first tradable bar; earlier bars only warm up indicators.
	TradeFrom int `json:"-" yaml:"-"`
}

// DefaultSimulationConfig returns a 10k account with unit point value and size and no costs.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		InitialBalance: 10000,
		PointValue:     1,
		PointSize:      1,
	}
}

func (c SimulationConfig) withDefaults() SimulationConfig {
	if c.InitialBalance == 0 {
		c.InitialBalance = 10000
	}
	if c.PointValue == 0 {
		c.PointValue = 1
	}
	if c.PointSize == 0 {
		c.PointSize = 1
	}
	return c
}

// Trade is one position from entry to exit. ExitBar is -1 while the trade is open.
type Trade struct {
	ID          int             `json:"id"`
	Direction   types.Direction `json:"direction"`
	EntryBar    int             `json:"entry_bar"`
	EntryTime   time.Time       `json:"entry_time"`
	EntryPrice  float64         `json:"entry_price"`
	EntryReason string          `json:"entry_reason,omitempty"`
	Size        float64         `json:"size"`
	StopLoss    float64         `json:"stop_loss"`
	TakeProfit  float64         `json:"take_profit"`
	ExitBar     int             `json:"exit_bar"`
	ExitTime    time.Time       `json:"exit_time"`
	ExitPrice   float64         `json:"exit_price"`
	ExitReason  ExitReason      `json:"exit_reason"`
	PnL         float64         `json:"pnl"`
	PnLPct      float64         `json:"pnl_pct"`
	Commission  float64         `json:"commission"`
}

// IsOpen reports whether the trade has no exit yet.
func (t Trade) IsOpen() bool {
	return t.ExitBar < 0
}

// SimulationResult is the output of one run: closed trades in exit order and one
// equity value per simulated bar.
type SimulationResult struct {
	Trades         []Trade     `json:"trades"`
	EquityCurve    []float64   `json:"equity_curve"`
	EquityTimes    []time.Time `json:"equity_times"`
	InitialBalance float64     `json:"initial_balance"`
	Warmup         int         `json:"warmup"`
}

// FinalEquity returns the last equity value or the initial balance.
func (r *SimulationResult) FinalEquity() float64 {
	if len(r.EquityCurve) == 0 {
		return r.InitialBalance
	}
	return r.EquityCurve[len(r.EquityCurve)-1]
}

package backtest

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxProfitFactor is reported when there are profits and no losses.
	MaxProfitFactor = 999.0
	// SharpeAnnualization scales per-bar Sharpe for both single runs and folds.
	SharpeAnnualization = 15.874507866387544 // sqrt(252)
)

// Stats summarizes closed trades and the equity curve of one run.
type Stats struct {
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"`
	NetProfit       float64 `json:"net_profit"`
	TotalReturnPct  float64 `json:"total_return_pct"`
	ProfitFactor    float64 `json:"profit_factor"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	SortinoRatio    float64 `json:"sortino_ratio"`
	Expectancy      float64 `json:"expectancy"`
	AvgTrade        float64 `json:"avg_trade"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	LargestWin      float64 `json:"largest_win"`
	LargestLoss     float64 `json:"largest_loss"`
	TotalCommission float64 `json:"total_commission"`
	FinalBalance    float64 `json:"final_balance"`
}

// ComputeStats derives Stats from a simulation result. Everything is zero when
// no trade closed.
func ComputeStats(res *SimulationResult) Stats {
	if res == nil {
		return Stats{}
	}
	return computeStats(res.Trades, res.EquityCurve, res.InitialBalance)
}

func computeStats(trades []Trade, equity []float64, initial float64) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	var s Stats
	gp, gl, commission := decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range trades {
		pnl := decimal.NewFromFloat(t.PnL)
		commission = commission.Add(decimal.NewFromFloat(t.Commission))
		switch {
		case t.PnL > 0:
			s.WinningTrades++
			gp = gp.Add(pnl)
			if t.PnL > s.LargestWin {
				s.LargestWin = t.PnL
			}
		case t.PnL < 0:
			s.LosingTrades++
			gl = gl.Add(pnl)
			if t.PnL < s.LargestLoss {
				s.LargestLoss = t.PnL
			}
		}
	}

	s.TotalTrades = len(trades)
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	s.GrossProfit = gp.InexactFloat64()
	s.GrossLoss = gl.InexactFloat64()
	net := gp.Add(gl)
	s.NetProfit = net.InexactFloat64()
	s.TotalCommission = commission.InexactFloat64()
	s.FinalBalance = decimal.NewFromFloat(initial).Add(net).InexactFloat64()
	if initial > 0 {
		s.TotalReturnPct = s.NetProfit / initial * 100
	}

	switch {
	case s.GrossLoss == 0 && s.GrossProfit > 0:
		s.ProfitFactor = MaxProfitFactor
	case s.GrossLoss < 0:
		s.ProfitFactor = math.Min(s.GrossProfit/math.Abs(s.GrossLoss), MaxProfitFactor)
	}

	s.AvgTrade = s.NetProfit / float64(s.TotalTrades)
	s.Expectancy = s.AvgTrade
	if s.WinningTrades > 0 {
		s.AvgWin = s.GrossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.LosingTrades)
	}

	s.MaxDrawdown, s.MaxDrawdownPct = drawdown(equity, initial)
	s.SharpeRatio, s.SortinoRatio = riskAdjusted(equity)
	return s
}

// drawdown returns the largest peak-to-trough drop and that drop as percent of its peak.
func drawdown(equity []float64, initial float64) (float64, float64) {
	peak := initial
	var maxDD, maxPct float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		dd := peak - v
		if dd > maxDD {
			maxDD = dd
		}
		if peak > 0 && dd/peak*100 > maxPct {
			maxPct = dd / peak * 100
		}
	}
	return maxDD, maxPct
}

func equityReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// riskAdjusted returns annualized Sharpe and Sortino of per-bar equity returns.
// Either is 0 when its deviation is 0.
func riskAdjusted(equity []float64) (float64, float64) {
	rets := equityReturns(equity)
	if len(rets) == 0 {
		return 0, 0
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var variance, downside float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
		if r < 0 {
			downside += r * r
		}
	}
	sd := math.Sqrt(variance / float64(len(rets)))
	dd := math.Sqrt(downside / float64(len(rets)))

	var sharpe, sortino float64
	if sd > 1e-12 {
		sharpe = mean / sd * SharpeAnnualization
	}
	if dd > 1e-12 {
		sortino = mean / dd * SharpeAnnualization
	}
	return sharpe, sortino
}

// Metric names accepted by Stats.Metric.
var metricNames = []string{
	"net_profit", "total_return_pct", "profit_factor", "win_rate", "sharpe_ratio",
	"sortino_ratio", "expectancy", "avg_trade", "max_drawdown", "max_drawdown_pct",
	"total_trades", "gross_profit", "final_balance",
}

// MetricNames lists the objective names understood by Metric.
func MetricNames() []string {
	return append([]string(nil), metricNames...)
}

// IsDrawdownMetric reports whether lower values of name are better.
func IsDrawdownMetric(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "max_drawdown")
}

// Metric returns the stat named name. ok is false for unknown names.
func (s Stats) Metric(name string) (float64, bool) {
	switch strings.ToLower(name) {
	case "net_profit":
		return s.NetProfit, true
	case "total_return_pct", "return":
		return s.TotalReturnPct, true
	case "profit_factor":
		return s.ProfitFactor, true
	case "win_rate":
		return s.WinRate, true
	case "sharpe_ratio", "sharpe":
		return s.SharpeRatio, true
	case "sortino_ratio":
		return s.SortinoRatio, true
	case "expectancy":
		return s.Expectancy, true
	case "avg_trade":
		return s.AvgTrade, true
	case "max_drawdown":
		return s.MaxDrawdown, true
	case "max_drawdown_pct":
		return s.MaxDrawdownPct, true
	case "total_trades":
		return float64(s.TotalTrades), true
	case "gross_profit":
		return s.GrossProfit, true
	case "final_balance":
		return s.FinalBalance, true
	}
	return 0, false
}

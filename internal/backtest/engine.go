package backtest

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/strategy-lab/internal/monitoring"
	"github.com/ducminhle1904/strategy-lab/internal/strategy"
	"github.com/ducminhle1904/strategy-lab/pkg/data"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// BacktestEngine replays a bar series through a strategy runner.
// An engine holds no per-run state and can be shared between goroutines.
type BacktestEngine struct {
	cfg SimulationConfig
	log zerolog.Logger
}

// NewBacktestEngine creates an engine; zero config fields take defaults.
func NewBacktestEngine(cfg SimulationConfig, log zerolog.Logger) *BacktestEngine {
	return &BacktestEngine{
		cfg: cfg.withDefaults(),
		log: log.With().Str("component", "backtest").Logger(),
	}
}

// Config returns the normalized simulation config.
func (b *BacktestEngine) Config() SimulationConfig {
	return b.cfg
}

type pendingEntry struct {
	direction  types.Direction
	signal     *types.Signal
	atr        float64
	reason     string
	signalTime time.Time
}

// run is the mutable state of one simulation.
type run struct {
	cfg      SimulationConfig
	risk     strategy.RiskConfig
	realized decimal.Decimal
	open     []*Trade
	pending  []pendingEntry
	result   *SimulationResult
	nextID   int
}

// Run simulates bars bar by bar. For each bar, in order: pending entries fill at the
// open, stops are checked before targets, exit decisions close at the close, a new
// entry may be queued for the next open, and post-bar equity is recorded. Positions
// still open after the last bar close at its close with reason end_of_data.
// A series shorter than the runner's warm-up yields no trades, not an error; its
// equity stays at the initial balance for every tradable bar.
func (b *BacktestEngine) Run(bars []types.OHLCV, runner strategy.Runner) (*SimulationResult, error) {
	started := time.Now()
	cfg := b.cfg
	r := &run{
		cfg:      cfg,
		risk:     runner.Risk(),
		realized: decimal.NewFromFloat(cfg.InitialBalance),
		result:   &SimulationResult{InitialBalance: cfg.InitialBalance, Warmup: runner.Warmup()},
	}

	if r.risk.MaxPositions <= 0 {
		r.risk.MaxPositions = 1
	}

	start := cfg.TradeFrom
	if start < 0 {
		start = 0
	}
	if len(bars) == 0 || start >= len(bars) || len(bars) < runner.Warmup() {
		b.log.Debug().Int("bars", len(bars)).Int("warmup", runner.Warmup()).Msg("not enough bars, nothing simulated")
		for _, bar := range bars[min(start, len(bars)):] {
			r.result.EquityCurve = append(r.result.EquityCurve, cfg.InitialBalance)
			r.result.EquityTimes = append(r.result.EquityTimes, bar.Timestamp)
		}
		monitoring.RecordSimulation("empty", time.Since(started))
		return r.result, nil
	}

	for i, bar := range bars {
		trading := i >= start

		r.fillPending(i, bar)
		r.checkLevels(i, bar)

		dec, err := runner.Decide(i, r.portfolio(bar))
		if err != nil {
			monitoring.RecordSimulation("error", time.Since(started))
			return nil, err
		}
		if dec.ExitLong || dec.ExitShort {
			r.closeWhere(i, bar, bar.Close, ExitSignal, func(t *Trade) bool {
				return (dec.ExitLong && t.Direction == types.Long) || (dec.ExitShort && t.Direction == types.Short)
			})
		}

		if trading && dec.Entry != types.Flat && i+1 < len(bars) && len(r.open)+len(r.pending) < r.risk.MaxPositions {
			r.pending = append(r.pending, pendingEntry{
				direction:  dec.Entry,
				signal:     dec.Signal,
				atr:        runner.ATR(i),
				reason:     dec.Reason,
				signalTime: bar.Timestamp,
			})
		}

		if trading {
			r.result.EquityCurve = append(r.result.EquityCurve, r.equity(bar.Close))
			r.result.EquityTimes = append(r.result.EquityTimes, bar.Timestamp)
		}
	}

	last := len(bars) - 1
	if len(r.open) > 0 {
		r.closeWhere(last, bars[last], bars[last].Close, ExitEndOfData, func(*Trade) bool { return true })
		if n := len(r.result.EquityCurve); n > 0 {
			r.result.EquityCurve[n-1] = r.realized.InexactFloat64()
		}
	}

	for _, t := range r.result.Trades {
		monitoring.RecordTrade(t.Direction.String(), string(t.ExitReason), t.PnL)
	}
	monitoring.RecordSimulation("ok", time.Since(started))
	b.log.Debug().Int("bars", len(bars)).Int("trades", len(r.result.Trades)).
		Float64("final_equity", r.result.FinalEquity()).Msg("simulation finished")
	return r.result, nil
}

func (r *run) portfolio(bar types.OHLCV) strategy.Portfolio {
	p := strategy.Portfolio{
		Balance:   r.realized.InexactFloat64(),
		Equity:    r.equity(bar.Close),
		Positions: make([]strategy.Position, len(r.open)),
	}
	for k, t := range r.open {
		p.Positions[k] = strategy.Position{
			Direction:  t.Direction,
			EntryBar:   t.EntryBar,
			EntryPrice: t.EntryPrice,
			Size:       t.Size,
			StopLoss:   t.StopLoss,
			TakeProfit: t.TakeProfit,
		}
	}
	return p
}

// equity is realized balance plus open positions marked at price.
func (r *run) equity(price float64) float64 {
	eq := r.realized.InexactFloat64()
	for _, t := range r.open {
		eq += (price - t.EntryPrice) * t.Direction.Sign() * t.Size * r.cfg.PointValue
	}
	return eq
}

func (r *run) fillPending(i int, bar types.OHLCV) {
	if len(r.pending) == 0 {
		return
	}
	spread := r.cfg.SpreadPoints * r.cfg.PointSize
	for _, p := range r.pending {
		entry := bar.Open + spread*p.direction.Sign()
		sl, tp, ok := r.levels(p, entry)
		if !ok {
			continue
		}
		size := r.size(entry, sl, r.equity(bar.Open))
		if size <= 0 {
			continue
		}
		r.nextID++
		r.open = append(r.open, &Trade{
			ID:          r.nextID,
			Direction:   p.direction,
			EntryBar:    i,
			EntryTime:   bar.Timestamp,
			EntryPrice:  entry,
			EntryReason: p.reason,
			Size:        size,
			StopLoss:    sl,
			TakeProfit:  tp,
			ExitBar:     -1,
		})
	}
	r.pending = r.pending[:0]
}

// levels places stop-loss and take-profit around entry. ok is false when a level
// cannot be placed, which cancels the entry.
func (r *run) levels(p pendingEntry, entry float64) (sl, tp float64, ok bool) {
	sign := p.direction.Sign()
	dist := func(cfg strategy.LevelConfig) (float64, bool) {
		switch cfg.Mode {
		case strategy.LevelFixed:
			return cfg.Value * r.cfg.PointSize, true
		case strategy.LevelPercent:
			return entry * cfg.Value / 100, true
		case strategy.LevelATR:
			if math.IsNaN(p.atr) || p.atr <= 0 {
				return 0, false
			}
			return cfg.Value * p.atr, true
		}
		return 0, true
	}

	switch r.risk.StopLoss.Mode {
	case strategy.LevelNone, "":
	case strategy.LevelSignal:
		if p.signal == nil || p.signal.StopLossHint <= 0 {
			return 0, 0, false
		}
		sl = p.signal.StopLossHint
		if (entry-sl)*sign <= 0 {
			return 0, 0, false
		}
	default:
		d, ok := dist(r.risk.StopLoss)
		if !ok || d <= 0 {
			return 0, 0, false
		}
		sl = entry - sign*d
	}

	switch r.risk.TakeProfit.Mode {
	case strategy.LevelNone, "":
	case strategy.LevelRR:
		if sl == 0 {
			return 0, 0, false
		}
		tp = entry + sign*r.risk.TakeProfit.Value*math.Abs(entry-sl)
	default:
		d, ok := dist(r.risk.TakeProfit)
		if !ok || d <= 0 {
			return 0, 0, false
		}
		tp = entry + sign*d
	}

	if sl < 0 || tp < 0 {
		return 0, 0, false
	}
	return sl, tp, true
}

func (r *run) size(entry, sl, equity float64) float64 {
	s := r.risk.Sizing
	var size float64
	switch s.Mode {
	case strategy.SizingRiskPercent:
		stopDist := math.Abs(entry - sl)
		if sl == 0 || stopDist == 0 {
			return 0
		}
		size = equity * s.Value / 100 / (stopDist * r.cfg.PointValue)
	case strategy.SizingEquityPercent:
		if entry <= 0 {
			return 0
		}
		size = equity * s.Value / 100 / (entry * r.cfg.PointValue)
	default:
		size = s.Value
	}

	if s.LotStep > 0 {
		size = math.Floor(size/s.LotStep+1e-9) * s.LotStep
	}
	if s.MaxSize > 0 && size > s.MaxSize {
		size = s.MaxSize
	}
	if size < s.MinSize || size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return 0
	}
	return size
}

// checkLevels closes positions whose stop or target was touched by bar. A bar that
// touches both counts as a stop. Gaps through a level fill at the open.
func (r *run) checkLevels(i int, bar types.OHLCV) {
	kept := r.open[:0]
	for _, t := range r.open {
		price, reason, hit := levelHit(t, bar)
		if !hit {
			kept = append(kept, t)
			continue
		}
		r.close(t, i, bar, price, reason)
	}
	r.open = kept
}

func levelHit(t *Trade, bar types.OHLCV) (float64, ExitReason, bool) {
	if t.Direction == types.Long {
		if t.StopLoss > 0 && bar.Low <= t.StopLoss {
			return math.Min(bar.Open, t.StopLoss), ExitStopLoss, true
		}
		if t.TakeProfit > 0 && bar.High >= t.TakeProfit {
			return math.Max(bar.Open, t.TakeProfit), ExitTakeProfit, true
		}
		return 0, "", false
	}
	if t.StopLoss > 0 && bar.High >= t.StopLoss {
		return math.Max(bar.Open, t.StopLoss), ExitStopLoss, true
	}
	if t.TakeProfit > 0 && bar.Low <= t.TakeProfit {
		return math.Min(bar.Open, t.TakeProfit), ExitTakeProfit, true
	}
	return 0, "", false
}

func (r *run) closeWhere(i int, bar types.OHLCV, price float64, reason ExitReason, match func(*Trade) bool) {
	kept := r.open[:0]
	for _, t := range r.open {
		if !match(t) {
			kept = append(kept, t)
			continue
		}
		r.close(t, i, bar, price, reason)
	}
	r.open = kept
}

// close books a round turn: commission is charged once, here.
func (r *run) close(t *Trade, i int, bar types.OHLCV, price float64, reason ExitReason) {
	gross := decimal.NewFromFloat(price).
		Sub(decimal.NewFromFloat(t.EntryPrice)).
		Mul(decimal.NewFromFloat(t.Direction.Sign())).
		Mul(decimal.NewFromFloat(t.Size)).
		Mul(decimal.NewFromFloat(r.cfg.PointValue))
	commission := decimal.NewFromFloat(r.cfg.CommissionPerLot).Mul(decimal.NewFromFloat(t.Size))
	net := gross.Sub(commission)
	r.realized = r.realized.Add(net)

	t.ExitBar = i
	t.ExitTime = bar.Timestamp
	t.ExitPrice = price
	t.ExitReason = reason
	t.Commission = commission.InexactFloat64()
	t.PnL = net.InexactFloat64()
	if t.EntryPrice != 0 {
		t.PnLPct = (price - t.EntryPrice) * t.Direction.Sign() / t.EntryPrice * 100
	}
	r.result.Trades = append(r.result.Trades, *t)
}

// RunBacktest validates bars, compiles def and returns statistics, closed trades and the equity curve.
func RunBacktest(def strategy.Definition, bars []types.OHLCV, predictions []float64, cfg SimulationConfig) (Stats, []Trade, []float64, error) {
	if err := data.ValidateSeries(bars); err != nil {
		return Stats{}, nil, nil, err
	}
	runner, err := strategy.Compile(def, bars, predictions)
	if err != nil {
		return Stats{}, nil, nil, err
	}
	res, err := NewBacktestEngine(cfg, zerolog.Nop()).Run(bars, runner)
	if err != nil {
		return Stats{}, nil, nil, err
	}
	return ComputeStats(res), res.Trades, res.EquityCurve, nil
}

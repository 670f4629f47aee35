package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

const timeLayout = "2006-01-02 15:04"

// DefaultConsoleReporter renders results as tables.
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter writes to out, or stdout when out is nil.
func NewDefaultConsoleReporter(out io.Writer) *DefaultConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &DefaultConsoleReporter{out: out}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func (r *DefaultConsoleReporter) render(t table.Writer) {
	t.Render()
	fmt.Fprintln(r.out)
}

// PrintStats prints the headline statistics of one run.
func (r *DefaultConsoleReporter) PrintStats(title string, s backtest.Stats) {
	if title == "" {
		title = "BACKTEST RESULTS"
	}
	t := r.newTable(title)

	t.AppendRows([]table.Row{
		{"Final Balance", fmt.Sprintf("$%.2f", s.FinalBalance)},
		{"Net Profit", fmt.Sprintf("$%.2f", s.NetProfit)},
		{"Total Return", fmt.Sprintf("%.2f%%", s.TotalReturnPct)},
		{"Max Drawdown", fmt.Sprintf("$%.2f (%.2f%%)", s.MaxDrawdown, s.MaxDrawdownPct)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total Trades", s.TotalTrades},
		{"Win Rate", fmt.Sprintf("%.1f%% (%d W / %d L)", s.WinRate*100, s.WinningTrades, s.LosingTrades)},
		{"Profit Factor", formatProfitFactor(s.ProfitFactor)},
		{"Expectancy", fmt.Sprintf("$%.2f", s.Expectancy)},
		{"Avg Win / Loss", fmt.Sprintf("$%.2f / $%.2f", s.AvgWin, s.AvgLoss)},
		{"Largest Win / Loss", fmt.Sprintf("$%.2f / $%.2f", s.LargestWin, s.LargestLoss)},
		{"Commission", fmt.Sprintf("$%.2f", s.TotalCommission)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Sharpe Ratio", fmt.Sprintf("%.2f", s.SharpeRatio)},
		{"Sortino Ratio", fmt.Sprintf("%.2f", s.SortinoRatio)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignRight},
	})
	r.render(t)
}

// PrintTrades prints the first limit trades. limit <= 0 prints nothing.
func (r *DefaultConsoleReporter) PrintTrades(trades []backtest.Trade, limit int) {
	if limit <= 0 || len(trades) == 0 {
		return
	}
	t := r.newTable(fmt.Sprintf("TRADES (%d)", len(trades)))
	t.AppendHeader(table.Row{"#", "Side", "Entry", "Entry Px", "Exit", "Exit Px", "Size", "PnL", "Reason"})

	for i, tr := range trades {
		if i == limit {
			t.AppendFooter(table.Row{"", fmt.Sprintf("... %d more", len(trades)-limit)})
			break
		}
		t.AppendRow(table.Row{
			tr.ID,
			strings.ToUpper(tr.Direction.String()),
			tr.EntryTime.Format(timeLayout),
			fmt.Sprintf("%.5f", tr.EntryPrice),
			tr.ExitTime.Format(timeLayout),
			fmt.Sprintf("%.5f", tr.ExitPrice),
			fmt.Sprintf("%.2f", tr.Size),
			fmt.Sprintf("%.2f", tr.PnL),
			string(tr.ExitReason),
		})
	}
	r.render(t)
}

// PrintWalkForward prints one row per fold plus the out-of-sample aggregate.
func (r *DefaultConsoleReporter) PrintWalkForward(summary *validation.WalkForwardSummary) {
	if summary == nil {
		return
	}
	t := r.newTable(fmt.Sprintf("WALK-FORWARD (%s, %d folds)", summary.Config.Mode, len(summary.Folds)))
	t.AppendHeader(table.Row{"Fold", "Train", "Test", "Train Ret %", "Test Ret %", "Test Trades", "Test PF", "Test DD %"})

	for _, f := range summary.Folds {
		t.AppendRow(table.Row{
			f.Index + 1,
			fmt.Sprintf("%d-%d", f.TrainRange.Start, f.TrainRange.End-1),
			fmt.Sprintf("%d-%d", f.TestRange.Start, f.TestRange.End-1),
			fmt.Sprintf("%.2f", f.TrainStats.TotalReturnPct),
			fmt.Sprintf("%.2f", f.TestStats.TotalReturnPct),
			f.TestStats.TotalTrades,
			formatProfitFactor(f.TestStats.ProfitFactor),
			fmt.Sprintf("%.2f", f.TestStats.MaxDrawdownPct),
		})
	}

	agg := summary.Aggregate
	t.AppendFooter(table.Row{"OOS", "", "", "", fmt.Sprintf("%.2f", agg.TotalReturnPct), agg.TotalTrades,
		formatProfitFactor(agg.ProfitFactor), fmt.Sprintf("%.2f", agg.MaxDrawdownPct)})
	t.SetCaption("consistency %.3f | degradation %.2f%% | overfitting risk %s",
		summary.ConsistencyScore, summary.ReturnDegradation, summary.OverfittingRisk)
	r.render(t)
}

// PrintOptimization prints the run header, the top trials and parameter importance.
func (r *DefaultConsoleReporter) PrintOptimization(result *optimization.Result, top int) {
	if result == nil {
		return
	}
	if top <= 0 {
		top = 10
	}

	h := r.newTable("OPTIMIZATION")
	h.AppendRows([]table.Row{
		{"Run ID", result.RunID.String()},
		{"Status", string(result.Status)},
		{"Method", string(result.Method)},
		{"Objective", result.Objective},
		{"Trials", len(result.Trials)},
		{"Elapsed", result.Elapsed.Round(time.Millisecond).String()},
	})
	if result.BestTrial != nil {
		h.AppendSeparator()
		h.AppendRows([]table.Row{
			{"Best Trial", result.BestTrial.Number},
			{"Best Score", fmt.Sprintf("%.4f", result.BestScore)},
			{"Best Params", formatParams(result.BestParams)},
		})
	}
	h.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 12, WidthMax: 12, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 60, Align: text.AlignLeft},
	})
	r.render(h)

	ranked := RankTrials(result.Trials)
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	if len(ranked) > 0 {
		t := r.newTable(fmt.Sprintf("TOP %d TRIALS", len(ranked)))
		t.AppendHeader(table.Row{"Trial", "Score", "Trades", "Net", "Win %", "Params"})
		for _, tr := range ranked {
			t.AppendRow(table.Row{
				tr.Number,
				fmt.Sprintf("%.4f", tr.Score),
				tr.Stats.TotalTrades,
				fmt.Sprintf("%.2f", tr.Stats.NetProfit),
				fmt.Sprintf("%.1f", tr.Stats.WinRate*100),
				formatParams(tr.Params),
			})
		}
		r.render(t)
	}

	if len(result.ParamImportance) > 0 {
		t := r.newTable("PARAMETER IMPORTANCE")
		t.AppendHeader(table.Row{"Parameter", "Share"})
		for _, name := range sortedByValue(result.ParamImportance) {
			t.AppendRow(table.Row{name, fmt.Sprintf("%.1f%%", result.ParamImportance[name]*100)})
		}
		r.render(t)
	}
}

// PrintSignalState prints an evaluator snapshot.
func (r *DefaultConsoleReporter) PrintSignalState(state signals.StateSummary) {
	t := r.newTable(fmt.Sprintf("%s %s", strings.ToUpper(state.Engine), state.Symbol))
	t.AppendRows([]table.Row{
		{"Phase", string(state.Phase)},
		{"ADR10", fmt.Sprintf("%.5f", state.ADR10)},
	})
	if !state.LastBarTime.IsZero() {
		t.AppendRow(table.Row{"Last Bar", state.LastBarTime.Format(timeLayout)})
	}
	if state.LastSignal != nil {
		t.AppendRow(table.Row{"Last Signal", state.LastSignal.String()})
	}
	if len(state.Details) > 0 {
		t.AppendSeparator()
		keys := make([]string, 0, len(state.Details))
		for k := range state.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.AppendRow(table.Row{k, fmt.Sprintf("%.5f", state.Details[k])})
		}
	}
	r.render(t)
}

// RankTrials returns successful trials ordered by score, best first. Equal scores keep trial order.
func RankTrials(trials []optimization.Trial) []optimization.Trial {
	out := make([]optimization.Trial, 0, len(trials))
	for _, t := range trials {
		if !t.Failed {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Feasible != out[j].Feasible {
			return out[i].Feasible
		}
		return out[i].Score > out[j].Score
	})
	return out
}

func formatProfitFactor(pf float64) string {
	if pf >= backtest.MaxProfitFactor {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

func formatParams(p optimization.Assignment) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, " ")
}

func sortedByValue(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

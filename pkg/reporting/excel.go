package reporting

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

// Sheet names of the report workbook.
const (
	SummarySheet    = "Summary"
	TradesSheet     = "Trades"
	EquitySheet     = "Equity"
	FoldsSheet      = "Folds"
	TrialsSheet     = "Trials"
	ImportanceSheet = "Importance"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct {
	paths *DefaultPathManager
}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{paths: NewDefaultPathManager()}
}

// WriteWorkbook writes one sheet per non-empty part of the report.
func (r *DefaultExcelReporter) WriteWorkbook(report *Report, path string) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}
	if err := r.paths.EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	fx.SetSheetName(fx.GetSheetName(0), SummarySheet)
	if err := r.writeSummarySheet(fx, report, styles); err != nil {
		return err
	}
	if len(report.Trades) > 0 {
		if err := r.writeTradesSheet(fx, report.Trades, styles); err != nil {
			return err
		}
	}
	if len(report.Equity) > 0 {
		if err := r.writeEquitySheet(fx, report.Equity, styles); err != nil {
			return err
		}
	}
	if report.WalkForward != nil && len(report.WalkForward.Folds) > 0 {
		if err := r.writeFoldsSheet(fx, report.WalkForward, styles); err != nil {
			return err
		}
	}
	if report.Optimization != nil {
		if err := r.writeTrialsSheet(fx, report.Optimization, styles); err != nil {
			return err
		}
		if len(report.Optimization.ParamImportance) > 0 {
			if err := r.writeImportanceSheet(fx, report.Optimization.ParamImportance, styles); err != nil {
				return err
			}
		}
	}

	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	// Dark slate header with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	if styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: border}); err != nil {
		return styles, err
	}

	styles.NumberStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: strPtr("0.00000"),
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       border,
	})
	if err != nil {
		return styles, err
	}

	// Currency with $ symbol
	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	// Values are already in percent units
	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: strPtr(`0.00"%"`),
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       border,
	})
	if err != nil {
		return styles, err
	}

	styles.ProfitStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Font:      &excelize.Font{Color: "008000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.LossStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Font:      &excelize.Font{Color: "FF0000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E6F3FF"}, Pattern: 1},
		Border: border,
	})
	return styles, err
}

func (r *DefaultExcelReporter) writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}
	fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (r *DefaultExcelReporter) setCell(fx *excelize.File, sheet string, col, row int, v interface{}, style int) {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	fx.SetCellValue(sheet, cell, v)
	fx.SetCellStyle(sheet, cell, cell, style)
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, report *Report, styles ExcelStyles) error {
	sheet := SummarySheet
	fx.SetColWidth(sheet, "A", "A", 24)
	fx.SetColWidth(sheet, "B", "B", 40)

	row := 1
	put := func(label string, v interface{}, style int) {
		r.setCell(fx, sheet, 1, row, label, styles.SummaryStyle)
		r.setCell(fx, sheet, 2, row, v, style)
		row++
	}

	title := report.Title
	if title == "" {
		title = "Report"
	}
	put("Report", title, styles.BaseStyle)
	if report.Symbol != "" {
		put("Symbol", report.Symbol, styles.BaseStyle)
	}
	if report.Interval != "" {
		put("Interval", report.Interval, styles.BaseStyle)
	}
	if report.InitialBalance > 0 {
		put("Initial Balance", report.InitialBalance, styles.CurrencyStyle)
	}

	stats := report.Stats
	if stats == nil && report.WalkForward != nil {
		stats = &report.WalkForward.Aggregate
	}
	if stats != nil {
		row++
		put("Total Trades", stats.TotalTrades, styles.BaseStyle)
		put("Winning Trades", stats.WinningTrades, styles.BaseStyle)
		put("Losing Trades", stats.LosingTrades, styles.BaseStyle)
		put("Win Rate", stats.WinRate*100, styles.PercentStyle)
		put("Net Profit", stats.NetProfit, pnlStyle(stats.NetProfit, styles))
		put("Gross Profit", stats.GrossProfit, styles.CurrencyStyle)
		put("Gross Loss", stats.GrossLoss, styles.CurrencyStyle)
		put("Total Return", stats.TotalReturnPct, styles.PercentStyle)
		put("Profit Factor", stats.ProfitFactor, styles.NumberStyle)
		put("Max Drawdown", stats.MaxDrawdown, styles.CurrencyStyle)
		put("Max Drawdown %", stats.MaxDrawdownPct, styles.PercentStyle)
		put("Sharpe Ratio", stats.SharpeRatio, styles.NumberStyle)
		put("Sortino Ratio", stats.SortinoRatio, styles.NumberStyle)
		put("Expectancy", stats.Expectancy, styles.CurrencyStyle)
		put("Commission", stats.TotalCommission, styles.CurrencyStyle)
		put("Final Balance", stats.FinalBalance, styles.CurrencyStyle)
	}

	if wf := report.WalkForward; wf != nil {
		row++
		put("Walk-Forward Mode", string(wf.Config.Mode), styles.BaseStyle)
		put("Folds", len(wf.Folds), styles.BaseStyle)
		put("Consistency Score", wf.ConsistencyScore, styles.NumberStyle)
		put("Return Degradation", wf.ReturnDegradation, styles.PercentStyle)
		put("Overfitting Risk", wf.OverfittingRisk, styles.BaseStyle)
	}

	if opt := report.Optimization; opt != nil {
		row++
		put("Run ID", opt.RunID.String(), styles.BaseStyle)
		put("Status", string(opt.Status), styles.BaseStyle)
		put("Method", string(opt.Method), styles.BaseStyle)
		put("Objective", opt.Objective, styles.BaseStyle)
		put("Trials", len(opt.Trials), styles.BaseStyle)
		if opt.BestTrial != nil {
			put("Best Trial", opt.BestTrial.Number, styles.BaseStyle)
			put("Best Score", opt.BestScore, styles.NumberStyle)
			put("Best Params", formatParams(opt.BestParams), styles.BaseStyle)
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, trades []backtest.Trade, styles ExcelStyles) error {
	sheet := TradesSheet
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"ID", "Direction", "Entry Time", "Entry Price", "Size", "Stop Loss", "Take Profit",
		"Exit Time", "Exit Price", "Exit Reason", "Commission", "PnL", "PnL %"}
	r.writeHeader(fx, sheet, headers, styles)
	fx.SetColWidth(sheet, "A", "B", 10)
	fx.SetColWidth(sheet, "C", "C", 18)
	fx.SetColWidth(sheet, "D", "G", 12)
	fx.SetColWidth(sheet, "H", "H", 18)
	fx.SetColWidth(sheet, "I", "M", 12)

	for i, t := range trades {
		row := i + 2
		r.setCell(fx, sheet, 1, row, t.ID, styles.BaseStyle)
		r.setCell(fx, sheet, 2, row, t.Direction.String(), styles.BaseStyle)
		r.setCell(fx, sheet, 3, row, t.EntryTime.Format("2006-01-02 15:04:05"), styles.BaseStyle)
		r.setCell(fx, sheet, 4, row, t.EntryPrice, styles.NumberStyle)
		r.setCell(fx, sheet, 5, row, t.Size, styles.NumberStyle)
		r.setCell(fx, sheet, 6, row, t.StopLoss, styles.NumberStyle)
		r.setCell(fx, sheet, 7, row, t.TakeProfit, styles.NumberStyle)
		r.setCell(fx, sheet, 8, row, t.ExitTime.Format("2006-01-02 15:04:05"), styles.BaseStyle)
		r.setCell(fx, sheet, 9, row, t.ExitPrice, styles.NumberStyle)
		r.setCell(fx, sheet, 10, row, string(t.ExitReason), styles.BaseStyle)
		r.setCell(fx, sheet, 11, row, t.Commission, styles.CurrencyStyle)
		r.setCell(fx, sheet, 12, row, t.PnL, pnlStyle(t.PnL, styles))
		r.setCell(fx, sheet, 13, row, t.PnLPct, styles.PercentStyle)
	}
	return nil
}

func (r *DefaultExcelReporter) writeEquitySheet(fx *excelize.File, equity []float64, styles ExcelStyles) error {
	sheet := EquitySheet
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}
	r.writeHeader(fx, sheet, []string{"Bar", "Equity"}, styles)
	fx.SetColWidth(sheet, "A", "B", 14)

	for i, v := range equity {
		r.setCell(fx, sheet, 1, i+2, i, styles.BaseStyle)
		r.setCell(fx, sheet, 2, i+2, v, styles.CurrencyStyle)
	}

	if len(equity) > 1 {
		last := len(equity) + 1
		return fx.AddChart(sheet, "D2", &excelize.Chart{
			Type: excelize.Line,
			Series: []excelize.ChartSeries{{
				Name:       fmt.Sprintf("%s!$B$1", sheet),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, last),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheet, last),
			}},
			Title:  []excelize.RichTextRun{{Text: "Equity"}},
			Legend: excelize.ChartLegend{Position: "none"},
		})
	}
	return nil
}

func (r *DefaultExcelReporter) writeFoldsSheet(fx *excelize.File, wf *validation.WalkForwardSummary, styles ExcelStyles) error {
	sheet := FoldsSheet
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Fold", "Train Start", "Train End", "Test Start", "Test End", "Test From",
		"Train Return %", "Test Return %", "Test Trades", "Test Win Rate", "Test PF", "Test DD %", "Test Sharpe"}
	r.writeHeader(fx, sheet, headers, styles)
	fx.SetColWidth(sheet, "A", "E", 11)
	fx.SetColWidth(sheet, "F", "F", 18)
	fx.SetColWidth(sheet, "G", "M", 14)

	for i, f := range wf.Folds {
		row := i + 2
		r.setCell(fx, sheet, 1, row, f.Index+1, styles.BaseStyle)
		r.setCell(fx, sheet, 2, row, f.TrainRange.Start, styles.BaseStyle)
		r.setCell(fx, sheet, 3, row, f.TrainRange.End-1, styles.BaseStyle)
		r.setCell(fx, sheet, 4, row, f.TestRange.Start, styles.BaseStyle)
		r.setCell(fx, sheet, 5, row, f.TestRange.End-1, styles.BaseStyle)
		r.setCell(fx, sheet, 6, row, f.TestStart.Format("2006-01-02 15:04"), styles.BaseStyle)
		r.setCell(fx, sheet, 7, row, f.TrainStats.TotalReturnPct, styles.PercentStyle)
		r.setCell(fx, sheet, 8, row, f.TestStats.TotalReturnPct, styles.PercentStyle)
		r.setCell(fx, sheet, 9, row, f.TestStats.TotalTrades, styles.BaseStyle)
		r.setCell(fx, sheet, 10, row, f.TestStats.WinRate*100, styles.PercentStyle)
		r.setCell(fx, sheet, 11, row, f.TestStats.ProfitFactor, styles.NumberStyle)
		r.setCell(fx, sheet, 12, row, f.TestStats.MaxDrawdownPct, styles.PercentStyle)
		r.setCell(fx, sheet, 13, row, f.TestStats.SharpeRatio, styles.NumberStyle)
	}
	return nil
}

func (r *DefaultExcelReporter) writeTrialsSheet(fx *excelize.File, result *optimization.Result, styles ExcelStyles) error {
	sheet := TrialsSheet
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}

	names := paramNames(result.Trials)
	headers := []string{"Trial", "Score", "Feasible", "Failed", "Trades", "Net Profit", "Win Rate", "Max DD %", "Duration (ms)"}
	headers = append(headers, names...)
	headers = append(headers, "Error")
	r.writeHeader(fx, sheet, headers, styles)
	fx.SetColWidth(sheet, "A", "I", 12)

	for i, t := range result.Trials {
		row := i + 2
		r.setCell(fx, sheet, 1, row, t.Number, styles.BaseStyle)
		if t.Failed {
			r.setCell(fx, sheet, 2, row, "failed", styles.BaseStyle)
		} else {
			r.setCell(fx, sheet, 2, row, t.Score, styles.NumberStyle)
		}
		r.setCell(fx, sheet, 3, row, t.Feasible, styles.BaseStyle)
		r.setCell(fx, sheet, 4, row, t.Failed, styles.BaseStyle)
		r.setCell(fx, sheet, 5, row, t.Stats.TotalTrades, styles.BaseStyle)
		r.setCell(fx, sheet, 6, row, t.Stats.NetProfit, pnlStyle(t.Stats.NetProfit, styles))
		r.setCell(fx, sheet, 7, row, t.Stats.WinRate*100, styles.PercentStyle)
		r.setCell(fx, sheet, 8, row, t.Stats.MaxDrawdownPct, styles.PercentStyle)
		r.setCell(fx, sheet, 9, row, t.Duration.Milliseconds(), styles.BaseStyle)
		for j, name := range names {
			r.setCell(fx, sheet, 10+j, row, t.Params[name], styles.BaseStyle)
		}
		r.setCell(fx, sheet, 10+len(names), row, t.Error, styles.BaseStyle)
	}
	return nil
}

func (r *DefaultExcelReporter) writeImportanceSheet(fx *excelize.File, importance map[string]float64, styles ExcelStyles) error {
	sheet := ImportanceSheet
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}
	r.writeHeader(fx, sheet, []string{"Parameter", "Importance"}, styles)
	fx.SetColWidth(sheet, "A", "A", 30)
	fx.SetColWidth(sheet, "B", "B", 14)

	for i, name := range sortedByValue(importance) {
		r.setCell(fx, sheet, 1, i+2, name, styles.BaseStyle)
		r.setCell(fx, sheet, 2, i+2, importance[name]*100, styles.PercentStyle)
	}
	return nil
}

func paramNames(trials []optimization.Trial) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range trials {
		for k := range t.Params {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}

func pnlStyle(v float64, styles ExcelStyles) int {
	if v < 0 {
		return styles.LossStyle
	}
	return styles.ProfitStyle
}

func strPtr(s string) *string { return &s }

func WriteWorkbook(report *Report, path string) error {
	return NewDefaultExcelReporter().WriteWorkbook(report, path)
}

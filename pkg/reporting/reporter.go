package reporting

import (
	"io"
	"path/filepath"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a reporter whose console output goes to out (stdout when nil).
func NewDefaultReporter(out io.Writer) *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(out),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
		paths:   NewDefaultPathManager(),
	}
}

// Console output methods
func (r *DefaultReporter) PrintStats(title string, stats backtest.Stats) {
	r.console.PrintStats(title, stats)
}

func (r *DefaultReporter) PrintTrades(trades []backtest.Trade, limit int) {
	r.console.PrintTrades(trades, limit)
}

func (r *DefaultReporter) PrintWalkForward(summary *validation.WalkForwardSummary) {
	r.console.PrintWalkForward(summary)
}

func (r *DefaultReporter) PrintOptimization(result *optimization.Result, top int) {
	r.console.PrintOptimization(result, top)
}

func (r *DefaultReporter) PrintSignalState(state signals.StateSummary) {
	r.console.PrintSignalState(state)
}

// File output methods
func (r *DefaultReporter) WriteTradesCSV(trades []backtest.Trade, path string) error {
	return r.csv.WriteTradesCSV(trades, path)
}

func (r *DefaultReporter) WriteEquityCSV(equity []float64, path string) error {
	return r.csv.WriteEquityCSV(equity, path)
}

func (r *DefaultReporter) WriteWorkbook(report *Report, path string) error {
	return r.excel.WriteWorkbook(report, path)
}

func (r *DefaultReporter) WriteJSON(v interface{}, path string) error {
	return r.json.WriteJSON(v, path)
}

// Path management methods
func (r *DefaultReporter) GetDefaultOutputDir(symbol, interval string) string {
	return r.paths.GetDefaultOutputDir(symbol, interval)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter Reporter
	config   ReportingConfig
}

// NewReportingManager creates a new reporting manager with configuration
func NewReportingManager(config ReportingConfig, out io.Writer) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(out),
		config:   config,
	}
}

// OutputDir is the configured directory or results/SYMBOL_interval.
func (m *ReportingManager) OutputDir(report *Report) string {
	if m.config.OutputDirectory != "" {
		return m.config.OutputDirectory
	}
	return m.reporter.GetDefaultOutputDir(report.Symbol, report.Interval)
}

// Report prints and writes everything the configuration enables. It returns the
// paths of the written files.
func (m *ReportingManager) Report(report *Report) ([]string, error) {
	if m.config.EnableConsole {
		m.print(report)
	}
	if !m.config.EnableFiles {
		return nil, nil
	}

	dir := m.OutputDir(report)
	var written []string
	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		if err := fn(path); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if m.config.CSVEnabled {
		if len(report.Trades) > 0 {
			if err := write("trades.csv", func(p string) error { return m.reporter.WriteTradesCSV(report.Trades, p) }); err != nil {
				return written, err
			}
		}
		if len(report.Equity) > 0 {
			if err := write("equity.csv", func(p string) error { return m.reporter.WriteEquityCSV(report.Equity, p) }); err != nil {
				return written, err
			}
		}
	}

	if m.config.ExcelEnabled {
		if err := write("report.xlsx", func(p string) error { return m.reporter.WriteWorkbook(report, p) }); err != nil {
			return written, err
		}
	}

	if m.config.JSONEnabled {
		if err := write("result.json", func(p string) error { return m.reporter.WriteJSON(jsonPayload(report), p) }); err != nil {
			return written, err
		}
	}

	return written, nil
}

func (m *ReportingManager) print(report *Report) {
	switch {
	case report.Optimization != nil:
		m.reporter.PrintOptimization(report.Optimization, m.config.TopTrials)
	case report.WalkForward != nil:
		m.reporter.PrintWalkForward(report.WalkForward)
		m.reporter.PrintStats(report.Title, report.WalkForward.Aggregate)
	case report.Stats != nil:
		m.reporter.PrintStats(report.Title, *report.Stats)
	}
	m.reporter.PrintTrades(report.Trades, m.config.TradeRows)
}

// jsonPayload picks the richest part of the report.
func jsonPayload(report *Report) interface{} {
	switch {
	case report.Optimization != nil:
		return report.Optimization
	case report.WalkForward != nil:
		return report.WalkForward
	}
	return struct {
		Title  string           `json:"title,omitempty"`
		Symbol string           `json:"symbol,omitempty"`
		Stats  *backtest.Stats  `json:"stats,omitempty"`
		Trades []backtest.Trade `json:"trades"`
		Equity []float64        `json:"equity"`
	}{report.Title, report.Symbol, report.Stats, report.Trades, report.Equity}
}

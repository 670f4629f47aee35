// Package reporting renders simulation, walk-forward and optimization results
// to the console and to CSV, XLSX and JSON files.
package reporting

import (
	"github.com/ducminhle1904/strategy-lab/internal/backtest"
	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
	"github.com/ducminhle1904/strategy-lab/pkg/validation"
)

// Report bundles everything one job produced. Nil parts are skipped by every writer.
type Report struct {
	Title          string
	Symbol         string
	Interval       string
	InitialBalance float64

	Stats  *backtest.Stats
	Trades []backtest.Trade
	Equity []float64

	WalkForward  *validation.WalkForwardSummary
	Optimization *optimization.Result
}

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	PrintStats(title string, stats backtest.Stats)
	PrintTrades(trades []backtest.Trade, limit int)
	PrintWalkForward(summary *validation.WalkForwardSummary)
	PrintOptimization(result *optimization.Result, top int)
	PrintSignalState(state signals.StateSummary)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteTradesCSV(trades []backtest.Trade, path string) error
	WriteEquityCSV(equity []float64, path string) error
	WriteWorkbook(report *Report, path string) error
	WriteJSON(v interface{}, path string) error
}

// PathManager defines interface for output path management
type PathManager interface {
	GetDefaultOutputDir(symbol, interval string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces
type Reporter interface {
	ConsoleReporter
	FileReporter
	PathManager
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	BaseStyle     int
	NumberStyle   int
	CurrencyStyle int
	PercentStyle  int
	ProfitStyle   int
	LossStyle     int
	SummaryStyle  int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool   `json:"enable_console" yaml:"enable_console"`
	EnableFiles     bool   `json:"enable_files" yaml:"enable_files"`
	OutputDirectory string `json:"output_directory" yaml:"output_directory"`
	ExcelEnabled    bool   `json:"excel_enabled" yaml:"excel_enabled"`
	CSVEnabled      bool   `json:"csv_enabled" yaml:"csv_enabled"`
	JSONEnabled     bool   `json:"json_enabled" yaml:"json_enabled"`
	// TradeRows caps the console trade table; 0 hides it.
	TradeRows int `json:"trade_rows" yaml:"trade_rows"`
	// TopTrials caps the console trial table.
	TopTrials int `json:"top_trials" yaml:"top_trials"`
}

// DefaultReportingConfig prints to the console and writes every file format.
func DefaultReportingConfig() ReportingConfig {
	return ReportingConfig{
		EnableConsole: true,
		EnableFiles:   true,
		ExcelEnabled:  true,
		CSVEnabled:    true,
		JSONEnabled:   true,
		TradeRows:     20,
		TopTrials:     10,
	}
}

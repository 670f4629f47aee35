package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ducminhle1904/strategy-lab/internal/backtest"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct {
	paths *DefaultPathManager
}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{paths: NewDefaultPathManager()}
}

var tradeHeaders = []string{
	"ID", "Direction", "Entry_Bar", "Entry_Time", "Entry_Price", "Size", "Stop_Loss", "Take_Profit",
	"Exit_Bar", "Exit_Time", "Exit_Price", "Exit_Reason", "Commission", "PnL", "PnL_%", "Win_Loss",
}

// WriteTradesCSV writes one row per trade and a closing summary row. An .xlsx path
// is delegated to the workbook writer.
func (r *DefaultCSVReporter) WriteTradesCSV(trades []backtest.Trade, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return NewDefaultExcelReporter().WriteWorkbook(&Report{Trades: trades}, path)
	}

	return r.write(path, func(w *csv.Writer) error {
		if err := w.Write(tradeHeaders); err != nil {
			return err
		}

		var totalPnL float64
		wins := 0
		for _, t := range trades {
			totalPnL += t.PnL
			winLoss := "L"
			if t.PnL > 0 {
				winLoss = "W"
				wins++
			}
			row := []string{
				strconv.Itoa(t.ID),
				t.Direction.String(),
				strconv.Itoa(t.EntryBar),
				t.EntryTime.Format("2006-01-02 15:04:05"),
				formatFloat(t.EntryPrice, 5),
				formatFloat(t.Size, 4),
				formatFloat(t.StopLoss, 5),
				formatFloat(t.TakeProfit, 5),
				strconv.Itoa(t.ExitBar),
				t.ExitTime.Format("2006-01-02 15:04:05"),
				formatFloat(t.ExitPrice, 5),
				string(t.ExitReason),
				formatFloat(t.Commission, 2),
				formatFloat(t.PnL, 2),
				formatFloat(t.PnLPct, 2),
				winLoss,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}

		summary := make([]string, len(tradeHeaders))
		summary[len(summary)-1] = fmt.Sprintf("SUMMARY: total_pnl=%.2f; trades=%d; wins=%d", totalPnL, len(trades), wins)
		return w.Write(summary)
	})
}

// WriteEquityCSV writes the bar index and equity value of every point.
func (r *DefaultCSVReporter) WriteEquityCSV(equity []float64, path string) error {
	return r.write(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"Bar", "Equity"}); err != nil {
			return err
		}
		for i, v := range equity {
			if err := w.Write([]string{strconv.Itoa(i), formatFloat(v, 2)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *DefaultCSVReporter) write(path string, fill func(*csv.Writer) error) error {
	if err := r.paths.EnsureDirectoryExists(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func WriteTradesCSV(trades []backtest.Trade, path string) error {
	return NewDefaultCSVReporter().WriteTradesCSV(trades, path)
}

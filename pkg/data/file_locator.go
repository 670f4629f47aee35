package data

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
)

// FileLocator finds candle files in the data directory layouts the loaders accept.
type FileLocator struct {
	log zerolog.Logger
}

func NewFileLocator(log zerolog.Logger) *FileLocator {
	return &FileLocator{log: log.With().Str("component", "file_locator").Logger()}
}

// ConvertIntervalToMinutes converts interval strings like "5m", "1h", "4h" to minute numbers.
// Unparseable input is returned unchanged.
func ConvertIntervalToMinutes(interval string) string {
	if _, err := strconv.Atoi(interval); err == nil {
		return interval
	}

	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return interval
	}

	num, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return interval
	}

	switch interval[len(interval)-1] {
	case 'm':
		return strconv.Itoa(num)
	case 'h':
		return strconv.Itoa(num * 60)
	case 'd':
		return strconv.Itoa(num * 24 * 60)
	case 'w':
		return strconv.Itoa(num * 7 * 24 * 60)
	default:
		return interval
	}
}

// candidates lists, in lookup order:
//
//	{root}/{exchange}/{category}/{SYMBOL}/{minutes}/candles.csv
//	{root}/{SYMBOL}/{interval}.csv
//	{root}/{SYMBOL}_{interval}.csv
func (f *FileLocator) candidates(dataRoot, exchange, symbol, interval string) []string {
	symbol = strings.ToUpper(symbol)
	minutes := ConvertIntervalToMinutes(interval)

	var categories []string
	switch strings.ToLower(exchange) {
	case "":
	case "bybit":
		categories = []string{"spot", "linear", "inverse"}
	case "binance":
		categories = []string{"spot", "futures"}
	default:
		categories = []string{"spot", "futures", "linear", "inverse"}
	}

	var paths []string
	for _, category := range categories {
		paths = append(paths, filepath.Join(dataRoot, exchange, category, symbol, minutes, "candles.csv"))
	}
	return append(paths,
		filepath.Join(dataRoot, symbol, interval+".csv"),
		filepath.Join(dataRoot, symbol+"_"+interval+".csv"),
	)
}

// FindDataFile returns the first existing candidate file.
func (f *FileLocator) FindDataFile(dataRoot, exchange, symbol, interval string) (string, error) {
	paths := f.candidates(dataRoot, exchange, symbol, interval)
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	f.log.Warn().Str("symbol", symbol).Str("interval", interval).Strs("tried", paths).Msg("no data file found")
	return "", errs.New(errs.CategoryData, "file_locator", "find",
		"no data file for "+symbol+" "+interval+" under "+dataRoot)
}

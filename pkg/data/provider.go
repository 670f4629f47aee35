package data

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// Selection narrows a loaded series. Trailing ("30d", "168h") wins over Start/End.
type Selection struct {
	Start    time.Time
	End      time.Time
	Trailing string
}

// DataManager combines loading, locating and selecting bar series.
type DataManager struct {
	provider DataProvider
	locator  *FileLocator
	log      zerolog.Logger
}

// NewDataManager uses a cached CSV provider.
func NewDataManager(log zerolog.Logger) *DataManager {
	return NewDataManagerWithProvider(NewCachedProvider(NewCSVProvider(log), log), log)
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider DataProvider, log zerolog.Logger) *DataManager {
	return &DataManager{
		provider: provider,
		locator:  NewFileLocator(log),
		log:      log.With().Str("component", "data_manager").Logger(),
	}
}

// Load reads source, applies sel and validates the result as simulation input.
func (dm *DataManager) Load(source string, sel Selection) ([]types.OHLCV, error) {
	bars, err := dm.provider.LoadData(source)
	if err != nil {
		return nil, err
	}

	if sel.Trailing != "" {
		period, ok := ParseTrailingPeriod(sel.Trailing)
		if !ok {
			return nil, errs.NewConfigurationError("data", "invalid trailing period %q", sel.Trailing)
		}
		bars = FilterByPeriod(bars, period)
	} else if !sel.Start.IsZero() || !sel.End.IsZero() {
		bars = FilterByDateRange(bars, sel.Start, sel.End)
	}

	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}

	if len(bars) > 0 {
		dm.log.Debug().
			Str("source", source).
			Int("bars", len(bars)).
			Time("from", bars[0].Timestamp).
			Time("to", bars[len(bars)-1].Timestamp).
			Msg("series loaded")
	}
	return bars, nil
}

// Locate finds the candle file of symbol and interval under dataRoot.
func (dm *DataManager) Locate(dataRoot, exchange, symbol, interval string) (string, error) {
	return dm.locator.FindDataFile(dataRoot, exchange, symbol, interval)
}

func (dm *DataManager) GetProvider() DataProvider {
	return dm.provider
}

// ParseTrailingPeriod parses period strings like "7d", "30days" or raw durations like "168h".
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}

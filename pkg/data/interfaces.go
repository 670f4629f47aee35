package data

import (
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

// DataProvider loads a historical bar series from a source such as a file path.
type DataProvider interface {
	// LoadData loads historical data from the specified source
	LoadData(source string) ([]types.OHLCV, error)

	// GetName returns the name of the data provider
	GetName() string
}

// DataCache interface for caching loaded data
type DataCache interface {
	Get(key string) ([]types.OHLCV, bool)
	Set(key string, data []types.OHLCV)
	Clear()
	Size() int
}

// CSVColumnMapping defines the column positions for a CSV bar file.
// An empty DateFormat enables auto-detection (RFC3339, "2006-01-02 15:04:05", unix seconds or milliseconds).
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
	HasHeader    bool
}

var (
	DefaultCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
		HasHeader:    true,
	}

	// MetaTraderCSVFormat matches "Date,Time,Open,High,Low,Close,Volume" exports merged into one column.
	MetaTraderCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
		DateFormat:   "2006.01.02 15:04",
		HasHeader:    false,
	}
)

package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
	"github.com/ducminhle1904/strategy-lab/pkg/types"
)

var autoDateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04",
	"2006-01-02",
}

// CSVProvider implements DataProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
	log    zerolog.Logger
}

// NewCSVProvider creates a new CSV data provider with default format
func NewCSVProvider(log zerolog.Logger) *CSVProvider {
	return NewCSVProviderWithFormat(DefaultCSVFormat, log)
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping, log zerolog.Logger) *CSVProvider {
	return &CSVProvider{
		format: format,
		log:    log.With().Str("component", "csv_provider").Logger(),
	}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads a bar series from a CSV file. Rows that fail to parse or
// violate OHLC bounds are skipped with a warning; the result is sorted and de-duplicated.
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryData, "csv_provider", "open", source)
	}
	defer file.Close()

	bars, err := p.Read(file)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryData, "csv_provider", "read", source)
	}
	return bars, nil
}

// Read parses bars from r using the provider's column mapping.
func (p *CSVProvider) Read(r io.Reader) ([]types.OHLCV, error) {
	format := p.format
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var data []types.OHLCV
	lineNum := 0
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum+1, err)
		}
		lineNum++
		if lineNum == 1 && format.HasHeader {
			continue
		}

		bar, err := parseRecord(record, format)
		if err != nil {
			skipped++
			p.log.Warn().Int("line", lineNum).Err(err).Msg("skipping row")
			continue
		}
		data = append(data, bar)
	}

	data = RemoveDuplicates(SortByTimestamp(data))
	p.log.Debug().Int("bars", len(data)).Int("skipped", skipped).Msg("csv loaded")
	return data, nil
}

func parseRecord(record []string, format CSVColumnMapping) (types.OHLCV, error) {
	if len(record) < format.MinColumns {
		return types.OHLCV{}, fmt.Errorf("insufficient columns (expected %d, got %d)", format.MinColumns, len(record))
	}

	timestamp, err := parseTimestamp(strings.TrimSpace(record[format.TimestampCol]), format.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	fields := [5]float64{}
	cols := [5]int{format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol}
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i, col := range cols {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("invalid %s %q", names[i], record[col])
		}
		fields[i] = v
	}

	bar := types.OHLCV{
		Timestamp: timestamp,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}
	if err := validateBar(bar); err != nil {
		return types.OHLCV{}, err
	}
	return bar, nil
}

func parseTimestamp(raw, layout string) (time.Time, error) {
	if layout != "" {
		t, err := time.Parse(layout, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
		}
		return t.UTC(), nil
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Anything past year 2286 in seconds is treated as milliseconds.
		if n > 9_999_999_999 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, f := range autoDateFormats {
		if t, err := time.Parse(f, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func validateBar(b types.OHLCV) error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value")
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if b.High < b.Low {
		return fmt.Errorf("high (%.5f) below low (%.5f)", b.High, b.Low)
	}
	if b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("high (%.5f) must be >= open (%.5f) and close (%.5f)", b.High, b.Open, b.Close)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("low (%.5f) must be <= open (%.5f) and close (%.5f)", b.Low, b.Open, b.Close)
	}
	return nil
}

// LoadPredictions reads a "timestamp,value" CSV and aligns it to bars.
// Bars without a matching row get NaN, which no ML filter accepts.
func LoadPredictions(source string, bars []types.OHLCV) ([]float64, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryData, "csv_provider", "open", source)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	byTime := make(map[int64]float64)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, errs.CategoryData, "csv_provider", "read", source)
		}
		if len(record) < 2 {
			continue
		}
		ts, err := parseTimestamp(strings.TrimSpace(record[0]), "")
		if err != nil {
			// header row or junk
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, errs.New(errs.CategoryData, "csv_provider", "read",
				fmt.Sprintf("%s line %d: invalid prediction %q", source, line, record[1]))
		}
		byTime[ts.Unix()] = v
	}

	out := make([]float64, len(bars))
	for i, b := range bars {
		v, ok := byTime[b.Timestamp.Unix()]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, nil
}

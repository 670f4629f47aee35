package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// SessionLogger writes one JSON log file per live session, named
// SYMBOL_INTERVAL_DATE.log under its directory.
type SessionLogger struct {
	zerolog.Logger

	symbol   string
	interval string
	path     string
	file     *os.File
	started  time.Time
}

// NewSessionLogger opens (or appends to) the session file and tees records to console when given.
func NewSessionLogger(dir, symbol, interval string, console io.Writer) (*SessionLogger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	started := time.Now()
	name := fmt.Sprintf("%s_%s_%s.log", symbol, interval, started.Format("2006-01-02"))
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = file
	if console != nil {
		w = zerolog.MultiLevelWriter(file, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	}

	s := &SessionLogger{
		Logger:   zerolog.New(w).With().Timestamp().Str("symbol", symbol).Str("interval", interval).Logger(),
		symbol:   symbol,
		interval: interval,
		path:     path,
		file:     file,
		started:  started,
	}
	s.Info().Str("log_file", path).Msg("session started")
	return s, nil
}

// Path returns the session file path.
func (s *SessionLogger) Path() string {
	return s.path
}

// Close writes the session footer and closes the file.
func (s *SessionLogger) Close() error {
	s.Info().Dur("duration", time.Since(s.started)).Msg("session ended")
	return s.file.Close()
}

package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/strategy-lab/internal/config"
	"github.com/ducminhle1904/strategy-lab/internal/logger"
	"github.com/ducminhle1904/strategy-lab/internal/monitoring"
)

// LoadEnvFile loads path into the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Setup loads the env file and builds the process config and logger.
func Setup(flags *CommonFlags) (*config.Config, zerolog.Logger, error) {
	if err := LoadEnvFile(*flags.EnvFile); err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg := config.Load()
	if *flags.DataRoot != "" {
		cfg.DataRoot = *flags.DataRoot
	}
	if *flags.MetricsAddr != "" {
		cfg.Monitoring.MetricsAddr = *flags.MetricsAddr
	}
	cfg.LogLevel = flags.Level(cfg.LogLevel)

	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	return cfg, log, nil
}

// NewMonitoringMux routes /metrics to prometheus and /health to health when given.
func NewMonitoringMux(health *monitoring.HealthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	if health != nil {
		mux.Handle("/health", health)
	}
	return mux
}

// StartMonitoringServer serves the monitoring mux on addr until ctx is done.
// An empty addr disables it.
func StartMonitoringServer(ctx context.Context, addr string, health *monitoring.HealthChecker, log zerolog.Logger) {
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMonitoringMux(health),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("monitoring server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("monitoring server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

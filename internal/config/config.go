// Package config reads the process configuration from the environment.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment string
	LogLevel    string
	// LogPretty switches zerolog to the console writer.
	LogPretty bool

	Workers    int
	DataRoot   string
	ResultsDir string

	Monitoring struct {
		// MetricsAddr serves /metrics and /health when set, e.g. ":9090".
		MetricsAddr string
	}

	Bybit struct {
		APIKey   string
		Secret   string
		Testnet  bool
		Category string
	}

	Notifications struct {
		TelegramToken  string
		TelegramChatID string
	}

	Live struct {
		Symbol       string
		Interval     string
		Engine       string
		PollInterval time.Duration
		StaleAfter   time.Duration
		SessionDir   string
		WindowBars   int
	}
}

func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getEnvBool("LOG_PRETTY", true),
		Workers:     getEnvInt("WORKERS", runtime.NumCPU()),
		DataRoot:    getEnv("DATA_ROOT", "data"),
		ResultsDir:  getEnv("RESULTS_DIR", "results"),
	}

	cfg.Monitoring.MetricsAddr = getEnv("METRICS_ADDR", "")

	cfg.Bybit.APIKey = getEnv("BYBIT_API_KEY", "")
	cfg.Bybit.Secret = getEnv("BYBIT_API_SECRET", "")
	cfg.Bybit.Testnet = getEnvBool("BYBIT_TESTNET", false)
	cfg.Bybit.Category = strings.ToLower(getEnv("BYBIT_CATEGORY", "linear"))

	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	cfg.Live.Symbol = strings.ToUpper(getEnv("LIVE_SYMBOL", "XAUUSDT"))
	cfg.Live.Interval = getEnv("LIVE_INTERVAL", "5m")
	cfg.Live.Engine = strings.ToLower(getEnv("LIVE_ENGINE", "gold"))
	cfg.Live.PollInterval = getEnvDuration("LIVE_POLL_INTERVAL", 15*time.Second)
	cfg.Live.StaleAfter = getEnvDuration("LIVE_STALE_AFTER", time.Hour)
	cfg.Live.SessionDir = getEnv("LIVE_SESSION_DIR", "logs")
	cfg.Live.WindowBars = getEnvInt("LIVE_WINDOW_BARS", 300)

	return cfg
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultVal
}

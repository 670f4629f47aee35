package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ENV", "LOG_LEVEL", "WORKERS", "METRICS_ADDR", "BYBIT_CATEGORY", "LIVE_ENGINE", "LIVE_POLL_INTERVAL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Empty(t, cfg.Monitoring.MetricsAddr)
	assert.Equal(t, "linear", cfg.Bybit.Category)
	assert.Equal(t, "gold", cfg.Live.Engine)
	assert.Equal(t, 15*time.Second, cfg.Live.PollInterval)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENV", "Production")
	t.Setenv("WORKERS", "3")
	t.Setenv("BYBIT_TESTNET", "true")
	t.Setenv("LIVE_SYMBOL", "btcusdt")
	t.Setenv("LIVE_ENGINE", "MSS")
	t.Setenv("LIVE_POLL_INTERVAL", "1m")
	t.Setenv("LIVE_STALE_AFTER", "-1h")
	t.Setenv("LOG_PRETTY", "nope")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.Bybit.Testnet)
	assert.Equal(t, "BTCUSDT", cfg.Live.Symbol)
	assert.Equal(t, "mss", cfg.Live.Engine)
	assert.Equal(t, time.Minute, cfg.Live.PollInterval)
	assert.Equal(t, time.Hour, cfg.Live.StaleAfter)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "123:abc", cfg.Notifications.TelegramToken)
	assert.Equal(t, "-100", cfg.Notifications.TelegramChatID)
}

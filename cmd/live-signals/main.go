package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ducminhle1904/strategy-lab/cmd/common"
	"github.com/ducminhle1904/strategy-lab/internal/exchange/bybit"
	"github.com/ducminhle1904/strategy-lab/internal/live"
	"github.com/ducminhle1904/strategy-lab/internal/logger"
	"github.com/ducminhle1904/strategy-lab/internal/monitoring"
	"github.com/ducminhle1904/strategy-lab/internal/notifications"
	"github.com/ducminhle1904/strategy-lab/internal/signals"
	"github.com/ducminhle1904/strategy-lab/pkg/reporting"
)

const appName = "live-signals"

func main() {
	fs := flag.CommandLine
	flags := common.RegisterCommonFlags(fs)
	symbol := fs.String("symbol", "", "Symbol (overrides LIVE_SYMBOL)")
	interval := fs.String("interval", "", "Bar interval such as 5m or 1h (overrides LIVE_INTERVAL)")
	engine := fs.String("engine", "", "Signal engine: mss or gold (overrides LIVE_ENGINE)")

	common.NewUsageFormatter(appName, "Evaluate breakout signals on live Bybit klines (no orders)").
		AddExample(appName+" -symbol XAUUSDT -interval 5m -engine gold", "Gold box breakouts on 5m bars").
		AddExample(appName+" -engine mss -metrics :9090", "MSS signals with /metrics and /health").
		Install(fs)
	flag.Parse()

	if *flags.Version {
		common.PrintVersion(appName)
		return
	}

	cfg, log, err := common.Setup(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Live.Symbol = strings.ToUpper(*symbol)
	}
	if *interval != "" {
		cfg.Live.Interval = *interval
	}
	if *engine != "" {
		cfg.Live.Engine = strings.ToLower(*engine)
	}

	if err := common.NewFlagValidator().
		ValidateChoice("engine", cfg.Live.Engine, []string{signals.EngineMSS, signals.EngineGold}).
		GetError(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	session, err := logger.NewSessionLogger(cfg.Live.SessionDir, cfg.Live.Symbol, cfg.Live.Interval, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session log")
	}
	defer session.Close()

	evaluator, err := signals.New(cfg.Live.Engine, cfg.Live.Symbol, signals.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build evaluator")
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Bybit.APIKey,
		APISecret: cfg.Bybit.Secret,
		Testnet:   cfg.Bybit.Testnet,
		Category:  cfg.Bybit.Category,
	}, log)

	var notifier notifications.Notifier
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.TelegramChatID != "" {
		notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := reporting.NewDefaultConsoleReporter(os.Stdout)
	sink := func(ev live.Event) {
		if !ev.HasSignal() {
			return
		}
		fmt.Printf("\n%s  %s\n", ev.Bar.Timestamp.Format("2006-01-02 15:04"), ev.Signal)
		console.PrintSignalState(ev.State)
		if notifier != nil {
			msg := fmt.Sprintf("%s %s\n%s", cfg.Live.Symbol, cfg.Live.Interval, ev.Signal)
			if err := notifier.SendAlert(ctx, notifications.LevelSignal, msg); err != nil {
				session.Warn().Err(err).Msg("notification failed")
			}
		}
	}

	runner, err := live.NewRunner(live.Config{
		Symbol:       cfg.Live.Symbol,
		Interval:     cfg.Live.Interval,
		PollInterval: cfg.Live.PollInterval,
		WindowBars:   cfg.Live.WindowBars,
	}, client, evaluator, sink, session.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build live runner")
	}
	health := monitoring.NewHealthChecker(cfg.Live.StaleAfter)
	runner.WithHealth(health)

	common.StartMonitoringServer(ctx, cfg.Monitoring.MetricsAddr, health, log)

	log.Info().
		Str("symbol", cfg.Live.Symbol).
		Str("interval", cfg.Live.Interval).
		Str("engine", evaluator.Name()).
		Str("environment", client.GetEnvironment()).
		Str("session", runner.SessionID()).
		Str("log_file", session.Path()).
		Msg("watching for signals, Ctrl+C to stop")

	if err := runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("live runner failed")
	}
}

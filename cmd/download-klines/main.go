package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ducminhle1904/strategy-lab/cmd/common"
	"github.com/ducminhle1904/strategy-lab/internal/exchange/bybit"
)

const appName = "download-klines"

func main() {
	fs := flag.CommandLine
	flags := common.RegisterCommonFlags(fs)
	symbols := fs.String("symbols", "XAUUSDT", "Comma-separated symbols")
	intervals := fs.String("intervals", "5m,1h", "Comma-separated intervals such as 5m,1h,1d")
	category := fs.String("category", "", "Market category: spot, linear or inverse (overrides BYBIT_CATEGORY)")
	startDate := fs.String("start", "", "Start date YYYY-MM-DD (default one year ago)")
	endDate := fs.String("end", "", "End date YYYY-MM-DD (default now)")

	common.NewUsageFormatter(appName, "Download Bybit klines into the data directory layout").
		AddExample(appName+" -symbols XAUUSDT,BTCUSDT -intervals 5m,1h -start 2024-01-01", "Two symbols, two intervals").
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
	if *category != "" {
		cfg.Bybit.Category = strings.ToLower(*category)
	}

	end := time.Now().UTC()
	start := end.AddDate(-1, 0, 0)
	if *startDate != "" {
		if start, err = time.Parse("2006-01-02", *startDate); err != nil {
			log.Fatal().Err(err).Msg("invalid start date")
		}
	}
	if *endDate != "" {
		if end, err = time.Parse("2006-01-02", *endDate); err != nil {
			log.Fatal().Err(err).Msg("invalid end date")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := bybit.NewClient(bybit.Config{Testnet: cfg.Bybit.Testnet, Category: cfg.Bybit.Category}, log)

	failed := 0
	for _, symbol := range splitList(*symbols, strings.ToUpper) {
		for _, iv := range splitList(*intervals, strings.ToLower) {
			code, err := bybit.ParseInterval(iv)
			if err != nil {
				log.Error().Err(err).Msg("skipping interval")
				failed++
				continue
			}
			bars, err := fetchRange(ctx, client, symbol, code, start, end, log)
			if err != nil {
				log.Error().Err(err).Str("symbol", symbol).Str("interval", iv).Msg("download failed")
				failed++
				continue
			}
			path := candlesPath(cfg.DataRoot, client.Category(), symbol, iv)
			if err := writeCandlesCSV(bars, path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("write failed")
				failed++
				continue
			}
			log.Info().Str("symbol", symbol).Str("interval", iv).Int("bars", len(bars)).Str("path", path).Msg("saved")
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

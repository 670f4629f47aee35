package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ducminhle1904/strategy-lab/cmd/common"
	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
)

const appName = "backtest"

func main() {
	fs := flag.CommandLine
	flags := common.RegisterCommonFlags(fs)
	jobPath := fs.String("job", "", "Job file (.json, .yaml or .yml)")

	common.NewUsageFormatter(appName, "Run a backtest, walk-forward or optimization job").
		AddExample(appName+" -job jobs/sma_cross.yaml", "Backtest a strategy definition").
		AddExample(appName+" -job jobs/search.json -out results/search -metrics :9090", "Optimize with a metrics endpoint").
		Install(fs)
	flag.Parse()

	if *flags.Version {
		common.PrintVersion(appName)
		return
	}

	if err := common.NewFlagValidator().ValidateFile("job", *jobPath, true).GetError(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		os.Exit(2)
	}

	cfg, log, err := common.Setup(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	common.StartMonitoringServer(ctx, cfg.Monitoring.MetricsAddr, nil, log)

	opts := options{
		JobPath:     *jobPath,
		OutputDir:   *flags.OutputDir,
		ConsoleOnly: *flags.ConsoleOnly,
	}
	if _, err := run(ctx, opts, cfg, os.Stdout, log); err != nil {
		log.Error().Err(err).Str("category", string(errs.CategoryOf(err))).Msg("job failed")
		if errs.IsConfiguration(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-corpus/internal/app"
	"github.com/JakeFAU/topic-corpus/internal/config"
	"github.com/JakeFAU/topic-corpus/internal/logging"
)

const usage = `usage: topiccorpus [-config path] <crawl|index|serve>`

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	command := flag.Arg(0)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		Name:        "topiccorpus",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil && !errors.Is(syncErr, syscall.EINVAL) {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build application failed", zap.Error(err))
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		a.Close(closeCtx)
		logger.Info("shutdown complete")
	}()

	switch command {
	case "crawl":
		res, err := a.Crawl(ctx)
		if err != nil {
			logger.Error("crawl failed", zap.Error(err))
			return 1
		}
		for _, tr := range res.Report.Topics {
			logger.Info("topic summary",
				zap.String("topic", tr.Topic),
				zap.Int("documents", tr.Documents),
				zap.Int("quota", tr.Quota),
				zap.Int("seeds_skipped", tr.SeedsSkipped),
				zap.Any("fetch_failures", tr.FetchFailures),
				zap.String("error", tr.Error),
			)
		}
	case "index":
		if _, err := a.BuildIndex(ctx); err != nil {
			logger.Error("index build failed", zap.Error(err))
			return 1
		}
	case "serve":
		if err := a.Serve(ctx); err != nil {
			logger.Error("serve failed", zap.Error(err))
			return 1
		}
	default:
		logger.Error("unknown command", zap.String("command", command))
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	return 0
}

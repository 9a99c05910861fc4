// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kinetiq/formcoach/internal/api"
	"github.com/kinetiq/formcoach/internal/config"
	xlog "github.com/kinetiq/formcoach/internal/log"
	"github.com/kinetiq/formcoach/internal/pose"
	"github.com/kinetiq/formcoach/internal/session"
	"github.com/kinetiq/formcoach/internal/telemetry"
)

var (
	version   = "v1.2.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		// Logger is not configured yet; use the safe default.
		xlog.Configure(xlog.Config{})
		logger := xlog.WithComponent("daemon")
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	xlog.Configure(xlog.Config{Level: cfg.Log.Level, Service: "coachd"})
	logger := xlog.WithComponent("daemon")

	if *configPath != "" {
		logger.Info().Str("event", "config.loaded").Str("source", "file").Str("path", *configPath).Msg("loaded configuration from file")
	} else {
		logger.Info().Str("event", "config.loaded").Str("source", "env+defaults").Msg("loaded configuration from environment and defaults")
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "coachd",
		ServiceVersion: version,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "telemetry.init_failed").Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	holder := config.NewHolder(cfg, loader)

	extractor := pose.NewRemoteExtractor(
		cfg.Pose.ExtractorEndpoint,
		time.Duration(cfg.Pose.ExtractorTimeoutMs)*time.Millisecond,
	)

	orch, err := session.NewOrchestrator(holder, extractor)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "pipeline.init_failed").Msg("failed to load rule configurations")
	}
	mgr := session.NewManager(holder, orch)
	sweeper := session.NewSweeper(mgr)

	// Rule tables follow every config change, regardless of trigger.
	holder.OnReload(func(next config.Config) {
		if err := orch.ApplyRules(next); err != nil {
			logger.Warn().Err(err).Str("event", "pipeline.rules_reload_failed").Msg("keeping previous rule tables")
		}
	})

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := api.NewHandler(mgr, holder, cancel)
	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Server.Listen).
		Strs("exercises", cfg.Session.SupportedExercises).
		Msg("starting coachd")

	g, gctx := errgroup.WithContext(srvCtx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})

	g.Go(func() error {
		holder.RunPeriodicRefresh(gctx, cfg.Tasks.RetrieveConfigurationInterval())
		return nil
	})

	if err := holder.StartWatcher(gctx); err != nil {
		logger.Warn().Err(err).Str("event", "config.watcher_failed").Msg("continuing without config file watcher")
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("coachd failed")
	}
	logger.Info().Msg("server exiting")
}

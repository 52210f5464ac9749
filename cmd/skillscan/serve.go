// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/skillscan/internal/api"
	"github.com/kraklabs/skillscan/internal/errors"
	"github.com/kraklabs/skillscan/internal/ui"
)

// runServe executes the 'serve' CLI command, starting skillscan's HTTP API
// and (optionally) a background rescan loop.
//
// Flags:
//   - --listen: HTTP listen address (default: config's listen_addr, or :8080)
//   - --metrics-addr: separate address to expose Prometheus /metrics on
//   - --rescan: enable the background rescan scheduler
func runServe(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listenAddr := fs.String("listen", "", "HTTP listen address (overrides config)")
	metricsAddr := fs.String("metrics-addr", "", "HTTP address for Prometheus metrics (empty to disable)")
	enableRescan := fs.Bool("rescan", false, "Run the background rescan scheduler alongside the HTTP server")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: skillscan serve [options]

Starts skillscan's HTTP API: POST /api/analyze/scan, /security,
/permissions, /rescan, and GET /api/analyze/scan/health.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(globals)
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	logger := newLogger(globals)
	store := openStore(cfg, globals)
	if store != nil {
		defer store.Close()
	}

	orch := newOrchestrator(cfg, store, logger)
	scheduler := newRescanScheduler(cfg, store, orch, logger)

	server := &api.Server{
		Scanner:   orch,
		Ingester:  ingestOnlyAdapter{cfg: cfg, logger: logger},
		Rescanner: rescanAdapter{scheduler: scheduler, enabled: store != nil},
		Config:    cfg,
		Logger:    logger,
	}
	router := api.NewRouter(server)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	if *enableRescan && store != nil {
		go scheduler.Run(ctx)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	ui.Successf("skillscan listening on %s", cfg.ListenAddr)
	logger.Info("api.http.start", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errors.FatalError(errors.NewNetworkError(
			"HTTP server failed",
			err.Error(),
			"check that the listen address is not already in use",
			err,
		), globals.JSON)
	}
}

// rescanAdapter adapts a *rescan.Scheduler to api.Rescanner, refusing to
// run when no persistence store is configured (there would be nothing to
// read stale versions from).
type rescanAdapter struct {
	scheduler interface {
		RescanOnce(ctx context.Context) int
	}
	enabled bool
}

func (r rescanAdapter) RescanOnce(ctx context.Context) int {
	if !r.enabled {
		return 0
	}
	return r.scheduler.RescanOnce(ctx)
}

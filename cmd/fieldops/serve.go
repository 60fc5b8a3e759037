package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/fieldops/internal/api"
	"github.com/miradorstack/fieldops/internal/metrics"
	"github.com/miradorstack/fieldops/internal/repo"
)

func newServeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API, gRPC health and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), state)
		},
	}
}

func serve(parent context.Context, state *cliState) error {
	cfg, logger := state.cfg, state.logger
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var health *api.HealthServer
	if cfg.Server.GRPCAddress != "" {
		health, err = api.NewHealthServer(cfg.Server.GRPCAddress)
		if err != nil {
			return err
		}
		a.loader.OnLoad(health.ObserveLoad)
	}

	if _, err := a.loader.Load(ctx); err != nil {
		logger.Warn("initial dataset load failed, serving degraded", slog.Any("error", err))
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           api.NewRouter(api.NewHandlers(logger, a.triage, a.assistant, a.loader)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		return listen(httpServer)
	})
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			return listen(metricsServer)
		})
	}
	if health != nil {
		g.Go(func() error {
			logger.Info("grpc health server listening", slog.String("address", health.Address()))
			return health.Start()
		})
	}
	if cfg.Fixtures.Watch && cfg.Fixtures.Dir != "" && cfg.Warehouse.DSN == "" {
		g.Go(func() error {
			return repo.WatchFixtures(gctx, cfg.Fixtures.Dir, a.loader, logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", slog.Any("error", err))
			}
		}
		if health != nil {
			health.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("fieldops stopped")
	return nil
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

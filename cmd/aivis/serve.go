package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/metrics"
	chiTransport "github.com/kailas-cloud/aivis/internal/transport/chi"
	"github.com/kailas-cloud/aivis/internal/usecase/admission"
	"github.com/kailas-cloud/aivis/internal/version"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Serves run streams over SSE plus slots, models, usage, health and metrics endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := cfg.HTTP.Port
		if servePort > 0 {
			port = servePort
		}

		logger.Info("Starting aivis API server",
			zap.String("version", version.Version),
			zap.String("commit", version.Commit),
			zap.String("env", envName),
			zap.Int("http_port", port),
			zap.String("db_driver", cfg.Database.Driver),
			zap.Bool("redis", cfg.Redis.Enabled()),
			zap.Int("models", len(cfg.Models)),
		)

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		registry := admission.New(cfg.Admission.Limit, logger).WithGauge(metrics.ActiveRuns)
		go registry.Start(ctx, time.Duration(cfg.Admission.SweepIntervalSec)*time.Second)

		server := chiTransport.NewServer(a.orchestrator, registry, a.usage, a.health, logger).
			WithKeepalive(time.Duration(cfg.HTTP.KeepaliveSec) * time.Second)

		// BaseContext ends open run streams when the process is asked to stop.
		addr := fmt.Sprintf(":%d", port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
			ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
		case <-ctx.Done():
			logger.Info("Received shutdown signal")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}

		logger.Info("Server stopped gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides http.port)")
	rootCmd.AddCommand(serveCmd)
}

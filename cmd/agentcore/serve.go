package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/httpapi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentcore/internal/auth"
	"github.com/haasonsaas/agentcore/internal/observability"
)

// buildServeCmd runs the C5/C8 HTTP API: approval-protocol endpoints
// plus the SSE event stream. Grounded on the teacher's buildServeCmd/
// handlers_serve.go (http.Server + signal.NotifyContext shutdown), with
// the teacher's multi-channel listener startup dropped since this
// system has a single HTTP surface.
func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, cfg appconfig.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := buildLogger(cfg)
	metrics := observability.NewMetrics()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	dispatcher, err := openDispatcher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open dispatcher: %w", err)
	}
	defer dispatcher.Close()

	var jwtSvc *auth.JWTService
	if cfg.Auth.JWTSecret != "" {
		jwtSvc = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	} else {
		jwtSvc = auth.NewJWTService("", 0)
	}

	handler := httpapi.NewHandler(httpapi.Config{
		Store:      st,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Slog(),
	})

	mux := http.NewServeMux()
	mux.Handle("/", auth.Middleware(jwtSvc, logger.Slog())(handler))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort)
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info(ctx, "serving HTTP API", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Info(ctx, "serving metrics", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	return nil
}

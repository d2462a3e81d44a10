package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	apperrors "github.com/copyleftdev/sharksmell/internal/errors"
	"github.com/copyleftdev/sharksmell/internal/metrics"
	"github.com/copyleftdev/sharksmell/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves the run API under /api/v1, a health check at /healthz and
Prometheus metrics at /metrics until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.HTTP.Port = port
			}
			cmd.SilenceUsage = true
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Listen port (default HTTP_PORT)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	serviceLogger := a.logger.WithFields(map[string]interface{}{
		"service": "sso",
		"version": version,
	})

	m := metrics.New(prometheus.DefaultRegisterer)
	srv := server.NewServer(a.cfg, serviceLogger, m)

	r := srv.Router()
	r.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address": httpServer.Addr,
		})
		if err := httpServer.ListenAndServe(); err != nil && !apperrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return apperrors.Wrapf(err, "listen on %s", httpServer.Addr).WithComponent("server")
		}
		return nil
	case <-ctx.Done():
	}

	serviceLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(err).Error("Server forced to shutdown")
		return err
	}
	if err := srv.Close(); err != nil {
		serviceLogger.WithError(err).Error("Error closing server resources")
	}

	serviceLogger.Info("Server stopped")
	return nil
}

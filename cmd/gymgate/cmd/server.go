package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/soroboxing/gymgate/api"
	"github.com/soroboxing/gymgate/auth"
	"github.com/soroboxing/gymgate/web"
)

func newServerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the gymgate web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServer(cmd)
		},
	}
	f := cmd.Flags()
	f.IntP("port", "p", 8080, "Port to listen on")
	f.Bool("production", false, "Always mark cookies Secure")
	f.String("tls-cert", "", "Path to TLS certificate file")
	f.String("tls-key", "", "Path to TLS key file")
	f.String("otel-endpoint", "", "OTLP/HTTP endpoint for trace export, e.g. http://collector:4318")
	return cmd
}

func (a *app) runServer(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := a.cfg

	var authOpts []auth.Option
	if cfg.OTelEndpoint != "" {
		tp, err := setupTracing(ctx, cfg.OTelEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("flushing traces failed", "error", err)
			}
		}()
		authOpts = append(authOpts, auth.WithTracerProvider(tp))
	}

	svc, closeStores, err := a.openService(ctx, authOpts...)
	if err != nil {
		return err
	}
	defer closeStores()

	handler, err := a.newHandler(svc)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSCert != "" {
			err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	printBanner(cmd.OutOrStdout())
	a.logger.Info("server starting",
		"port", cfg.Port,
		"store", cfg.Store,
		"session_store", cfg.SessionStore,
		"session_ttl", svc.TTL().String(),
		"tls", cfg.TLSCert != "",
		"production", cfg.Production)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		a.logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}

// newHandler assembles the top-level router: health and metrics, the JSON
// API and the gated web pages.
func (a *app) newHandler(svc *auth.Service) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	restAPI := api.New(svc,
		api.WithLogger(a.logger),
		api.WithProduction(a.cfg.Production),
		api.WithRegisterer(reg),
		api.WithAlertFunc(func(e api.AlertEvent) {
			a.logger.Warn("auth alert",
				slog.String("type", string(e.Type)),
				slog.Int("count", e.Count),
				slog.Int("threshold", e.Threshold))
		}),
	)

	pages, err := web.Handler(memberName)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount(api.MountPath, restAPI.Router())
	r.With(restAPI.PageGate).Handle("/*", pages)
	return r, nil
}

func memberName(r *http.Request) string {
	ac, ok := api.AuthContextFrom(r.Context())
	if !ok || !ac.Authenticated {
		return ""
	}
	return ac.Identity.Identifier
}

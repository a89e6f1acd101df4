// Command ffcsd serves the FFCS lab workflow API over HTTP.
package main

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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jacentio/ffcs/internal/config"
	"github.com/jacentio/ffcs/internal/httpapi"
	"github.com/jacentio/ffcs/lifecycle"
	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/query"
	"github.com/jacentio/ffcs/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("ffcsd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	s, err := store.Open(ctx, backend, cfg.Store)
	if err != nil {
		return err
	}
	s.SetLogger(logger)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = s.Close(closeCtx)
	}()
	if err := s.EnsureSchemas(ctx); err != nil {
		return err
	}

	h := &httpapi.Handler{
		Engine:  lifecycle.New(s, notify.NewLog(s, logger), logger),
		Queries: query.New(s, logger),
		Logger:  logger,
	}
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(h, httpapi.Options{
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			Metrics:            promhttp.Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", cfg.HTTPAddr,
			"backend", cfg.Backend,
			"transactional", s.Transactional(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ch:
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		return store.OpenMongo(cfg.URI, cfg.Store)
	case config.BackendDynamo:
		return store.OpenDynamo(ctx, cfg.AWSRegion, cfg.DynamoEndpoint, cfg.Store)
	case config.BackendMemory:
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", store.ErrConfiguration, cfg.Backend)
}

// Package app wires settings, artifacts, metrics and the journal into a
// ready prediction service for the entry points in cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"loan-predictor/internal/cfg"
	"loan-predictor/internal/metrics"
	"loan-predictor/internal/ml"
	"loan-predictor/internal/storage"
)

type App struct {
	Settings cfg.Settings
	Service  *ml.Service
	Metrics  *metrics.Metrics
	Store    *storage.Store
}

type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers metrics somewhere other than the default registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// New loads the artifacts named in settings. Any failure here is fatal for a
// server: it must not start without a model.
func New(settings cfg.Settings, opts ...Option) (*App, error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	artifacts, err := ml.LoadArtifacts(settings.ScalerPath, settings.ModelPath, settings.MetadataPath, ml.LoadOptions{
		PythonPath: settings.PythonPath,
		Timeout:    settings.InferenceTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}

	a := &App{Settings: settings}
	var svcOpts []ml.Option

	if settings.EnableMetrics {
		a.Metrics = metrics.NewWithRegistry(o.registerer)
		svcOpts = append(svcOpts, ml.WithMetrics(metrics.NewRecorder(a.Metrics)))
	}

	if settings.DataPath != "" {
		store, err := storage.New(settings.DataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open prediction journal: %w", err)
		}
		a.Store = store
		svcOpts = append(svcOpts, ml.WithJournal(store))
		log.Info().Str("data_path", settings.DataPath).Msg("prediction journal enabled")
	}

	svc, err := ml.NewServiceFromArtifacts(artifacts, svcOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Server is what Serve runs; api.Server satisfies it.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Serve runs srv until SIGINT/SIGTERM or ctx is cancelled, then drains it
// within shutdownTimeout.
func Serve(ctx context.Context, srv Server, shutdownTimeout time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

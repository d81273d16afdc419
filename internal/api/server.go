// Package api serves loan predictions over HTTP as JSON.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"loan-predictor/internal/common"
	"loan-predictor/internal/features"
	"loan-predictor/internal/metrics"
	"loan-predictor/internal/ml"
)

// Predictor is the part of ml.Service the HTTP layer needs.
type Predictor interface {
	Predict(ctx context.Context, rec features.UserRecord, source string) (*ml.Result, error)
	Health() *ml.HealthStatus
	Info() ml.ModelInfo
}

type Options struct {
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	InferenceTimeout time.Duration

	// Metrics enables HTTP metrics and GET /metrics when set.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// Source tags journal entries written for requests to this server.
	Source string
}

// Server exposes POST /predict, GET /health and GET /model/info, plus
// GET /metrics when metrics are enabled.
type Server struct {
	svc    Predictor
	opts   Options
	mux    *http.ServeMux
	server *http.Server
}

func NewServer(svc Predictor, opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = common.DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = common.DefaultWriteTimeout
	}
	if opts.InferenceTimeout <= 0 {
		opts.InferenceTimeout = common.DefaultInferenceTimeout
	}
	if opts.Source == "" {
		opts.Source = common.SourceAPI
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		svc:  svc,
		opts: opts,
		mux:  http.NewServeMux(),
	}

	s.Handle("/predict", http.HandlerFunc(s.handlePredict))
	s.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.Handle("/model/info", http.HandlerFunc(s.handleModelInfo))
	if opts.Metrics != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handle mounts an extra handler on the server's mux. pattern doubles as the
// metrics route label.
func (s *Server) Handle(pattern string, h http.Handler) {
	if s.opts.Metrics != nil {
		h = s.opts.Metrics.HTTPMiddleware(pattern, h)
	}
	s.mux.Handle(pattern, h)
}

// Handler returns the full middleware chain around the mux.
func (s *Server) Handler() http.Handler {
	return requestIDMiddleware(loggingMiddleware(s.mux))
}

func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves until Shutdown; it returns http.ErrServerClosed after a clean stop.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

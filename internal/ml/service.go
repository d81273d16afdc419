package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"loan-predictor/internal/features"
	"loan-predictor/internal/storage"
)

const (
	LabelRepaid     = "Repaid"
	LabelDefaulted  = "Defaulted"
	repaidClass     = 1
	unhealthyErrors = 0.1
)

// MetricsInterface defines the metrics the service reports.
type MetricsInterface interface {
	PredictionsInc(outcome string)
	FailuresInc()
	LatencyObserve(seconds float64)
	ProbabilityObserve(p float64)
	BracketInc(bracket string)
	ModelAgeSet(seconds float64)
}

// Journal persists served predictions.
type Journal interface {
	SavePrediction(storage.Record) error
}

// Result is the outcome of a single prediction.
type Result struct {
	ID          string                 `json:"id"`
	Prediction  string                 `json:"prediction"`
	Probability float64                `json:"probability"`
	Label       int                    `json:"label"`
	Bracket     string                 `json:"income_bracket"`
	Features    features.FeatureVector `json:"-"`
}

type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	LastCheck       time.Time `json:"last_check"`
	ModelLoaded     bool      `json:"model_loaded"`
	AverageLatency  float64   `json:"average_latency_ms"`
	PredictionCount int64     `json:"prediction_count"`
	ErrorCount      int64     `json:"error_count"`
	ErrorRate       float64   `json:"error_rate"`
	LastError       string    `json:"last_error,omitempty"`
	ModelVersion    string    `json:"model_version"`
	Backend         string    `json:"backend"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

// ModelInfo describes the loaded artifacts.
type ModelInfo struct {
	ModelMetadata `yaml:",inline"`

	Classes          []int    `json:"classes" yaml:"classes"`
	NumericalColumns []string `json:"numerical_columns" yaml:"numerical_columns"`
}

// PerformanceStats tracks inference outcomes since start. Rejected input is
// not counted: it says nothing about the model.
type PerformanceStats struct {
	mu           sync.RWMutex
	predictions  int64
	errors       int64
	totalLatency time.Duration
	lastError    string
	startTime    time.Time
}

type Option func(*Service)

func WithMetrics(m MetricsInterface) Option {
	return func(s *Service) { s.metrics = m }
}

func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// Service scores user records with the loaded artifacts. All of its state
// apart from the counters is read-only, so one Service serves every request.
type Service struct {
	pre      *features.Preprocessor
	clf      Classifier
	metadata *ModelMetadata
	metrics  MetricsInterface
	journal  Journal
	stats    *PerformanceStats
	now      func() time.Time
}

func NewService(pre *features.Preprocessor, clf Classifier, md *ModelMetadata, opts ...Option) (*Service, error) {
	if pre == nil {
		return nil, errors.New("preprocessor is required")
	}
	if clf == nil {
		return nil, errors.New("classifier is required")
	}
	if classIndex(clf.Classes(), repaidClass) < 0 {
		log.Warn().Ints("classes", clf.Classes()).Msg("Classifier has no repaid class; every prediction will be Defaulted")
	}
	if md == nil {
		md = defaultMetadata()
	}

	s := &Service{
		pre:      pre,
		clf:      clf,
		metadata: md,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stats = &PerformanceStats{startTime: s.now()}

	if s.metrics != nil {
		if t := md.ModelTime(); !t.IsZero() {
			s.metrics.ModelAgeSet(s.now().Sub(t).Seconds())
		}
	}
	return s, nil
}

// NewServiceFromArtifacts is NewService over the output of LoadArtifacts.
func NewServiceFromArtifacts(a *Artifacts, opts ...Option) (*Service, error) {
	return NewService(a.Preprocessor, a.Classifier, a.Metadata, opts...)
}

// Predict scores one record. source tags the journal entry with the front end
// that served it.
func (s *Service) Predict(ctx context.Context, rec features.UserRecord, source string) (*Result, error) {
	start := s.now()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	vec, err := s.pre.Transform(rec)
	if err != nil {
		if !features.IsInputError(err) {
			s.recordError(err)
		}
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	label, proba, err := s.score(ctx, vec.Slice())
	if err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("inference: %w", err)
	}

	idx := classIndex(s.clf.Classes(), label)
	if idx < 0 || idx >= len(proba) {
		err := fmt.Errorf("predicted label %d has no probability", label)
		s.recordError(err)
		return nil, err
	}

	res := &Result{
		ID:          uuid.NewString(),
		Prediction:  LabelFor(label),
		Probability: proba[idx],
		Label:       label,
		Bracket:     vec.Bracket().String(),
		Features:    vec,
	}

	latency := s.now().Sub(start)
	s.recordPrediction(res, latency)
	s.save(rec, res, source, start, latency)

	log.Debug().
		Str("id", res.ID).
		Str("source", source).
		Str("prediction", res.Prediction).
		Float64("probability", res.Probability).
		Str("income_bracket", res.Bracket).
		Dur("latency", latency).
		Msg("Prediction served")

	return res, nil
}

func (s *Service) score(ctx context.Context, x []float64) (int, []float64, error) {
	if sc, ok := s.clf.(Scorer); ok {
		return sc.Score(ctx, x)
	}
	label, err := s.clf.Predict(ctx, x)
	if err != nil {
		return 0, nil, err
	}
	proba, err := s.clf.PredictProba(ctx, x)
	if err != nil {
		return 0, nil, err
	}
	return label, proba, nil
}

// LabelFor maps a class label to its outcome name.
func LabelFor(label int) string {
	if label == repaidClass {
		return LabelRepaid
	}
	return LabelDefaulted
}

func (s *Service) save(rec features.UserRecord, res *Result, source string, ts time.Time, latency time.Duration) {
	if s.journal == nil {
		return
	}
	err := s.journal.SavePrediction(storage.Record{
		ID:           res.ID,
		Timestamp:    ts.UTC(),
		Source:       source,
		Input:        rec,
		Bracket:      res.Bracket,
		Features:     res.Features.Slice(),
		Prediction:   res.Prediction,
		Label:        res.Label,
		Probability:  res.Probability,
		ModelVersion: s.metadata.Version,
		LatencyMs:    float64(latency.Microseconds()) / 1000,
	})
	if err != nil {
		log.Warn().Err(err).Str("id", res.ID).Msg("Failed to journal prediction")
	}
}

func (s *Service) recordPrediction(res *Result, latency time.Duration) {
	s.stats.mu.Lock()
	s.stats.predictions++
	s.stats.totalLatency += latency
	s.stats.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PredictionsInc(res.Prediction)
		s.metrics.LatencyObserve(latency.Seconds())
		s.metrics.ProbabilityObserve(res.Probability)
		s.metrics.BracketInc(res.Bracket)
	}
}

func (s *Service) recordError(err error) {
	s.stats.mu.Lock()
	s.stats.errors++
	s.stats.lastError = err.Error()
	s.stats.mu.Unlock()

	if s.metrics != nil {
		s.metrics.FailuresInc()
	}
}

// Health reports the current serving state. The service is unhealthy once
// a tenth or more of inference attempts have failed.
func (s *Service) Health() *HealthStatus {
	s.stats.mu.RLock()
	predictions := s.stats.predictions
	errs := s.stats.errors
	totalLatency := s.stats.totalLatency
	lastError := s.stats.lastError
	started := s.stats.startTime
	s.stats.mu.RUnlock()

	var avgLatency float64
	if predictions > 0 {
		avgLatency = float64(totalLatency.Microseconds()) / 1000 / float64(predictions)
	}

	var errorRate float64
	if attempts := predictions + errs; attempts > 0 {
		errorRate = float64(errs) / float64(attempts)
	}

	now := s.now()
	return &HealthStatus{
		Healthy:         errorRate < unhealthyErrors,
		LastCheck:       now,
		ModelLoaded:     true,
		AverageLatency:  avgLatency,
		PredictionCount: predictions,
		ErrorCount:      errs,
		ErrorRate:       errorRate,
		LastError:       lastError,
		ModelVersion:    s.metadata.Version,
		Backend:         s.metadata.Backend,
		UptimeSeconds:   now.Sub(started).Seconds(),
	}
}

func (s *Service) Info() ModelInfo {
	return ModelInfo{
		ModelMetadata:    *s.metadata,
		Classes:          s.clf.Classes(),
		NumericalColumns: features.NumericalColumns,
	}
}

// Package metrics provides Prometheus metrics for the loan prediction service.
// It covers model predictions (outcomes, probabilities, latency, failures),
// the income bracket mix of scored applicants, model age, and the HTTP front
// ends serving them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions        *prometheus.CounterVec // Served predictions by outcome
	PredictionFailures prometheus.Counter     // Inference failures
	PredictionLatency  prometheus.Histogram   // End-to-end prediction latency in seconds
	Probability        prometheus.Histogram   // Probability of the predicted class
	IncomeBrackets     *prometheus.CounterVec // Scored applicants by income bracket
	ModelAge           prometheus.Gauge       // Age of the loaded model in seconds

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route, method and status code
	HTTPDuration *prometheus.HistogramVec // Request duration by route
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_predictions_total",
			Help: "Total number of predictions served, by outcome",
		}, []string{"outcome"}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_prediction_failures_total",
			Help: "Total number of failed inferences",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (preprocessing and inference)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		Probability: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_prediction_probability",
			Help:    "Probability assigned to the predicted class",
			Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
		}),
		IncomeBrackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_income_bracket_total",
			Help: "Scored applicants by income bracket",
		}, []string{"bracket"}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loan_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

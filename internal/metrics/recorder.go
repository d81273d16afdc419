package metrics

// Recorder reports prediction service events to Prometheus. It satisfies
// ml.MetricsInterface.
type Recorder struct {
	m *Metrics
}

func NewRecorder(m *Metrics) *Recorder {
	return &Recorder{m: m}
}

func (r *Recorder) PredictionsInc(outcome string) {
	r.m.Predictions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) FailuresInc() {
	r.m.PredictionFailures.Inc()
}

func (r *Recorder) LatencyObserve(seconds float64) {
	r.m.PredictionLatency.Observe(seconds)
}

func (r *Recorder) ProbabilityObserve(p float64) {
	r.m.Probability.Observe(p)
}

func (r *Recorder) BracketInc(bracket string) {
	r.m.IncomeBrackets.WithLabelValues(bracket).Inc()
}

func (r *Recorder) ModelAgeSet(seconds float64) {
	r.m.ModelAge.Set(seconds)
}

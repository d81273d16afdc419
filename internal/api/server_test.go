package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-predictor/internal/features"
	"loan-predictor/internal/metrics"
	"loan-predictor/internal/ml"
)

const scalerJSON = `{"mean":[0,0,0,0,0,0,0],"scale":[1,1,1,1,1,1,1]}`

const forestJSON = `{
  "type": "random_forest",
  "n_features": 10,
  "trees": [{
    "children_left":  [1, -1, -1],
    "children_right": [2, -1, -1],
    "feature":        [1, -2, -2],
    "threshold":      [8.0, -2, -2],
    "value":          [[4, 5], [3, 1], [1, 4]]
  }]
}`

func newService(t *testing.T) *ml.Service {
	t.Helper()
	dir := t.TempDir()
	scalerPath := filepath.Join(dir, "scaler.json")
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(scalerPath, []byte(scalerJSON), 0o600))
	require.NoError(t, os.WriteFile(modelPath, []byte(forestJSON), 0o600))

	a, err := ml.LoadArtifacts(scalerPath, modelPath, "", ml.LoadOptions{})
	require.NoError(t, err)
	svc, err := ml.NewServiceFromArtifacts(a)
	require.NoError(t, err)
	return svc
}

// fakePredictor returns canned results.
type fakePredictor struct {
	res     *ml.Result
	err     error
	healthy bool
	gotRec  features.UserRecord
	gotSrc  string
}

func (f *fakePredictor) Predict(_ context.Context, rec features.UserRecord, source string) (*ml.Result, error) {
	f.gotRec, f.gotSrc = rec, source
	return f.res, f.err
}

func (f *fakePredictor) Health() *ml.HealthStatus {
	return &ml.HealthStatus{Healthy: f.healthy, ModelLoaded: true}
}

func (f *fakePredictor) Info() ml.ModelInfo {
	return ml.ModelInfo{ModelMetadata: ml.ModelMetadata{Version: "fake"}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPredict_ExampleRecord(t *testing.T) {
	srv := NewServer(newService(t), Options{})

	rr := do(t, srv.Handler(), http.MethodPost, "/predict",
		`{"age":30,"cash_incoming_30days":5000,"gps_fix_count":10,"unique_locations_count":5,`+
			`"avg_time_between_opens":3600,"night_usage_ratio":0.2,"num_clusters":2}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
	assert.Equal(t, "Repaid", resp["prediction"])
	assert.InDelta(t, 0.8, resp["probability"], 1e-9)
}

func TestPredict_GPSFieldsOptional(t *testing.T) {
	srv := NewServer(newService(t), Options{})

	rr := do(t, srv.Handler(), http.MethodPost, "/predict", `{"age":45,"cash_incoming_30days":150,"extra":"ignored"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp predictResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Defaulted", resp.Prediction)
	assert.InDelta(t, 0.75, resp.Probability, 1e-9)
}

func TestPredict_InputErrors(t *testing.T) {
	srv := NewServer(newService(t), Options{})

	tests := []struct {
		name string
		body string
	}{
		{"missing cash", `{"age":30}`},
		{"missing age", `{"cash_incoming_30days":5000}`},
		{"non-numeric cash", `{"age":30,"cash_incoming_30days":"lots"}`},
		{"fractional count", `{"age":30,"cash_incoming_30days":5000,"gps_fix_count":1.5}`},
		{"malformed json", `{"age":`},
		{"empty body", ``},
		{"cash below log domain", `{"age":30,"cash_incoming_30days":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv.Handler(), http.MethodPost, "/predict", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestPredict_InferenceFailure(t *testing.T) {
	fake := &fakePredictor{err: errors.New("inference: onnxruntime crashed")}
	srv := NewServer(fake, Options{})

	rr := do(t, srv.Handler(), http.MethodPost, "/predict", `{"age":30,"cash_incoming_30days":5000}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "onnxruntime crashed")
}

func TestPredict_ServiceInputError(t *testing.T) {
	fake := &fakePredictor{err: fmt.Errorf("preprocess: %w", features.ErrNonNumeric)}
	srv := NewServer(fake, Options{})

	rr := do(t, srv.Handler(), http.MethodPost, "/predict", `{"age":30,"cash_incoming_30days":5000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPredict_PassesSource(t *testing.T) {
	fake := &fakePredictor{res: &ml.Result{Prediction: "Repaid", Probability: 0.7}}
	srv := NewServer(fake, Options{Source: "form"})

	rr := do(t, srv.Handler(), http.MethodPost, "/predict", `{"age":"30","cash_incoming_30days":"2500.5"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "form", fake.gotSrc)
	assert.Equal(t, features.UserRecord{Age: 30, CashIncoming30Days: 2500.5}, fake.gotRec)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := NewServer(&fakePredictor{healthy: true}, Options{})

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodGet, "/predict", http.MethodPost},
		{http.MethodPost, "/health", http.MethodGet},
		{http.MethodDelete, "/model/info", http.MethodGet},
	}
	for _, tt := range tests {
		rr := do(t, srv.Handler(), tt.method, tt.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, tt.path)
		assert.Equal(t, tt.allow, rr.Header().Get("Allow"))
	}
}

func TestHealth(t *testing.T) {
	rr := do(t, NewServer(&fakePredictor{healthy: true}, Options{}).Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"healthy":true`)

	rr = do(t, NewServer(&fakePredictor{healthy: false}, Options{}).Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealth_RealService(t *testing.T) {
	svc := newService(t)
	srv := NewServer(svc, Options{})

	do(t, srv.Handler(), http.MethodPost, "/predict", `{"age":30,"cash_incoming_30days":5000}`)

	rr := do(t, srv.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var health ml.HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.True(t, health.Healthy)
	assert.Equal(t, int64(1), health.PredictionCount)
	assert.Equal(t, ml.BackendForest, health.Backend)
}

func TestModelInfo(t *testing.T) {
	srv := NewServer(newService(t), Options{})

	rr := do(t, srv.Handler(), http.MethodGet, "/model/info", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, "unknown", info["version"])
	assert.Equal(t, ml.BackendForest, info["backend"])
	assert.Len(t, info["features"], features.NumFeatures)
	assert.Len(t, info["numerical_columns"], features.NumNumerical)
}

func TestRequestID(t *testing.T) {
	srv := NewServer(&fakePredictor{healthy: true}, Options{})

	rr := do(t, srv.Handler(), http.MethodGet, "/health", "")
	generated := rr.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-123")
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "caller-123", rr.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)
	srv := NewServer(newService(t), Options{Metrics: m, Gatherer: registry})

	do(t, srv.Handler(), http.MethodPost, "/predict", `{"age":30,"cash_incoming_30days":5000}`)
	do(t, srv.Handler(), http.MethodPost, "/predict", `{"age":30}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "POST", "422")))

	rr := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	srv := NewServer(&fakePredictor{healthy: true}, Options{})
	rr := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandle_ExtraRoute(t *testing.T) {
	srv := NewServer(&fakePredictor{healthy: true}, Options{})
	srv.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("form"))
	}))

	rr := do(t, srv.Handler(), http.MethodGet, "/", "")
	assert.Equal(t, "form", rr.Body.String())

	// Specific routes still win over the catch-all.
	rr = do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	srv := NewServer(&fakePredictor{healthy: true}, Options{Port: 0})
	assert.Equal(t, ":0", srv.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Give ListenAndServe a moment to bind before shutting down.
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

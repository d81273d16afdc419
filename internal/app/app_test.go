package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-predictor/internal/cfg"
	"loan-predictor/internal/features"
)

const scalerJSON = `{"mean":[0,0,0,0,0,0,0],"scale":[1,1,1,1,1,1,1]}`

const logisticJSON = `{"type":"logistic_regression","coef":[0,1,0,0,0,0,0,0,0,0],"intercept":-8}`

func testSettings(t *testing.T) cfg.Settings {
	t.Helper()
	dir := t.TempDir()
	scalerPath := filepath.Join(dir, "scaler.json")
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(scalerPath, []byte(scalerJSON), 0o600))
	require.NoError(t, os.WriteFile(modelPath, []byte(logisticJSON), 0o600))

	return cfg.Settings{
		ScalerPath:       scalerPath,
		ModelPath:        modelPath,
		InferenceTimeout: time.Second,
		EnableMetrics:    true,
	}
}

func TestNew(t *testing.T) {
	settings := testSettings(t)
	settings.DataPath = filepath.Join(t.TempDir(), "data")

	a, err := New(settings, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Metrics)
	require.NotNil(t, a.Store)

	rec := features.UserRecord{Age: 30, CashIncoming30Days: 5000}
	res, err := a.Service.Predict(context.Background(), rec, "test")
	require.NoError(t, err)
	assert.Equal(t, "Repaid", res.Prediction)

	n, err := a.Store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_WithoutOptionalParts(t *testing.T) {
	settings := testSettings(t)
	settings.EnableMetrics = false

	a, err := New(settings)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Metrics)
	assert.Nil(t, a.Store)
	assert.NoError(t, a.Close())
}

func TestNew_MissingArtifacts(t *testing.T) {
	settings := testSettings(t)
	settings.ModelPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(settings, WithRegisterer(prometheus.NewRegistry()))
	assert.Error(t, err)
}

type fakeServer struct {
	started  chan struct{}
	stop     chan struct{}
	startErr error
}

func (f *fakeServer) Start() error {
	close(f.started)
	if f.startErr != nil {
		return f.startErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	close(f.stop)
	return nil
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	srv := &fakeServer{started: make(chan struct{}), stop: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, time.Second) }()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestServe_ReturnsStartError(t *testing.T) {
	boom := errors.New("address already in use")
	srv := &fakeServer{started: make(chan struct{}), stop: make(chan struct{}), startErr: boom}

	err := Serve(context.Background(), srv, time.Second)
	assert.ErrorIs(t, err, boom)
}

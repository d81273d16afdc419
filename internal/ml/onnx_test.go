package ml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInferenceScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infer.py")
	require.NoError(t, createInferenceScript(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	script := string(data)
	assert.True(t, strings.HasPrefix(script, "#!/usr/bin/env python3"))
	assert.Contains(t, script, "import onnxruntime as ort")
	assert.Contains(t, script, `"probabilities"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100, "script should be executable")
}

func TestResolveInferenceScript(t *testing.T) {
	t.Run("prefers script next to model", func(t *testing.T) {
		dir := t.TempDir()
		shipped := writeFile(t, dir, inferenceScriptName, "print('hi')")

		got, err := resolveInferenceScript(filepath.Join(dir, "model.onnx"))
		require.NoError(t, err)
		assert.Equal(t, shipped, got)
	})

	t.Run("falls back to scripts directory", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, "models"), 0o755))
		require.NoError(t, os.Mkdir(filepath.Join(root, "scripts"), 0o755))
		shipped := writeFile(t, filepath.Join(root, "scripts"), inferenceScriptName, "print('hi')")

		got, err := resolveInferenceScript(filepath.Join(root, "models", "model.onnx"))
		require.NoError(t, err)
		assert.Equal(t, shipped, got)
	})

	t.Run("writes embedded script", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "models")
		require.NoError(t, os.Mkdir(dir, 0o755))

		got, err := resolveInferenceScript(filepath.Join(dir, "model.onnx"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "onnx_inference_embedded.py"), got)
		assert.FileExists(t, got)
	})
}

func TestNewONNXClassifier_MissingModel(t *testing.T) {
	_, err := NewONNXClassifier(filepath.Join(t.TempDir(), "missing.onnx"), "python3", time.Second)
	assert.Error(t, err)
}

func TestONNXClassifier_ParseResponse(t *testing.T) {
	c := &ONNXClassifier{classes: []int{0, 1}}

	label, proba, err := c.parseResponse([]byte(`{"prediction":1,"probabilities":[0.25,0.75]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, label)
	assert.Equal(t, []float64{0.25, 0.75}, proba)

	bad := []string{
		`not json`,
		`{"error":"onnxruntime not installed"}`,
		`{"prediction":1,"probabilities":[1.0]}`,
		`{"prediction":1,"probabilities":[-0.5,1.5]}`,
		`{"prediction":3,"probabilities":[0.5,0.5]}`,
	}
	for _, body := range bad {
		_, _, err := c.parseResponse([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestONNXClassifier_RejectsBadWidth(t *testing.T) {
	c := &ONNXClassifier{classes: []int{0, 1}, timeout: time.Second}
	_, _, err := c.Score(t.Context(), []float64{1, 2, 3})
	assert.Error(t, err)
}

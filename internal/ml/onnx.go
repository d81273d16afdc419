package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"loan-predictor/internal/features"
)

const inferenceScriptName = "onnx_inference.py"

type onnxRequest struct {
	Features []float32 `json:"features"`
}

type onnxResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Prediction    int       `json:"prediction"`
	Error         string    `json:"error,omitempty"`
}

// ONNXClassifier runs an ONNX export through onnxruntime in a Python
// subprocess. Each call starts a fresh interpreter, so instances hold no
// mutable state.
type ONNXClassifier struct {
	modelPath  string
	pythonPath string
	scriptPath string
	timeout    time.Duration
	classes    []int
}

// NewONNXClassifier locates an interpreter, prepares the inference script and
// runs one probe prediction. pythonPath may be empty to search for one.
func NewONNXClassifier(modelPath, pythonPath string, timeout time.Duration) (*ONNXClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx model not accessible: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if pythonPath == "" {
		found, err := findPython()
		if err != nil {
			return nil, err
		}
		pythonPath = found
	}

	scriptPath, err := resolveInferenceScript(modelPath)
	if err != nil {
		return nil, err
	}

	c := &ONNXClassifier{
		modelPath:  modelPath,
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		timeout:    timeout,
		classes:    append([]int(nil), defaultClasses...),
	}

	if _, _, err := c.Score(context.Background(), make([]float64, features.NumFeatures)); err != nil {
		return nil, fmt.Errorf("onnx model health check failed: %w", err)
	}

	log.Info().
		Str("model_path", modelPath).
		Str("python_path", pythonPath).
		Str("script_path", scriptPath).
		Msg("ONNX model loaded successfully")
	return c, nil
}

// resolveInferenceScript prefers a script shipped next to the model, then one
// in ../scripts, and finally writes the embedded copy beside the model.
func resolveInferenceScript(modelPath string) (string, error) {
	dir := filepath.Dir(modelPath)
	candidates := []string{
		filepath.Join(dir, inferenceScriptName),
		filepath.Join(filepath.Dir(dir), "scripts", inferenceScriptName),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	embedded := filepath.Join(dir, "onnx_inference_embedded.py")
	if err := createInferenceScript(embedded); err != nil {
		return "", fmt.Errorf("failed to create inference script: %w", err)
	}
	return embedded, nil
}

func (c *ONNXClassifier) Score(ctx context.Context, x []float64) (int, []float64, error) {
	if err := checkWidth(x, features.NumFeatures); err != nil {
		return 0, nil, err
	}

	req := onnxRequest{Features: make([]float32, len(x))}
	for i, v := range x {
		if math.IsInf(v, 0) {
			return 0, nil, fmt.Errorf("feature %d is infinite", i)
		}
		req.Features[i] = float32(v)
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.pythonPath, c.scriptPath, c.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("python_path", c.pythonPath).
			Str("script_path", c.scriptPath).
			Str("model_path", c.modelPath).
			Str("stderr", stderr.String()).
			Str("stdout", stdout.String()).
			Dur("timeout", c.timeout).
			Msg("Python inference execution failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("prediction timeout after %v: %w", c.timeout, ctx.Err())
		}

		// The script reports its own failures as JSON on stdout.
		var resp onnxResponse
		if json.Unmarshal(stdout.Bytes(), &resp) == nil && resp.Error != "" {
			return 0, nil, fmt.Errorf("python inference error: %s", resp.Error)
		}
		if strings.Contains(stderr.String(), "Permission denied") {
			return 0, nil, fmt.Errorf("permission denied accessing model files: %w", err)
		}
		return 0, nil, fmt.Errorf("python inference failed: %w, stderr: %s", err, stderr.String())
	}

	return c.parseResponse(stdout.Bytes())
}

func (c *ONNXClassifier) parseResponse(out []byte) (int, []float64, error) {
	var resp onnxResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return 0, nil, fmt.Errorf("failed to parse response: %w, stdout: %s", err, string(out))
	}
	if resp.Error != "" {
		return 0, nil, fmt.Errorf("python inference error: %s", resp.Error)
	}
	if len(resp.Probabilities) != len(c.classes) {
		return 0, nil, fmt.Errorf("expected %d probabilities, got %d", len(c.classes), len(resp.Probabilities))
	}
	for i, p := range resp.Probabilities {
		if p < 0 || p > 1 || p != p {
			return 0, nil, fmt.Errorf("invalid probability %d: %f", i, p)
		}
	}
	if classIndex(c.classes, resp.Prediction) < 0 {
		return 0, nil, fmt.Errorf("model returned unknown label %d", resp.Prediction)
	}

	log.Debug().
		Interface("probabilities", resp.Probabilities).
		Int("prediction", resp.Prediction).
		Msg("Prediction successful")
	return resp.Prediction, resp.Probabilities, nil
}

func (c *ONNXClassifier) Predict(ctx context.Context, x []float64) (int, error) {
	label, _, err := c.Score(ctx, x)
	return label, err
}

func (c *ONNXClassifier) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	_, proba, err := c.Score(ctx, x)
	return proba, err
}

func (c *ONNXClassifier) Classes() []int { return c.classes }

const onnxruntimeProbe = "import sys, onnxruntime; print('Python', sys.version)"

func hasOnnxruntime(python string) bool {
	output, err := exec.Command(python, "-c", onnxruntimeProbe).Output()
	return err == nil && strings.Contains(string(output), "Python 3")
}

func findPython() (string, error) {
	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates := []string{
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
			filepath.Join(venvPath, "Scripts", "python3.exe"),
		}
		for _, venvPython := range candidates {
			if _, err := os.Stat(venvPython); err == nil && hasOnnxruntime(venvPython) {
				log.Info().Str("python_path", venvPython).Msg("Using virtual environment Python")
				return venvPython, nil
			}
		}
	}

	// Look for a venv next to the binary or up to two levels above it
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir), filepath.Dir(filepath.Dir(execDir))} {
			candidates := []string{
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, "venv", "bin", "python"),
				filepath.Join(root, ".venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python"),
				filepath.Join(root, "venv", "Scripts", "python.exe"),
			}
			for _, venvPython := range candidates {
				if _, err := os.Stat(venvPython); err == nil && hasOnnxruntime(venvPython) {
					log.Info().Str("python_path", venvPython).Msg("Using project virtual environment Python")
					return venvPython, nil
				}
			}
		}
	}

	for _, candidate := range []string{"python3", "python", "python3.12", "python3.11", "python3.10", "python3.9"} {
		path, err := exec.LookPath(candidate)
		if err == nil && hasOnnxruntime(path) {
			log.Info().Str("python_path", path).Msg("Using system Python")
			return path, nil
		}
	}

	return "", fmt.Errorf("no Python 3 interpreter with onnxruntime found; set PYTHON_PATH")
}

func createInferenceScript(scriptPath string) error {
	script := `#!/usr/bin/env python3
"""
ONNX inference for the loan repayment classifier (embedded version).
Reads {"features": [10 floats]} on stdin, writes {"prediction", "probabilities"}.
"""
import sys
import json
import numpy as np

try:
    import onnxruntime as ort
except ImportError:
    print(json.dumps({"error": "onnxruntime not installed"}))
    sys.exit(1)

def to_probabilities(raw):
    # skl2onnx emits a list of {label: prob} dicts unless zipmap is disabled
    if isinstance(raw, list) and raw and isinstance(raw[0], dict):
        row = raw[0]
        return [float(row[k]) for k in sorted(row.keys())]
    return [float(v) for v in np.asarray(raw)[0].tolist()]

def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "Usage: python onnx_inference.py <model_path>"}))
        sys.exit(1)

    try:
        request = json.load(sys.stdin)
        features = np.array([request["features"]], dtype=np.float32)

        session = ort.InferenceSession(sys.argv[1])
        input_name = session.get_inputs()[0].name
        outputs = session.run(None, {input_name: features})

        if len(outputs) == 2:
            prediction = int(np.asarray(outputs[0]).ravel()[0])
            probabilities = to_probabilities(outputs[1])
        elif len(outputs) == 1:
            output = np.asarray(outputs[0])
            if output.ndim > 1 and output.shape[-1] == 2:
                probabilities = output[0].tolist()
                prediction = int(np.argmax(probabilities))
            else:
                positive = float(output.ravel()[0])
                positive = positive if 0.0 <= positive <= 1.0 else 0.5
                probabilities = [1.0 - positive, positive]
                prediction = int(positive > 0.5)
        else:
            raise ValueError(f"Unexpected number of outputs: {len(outputs)}")

        total = sum(probabilities)
        if total > 0 and abs(total - 1.0) > 0.01:
            probabilities = [p / total for p in probabilities]

        print(json.dumps({"probabilities": probabilities, "prediction": prediction}))
    except Exception as e:
        print(json.dumps({"error": str(e)}))
        sys.exit(1)

if __name__ == "__main__":
    main()
`

	return os.WriteFile(scriptPath, []byte(script), 0755)
}

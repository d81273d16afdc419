package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"loan-predictor/internal/features"
)

const (
	BackendForest   = "random_forest"
	BackendLogistic = "logistic_regression"
	BackendONNX     = "onnx"
	BackendRemote   = "remote"
)

// LoadOptions tunes the backends that run outside the process.
type LoadOptions struct {
	PythonPath string
	Timeout    time.Duration
}

// Artifacts is everything a Service needs, loaded once at startup.
type Artifacts struct {
	Preprocessor *features.Preprocessor
	Classifier   Classifier
	Metadata     *ModelMetadata
}

// LoadArtifacts loads the scaler, classifier and optional metadata.
func LoadArtifacts(scalerPath, modelPath, metadataPath string, opts LoadOptions) (*Artifacts, error) {
	scaler, err := LoadScaler(scalerPath)
	if err != nil {
		return nil, err
	}
	pre, err := features.NewPreprocessor(scaler)
	if err != nil {
		return nil, fmt.Errorf("scaler %s: %w", scalerPath, err)
	}

	clf, backend, err := LoadClassifier(modelPath, opts)
	if err != nil {
		return nil, err
	}

	md, err := LoadModelMetadata(metadataPath, modelPath)
	if err != nil {
		return nil, err
	}
	md.Backend = backend
	md.ModelPath = modelPath
	if info, err := os.Stat(modelPath); err == nil {
		md.ModelModified = info.ModTime()
	}

	log.Info().
		Str("scaler_path", scalerPath).
		Str("model_path", modelPath).
		Str("backend", backend).
		Str("model_version", md.Version).
		Msg("Artifacts loaded")

	return &Artifacts{Preprocessor: pre, Classifier: clf, Metadata: md}, nil
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// LoadClassifier picks a backend from the path: an http(s) URL is a model
// server, *.onnx runs through onnxruntime, anything else is a JSON export
// whose "type" field selects the model family.
func LoadClassifier(path string, opts LoadOptions) (Classifier, string, error) {
	if isRemote(path) {
		return NewRemoteClassifier(path, opts.Timeout), BackendRemote, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".onnx") {
		clf, err := NewONNXClassifier(path, opts.PythonPath, opts.Timeout)
		if err != nil {
			return nil, "", err
		}
		return clf, BackendONNX, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read model %s: %w", path, err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, "", fmt.Errorf("failed to parse model %s: %w", path, err)
	}

	switch head.Type {
	case BackendForest, "":
		var f ForestClassifier
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, "", fmt.Errorf("failed to parse model %s: %w", path, err)
		}
		if err := f.validate(); err != nil {
			return nil, "", fmt.Errorf("invalid model %s: %w", path, err)
		}
		if f.NFeatures != features.NumFeatures {
			return nil, "", fmt.Errorf("model %s expects %d features, have %d", path, f.NFeatures, features.NumFeatures)
		}
		return &f, BackendForest, nil
	case BackendLogistic:
		var l LogisticClassifier
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, "", fmt.Errorf("failed to parse model %s: %w", path, err)
		}
		if err := l.validate(); err != nil {
			return nil, "", fmt.Errorf("invalid model %s: %w", path, err)
		}
		if len(l.Coef) != features.NumFeatures {
			return nil, "", fmt.Errorf("model %s expects %d features, have %d", path, len(l.Coef), features.NumFeatures)
		}
		return &l, BackendLogistic, nil
	default:
		return nil, "", fmt.Errorf("unsupported model type %q in %s", head.Type, path)
	}
}

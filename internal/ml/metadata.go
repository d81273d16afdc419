package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"loan-predictor/internal/features"
)

// ModelMetadata describes the loaded classifier. It is optional on disk; a
// model without it reports version "unknown".
type ModelMetadata struct {
	Version       string    `json:"version" yaml:"version"`
	TrainedAt     time.Time `json:"trained_at" yaml:"trained_at"`
	Algorithm     string    `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Features      []string  `json:"features" yaml:"features"`
	Accuracy      float64   `json:"accuracy" yaml:"accuracy"`
	TrainingRows  int       `json:"training_rows" yaml:"training_rows"`
	ValidationAcc float64   `json:"validation_accuracy" yaml:"validation_accuracy"`

	// Filled in at load time.
	Backend       string    `json:"backend" yaml:"backend"`
	ModelPath     string    `json:"model_path" yaml:"model_path"`
	ModelModified time.Time `json:"model_modified,omitzero" yaml:"model_modified,omitempty"`
}

func defaultMetadata() *ModelMetadata {
	return &ModelMetadata{
		Version:  "unknown",
		Features: features.FeatureColumns[:],
	}
}

// ModelTime is the best known creation time of the model.
func (m *ModelMetadata) ModelTime() time.Time {
	if !m.TrainedAt.IsZero() {
		return m.TrainedAt
	}
	return m.ModelModified
}

// LoadModelMetadata reads metadataPath, or when it is empty looks for
// model_metadata.json (then the newest model_metadata_*.json) beside the
// model. A missing file yields defaults; a feature list that disagrees with
// the preprocessing column order is an error.
func LoadModelMetadata(metadataPath, modelPath string) (*ModelMetadata, error) {
	var (
		md  *ModelMetadata
		err error
	)
	if metadataPath != "" {
		md, err = decodeMetadata(metadataPath)
	} else {
		md, err = findModelMetadata(modelPath)
	}

	switch {
	case errors.Is(err, fs.ErrNotExist) && metadataPath == "":
		md = defaultMetadata()
	case err != nil:
		return nil, fmt.Errorf("failed to load model metadata: %w", err)
	}

	if md.Version == "" {
		md.Version = "unknown"
	}
	if len(md.Features) == 0 {
		md.Features = features.FeatureColumns[:]
	} else if !slices.Equal(md.Features, features.FeatureColumns[:]) {
		return nil, fmt.Errorf("model features %v do not match expected columns %v",
			md.Features, features.FeatureColumns)
	}
	return md, nil
}

func findModelMetadata(modelPath string) (*ModelMetadata, error) {
	if modelPath == "" || isRemote(modelPath) {
		return nil, fs.ErrNotExist
	}
	dir := filepath.Dir(modelPath)

	md, err := decodeMetadata(filepath.Join(dir, "model_metadata.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		return md, err
	}

	// Timestamp suffixes sort chronologically
	matches, _ := filepath.Glob(filepath.Join(dir, "model_metadata_*.json"))
	if len(matches) == 0 {
		return nil, fs.ErrNotExist
	}
	sort.Strings(matches)
	return decodeMetadata(matches[len(matches)-1])
}

func decodeMetadata(path string) (*ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &md, nil
}

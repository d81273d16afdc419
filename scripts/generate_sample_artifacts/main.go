package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"loan-predictor/internal/common"
	"loan-predictor/internal/features"
	"loan-predictor/internal/ml"
)

const leaf = -1

// Standardisation fitted on a synthetic applicant population, in
// NumericalColumns order.
var (
	sampleMean  = []float64{35, 8.0, 20, 8, 4000, 0.25, 3}
	sampleScale = []float64{10, 1.2, 15, 5, 2500, 0.15, 2}
)

func main() {
	var (
		outDir  = flag.String("out", "models", "Directory to write the artifacts to")
		version = flag.String("version", "sample-1", "Version recorded in model_metadata.json")
	)
	flag.Parse()

	if err := common.SetupLogging("info", common.LogFormatConsole); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", *outDir).Msg("failed to create output directory")
	}

	scaler := map[string]any{
		"type":             "standard",
		"feature_names_in": features.NumericalColumns,
		"mean":             sampleMean,
		"scale":            sampleScale,
	}
	model := struct {
		Type string `json:"type"`
		*ml.ForestClassifier
	}{Type: ml.BackendForest, ForestClassifier: sampleForest()}

	metadata := ml.ModelMetadata{
		Version:       *version,
		TrainedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Algorithm:     "RandomForestClassifier",
		Features:      features.FeatureColumns[:],
		Accuracy:      0.74,
		TrainingRows:  5000,
		ValidationAcc: 0.71,
	}

	for name, v := range map[string]any{
		"scaler.json":         scaler,
		"model.json":          model,
		"model_metadata.json": metadata,
	} {
		path := filepath.Join(*outDir, name)
		if err := writeJSON(path, v); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to write artifact")
		}
		log.Info().Str("path", path).Msg("artifact written")
	}

	fmt.Printf("Sample artifacts written to %s\n", *outDir)
	fmt.Printf("  SCALER_PATH=%s\n", filepath.Join(*outDir, "scaler.json"))
	fmt.Printf("  MODEL_PATH=%s\n", filepath.Join(*outDir, "model.json"))
}

// sampleForest is a small hand-built forest over scaled features. Thresholds
// are in standard deviations for numerical columns and 0.5 for indicators.
func sampleForest() *ml.ForestClassifier {
	return &ml.ForestClassifier{
		NFeatures:   features.NumFeatures,
		ClassLabels: []int{0, 1},
		Trees: []ml.Tree{
			// log cash, then night usage
			{
				ChildrenLeft:  []int{1, leaf, 3, leaf, leaf},
				ChildrenRight: []int{2, leaf, 4, leaf, leaf},
				Feature:       []int{1, -2, 5, -2, -2},
				Threshold:     []float64{-0.5, -2, 1.0, -2, -2},
				Value:         [][]float64{{140, 160}, {70, 30}, {70, 130}, {15, 85}, {55, 45}},
			},
			// age, then clusters
			{
				ChildrenLeft:  []int{1, leaf, 3, leaf, leaf},
				ChildrenRight: []int{2, leaf, 4, leaf, leaf},
				Feature:       []int{0, -2, 6, -2, -2},
				Threshold:     []float64{-1.0, -2, 1.5, -2, -2},
				Value:         [][]float64{{130, 170}, {60, 40}, {70, 130}, {20, 80}, {50, 50}},
			},
			// very high income, then gps fixes
			{
				ChildrenLeft:  []int{1, 2, leaf, leaf, leaf},
				ChildrenRight: []int{4, 3, leaf, leaf, leaf},
				Feature:       []int{9, 2, -2, -2, -2},
				Threshold:     []float64{0.5, -0.8, -2, -2, -2},
				Value:         [][]float64{{105, 195}, {95, 105}, {65, 35}, {30, 70}, {10, 90}},
			},
		},
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

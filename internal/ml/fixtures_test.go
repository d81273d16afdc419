package ml

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"loan-predictor/internal/features"
)

// identityScalerJSON leaves the numerical columns untouched.
const identityScalerJSON = `{
  "type": "standard",
  "feature_names_in": ["age", "log_cash_incoming_30days", "gps_fix_count", "unique_locations_count",
                       "avg_time_between_opens", "night_usage_ratio", "num_clusters"],
  "mean":  [0, 0, 0, 0, 0, 0, 0],
  "scale": [1, 1, 1, 1, 1, 1, 1]
}`

// testForestJSON has two stumps: one on log cash (column 1) and one on the
// High bracket indicator (column 8).
const testForestJSON = `{
  "type": "random_forest",
  "n_features": 10,
  "classes": [0, 1],
  "trees": [
    {
      "children_left":  [1, -1, -1],
      "children_right": [2, -1, -1],
      "feature":        [1, -2, -2],
      "threshold":      [8.0, -2, -2],
      "value":          [[4, 5], [3, 1], [1, 4]]
    },
    {
      "children_left":  [1, -1, -1],
      "children_right": [2, -1, -1],
      "feature":        [8, -2, -2],
      "threshold":      [0.5, -2, -2],
      "value":          [[1, 3], [1, 1], [0, 2]]
    }
  ]
}`

const testLogisticJSON = `{
  "type": "logistic_regression",
  "coef": [0, 1, 0, 0, 0, 0, 0, 0, 0, 0],
  "intercept": -8
}`

func exampleRecord() features.UserRecord {
	return features.UserRecord{
		Age:                  30,
		CashIncoming30Days:   5000,
		GPSFixCount:          10,
		UniqueLocationsCount: 5,
		AvgTimeBetweenOpens:  3600,
		NightUsageRatio:      0.2,
		NumClusters:          2,
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testForest(t *testing.T) *ForestClassifier {
	t.Helper()
	clf, _, err := LoadClassifier(writeFile(t, t.TempDir(), "model.json", testForestJSON), LoadOptions{})
	require.NoError(t, err)
	return clf.(*ForestClassifier)
}

func testPreprocessor(t *testing.T) *features.Preprocessor {
	t.Helper()
	scaler, err := LoadScaler(writeFile(t, t.TempDir(), "scaler.json", identityScalerJSON))
	require.NoError(t, err)
	pre, err := features.NewPreprocessor(scaler)
	require.NoError(t, err)
	return pre
}

// stubClassifier returns canned answers and does not implement Scorer.
type stubClassifier struct {
	label   int
	proba   []float64
	classes []int
	err     error
	calls   int
}

func (s *stubClassifier) Predict(_ context.Context, _ []float64) (int, error) {
	s.calls++
	return s.label, s.err
}

func (s *stubClassifier) PredictProba(_ context.Context, _ []float64) ([]float64, error) {
	return s.proba, s.err
}

func (s *stubClassifier) Classes() []int {
	if s.classes == nil {
		return defaultClasses
	}
	return s.classes
}

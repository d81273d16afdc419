// Package ml loads the fitted scaler and classifier artifacts and runs single
// record predictions against them.
//
// Classifiers can be tree ensembles or logistic models exported to JSON,
// ONNX models executed through onnxruntime, or a remote model server. All
// implementations are read-only after construction and safe to share across
// goroutines.
package ml

import (
	"context"
	"fmt"
)

// Classifier is a fitted binary classifier over features.FeatureColumns.
type Classifier interface {
	// Predict returns the predicted class label for one feature row.
	Predict(ctx context.Context, features []float64) (int, error)

	// PredictProba returns one probability per entry of Classes.
	PredictProba(ctx context.Context, features []float64) ([]float64, error)

	// Classes returns the class labels in probability column order.
	Classes() []int
}

// Scorer is implemented by classifiers that produce the label and the
// probabilities in a single call.
type Scorer interface {
	Score(ctx context.Context, features []float64) (int, []float64, error)
}

var defaultClasses = []int{0, 1}

func classIndex(classes []int, label int) int {
	for i, c := range classes {
		if c == label {
			return i
		}
	}
	return -1
}

// argmaxLabel mirrors sklearn: the first class with the highest probability wins.
func argmaxLabel(classes []int, proba []float64) (int, error) {
	if len(proba) != len(classes) || len(proba) == 0 {
		return 0, fmt.Errorf("expected %d probabilities, got %d", len(classes), len(proba))
	}
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return classes[best], nil
}

func checkWidth(features []float64, want int) error {
	if len(features) != want {
		return fmt.Errorf("expected %d features, got %d", want, len(features))
	}
	for i, f := range features {
		if f != f {
			return fmt.Errorf("feature %d is NaN", i)
		}
	}
	return nil
}

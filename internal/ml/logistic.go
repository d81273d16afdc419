package ml

import (
	"context"
	"fmt"
	"math"
)

// LogisticClassifier is a fitted binary logistic regression.
type LogisticClassifier struct {
	Coef        []float64 `json:"coef"`
	Intercept   float64   `json:"intercept"`
	ClassLabels []int     `json:"classes"`
}

func (l *LogisticClassifier) validate() error {
	if len(l.Coef) == 0 {
		return fmt.Errorf("logistic model has no coefficients")
	}
	if len(l.ClassLabels) == 0 {
		l.ClassLabels = append([]int(nil), defaultClasses...)
	}
	if len(l.ClassLabels) != 2 {
		return fmt.Errorf("logistic model must be binary, got %d classes", len(l.ClassLabels))
	}
	return nil
}

func (l *LogisticClassifier) decision(x []float64) (float64, error) {
	if err := checkWidth(x, len(l.Coef)); err != nil {
		return 0, err
	}
	z := l.Intercept
	for i, w := range l.Coef {
		z += w * x[i]
	}
	return z, nil
}

func (l *LogisticClassifier) PredictProba(_ context.Context, x []float64) ([]float64, error) {
	z, err := l.decision(x)
	if err != nil {
		return nil, err
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

// Predict follows sklearn: the positive class wins only when the decision
// function is strictly positive.
func (l *LogisticClassifier) Predict(_ context.Context, x []float64) (int, error) {
	z, err := l.decision(x)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return l.ClassLabels[1], nil
	}
	return l.ClassLabels[0], nil
}

func (l *LogisticClassifier) Classes() []int { return l.ClassLabels }

// sigmoid converts a score to a probability
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

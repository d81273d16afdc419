package ml

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigmoid(t *testing.T) {
	assert.Equal(t, 0.5, sigmoid(0))
	assert.InDelta(t, 1.0, sigmoid(50), 1e-12)
	assert.InDelta(t, 0.0, sigmoid(-50), 1e-12)
	assert.InDelta(t, 1-sigmoid(2), sigmoid(-2), 1e-12)
}

func TestLogisticClassifier(t *testing.T) {
	clf := &LogisticClassifier{Coef: []float64{0, 1, 0, 0, 0, 0, 0, 0, 0, 0}, Intercept: -8}
	require.NoError(t, clf.validate())
	ctx := context.Background()

	x := row(math.Log1p(5000), 1)
	proba, err := clf.PredictProba(ctx, x)
	require.NoError(t, err)
	want := sigmoid(math.Log1p(5000) - 8)
	assert.InDelta(t, want, proba[1], 1e-12)
	assert.InDelta(t, 1-want, proba[0], 1e-12)

	label, err := clf.Predict(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	// Exactly on the boundary sklearn predicts the negative class.
	label, err = clf.Predict(ctx, row(8, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, label)
}

func TestLogisticClassifier_Validate(t *testing.T) {
	assert.Error(t, (&LogisticClassifier{}).validate())
	assert.Error(t, (&LogisticClassifier{Coef: []float64{1}, ClassLabels: []int{0, 1, 2}}).validate())

	clf := &LogisticClassifier{Coef: []float64{1}}
	require.NoError(t, clf.validate())
	assert.Equal(t, []int{0, 1}, clf.Classes())

	_, err := clf.PredictProba(context.Background(), []float64{1, 2})
	assert.Error(t, err)
}

package ml

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"loan-predictor/internal/features"
)

type remoteRequest struct {
	Features [][]float64 `json:"features"`
	Columns  []string    `json:"columns"`
}

type remoteResponse struct {
	Predictions   []int       `json:"predictions"`
	Probabilities [][]float64 `json:"probabilities"`
	Error         string      `json:"error,omitempty"`
}

// RemoteClassifier delegates inference to a model server exposing POST /predict.
type RemoteClassifier struct {
	base    string
	rest    *resty.Client
	classes []int
}

func NewRemoteClassifier(baseURL string, timeout time.Duration) *RemoteClassifier {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	return &RemoteClassifier{
		base:    strings.TrimRight(baseURL, "/"),
		rest:    r,
		classes: append([]int(nil), defaultClasses...),
	}
}

func (c *RemoteClassifier) Score(ctx context.Context, x []float64) (int, []float64, error) {
	if err := checkWidth(x, features.NumFeatures); err != nil {
		return 0, nil, err
	}

	req := remoteRequest{
		Features: [][]float64{x},
		Columns:  features.FeatureColumns[:],
	}

	result := &remoteResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		SetError(result).
		Post(c.base + "/predict")
	if err != nil {
		return 0, nil, fmt.Errorf("model server request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if result.Error != "" {
			return 0, nil, fmt.Errorf("model server: status %d: %s", resp.StatusCode(), result.Error)
		}
		return 0, nil, fmt.Errorf("model server: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	if len(result.Predictions) != 1 || len(result.Probabilities) != 1 {
		return 0, nil, fmt.Errorf("model server returned %d predictions and %d probability rows, expected 1",
			len(result.Predictions), len(result.Probabilities))
	}
	proba := result.Probabilities[0]
	if len(proba) != len(c.classes) {
		return 0, nil, fmt.Errorf("expected %d probabilities, got %d", len(c.classes), len(proba))
	}
	label := result.Predictions[0]
	if classIndex(c.classes, label) < 0 {
		return 0, nil, fmt.Errorf("model server returned unknown label %d", label)
	}
	return label, proba, nil
}

func (c *RemoteClassifier) Predict(ctx context.Context, x []float64) (int, error) {
	label, _, err := c.Score(ctx, x)
	return label, err
}

func (c *RemoteClassifier) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	_, proba, err := c.Score(ctx, x)
	return proba, err
}

func (c *RemoteClassifier) Classes() []int { return c.classes }

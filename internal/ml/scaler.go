package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"loan-predictor/internal/features"
)

const (
	scalerStandard = "standard"
	scalerMinMax   = "minmax"
)

// scalerFile is the JSON export of a fitted sklearn scaler.
type scalerFile struct {
	Type           string    `json:"type"`
	FeatureNamesIn []string  `json:"feature_names_in"`
	Mean           []float64 `json:"mean"`
	Min            []float64 `json:"min"`
	Scale          []float64 `json:"scale"`
}

// StandardScaler applies (x - mean) / scale per column.
type StandardScaler struct {
	mean    []float64
	scale   []float64
	columns []string
}

func NewStandardScaler(mean, scale []float64, columns []string) (*StandardScaler, error) {
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("mean has %d values but scale has %d", len(mean), len(scale))
	}
	if columns != nil && len(columns) != len(mean) {
		return nil, fmt.Errorf("scaler has %d columns but %d parameters", len(columns), len(mean))
	}
	s := &StandardScaler{
		mean:    append([]float64(nil), mean...),
		scale:   append([]float64(nil), scale...),
		columns: columns,
	}
	// sklearn stores 1 for constant columns; exports sometimes carry 0.
	for i, v := range s.scale {
		if v == 0 {
			s.scale[i] = 1
		}
	}
	return s, nil
}

func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.mean) {
		return nil, fmt.Errorf("scaler expects %d values, got %d", len(s.mean), len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

func (s *StandardScaler) Columns() []string { return s.columns }

// MinMaxScaler applies x * scale + min per column.
type MinMaxScaler struct {
	min     []float64
	scale   []float64
	columns []string
}

func NewMinMaxScaler(min, scale []float64, columns []string) (*MinMaxScaler, error) {
	if len(min) != len(scale) {
		return nil, fmt.Errorf("min has %d values but scale has %d", len(min), len(scale))
	}
	if columns != nil && len(columns) != len(min) {
		return nil, fmt.Errorf("scaler has %d columns but %d parameters", len(columns), len(min))
	}
	return &MinMaxScaler{
		min:     append([]float64(nil), min...),
		scale:   append([]float64(nil), scale...),
		columns: columns,
	}, nil
}

func (s *MinMaxScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.min) {
		return nil, fmt.Errorf("scaler expects %d values, got %d", len(s.min), len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*s.scale[i] + s.min[i]
	}
	return out, nil
}

func (s *MinMaxScaler) Columns() []string { return s.columns }

// LoadScaler reads a scaler artifact and checks it covers the numerical
// feature columns.
func LoadScaler(path string) (features.Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler %s: %w", path, err)
	}

	var f scalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scaler %s: %w", path, err)
	}

	kind := f.Type
	if kind == "" {
		kind = scalerStandard
	}

	var scaler features.Scaler
	switch kind {
	case scalerStandard:
		scaler, err = NewStandardScaler(f.Mean, f.Scale, f.FeatureNamesIn)
	case scalerMinMax:
		scaler, err = NewMinMaxScaler(f.Min, f.Scale, f.FeatureNamesIn)
	default:
		return nil, fmt.Errorf("unsupported scaler type %q", f.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid scaler %s: %w", path, err)
	}

	if n := len(f.Scale); n != features.NumNumerical {
		return nil, fmt.Errorf("scaler %s has %d columns, expected %d", path, n, features.NumNumerical)
	}
	if f.FeatureNamesIn != nil && !slices.Equal(f.FeatureNamesIn, features.NumericalColumns) {
		return nil, fmt.Errorf("scaler %s was fitted on %v, expected %v", path, f.FeatureNamesIn, features.NumericalColumns)
	}

	return scaler, nil
}

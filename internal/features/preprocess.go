package features

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Scaler is a fitted normalisation transform over NumericalColumns.
type Scaler interface {
	Transform(values []float64) ([]float64, error)
	// Columns reports the column names the scaler was fitted on, or nil when
	// the artifact does not record them.
	Columns() []string
}

// Build derives the unscaled feature vector for a record.
func Build(rec UserRecord) (FeatureVector, error) {
	cash := rec.CashIncoming30Days
	if math.IsNaN(cash) || math.IsInf(cash, 0) {
		return FeatureVector{}, fmt.Errorf("%w: cash_incoming_30days=%v", ErrNonNumeric, cash)
	}

	logCash := math.Log1p(cash)
	if math.IsNaN(logCash) || math.IsInf(logCash, 0) {
		return FeatureVector{}, fmt.Errorf("%w: ln(1+%v) is undefined", ErrNonNumeric, cash)
	}

	cols := map[string]float64{
		"age":                      float64(rec.Age),
		"log_cash_incoming_30days": logCash,
		"gps_fix_count":            float64(rec.GPSFixCount),
		"unique_locations_count":   float64(rec.UniqueLocationsCount),
		"avg_time_between_opens":   rec.AvgTimeBetweenOpens,
		"night_usage_ratio":        rec.NightUsageRatio,
		"num_clusters":             float64(rec.NumClusters),
	}

	bracket := BracketFor(cash)
	for _, b := range encodedBrackets {
		cols[b.Column()] = 0
		if b == bracket {
			cols[b.Column()] = 1
		}
	}

	return Reindex(cols), nil
}

// Preprocessor turns records into scaled model inputs. It holds no mutable
// state and is safe for concurrent use when its scaler is.
type Preprocessor struct {
	scaler Scaler
}

func NewPreprocessor(scaler Scaler) (*Preprocessor, error) {
	if scaler == nil {
		return nil, errors.New("scaler is required")
	}
	if cols := scaler.Columns(); cols != nil && !slices.Equal(cols, NumericalColumns) {
		return nil, fmt.Errorf("scaler columns %v do not match %v", cols, NumericalColumns)
	}
	return &Preprocessor{scaler: scaler}, nil
}

func (p *Preprocessor) Transform(rec UserRecord) (FeatureVector, error) {
	fv, err := Build(rec)
	if err != nil {
		return FeatureVector{}, err
	}

	scaled, err := p.scaler.Transform(fv.Numerical())
	if err != nil {
		return FeatureVector{}, fmt.Errorf("scale features: %w", err)
	}
	for i, v := range scaled {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return FeatureVector{}, fmt.Errorf("scaled %s is not finite", NumericalColumns[i])
		}
	}

	return fv.WithNumerical(scaled)
}

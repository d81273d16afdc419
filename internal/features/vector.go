package features

import "fmt"

const (
	NumFeatures  = 10
	NumNumerical = 7
)

// FeatureColumns is the column order the scaler and classifier were fitted on.
var FeatureColumns = [NumFeatures]string{
	"age",
	"log_cash_incoming_30days",
	"gps_fix_count",
	"unique_locations_count",
	"avg_time_between_opens",
	"night_usage_ratio",
	"num_clusters",
	"income_bracket_Medium",
	"income_bracket_High",
	"income_bracket_Very High",
}

// NumericalColumns are scaled; the one-hot block after them never is.
var NumericalColumns = FeatureColumns[:NumNumerical]

// gpsColumns are optional on input and default to zero.
var gpsColumns = []string{
	"gps_fix_count",
	"unique_locations_count",
	"avg_time_between_opens",
	"night_usage_ratio",
	"num_clusters",
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, NumFeatures)
	for i, c := range FeatureColumns {
		idx[c] = i
	}
	return idx
}()

// FeatureVector holds model inputs in FeatureColumns order.
type FeatureVector [NumFeatures]float64

// Reindex lays named values out in FeatureColumns order. Absent columns are
// zero and names outside the contract are dropped.
func Reindex(cols map[string]float64) FeatureVector {
	var fv FeatureVector
	for i, name := range FeatureColumns {
		fv[i] = cols[name]
	}
	return fv
}

func (fv FeatureVector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, fv[:])
	return out
}

func (fv FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, NumFeatures)
	for i, name := range FeatureColumns {
		out[name] = fv[i]
	}
	return out
}

func (fv FeatureVector) Get(name string) (float64, bool) {
	i, ok := columnIndex[name]
	if !ok {
		return 0, false
	}
	return fv[i], true
}

// Numerical returns a copy of the columns the scaler operates on.
func (fv FeatureVector) Numerical() []float64 {
	out := make([]float64, NumNumerical)
	copy(out, fv[:NumNumerical])
	return out
}

// WithNumerical returns a copy of fv with the numerical block replaced.
func (fv FeatureVector) WithNumerical(values []float64) (FeatureVector, error) {
	if len(values) != NumNumerical {
		return fv, fmt.Errorf("expected %d numerical values, got %d", NumNumerical, len(values))
	}
	copy(fv[:NumNumerical], values)
	return fv, nil
}

// Bracket reads the income bracket back out of the one-hot block.
func (fv FeatureVector) Bracket() IncomeBracket {
	for _, b := range encodedBrackets {
		if v, _ := fv.Get(b.Column()); v == 1 {
			return b
		}
	}
	return Low
}

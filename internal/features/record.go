package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrNonNumeric   = errors.New("value is not numeric")
	ErrMalformed    = errors.New("malformed record")
)

// IsInputError reports whether err was caused by the submitted record rather
// than by the model or its artifacts.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingField) || errors.Is(err, ErrNonNumeric) || errors.Is(err, ErrMalformed)
}

// UserRecord is a single applicant as submitted by a caller. GPS-derived
// fields are optional and default to zero.
type UserRecord struct {
	Age                  int     `json:"age"`
	CashIncoming30Days   float64 `json:"cash_incoming_30days"`
	GPSFixCount          int     `json:"gps_fix_count"`
	UniqueLocationsCount int     `json:"unique_locations_count"`
	AvgTimeBetweenOpens  float64 `json:"avg_time_between_opens"`
	NightUsageRatio      float64 `json:"night_usage_ratio"`
	NumClusters          int     `json:"num_clusters"`
}

type recordField struct {
	name     string
	integer  bool
	required bool
	assign   func(r *UserRecord, v float64)
}

var recordFields = []recordField{
	{"age", true, true, func(r *UserRecord, v float64) { r.Age = int(v) }},
	{"cash_incoming_30days", false, true, func(r *UserRecord, v float64) { r.CashIncoming30Days = v }},
	{"gps_fix_count", true, false, func(r *UserRecord, v float64) { r.GPSFixCount = int(v) }},
	{"unique_locations_count", true, false, func(r *UserRecord, v float64) { r.UniqueLocationsCount = int(v) }},
	{"avg_time_between_opens", false, false, func(r *UserRecord, v float64) { r.AvgTimeBetweenOpens = v }},
	{"night_usage_ratio", false, false, func(r *UserRecord, v float64) { r.NightUsageRatio = v }},
	{"num_clusters", true, false, func(r *UserRecord, v float64) { r.NumClusters = int(v) }},
}

// DecodeRecord reads a JSON object into a UserRecord. Numbers may be sent as
// JSON numbers or numeric strings, null counts as absent and unknown keys are
// ignored.
func DecodeRecord(r io.Reader) (UserRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return UserRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return buildRecord(func(name string) (string, bool, error) {
		msg, ok := raw[name]
		if !ok {
			return "", false, nil
		}
		s := strings.TrimSpace(string(msg))
		if s == "null" {
			return "", false, nil
		}
		if strings.HasPrefix(s, `"`) {
			var str string
			if err := json.Unmarshal(msg, &str); err != nil {
				return "", false, err
			}
			s = str
		}
		return s, true, nil
	})
}

// ParseValues builds a UserRecord from submitted form values. Empty inputs
// count as absent.
func ParseValues(values url.Values) (UserRecord, error) {
	return buildRecord(func(name string) (string, bool, error) {
		s := strings.TrimSpace(values.Get(name))
		return s, s != "", nil
	})
}

func buildRecord(lookup func(name string) (string, bool, error)) (UserRecord, error) {
	var rec UserRecord
	for _, f := range recordFields {
		s, ok, err := lookup(f.name)
		if err != nil {
			return UserRecord{}, fmt.Errorf("%w: %s: %v", ErrNonNumeric, f.name, err)
		}
		if !ok {
			if f.required {
				return UserRecord{}, fmt.Errorf("%w: %s", ErrMissingField, f.name)
			}
			continue
		}

		v, err := parseNumber(s, f.integer)
		if err != nil {
			return UserRecord{}, fmt.Errorf("%s: %w", f.name, err)
		}
		f.assign(&rec, v)
	}
	return rec, nil
}

func parseNumber(s string, integer bool) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNonNumeric, s)
	}
	if integer && v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrNonNumeric, s)
	}
	if integer && (v < math.MinInt32 || v > math.MaxInt32) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrNonNumeric, s)
	}
	return v, nil
}

package features

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    UserRecord
		wantErr error
	}{
		{
			name: "all fields",
			body: `{"age":30,"cash_incoming_30days":5000,"gps_fix_count":10,"unique_locations_count":5,"avg_time_between_opens":3600,"night_usage_ratio":0.2,"num_clusters":2}`,
			want: sampleRecord(),
		},
		{
			name: "field order does not matter and gps fields default",
			body: `{"cash_incoming_30days":1500.5,"age":44}`,
			want: UserRecord{Age: 44, CashIncoming30Days: 1500.5},
		},
		{
			name: "numeric strings and nulls",
			body: `{"age":"25","cash_incoming_30days":"2000","gps_fix_count":null}`,
			want: UserRecord{Age: 25, CashIncoming30Days: 2000},
		},
		{
			name: "unknown keys ignored",
			body: `{"age":25,"cash_incoming_30days":10,"device":"android"}`,
			want: UserRecord{Age: 25, CashIncoming30Days: 10},
		},
		{name: "missing cash", body: `{"age":30}`, wantErr: ErrMissingField},
		{name: "null cash", body: `{"age":30,"cash_incoming_30days":null}`, wantErr: ErrMissingField},
		{name: "missing age", body: `{"cash_incoming_30days":10}`, wantErr: ErrMissingField},
		{name: "non-numeric cash", body: `{"age":30,"cash_incoming_30days":"lots"}`, wantErr: ErrNonNumeric},
		{name: "age out of int range", body: `{"age":1e30,"cash_incoming_30days":5000}`, wantErr: ErrNonNumeric},
		{name: "gps count out of int range", body: `{"age":30,"cash_incoming_30days":5000,"gps_fix_count":1e19}`, wantErr: ErrNonNumeric},
		{name: "boolean cash", body: `{"age":30,"cash_incoming_30days":true}`, wantErr: ErrNonNumeric},
		{name: "fractional integer", body: `{"age":30.5,"cash_incoming_30days":10}`, wantErr: ErrNonNumeric},
		{name: "NaN string", body: `{"age":30,"cash_incoming_30days":"NaN"}`, wantErr: ErrNonNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecord(strings.NewReader(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRecord_Malformed(t *testing.T) {
	_, err := DecodeRecord(strings.NewReader(`{"age":`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeRecord(strings.NewReader(`[1, 2]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(fmt.Errorf("wrapped: %w", ErrMissingField)))
	assert.True(t, IsInputError(ErrNonNumeric))
	assert.True(t, IsInputError(ErrMalformed))
	assert.False(t, IsInputError(errors.New("model exploded")))
	assert.False(t, IsInputError(nil))
}

func TestParseValues(t *testing.T) {
	values := url.Values{
		"age":                  {"30"},
		"cash_incoming_30days": {" 5000.0 "},
		"gps_fix_count":        {"10"},
		"night_usage_ratio":    {""},
	}

	rec, err := ParseValues(values)
	require.NoError(t, err)
	assert.Equal(t, UserRecord{Age: 30, CashIncoming30Days: 5000, GPSFixCount: 10}, rec)

	values.Set("cash_incoming_30days", "")
	_, err = ParseValues(values)
	assert.ErrorIs(t, err, ErrMissingField)
}

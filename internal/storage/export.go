package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"id", "timestamp", "source",
	"age", "cash_incoming_30days", "gps_fix_count", "unique_locations_count",
	"avg_time_between_opens", "night_usage_ratio", "num_clusters",
	"income_bracket", "prediction", "label", "probability", "model_version",
}

// ExportCSV writes the records between start and end to w, one row per
// prediction with the raw inputs, for offline analysis and retraining.
func (s *Store) ExportCSV(w io.Writer, start, end time.Time) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	rows := 0
	err := s.scanRange(start, end, func(r Record) error {
		in := r.Input
		row := []string{
			r.ID,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Source,
			strconv.Itoa(in.Age),
			formatFloat(in.CashIncoming30Days),
			strconv.Itoa(in.GPSFixCount),
			strconv.Itoa(in.UniqueLocationsCount),
			formatFloat(in.AvgTimeBetweenOpens),
			formatFloat(in.NightUsageRatio),
			strconv.Itoa(in.NumClusters),
			r.Bracket,
			r.Prediction,
			strconv.Itoa(r.Label),
			formatFloat(r.Probability),
			r.ModelVersion,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		rows++
		return nil
	})
	if err != nil {
		return rows, err
	}

	cw.Flush()
	return rows, cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

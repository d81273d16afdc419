// Package storage keeps a journal of served predictions in BoltDB.
//
// Records are keyed by a zero-padded nanosecond timestamp followed by the
// prediction id, so a cursor walks them in time order and range queries are
// a Seek plus a bounded scan.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"loan-predictor/internal/features"
)

const (
	predictionsBucket = "predictions"
	dbFileName        = "predictions.db"
)

// Record is one served prediction.
type Record struct {
	ID           string              `json:"id"`
	Timestamp    time.Time           `json:"timestamp"`
	Source       string              `json:"source"`
	Input        features.UserRecord `json:"input"`
	Bracket      string              `json:"income_bracket"`
	Features     []float64           `json:"features"`
	Prediction   string              `json:"prediction"`
	Label        int                 `json:"label"`
	Probability  float64             `json:"probability"`
	ModelVersion string              `json:"model_version"`
	LatencyMs    float64             `json:"latency_ms"`
}

// Store is the BoltDB backed prediction journal. It is safe for concurrent use.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) predictions.db inside dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func timeKey(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", ts.UnixNano()))
}

func recordKey(r Record) []byte {
	return append(append(timeKey(r.Timestamp), '_'), r.ID...)
}

// SavePrediction appends a record to the journal.
func (s *Store) SavePrediction(r Record) error {
	if r.ID == "" {
		return fmt.Errorf("record has no id")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		return b.Put(recordKey(r), data)
	})
}

// GetPredictionsInRange returns records with start <= timestamp <= end, oldest first.
func (s *Store) GetPredictionsInRange(start, end time.Time) ([]Record, error) {
	var records []Record
	err := s.scanRange(start, end, func(r Record) error {
		records = append(records, r)
		return nil
	})
	return records, err
}

func (s *Store) scanRange(start, end time.Time, fn func(Record) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		startKey := timeKey(start)
		// '_' sorts after every digit, so this bound includes all ids at end.
		endKey := append(timeKey(end), '_'+1)

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) < 0; k, v = c.Next() {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				continue // Skip malformed records
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to n of the newest records, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	records := make([]Record, 0, n)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			records = append(records, r)
		}
		return nil
	})
	return records, err
}

// Count returns the number of journaled predictions.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/squat.report/internal/squat"
)

// ErrNotFound is returned when a result id does not exist.
var ErrNotFound = errors.New("not found")

// Result sources.
const (
	SourceSession   = "session"
	SourceSubmitted = "submitted"
	SourceReplay    = "replay"
	SourceRPC       = "rpc"
)

// ResultRecord is one persisted session verdict.
type ResultRecord struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	squat.Result
	Config *squat.Config `json:"config,omitempty"`
}

// Series is the stored depth series of a result.
type Series struct {
	Raw      []squat.Sample `json:"raw"`
	Smoothed []squat.Sample `json:"smoothed"`
}

// InsertResult stores rec and its depth series in one transaction. A missing
// ID is assigned a new UUID and a zero CreatedAt is set to now; both are
// written back to rec.
func (db *DB) InsertResult(rec *ResultRecord, series Series) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Source == "" {
		rec.Source = SourceSession
	}

	peaks := rec.Peaks
	if peaks == nil {
		peaks = []squat.Peak{}
	}
	peaksJSON, err := json.Marshal(peaks)
	if err != nil {
		return fmt.Errorf("failed to encode peaks: %w", err)
	}
	var configJSON sql.NullString
	if rec.Config != nil {
		data, err := json.Marshal(rec.Config)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		configJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO results (
			result_id, label, source, summary, pass, fail, threshold, hold,
			depth_ratio_max, frames, peaks_json, config_json, created_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Label, rec.Source, string(rec.Summary), rec.Pass, rec.Fail, rec.Threshold, rec.Hold,
		nullFloat(rec.DepthRatioMax), rec.Frames, string(peaksJSON), configJSON,
		float64(rec.CreatedAt.UnixNano())/1e9,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	if n := max(len(series.Raw), len(series.Smoothed)); n > 0 {
		stmt, err := tx.Prepare(`INSERT INTO depth_samples (result_id, sample_idx, raw, smoothed) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare sample insert: %w", err)
		}
		defer stmt.Close()
		for i := 0; i < n; i++ {
			if _, err := stmt.Exec(rec.ID, i, sampleAt(series.Raw, i), sampleAt(series.Smoothed, i)); err != nil {
				return fmt.Errorf("failed to insert sample %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

const resultColumns = `result_id, label, source, summary, pass, fail, threshold, hold,
	depth_ratio_max, frames, peaks_json, config_json, created_unix`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*ResultRecord, error) {
	var (
		rec        ResultRecord
		summary    string
		depthMax   sql.NullFloat64
		peaksJSON  string
		configJSON sql.NullString
		created    float64
	)
	if err := row.Scan(&rec.ID, &rec.Label, &rec.Source, &summary, &rec.Pass, &rec.Fail,
		&rec.Threshold, &rec.Hold, &depthMax, &rec.Frames, &peaksJSON, &configJSON, &created); err != nil {
		return nil, err
	}
	rec.Summary = squat.Verdict(summary)
	if depthMax.Valid {
		v := depthMax.Float64
		rec.DepthRatioMax = &v
	}
	if err := json.Unmarshal([]byte(peaksJSON), &rec.Peaks); err != nil {
		return nil, fmt.Errorf("failed to decode peaks of %s: %w", rec.ID, err)
	}
	if len(rec.Peaks) == 0 {
		rec.Peaks = nil
	}
	if configJSON.Valid {
		var cfg squat.Config
		if err := json.Unmarshal([]byte(configJSON.String), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config of %s: %w", rec.ID, err)
		}
		rec.Config = &cfg
	}
	sec := int64(created)
	rec.CreatedAt = time.Unix(sec, int64((created-float64(sec))*1e9)).UTC()
	return &rec, nil
}

// GetResult returns the result with the given id, or ErrNotFound.
func (db *DB) GetResult(id string) (*ResultRecord, error) {
	row := db.QueryRow(`SELECT `+resultColumns+` FROM results WHERE result_id = ?`, id)
	rec, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", id, err)
	}
	return rec, nil
}

// ListResults returns the newest results first, at most limit of them.
// A non-positive limit defaults to 100.
func (db *DB) ListResults(limit int) ([]ResultRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+resultColumns+` FROM results ORDER BY created_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	records := []ResultRecord{}
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ResultSeries returns the stored depth series of a result, or ErrNotFound
// when the result does not exist.
func (db *DB) ResultSeries(id string) (Series, error) {
	var exists bool
	if err := db.QueryRow(`SELECT COUNT(*) > 0 FROM results WHERE result_id = ?`, id).Scan(&exists); err != nil {
		return Series{}, fmt.Errorf("failed to check result %s: %w", id, err)
	}
	if !exists {
		return Series{}, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}

	rows, err := db.Query(`SELECT raw, smoothed FROM depth_samples WHERE result_id = ? ORDER BY sample_idx`, id)
	if err != nil {
		return Series{}, fmt.Errorf("failed to load series %s: %w", id, err)
	}
	defer rows.Close()

	s := Series{Raw: []squat.Sample{}, Smoothed: []squat.Sample{}}
	for rows.Next() {
		var raw, smoothed sql.NullFloat64
		if err := rows.Scan(&raw, &smoothed); err != nil {
			return Series{}, err
		}
		s.Raw = append(s.Raw, fromNull(raw))
		s.Smoothed = append(s.Smoothed, fromNull(smoothed))
	}
	return s, rows.Err()
}

// DeleteResult removes a result and its samples.
func (db *DB) DeleteResult(id string) error {
	res, err := db.Exec(`DELETE FROM results WHERE result_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete result %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func sampleAt(xs []squat.Sample, i int) sql.NullFloat64 {
	if i >= len(xs) {
		return sql.NullFloat64{}
	}
	return nullFloat(xs[i].Ptr())
}

func fromNull(v sql.NullFloat64) squat.Sample {
	if !v.Valid {
		return squat.Null
	}
	return squat.Value(v.Float64)
}

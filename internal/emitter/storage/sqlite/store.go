// Package sqlite persists recognition sessions and their per-cluster
// results. It is the ResultSink the executor writes through.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/emitter.report/internal/emitter"
)

const schema = `
CREATE TABLE IF NOT EXISTS emitter_sessions (
	session_id       TEXT PRIMARY KEY,
	slice_index      INTEGER NOT NULL,
	slice_start_ms   DOUBLE NOT NULL,
	slice_end_ms     DOUBLE NOT NULL,
	band             TEXT NOT NULL,
	total_pulses     INTEGER NOT NULL,
	cf_clusters      INTEGER NOT NULL,
	pw_clusters      INTEGER NOT NULL,
	valid_clusters   INTEGER NOT NULL,
	invalid_clusters INTEGER NOT NULL,
	noise_pulses     INTEGER NOT NULL,
	passed           INTEGER NOT NULL,
	failed           INTEGER NOT NULL,
	pass_rate        DOUBLE NOT NULL,
	mean_joint_prob  DOUBLE NOT NULL,
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emitter_sessions_slice ON emitter_sessions(slice_index);

CREATE TABLE IF NOT EXISTS emitter_results (
	result_id         TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	cluster_index     INTEGER NOT NULL,
	dimension         TEXT NOT NULL,
	cluster_size      INTEGER NOT NULL,
	band              TEXT NOT NULL,
	pa_label          INTEGER NOT NULL,
	pa_confidence     DOUBLE NOT NULL,
	dtoa_label        INTEGER NOT NULL,
	dtoa_confidence   DOUBLE NOT NULL,
	joint_probability DOUBLE NOT NULL,
	status            TEXT NOT NULL,
	reason            TEXT,
	params_json       TEXT,
	created_at        INTEGER NOT NULL,
	FOREIGN KEY(session_id) REFERENCES emitter_sessions(session_id)
);
CREATE INDEX IF NOT EXISTS idx_emitter_results_session ON emitter_results(session_id);
`

// Open opens (creating if needed) the results database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// SessionRecord is a persisted session summary row.
type SessionRecord struct {
	SessionID       string  `json:"session_id"`
	SliceIndex      int     `json:"slice_index"`
	SliceStartMs    float64 `json:"slice_start_ms"`
	SliceEndMs      float64 `json:"slice_end_ms"`
	Band            string  `json:"band"`
	TotalPulses     int     `json:"total_pulses"`
	CFClusters      int     `json:"cf_clusters"`
	PWClusters      int     `json:"pw_clusters"`
	ValidClusters   int     `json:"valid_clusters"`
	InvalidClusters int     `json:"invalid_clusters"`
	NoisePulses     int     `json:"noise_pulses"`
	Passed          int     `json:"passed"`
	Failed          int     `json:"failed"`
	PassRate        float64 `json:"pass_rate"`
	MeanJointProb   float64 `json:"mean_joint_prob"`
	CreatedAt       int64   `json:"created_at"`
}

// ResultRecord is a persisted per-cluster result row. Params carries the
// extracted parameter set for passed clusters.
type ResultRecord struct {
	ResultID         string            `json:"result_id"`
	SessionID        string            `json:"session_id"`
	ClusterIndex     int               `json:"cluster_index"`
	Dimension        string            `json:"dimension"`
	ClusterSize      int               `json:"cluster_size"`
	Band             string            `json:"band"`
	PALabel          int               `json:"pa_label"`
	PAConfidence     float64           `json:"pa_confidence"`
	DTOALabel        int               `json:"dtoa_label"`
	DTOAConfidence   float64           `json:"dtoa_confidence"`
	JointProbability float64           `json:"joint_probability"`
	Status           string            `json:"status"`
	Reason           string            `json:"reason,omitempty"`
	Params           *emitter.ParamSet `json:"params,omitempty"`
	CreatedAt        int64             `json:"created_at"`
}

// SessionStore provides persistence for recognition sessions.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a SessionStore over an open database.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

var _ emitter.ResultSink = (*SessionStore)(nil)

// SaveSession persists a finished session and all its results in one
// transaction.
func (s *SessionStore) SaveSession(session *emitter.RecognitionSession) error {
	st := session.Stats()
	now := time.Now().UnixNano()

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO emitter_sessions (
				session_id, slice_index, slice_start_ms, slice_end_ms, band,
				total_pulses, cf_clusters, pw_clusters, valid_clusters, invalid_clusters,
				noise_pulses, passed, failed, pass_rate, mean_joint_prob, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.SliceIndex, session.SliceStart, session.SliceEnd, string(session.Band),
			st.TotalPulses, st.CFClusters, st.PWClusters, st.ValidClusters, st.InvalidClusters,
			st.NoisePulses, st.Passed, st.Failed, st.PassRate, st.MeanJointProb, now,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, r := range session.AllResults() {
			var paramsStr interface{}
			if r.Params != nil {
				data, err := json.Marshal(r.Params)
				if err != nil {
					return fmt.Errorf("marshal params: %w", err)
				}
				paramsStr = string(data)
			}
			_, err = tx.Exec(`
				INSERT INTO emitter_results (
					result_id, session_id, cluster_index, dimension, cluster_size, band,
					pa_label, pa_confidence, dtoa_label, dtoa_confidence,
					joint_probability, status, reason, params_json, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, session.ID, r.Candidate.ClusterIndex, string(r.Candidate.Dimension),
				r.Candidate.Size(), string(r.Candidate.Band),
				r.PA.Label, r.PA.Confidence, r.DTOA.Label, r.DTOA.Confidence,
				r.JointProbability, string(r.Status), r.Reason, paramsStr, now,
			)
			if err != nil {
				return fmt.Errorf("insert result: %w", err)
			}
		}
		return tx.Commit()
	})
}

// GetSession returns one session summary by id.
func (s *SessionStore) GetSession(sessionID string) (*SessionRecord, error) {
	row := s.db.QueryRow(`
		SELECT session_id, slice_index, slice_start_ms, slice_end_ms, band,
		       total_pulses, cf_clusters, pw_clusters, valid_clusters, invalid_clusters,
		       noise_pulses, passed, failed, pass_rate, mean_joint_prob, created_at
		FROM emitter_sessions
		WHERE session_id = ?`, sessionID)

	var rec SessionRecord
	err := row.Scan(
		&rec.SessionID, &rec.SliceIndex, &rec.SliceStartMs, &rec.SliceEndMs, &rec.Band,
		&rec.TotalPulses, &rec.CFClusters, &rec.PWClusters, &rec.ValidClusters, &rec.InvalidClusters,
		&rec.NoisePulses, &rec.Passed, &rec.Failed, &rec.PassRate, &rec.MeanJointProb, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &rec, nil
}

// ListBySlice returns all session summaries for a slice index, newest first.
func (s *SessionStore) ListBySlice(sliceIndex int) ([]*SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, slice_index, slice_start_ms, slice_end_ms, band,
		       total_pulses, cf_clusters, pw_clusters, valid_clusters, invalid_clusters,
		       noise_pulses, passed, failed, pass_rate, mean_joint_prob, created_at
		FROM emitter_sessions
		WHERE slice_index = ?
		ORDER BY created_at DESC`, sliceIndex)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var recs []*SessionRecord
	for rows.Next() {
		var rec SessionRecord
		err := rows.Scan(
			&rec.SessionID, &rec.SliceIndex, &rec.SliceStartMs, &rec.SliceEndMs, &rec.Band,
			&rec.TotalPulses, &rec.CFClusters, &rec.PWClusters, &rec.ValidClusters, &rec.InvalidClusters,
			&rec.NoisePulses, &rec.Passed, &rec.Failed, &rec.PassRate, &rec.MeanJointProb, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// ListResults returns all result rows for a session in cluster order.
func (s *SessionStore) ListResults(sessionID string) ([]*ResultRecord, error) {
	rows, err := s.db.Query(`
		SELECT result_id, session_id, cluster_index, dimension, cluster_size, band,
		       pa_label, pa_confidence, dtoa_label, dtoa_confidence,
		       joint_probability, status, reason, params_json, created_at
		FROM emitter_results
		WHERE session_id = ?
		ORDER BY cluster_index ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var recs []*ResultRecord
	for rows.Next() {
		var rec ResultRecord
		var reason, paramsStr sql.NullString
		err := rows.Scan(
			&rec.ResultID, &rec.SessionID, &rec.ClusterIndex, &rec.Dimension, &rec.ClusterSize, &rec.Band,
			&rec.PALabel, &rec.PAConfidence, &rec.DTOALabel, &rec.DTOAConfidence,
			&rec.JointProbability, &rec.Status, &reason, &paramsStr, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		rec.Reason = reason.String
		if paramsStr.Valid && paramsStr.String != "" {
			var ps emitter.ParamSet
			if err := json.Unmarshal([]byte(paramsStr.String), &ps); err != nil {
				return nil, fmt.Errorf("unmarshal params: %w", err)
			}
			rec.Params = &ps
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// retryOnBusy retries fn a few times when sqlite reports the database as
// locked by a concurrent writer.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	delay := 10 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

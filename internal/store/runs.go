package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// InsertRun records the start of a pass.
func (db *DB) InsertRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, started_at, filter)
		VALUES (?, ?, ?)`,
		r.ID, r.StartedAt, r.Filter)
	return err
}

// FinishRun stores the final counts of a pass, creating the row if the
// start was never recorded.
func (db *DB) FinishRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, started_at, finished_at, filter, candidates, persisted, empty, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			filter = excluded.filter,
			candidates = excluded.candidates,
			persisted = excluded.persisted,
			empty = excluded.empty,
			failed = excluded.failed`,
		r.ID, r.StartedAt, r.FinishedAt, r.Filter, r.Candidates, r.Persisted, r.Empty, r.Failed)
	return err
}

// InsertVisit records one chat visit.
func (db *DB) InsertVisit(v *Visit) error {
	res, err := db.Exec(`
		INSERT INTO visits (run_id, chat_name, is_group, unread_count, outcome, error_kind, error_message, message_count, visited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.RunID, v.ChatName, v.IsGroup, v.UnreadCount, v.Outcome, v.ErrorKind, v.ErrorMessage, v.MessageCount, v.VisitedAt)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	v.ID, _ = res.LastInsertId()
	return nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, started_at, COALESCE(finished_at, 0), filter, candidates, persisted, empty, failed
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Filter, &r.Candidates, &r.Persisted, &r.Empty, &r.Failed); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	var r Run
	err := db.QueryRow(`
		SELECT id, started_at, COALESCE(finished_at, 0), filter, candidates, persisted, empty, failed
		FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Filter, &r.Candidates, &r.Persisted, &r.Empty, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListVisits returns the visits of a run in the order they happened.
func (db *DB) ListVisits(runID string) ([]Visit, error) {
	rows, err := db.Query(`
		SELECT id, run_id, chat_name, is_group, unread_count, outcome, error_kind, error_message, message_count, visited_at
		FROM visits
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var visits []Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.RunID, &v.ChatName, &v.IsGroup, &v.UnreadCount, &v.Outcome, &v.ErrorKind, &v.ErrorMessage, &v.MessageCount, &v.VisitedAt); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

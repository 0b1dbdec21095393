package store

import (
	"database/sql"
	"time"
)

// CreateSnapshot inserts a new snapshot and returns its ID. Source names
// the telemetry input the scores were computed from.
func (db *DB) CreateSnapshot(source, version string) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO snapshots (taken_at, source, version) VALUES (?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339), source, version,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetLatestSnapshot returns the most recent snapshot, or nil if none exist.
func (db *DB) GetLatestSnapshot() (*Snapshot, error) {
	row := db.conn.QueryRow("SELECT id, taken_at, source, version FROM snapshots ORDER BY id DESC LIMIT 1")
	return scanSnapshot(row)
}

// GetSnapshotN returns the Nth most recent snapshot (1 = latest, 2 = previous, etc.).
func (db *DB) GetSnapshotN(n int) (*Snapshot, error) {
	row := db.conn.QueryRow(
		"SELECT id, taken_at, source, version FROM snapshots ORDER BY id DESC LIMIT 1 OFFSET ?",
		n-1,
	)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var s Snapshot
	var takenAt string
	err := row.Scan(&s.ID, &takenAt, &s.Source, &s.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.TakenAt, _ = time.Parse(time.RFC3339, takenAt)
	return &s, nil
}

// InsertStoryScore inserts a story score for a snapshot.
func (db *DB) InsertStoryScore(ss *StoryScore) error {
	_, err := db.conn.Exec(
		`INSERT INTO story_scores
		(snapshot_id, story, health_score, calls, flagged_calls, total_cost, wasted_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ss.SnapshotID, ss.Story, ss.HealthScore, ss.Calls, ss.FlaggedCalls,
		ss.TotalCost, ss.WastedCost,
	)
	return err
}

// InsertOperationScore inserts an operation score for a snapshot.
func (db *DB) InsertOperationScore(os *OperationScore) error {
	_, err := db.conn.Exec(
		`INSERT INTO operation_scores
		(snapshot_id, story, operation, agent_name, health_score, calls,
		 critical_calls, warning_calls, total_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		os.SnapshotID, os.Story, os.Operation, os.AgentName, os.HealthScore,
		os.Calls, os.CriticalCalls, os.WarningCalls, os.TotalCost,
	)
	return err
}

// StoryScoresForSnapshot returns every story score recorded for a snapshot.
func (db *DB) StoryScoresForSnapshot(snapshotID int64) ([]StoryScore, error) {
	rows, err := db.conn.Query(
		`SELECT id, snapshot_id, story, health_score, calls, flagged_calls, total_cost, wasted_cost
		 FROM story_scores WHERE snapshot_id = ? ORDER BY story`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []StoryScore
	for rows.Next() {
		var ss StoryScore
		if err := rows.Scan(&ss.ID, &ss.SnapshotID, &ss.Story, &ss.HealthScore,
			&ss.Calls, &ss.FlaggedCalls, &ss.TotalCost, &ss.WastedCost); err != nil {
			return nil, err
		}
		scores = append(scores, ss)
	}
	return scores, rows.Err()
}

// CompareSnapshots computes per-story health deltas between two snapshots.
// Stories present in only one snapshot are skipped; a delta needs both ends.
func (db *DB) CompareSnapshots(previousID, currentID int64) ([]ScoreDelta, error) {
	previous, err := db.StoryScoresForSnapshot(previousID)
	if err != nil {
		return nil, err
	}
	current, err := db.StoryScoresForSnapshot(currentID)
	if err != nil {
		return nil, err
	}

	prevByStory := make(map[string]float64, len(previous))
	for _, ss := range previous {
		prevByStory[ss.Story] = ss.HealthScore
	}

	var deltas []ScoreDelta
	for _, ss := range current {
		prev, ok := prevByStory[ss.Story]
		if !ok {
			continue
		}
		deltas = append(deltas, ScoreDelta{
			Story:    ss.Story,
			Previous: prev,
			Current:  ss.HealthScore,
			Delta:    ss.HealthScore - prev,
		})
	}
	return deltas, nil
}

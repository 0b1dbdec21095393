// Package store provides SQLite persistence for health-score snapshots,
// so the track command can show trends over time. Snapshots carry scores
// and KPI figures only; per-call diagnostics are never persisted.
package store

import "time"

// Snapshot represents a point-in-time capture of story health scores.
type Snapshot struct {
	ID      int64     `json:"id"`
	TakenAt time.Time `json:"taken_at"`
	Source  string    `json:"source"`
	Version string    `json:"version"`
}

// StoryScore is one story's aggregate within a snapshot.
type StoryScore struct {
	ID           int64   `json:"id"`
	SnapshotID   int64   `json:"snapshot_id"`
	Story        string  `json:"story"`
	HealthScore  float64 `json:"health_score"`
	Calls        int     `json:"calls"`
	FlaggedCalls int     `json:"flagged_calls"`
	TotalCost    float64 `json:"total_cost"`
	WastedCost   float64 `json:"wasted_cost"`
}

// OperationScore is one operation's aggregate within a snapshot.
type OperationScore struct {
	ID            int64   `json:"id"`
	SnapshotID    int64   `json:"snapshot_id"`
	Story         string  `json:"story"`
	Operation     string  `json:"operation"`
	AgentName     string  `json:"agent_name,omitempty"`
	HealthScore   float64 `json:"health_score"`
	Calls         int     `json:"calls"`
	CriticalCalls int     `json:"critical_calls"`
	WarningCalls  int     `json:"warning_calls"`
	TotalCost     float64 `json:"total_cost"`
}

// ScoreDelta is the change in one story's health score between snapshots.
type ScoreDelta struct {
	Story    string  `json:"story"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
}

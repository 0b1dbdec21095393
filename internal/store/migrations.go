package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates all initial tables and indexes. Snapshots record only
// scores and KPI figures, never factors or fixes; diagnostics are always
// recomputed fresh from call records.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at TEXT NOT NULL,
			source   TEXT NOT NULL,
			version  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS story_scores (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id    INTEGER NOT NULL REFERENCES snapshots(id),
			story          TEXT NOT NULL,
			health_score   REAL NOT NULL,
			calls          INTEGER NOT NULL,
			flagged_calls  INTEGER NOT NULL,
			total_cost     REAL NOT NULL,
			wasted_cost    REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS operation_scores (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id    INTEGER NOT NULL REFERENCES snapshots(id),
			story          TEXT NOT NULL,
			operation      TEXT NOT NULL,
			agent_name     TEXT,
			health_score   REAL NOT NULL,
			calls          INTEGER NOT NULL,
			critical_calls INTEGER NOT NULL,
			warning_calls  INTEGER NOT NULL,
			total_cost     REAL NOT NULL
		)`,

		// Indexes.
		`CREATE INDEX IF NOT EXISTS idx_story_scores_snapshot ON story_scores(snapshot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_story_scores_story ON story_scores(story)`,
		`CREATE INDEX IF NOT EXISTS idx_operation_scores_snapshot ON operation_scores(snapshot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_operation_scores_operation ON operation_scores(operation)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}

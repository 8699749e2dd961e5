package db

import "fmt"

// migrate runs database migrations.
func (s *SQLite) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS projects (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			deadline    TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id            TEXT PRIMARY KEY,
			project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			parent_id     TEXT REFERENCES tasks(id) ON DELETE CASCADE,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'Planned'
			              CHECK(status IN ('Planned', 'InProgress', 'Done', 'Blocked', 'Cancelled')),
			duration      REAL NOT NULL CHECK(duration >= 0),
			planned_start TEXT NOT NULL,
			planned_end   TEXT NOT NULL,
			deadline      TEXT,
			created_at    TEXT NOT NULL,
			CHECK(planned_end >= planned_start),
			CHECK(parent_id IS NULL OR parent_id <> id)
		);

		CREATE TABLE IF NOT EXISTS dependencies (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			predecessor_task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			successor_task_id   TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			type                TEXT NOT NULL CHECK(type IN ('FS', 'SS', 'FF', 'SF')),
			lag                 REAL NOT NULL DEFAULT 0,
			CONSTRAINT ck_dep_no_self_link CHECK(predecessor_task_id <> successor_task_id),
			CONSTRAINT uq_dep_pair UNIQUE(predecessor_task_id, successor_task_id)
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, planned_start);
		CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
		CREATE INDEX IF NOT EXISTS idx_dependencies_successor ON dependencies(successor_task_id);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}

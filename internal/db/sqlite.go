// Package db provides SQLite storage implementation.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/javiermolinar/cadence/internal/task"
	"github.com/javiermolinar/cadence/internal/timing"
)

// timeLayout has fixed-width fractional seconds so stored instants sort
// lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite implements task.Repository using SQLite.
type SQLite struct {
	db *sql.DB
}

// New creates a new SQLite repository and runs migrations.
func New(path string) (*SQLite, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close releases database resources.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateProject adds a new project.
func (s *SQLite) CreateProject(ctx context.Context, p *task.Project) error {
	query := `INSERT INTO projects (id, title, deadline, created_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.Title,
		formatNullTime(p.Deadline),
		formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *SQLite) GetProject(ctx context.Context, id string) (*task.Project, error) {
	query := `SELECT id, title, deadline, created_at FROM projects WHERE id = ?`

	p, err := scanProject(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, task.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *SQLite) ListProjects(ctx context.Context) ([]*task.Project, error) {
	query := `SELECT id, title, deadline, created_at FROM projects ORDER BY created_at, title`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*task.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

// CreateTask adds a new task and its dependencies in one transaction.
func (s *SQLite) CreateTask(ctx context.Context, t *task.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkProjectTx(ctx, tx, t.ProjectID); err != nil {
		return err
	}
	if t.ParentID != nil {
		if err := checkSameProjectTx(ctx, tx, *t.ParentID, t.ProjectID, task.ErrParentOutsideProject); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO tasks (
			id, project_id, parent_id, title, description, status, duration,
			planned_start, planned_end, deadline, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		t.ID,
		t.ProjectID,
		t.ParentID,
		t.Title,
		t.Description,
		t.Status,
		t.Duration,
		formatTime(t.PlannedStart),
		formatTime(t.PlannedEnd),
		formatNullTime(t.Deadline),
		formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	if err := insertDependenciesTx(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const selectTask = `
	SELECT id, project_id, parent_id, title, description, status, duration,
	       planned_start, planned_end, deadline, created_at
	FROM tasks
`

// GetTask retrieves a task by ID, including its dependencies.
func (s *SQLite) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, task.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}

	deps, err := s.dependenciesOf(ctx, `WHERE successor_task_id = ?`, id)
	if err != nil {
		return nil, err
	}
	t.Dependencies = deps[t.ID]

	return t, nil
}

// GetTasks retrieves several tasks by ID.
func (s *SQLite) GetTasks(ctx context.Context, ids []string) (map[string]*task.Task, error) {
	out := make(map[string]*task.Task, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		t, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, nil
}

// ListProjectTasks returns all tasks of a project ordered by planned start.
func (s *SQLite) ListProjectTasks(ctx context.Context, projectID string) ([]*task.Task, error) {
	return s.listTasks(ctx,
		` WHERE project_id = ? ORDER BY planned_start, planned_end, title`,
		`WHERE successor_task_id IN (SELECT id FROM tasks WHERE project_id = ?)`,
		projectID)
}

// ListTasksBetween returns the tasks of every project whose window overlaps
// [from, to), ordered by planned start.
func (s *SQLite) ListTasksBetween(ctx context.Context, from, to time.Time) ([]*task.Task, error) {
	return s.listTasks(ctx,
		` WHERE planned_start < ? AND planned_end > ? ORDER BY planned_start, planned_end, title`,
		`WHERE successor_task_id IN (SELECT id FROM tasks WHERE planned_start < ? AND planned_end > ?)`,
		formatTime(to), formatTime(from))
}

// listTasks runs selectTask with the given suffix and attaches the
// dependencies matched by depWhere. Both take the same arguments.
func (s *SQLite) listTasks(ctx context.Context, suffix, depWhere string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, selectTask+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	deps, err := s.dependenciesOf(ctx, depWhere, args...)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		t.Dependencies = deps[t.ID]
	}

	return tasks, nil
}

// UpdateTaskWindow replaces a task's planned window in place.
func (s *SQLite) UpdateTaskWindow(ctx context.Context, id string, w timing.Window) error {
	return updateWindow(ctx, s.db, id, w)
}

// BatchUpdateTaskWindows updates several windows atomically.
func (s *SQLite) BatchUpdateTaskWindows(ctx context.Context, updates []task.WindowUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range updates {
		if err := updateWindow(ctx, tx, u.ID, u.Window); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpdateTask replaces the editable fields, the window and the dependency
// list of a task in one transaction.
func (s *SQLite) UpdateTask(ctx context.Context, t *task.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if t.ParentID != nil {
		if err := checkSameProjectTx(ctx, tx, *t.ParentID, t.ProjectID, task.ErrParentOutsideProject); err != nil {
			return err
		}
	}

	query := `
		UPDATE tasks SET
			parent_id = ?, title = ?, description = ?, status = ?, duration = ?,
			planned_start = ?, planned_end = ?, deadline = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, query,
		t.ParentID,
		t.Title,
		t.Description,
		t.Status,
		t.Duration,
		formatTime(t.PlannedStart),
		formatTime(t.PlannedEnd),
		formatNullTime(t.Deadline),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("task %s: %w", t.ID, task.ErrTaskNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE successor_task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("clearing dependencies: %w", err)
	}
	if err := insertDependenciesTx(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SetTaskStatus changes the status of a task.
func (s *SQLite) SetTaskStatus(ctx context.Context, id string, status task.Status) error {
	if !status.Valid() {
		return task.ErrInvalidStatus
	}

	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("setting task status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("task %s: %w", id, task.ErrTaskNotFound)
	}
	return nil
}

// DeleteTask removes a task. Subtasks and dependencies cascade.
func (s *SQLite) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("task %s: %w", id, task.ErrTaskNotFound)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateWindow(ctx context.Context, ex execer, id string, w timing.Window) error {
	query := `UPDATE tasks SET planned_start = ?, planned_end = ?, deadline = ? WHERE id = ?`

	result, err := ex.ExecContext(ctx, query,
		formatTime(w.Start),
		formatTime(w.End),
		formatNullTime(w.Deadline),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating window of task %s: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("task %s: %w", id, task.ErrTaskNotFound)
	}
	return nil
}

func insertDependenciesTx(ctx context.Context, tx *sql.Tx, t *task.Task) error {
	if len(t.Dependencies) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dependencies (predecessor_task_id, successor_task_id, type, lag)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	seen := make(map[string]bool, len(t.Dependencies))
	for _, d := range t.Dependencies {
		if d.PredecessorID == t.ID {
			return task.ErrSelfDependency
		}
		if seen[d.PredecessorID] {
			return task.ErrDuplicateDependency
		}
		seen[d.PredecessorID] = true

		if err := checkSameProjectTx(ctx, tx, d.PredecessorID, t.ProjectID, task.ErrPredecessorOutside); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, d.PredecessorID, t.ID, d.Type, d.LagHours); err != nil {
			return fmt.Errorf("inserting dependency on %s: %w", d.PredecessorID, err)
		}
	}
	return nil
}

func checkProjectTx(ctx context.Context, tx *sql.Tx, projectID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, projectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", projectID, task.ErrProjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking project: %w", err)
	}
	return nil
}

// checkSameProjectTx returns notSame when taskID is missing or belongs to
// a project other than projectID.
func checkSameProjectTx(ctx context.Context, tx *sql.Tx, taskID, projectID string, notSame error) error {
	var got string
	err := tx.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ?`, taskID).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && got != projectID) {
		return fmt.Errorf("task %s: %w", taskID, notSame)
	}
	if err != nil {
		return fmt.Errorf("checking task %s: %w", taskID, err)
	}
	return nil
}

// dependenciesOf loads dependencies grouped by successor task ID.
func (s *SQLite) dependenciesOf(ctx context.Context, where string, args ...any) (map[string][]task.Dependency, error) {
	query := `SELECT successor_task_id, predecessor_task_id, type, lag FROM dependencies ` + where + ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dependencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]task.Dependency)
	for rows.Next() {
		var (
			successor string
			d         task.Dependency
		)
		if err := rows.Scan(&successor, &d.PredecessorID, &d.Type, &d.LagHours); err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		out[successor] = append(out[successor], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dependencies: %w", err)
	}
	return out, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*task.Task, error) {
	var (
		t            task.Task
		parentID     sql.NullString
		plannedStart string
		plannedEnd   string
		deadline     sql.NullString
		createdAt    string
	)

	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&parentID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Duration,
		&plannedStart,
		&plannedEnd,
		&deadline,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		t.ParentID = &parentID.String
	}
	if t.PlannedStart, err = parseTime(plannedStart); err != nil {
		return nil, fmt.Errorf("parsing planned start: %w", err)
	}
	if t.PlannedEnd, err = parseTime(plannedEnd); err != nil {
		return nil, fmt.Errorf("parsing planned end: %w", err)
	}
	if t.Deadline, err = parseNullTime(deadline); err != nil {
		return nil, fmt.Errorf("parsing deadline: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created at: %w", err)
	}

	return &t, nil
}

func scanProject(row scanner) (*task.Project, error) {
	var (
		p         task.Project
		deadline  sql.NullString
		createdAt string
	)

	if err := row.Scan(&p.ID, &p.Title, &deadline, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if p.Deadline, err = parseNullTime(deadline); err != nil {
		return nil, fmt.Errorf("parsing deadline: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created at: %w", err)
	}
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

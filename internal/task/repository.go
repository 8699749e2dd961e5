package task

import (
	"context"
	"time"

	"github.com/javiermolinar/cadence/internal/timing"
)

// WindowUpdate represents a task window change for batch updates.
type WindowUpdate struct {
	ID     string
	Window timing.Window
}

// Repository defines the storage interface for projects and tasks.
type Repository interface {
	// CreateProject adds a new project.
	CreateProject(ctx context.Context, p *Project) error

	// GetProject retrieves a project by ID.
	// Returns ErrProjectNotFound if it does not exist.
	GetProject(ctx context.Context, id string) (*Project, error)

	// ListProjects returns all projects ordered by creation time.
	ListProjects(ctx context.Context) ([]*Project, error)

	// CreateTask adds a new task together with its dependencies.
	// Returns ErrParentOutsideProject or ErrPredecessorOutside when a
	// referenced task belongs to another project.
	CreateTask(ctx context.Context, t *Task) error

	// GetTask retrieves a task by ID, including its dependencies.
	// Returns ErrTaskNotFound if it does not exist.
	GetTask(ctx context.Context, id string) (*Task, error)

	// GetTasks retrieves several tasks by ID. Missing IDs are an error.
	GetTasks(ctx context.Context, ids []string) (map[string]*Task, error)

	// ListProjectTasks returns all tasks of a project ordered by planned start.
	ListProjectTasks(ctx context.Context, projectID string) ([]*Task, error)

	// ListTasksBetween returns the tasks of every project whose window
	// overlaps [from, to), ordered by planned start.
	ListTasksBetween(ctx context.Context, from, to time.Time) ([]*Task, error)

	// UpdateTaskWindow replaces a task's planned window in place.
	UpdateTaskWindow(ctx context.Context, id string, w timing.Window) error

	// UpdateTask replaces the editable fields of a task, its window and
	// its dependency list atomically.
	UpdateTask(ctx context.Context, t *Task) error

	// BatchUpdateTaskWindows updates several windows atomically.
	BatchUpdateTaskWindows(ctx context.Context, updates []WindowUpdate) error

	// SetTaskStatus changes the status of a task.
	SetTaskStatus(ctx context.Context, id string, status Status) error

	// DeleteTask removes a task, its subtasks and every dependency that
	// references it.
	DeleteTask(ctx context.Context, id string) error

	// Close releases any resources held by the repository.
	Close() error
}

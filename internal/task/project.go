package task

import (
	"time"

	"github.com/google/uuid"
)

// Project groups tasks and carries the deadline that bounds them.
type Project struct {
	ID        string
	Title     string
	Deadline  *time.Time
	CreatedAt time.Time
}

// NewProject creates a new Project with validation.
func NewProject(title string, deadline *time.Time) (*Project, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}
	return &Project{
		ID:        uuid.NewString(),
		Title:     title,
		Deadline:  deadline,
		CreatedAt: time.Now(),
	}, nil
}

package tasks

import (
	"context"

	"github.com/google/uuid"
)

// Task is the interface that all background tasks must implement.
type Task interface {
	// ID returns a unique identifier for this task, used for log correlation.
	ID() string

	// Name returns a human-readable name.
	Name() string

	// Execute runs the task. The context carries the per-task timeout and
	// is cancelled when the queue is force-stopped.
	Execute(ctx context.Context) error
}

// BaseTask provides common task identity.
// Embed this in concrete task implementations.
type BaseTask struct {
	id   string
	name string
}

// NewBaseTask creates a new base task with a generated id.
func NewBaseTask(name string) BaseTask {
	return BaseTask{
		id:   uuid.New().String(),
		name: name,
	}
}

// ID returns the task ID.
func (t BaseTask) ID() string {
	return t.id
}

// Name returns the task name.
func (t BaseTask) Name() string {
	return t.name
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of an ingestion task.
type TaskStatus string

const (
	// TaskPending — accepted, no remote work started yet.
	TaskPending TaskStatus = "pending"
	// TaskProcessing — blob upload succeeded, import in flight.
	TaskProcessing TaskStatus = "processing"
	// TaskCompleted — document imported and recorded.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed — workflow aborted; ErrorMessage carries the cause.
	TaskFailed TaskStatus = "failed"
)

// Task tracks one asynchronous ingestion attempt for client polling. Tasks
// are never deleted — they double as audit history.
type Task struct {
	TaskID       string
	Filename     string
	Status       TaskStatus
	Result       string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTask creates a pending task for a filename.
func NewTask(filename string) Task {
	now := time.Now().UTC()
	return Task{
		TaskID:    uuid.NewString(),
		Filename:  filename,
		Status:    TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the task reached a final state.
func (t TaskStatus) Terminal() bool {
	return t == TaskCompleted || t == TaskFailed
}

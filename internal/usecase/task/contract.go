package task

import (
	"context"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// Repository defines the storage contract for ingestion tasks.
type Repository interface {
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
}

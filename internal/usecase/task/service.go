// Package task exposes the polling surface for ingestion tasks.
package task

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// Service handles task reads. Tasks are never deleted; the history doubles as
// an audit trail.
type Service struct {
	repo Repository
}

// New creates a task service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get retrieves a task by id.
func (s *Service) Get(ctx context.Context, taskID string) (domain.Task, error) {
	t, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// List returns all tasks.
func (s *Service) List(ctx context.Context) ([]domain.Task, error) {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

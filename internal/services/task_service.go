package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
	"github.com/charlesng35/taskpad/pkg/logger"
)

// CreateTaskInput captures the fields accepted when creating a task.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *time.Time
}

// UpdateTaskInput is a partial update; nil fields are left untouched.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Status       *models.TaskStatus
	Priority     *models.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
}

// Dashboard summarises an owner's tasks.
type Dashboard struct {
	Total                int64 `json:"total"`
	Pending              int64 `json:"pending"`
	InProgress           int64 `json:"inProgress"`
	Completed            int64 `json:"completed"`
	Overdue              int64 `json:"overdue"`
	CompletionPercentage int   `json:"completionPercentage"`
}

// TaskService exposes owner-scoped task CRUD and the dashboard aggregates.
type TaskService struct {
	tasks store.TaskStore
	now   func() time.Time
	log   *zap.Logger
}

// NewTaskService constructs a TaskService. A nil clock uses time.Now.
func NewTaskService(tasks store.TaskStore, clock func() time.Time) (*TaskService, error) {
	if tasks == nil {
		return nil, errors.New("task service: task store is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &TaskService{
		tasks: tasks,
		now:   clock,
		log:   logger.WithModule("tasks"),
	}, nil
}

func (s *TaskService) Create(ctx context.Context, ownerID string, input CreateTaskInput) (*models.Task, error) {
	task := &models.Task{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      models.TaskStatusPending,
		Priority:    models.TaskPriorityMedium,
		DueDate:     utc(input.DueDate),
	}
	if input.Priority != "" {
		task.Priority = input.Priority
	}
	if input.Status != "" {
		task.ApplyStatus(input.Status, s.now().UTC())
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, internalError(err)
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, ownerID string, status models.TaskStatus) ([]models.Task, error) {
	tasks, err := s.tasks.List(ctx, ownerID, store.TaskFilter{Status: status})
	if err != nil {
		return nil, internalError(err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, ownerID, id string) (*models.Task, error) {
	task, err := s.tasks.Get(ctx, ownerID, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, internalError(err)
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, ownerID, id string, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.tasks.Update(ctx, ownerID, id, func(t *models.Task) error {
		if input.Title != nil {
			t.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			t.Description = strings.TrimSpace(*input.Description)
		}
		if input.Priority != nil {
			t.Priority = *input.Priority
		}
		switch {
		case input.ClearDueDate:
			t.DueDate = nil
		case input.DueDate != nil:
			t.DueDate = utc(input.DueDate)
		}
		if input.Status != nil {
			t.ApplyStatus(*input.Status, s.now().UTC())
		}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, internalError(err)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.tasks.Delete(ctx, ownerID, id); err != nil {
		if isNotFound(err) {
			return ErrTaskNotFound
		}
		return internalError(err)
	}
	return nil
}

// DeleteAll removes every task of the owner and reports how many went.
func (s *TaskService) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.tasks.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, internalError(err)
	}
	if n > 0 {
		s.log.Debug("tasks removed", zap.String("owner_id", ownerID), zap.Int64("count", n))
	}
	return n, nil
}

// Dashboard computes per-status totals, the overdue count and the completion
// percentage rounded to the nearest integer.
func (s *TaskService) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	stats, err := s.tasks.Stats(ctx, ownerID, s.now().UTC())
	if err != nil {
		return nil, internalError(err)
	}

	dash := &Dashboard{
		Total:      stats.Total,
		Pending:    stats.Pending,
		InProgress: stats.InProgress,
		Completed:  stats.Completed,
		Overdue:    stats.Overdue,
	}
	if stats.Total > 0 {
		dash.CompletionPercentage = int(math.Round(float64(stats.Completed) * 100 / float64(stats.Total)))
	}
	return dash, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

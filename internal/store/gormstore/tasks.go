package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
)

// TaskStore persists tasks in the tasks table.
type TaskStore struct {
	db *gorm.DB
}

var _ store.TaskStore = (*TaskStore)(nil)

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, task *models.Task) error {
	if task == nil || task.OwnerID == "" {
		return errors.New("gormstore: task owner is required")
	}
	return translate(s.db.WithContext(ctx).Create(task).Error)
}

func (s *TaskStore) List(ctx context.Context, ownerID string, filter store.TaskFilter) ([]models.Task, error) {
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var tasks []models.Task
	err := query.
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END").
		Order("due_date ASC").
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskStore) Get(ctx context.Context, ownerID, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Take(&task, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

func (s *TaskStore) Update(ctx context.Context, ownerID, id string, fn store.MutateFunc[models.Task]) (*models.Task, error) {
	var updated models.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&task, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			return err
		}

		if err := fn(&task); err != nil {
			return err
		}
		task.ID, task.OwnerID = id, ownerID

		if err := tx.Save(&task).Error; err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

func (s *TaskStore) Delete(ctx context.Context, ownerID, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ? AND owner_id = ?", id, ownerID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *TaskStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&models.Task{}, "owner_id = ?", ownerID)
	return result.RowsAffected, result.Error
}

func (s *TaskStore) Stats(ctx context.Context, ownerID string, now time.Time) (store.TaskStats, error) {
	var rows []struct {
		Status models.TaskStatus
		Count  int64
	}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Task{}).
		Select("status, COUNT(*) AS count").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return store.TaskStats{}, err
	}

	var stats store.TaskStats
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.TaskStatusPending:
			stats.Pending = row.Count
		case models.TaskStatusInProgress:
			stats.InProgress = row.Count
		case models.TaskStatusCompleted:
			stats.Completed = row.Count
		}
	}

	if err := db.Model(&models.Task{}).
		Where("owner_id = ? AND status <> ? AND due_date IS NOT NULL AND due_date < ?", ownerID, models.TaskStatusCompleted, now).
		Count(&stats.Overdue).Error; err != nil {
		return store.TaskStats{}, err
	}

	return stats, nil
}

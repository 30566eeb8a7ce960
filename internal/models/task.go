package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task is a to-do item owned by exactly one account.
type Task struct {
	BaseModel

	OwnerID     string       `gorm:"size:36;not null;index" json:"ownerId"`
	Title       string       `gorm:"size:200;not null" json:"title"`
	Description string       `gorm:"size:2000" json:"description"`
	Status      TaskStatus   `gorm:"size:20;not null;default:pending;index" json:"status"`
	Priority    TaskPriority `gorm:"size:10;not null;default:medium" json:"priority"`
	DueDate     *time.Time   `gorm:"index" json:"dueDate,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// IsOverdue reports whether an unfinished task is past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != TaskStatusCompleted && t.DueDate != nil && t.DueDate.Before(now)
}

// ApplyStatus changes the status and keeps CompletedAt consistent with it.
func (t *Task) ApplyStatus(status TaskStatus, now time.Time) {
	if status == TaskStatusCompleted && t.Status != TaskStatusCompleted {
		completed := now
		t.CompletedAt = &completed
	}
	if status != TaskStatusCompleted {
		t.CompletedAt = nil
	}
	t.Status = status
}

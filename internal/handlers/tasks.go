package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/services"
	"github.com/charlesng35/taskpad/pkg/errors"
	"github.com/charlesng35/taskpad/pkg/response"
)

// TaskHandler serves the signed-in account's tasks and dashboard.
type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

type createTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	Status      string     `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"dueDate"`
}

// optionalTime tells an absent field apart from an explicit null.
type optionalTime struct {
	Present bool
	Value   *time.Time
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

type updateTaskRequest struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string      `json:"description" validate:"omitempty,max=2000"`
	Status      *string      `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    *string      `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     optionalTime `json:"dueDate"`
}

var validStatusFilters = map[string]struct{}{
	"":                                  {},
	string(models.TaskStatusPending):    {},
	string(models.TaskStatusInProgress): {},
	string(models.TaskStatusCompleted):  {},
}

// GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	ownerID, ok := currentAccountID(c)
	if !ok {
		return
	}

	status := c.Query("status")
	if _, valid := validStatusFilters[status]; !valid {
		respondError(c, errors.NewBadRequest("status must be one of: pending in_progress completed"))
		return
	}

	tasks, err := h.tasks.List(requestContext(c), ownerID, models.TaskStatus(status))
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, tasks, &response.Meta{Total: len(tasks)})
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	ownerID, ok := currentAccountID(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Create(requestContext(c), ownerID, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, task)
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	ownerID, ok := currentAccountID(c)
	if !ok {
		return
	}

	task, err := h.tasks.Get(requestContext(c), ownerID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}

// PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	ownerID, ok := currentAccountID(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		ClearDueDate: req.DueDate.Present && req.DueDate.Value == nil,
		DueDate:      req.DueDate.Value,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		input.Priority = &priority
	}

	task, err := h.tasks.Update(requestContext(c), ownerID, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	ownerID, ok := currentAccountID(c)
	if !ok {
		return
	}

	if err := h.tasks.Delete(requestContext(c), ownerID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GET /api/dashboard
func (h *TaskHandler) Dashboard(c *gin.Context) {
	ownerID, ok := currentAccountID(c)
	if !ok {
		return
	}

	dash, err := h.tasks.Dashboard(requestContext(c), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, dash)
}

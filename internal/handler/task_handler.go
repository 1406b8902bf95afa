package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trackit/internal/model"
	"trackit/internal/service/task"
)

type TaskHandler struct {
	tasks  *task.Service
	logger *zap.Logger
}

func NewTaskHandler(tasks *task.Service, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type createTaskRequest struct {
	Title       string         `json:"title"`
	Description *string        `json:"description"`
	ProjectID   int64          `json:"projectId"`
	DueDate     *time.Time     `json:"dueDate"`
	Priority    model.Priority `json:"priority"`
}

// CreateTask handles POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	t, err := h.tasks.CreateTask(c.Request.Context(), userID, task.CreateTaskInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
	})
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GetTask handles GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "GetTask", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type statusRequest struct {
	Status *model.TaskStatus `json:"status" binding:"required"`
}

// UpdateTaskStatus handles PUT /api/tasks/:id/status, the drag-and-drop path.
func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	if err := h.tasks.UpdateTaskStatus(c.Request.Context(), userID, id, *req.Status); err != nil {
		respondError(c, h.logger, "UpdateTaskStatus", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateTaskRequest struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Description *string          `json:"description"`
	Status      model.TaskStatus `json:"status"`
	DueDate     *time.Time       `json:"dueDate"`
	Priority    model.Priority   `json:"priority"`
	Version     *int64           `json:"version"`
}

// UpdateTask handles PUT /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.ID != 0 && req.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id mismatch"})
		return
	}

	err := h.tasks.UpdateTask(c.Request.Context(), userID, id, task.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Version:     req.Version,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	c.Status(http.StatusNoContent)
}

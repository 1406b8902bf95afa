package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trackit/internal/service/board"
	"trackit/internal/service/project"
)

type ProjectHandler struct {
	projects *project.Service
	boards   *board.Service
	logger   *zap.Logger
}

func NewProjectHandler(projects *project.Service, boards *board.Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, boards: boards, logger: logger}
}

// ListProjects handles GET /api/projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	projects, err := h.projects.ListProjects(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "ListProjects", err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GetProject handles GET /api/projects/:id and includes the task items.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.boards.GetProject(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, "GetProject", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetBoard handles GET /api/projects/:id/board
func (h *ProjectHandler) GetBoard(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.boards.GetBoard(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, "GetBoard", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type projectRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateProject handles POST /api/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	p, err := h.projects.CreateProject(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondError(c, h.logger, "CreateProject", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateProject handles PUT /api/projects/:id. The body id must match.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id mismatch"})
		return
	}
	if err := h.projects.RenameProject(c.Request.Context(), userID, id, req.Name); err != nil {
		respondError(c, h.logger, "UpdateProject", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteProject handles DELETE /api/projects/:id
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.projects.DeleteProject(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.logger, "DeleteProject", err)
		return
	}
	c.Status(http.StatusNoContent)
}

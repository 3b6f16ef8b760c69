package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
	"github.com/amiyamandal-dev/repoportal/pkg/response"
)

// ProjectHandler serves project details, view tracking and bookmarks
type ProjectHandler struct {
	projectService *service.ProjectService
	logger         *logger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService *service.ProjectService, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger.WithComponent("project-handler"),
	}
}

// CompleteViewRequest is the body of PUT /projects/:id/views/:viewID
type CompleteViewRequest struct {
	DurationSeconds *float64 `json:"duration_seconds" binding:"required"`
}

// Get returns one project
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projectService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, project)
}

// StartView opens a view record
func (h *ProjectHandler) StartView(c *gin.Context) {
	viewID, err := h.projectService.StartView(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(201, response.Response{Success: true, Data: gin.H{"view_id": viewID}})
}

// CompleteView closes a view record
func (h *ProjectHandler) CompleteView(c *gin.Context) {
	var req CompleteViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "duration_seconds is required")
		return
	}

	duration := time.Duration(*req.DurationSeconds * float64(time.Second))
	if err := h.projectService.CompleteView(c.Request.Context(), c.Param("id"), c.Param("viewID"), duration); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "View recorded", nil)
}

// Bookmarks lists the caller's bookmarks
func (h *ProjectHandler) Bookmarks(c *gin.Context) {
	bookmarks, err := h.projectService.Bookmarks(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, bookmarks)
}

// AddBookmark bookmarks a project
func (h *ProjectHandler) AddBookmark(c *gin.Context) {
	if err := h.projectService.AddBookmark(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Bookmark added", nil)
}

// RemoveBookmark removes a bookmark
func (h *ProjectHandler) RemoveBookmark(c *gin.Context) {
	if err := h.projectService.RemoveBookmark(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Bookmark removed", nil)
}

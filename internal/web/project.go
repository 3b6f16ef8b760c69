package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/render"
	"github.com/amiyamandal-dev/repoportal/pkg/response"
)

// ProjectPage renders the detail view of one work
func (h *WebHandler) ProjectPage(c *gin.Context) {
	project, err := h.projectService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, domain.ErrInvalidProject):
			h.renderError(c, http.StatusNotFound, "This work does not exist or was removed.")
		default:
			h.renderError(c, http.StatusBadGateway, "The repository is not responding. Please try again.")
		}
		return
	}

	h.render(c, http.StatusOK, "project", gin.H{
		"Title":   project.Title,
		"Project": project,
		"Card":    h.renderer.Card(project.ProjectSummary),
	})
}

// StartView is called by the detail page once it is shown
func (h *WebHandler) StartView(c *gin.Context) {
	viewID, err := h.projectService.StartView(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"view_id": viewID})
}

// CompleteView is called by the detail page when it is left
func (h *WebHandler) CompleteView(c *gin.Context) {
	seconds, err := strconv.ParseFloat(c.PostForm("duration_seconds"), 64)
	if err != nil {
		response.BadRequest(c, "duration_seconds must be a number")
		return
	}

	duration := time.Duration(seconds * float64(time.Second))
	if err := h.projectService.CompleteView(c.Request.Context(), c.Param("id"), c.Param("viewID"), duration); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bookmarkView struct {
	Card    render.Card
	SavedAt string
}

// BookmarksPage lists the signed-in user's bookmarks
func (h *WebHandler) BookmarksPage(c *gin.Context) {
	bookmarks, err := h.projectService.Bookmarks(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			c.Redirect(http.StatusSeeOther, "/login?next=/bookmarks")
			return
		}
		h.logger.Error("Failed to load bookmarks", "error", err)
		h.render(c, http.StatusOK, "bookmarks", gin.H{
			"Title":     "Bookmarks",
			"Error":     "Bookmarks are unavailable right now.",
			"Bookmarks": []bookmarkView{},
		})
		return
	}

	views := make([]bookmarkView, 0, len(bookmarks))
	for _, b := range bookmarks {
		views = append(views, bookmarkView{
			Card:    h.renderer.Card(b.Project),
			SavedAt: formatSaved(b.CreatedAt),
		})
	}
	h.render(c, http.StatusOK, "bookmarks", gin.H{
		"Title":     "Bookmarks",
		"Bookmarks": views,
	})
}

func formatSaved(raw string) string {
	if raw == "" {
		return ""
	}
	return render.FormatDate(raw)
}

// AddBookmark saves a work and returns to it
func (h *WebHandler) AddBookmark(c *gin.Context) {
	id := c.Param("id")
	if err := h.projectService.AddBookmark(c.Request.Context(), id); err != nil {
		h.bookmarkError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/projects/"+id)
}

// RemoveBookmark drops a saved work and returns to the bookmark list
func (h *WebHandler) RemoveBookmark(c *gin.Context) {
	if err := h.projectService.RemoveBookmark(c.Request.Context(), c.Param("id")); err != nil {
		h.bookmarkError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/bookmarks")
}

func (h *WebHandler) bookmarkError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrUnauthorized) {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	h.logger.Error("Bookmark update failed", "error", err)
	h.renderError(c, response.StatusFor(err), "Could not update bookmarks.")
}

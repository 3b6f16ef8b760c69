package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

// GetProject fetches one work for the detail view
func (c *Client) GetProject(ctx context.Context, id domain.ID) (*domain.Project, error) {
	var project domain.Project
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/projects/:id",
		path:   "/api/projects/" + url.PathEscape(string(id)),
	}, &project)
	if IsStatus(err, http.StatusNotFound) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

type startViewResponse struct {
	ViewID domain.ID `json:"view_id"`
}

// StartView opens a view-duration record and returns its id
func (c *Client) StartView(ctx context.Context, id domain.ID) (domain.ID, error) {
	var resp startViewResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/projects/:id/views",
		path:   "/api/projects/" + url.PathEscape(string(id)) + "/views",
		body:   map[string]string{},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ViewID, nil
}

// CompleteView closes a view-duration record
func (c *Client) CompleteView(ctx context.Context, id, viewID domain.ID, duration time.Duration) error {
	return c.do(ctx, call{
		method: http.MethodPut,
		route:  "/api/projects/:id/views/:viewId",
		path:   "/api/projects/" + url.PathEscape(string(id)) + "/views/" + url.PathEscape(string(viewID)),
		body:   map[string]int64{"duration_seconds": int64(duration.Round(time.Second) / time.Second)},
	}, nil)
}

// ListBookmarks returns the signed-in user's bookmarks
func (c *Client) ListBookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	if err := c.list(ctx, "/api/bookmarks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddBookmark bookmarks a work for the signed-in user
func (c *Client) AddBookmark(ctx context.Context, projectID domain.ID) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/bookmarks",
		path:   "/api/bookmarks",
		body:   map[string]string{"project_id": string(projectID)},
	}, nil)
}

// RemoveBookmark removes a bookmark by project id
func (c *Client) RemoveBookmark(ctx context.Context, projectID domain.ID) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		route:  "/api/bookmarks/:projectId",
		path:   "/api/bookmarks/" + url.PathEscape(string(projectID)),
	}, nil)
}

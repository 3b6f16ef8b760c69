package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amiyamandal-dev/repoportal/internal/backend"
	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/observability"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// maxViewDuration caps what a page may report for one view
const maxViewDuration = 12 * time.Hour

// ProjectBackend is the part of the repository API behind the detail page
type ProjectBackend interface {
	GetProject(ctx context.Context, id domain.ID) (*domain.Project, error)
	StartView(ctx context.Context, id domain.ID) (domain.ID, error)
	CompleteView(ctx context.Context, id, viewID domain.ID, duration time.Duration) error
	ListBookmarks(ctx context.Context) ([]domain.Bookmark, error)
	AddBookmark(ctx context.Context, projectID domain.ID) error
	RemoveBookmark(ctx context.Context, projectID domain.ID) error
}

// ProjectService handles the detail page, view tracking and bookmarks
type ProjectService struct {
	backend ProjectBackend
	metrics *observability.Metrics
	logger  *logger.Logger
}

// NewProjectService creates a new project service
func NewProjectService(backend ProjectBackend, metrics *observability.Metrics, logger *logger.Logger) *ProjectService {
	return &ProjectService{
		backend: backend,
		metrics: metrics,
		logger:  logger.WithComponent("project-service"),
	}
}

func parseProjectID(raw string) (domain.ID, error) {
	id := domain.ID(strings.TrimSpace(raw))
	if id == "" || strings.ContainsAny(string(id), "/?#") {
		return "", domain.ErrInvalidProject
	}
	return id, nil
}

// Get returns one work
func (s *ProjectService) Get(ctx context.Context, rawID string) (*domain.Project, error) {
	id, err := parseProjectID(rawID)
	if err != nil {
		return nil, err
	}

	project, err := s.backend.GetProject(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrProjectNotFound) {
			s.logger.Error("Failed to load project", "project_id", id, "error", err)
		}
		return nil, err
	}
	return project, nil
}

// StartView records that a reader opened a work and returns the view id
func (s *ProjectService) StartView(ctx context.Context, rawID string) (domain.ID, error) {
	id, err := parseProjectID(rawID)
	if err != nil {
		return "", err
	}

	viewID, err := s.backend.StartView(ctx, id)
	if err != nil {
		s.metrics.ObserveView("start", "failed")
		s.logger.Warn("Failed to start view", "project_id", id, "error", err)
		return "", err
	}
	s.metrics.ObserveView("start", "ok")
	return viewID, nil
}

// CompleteView reports how long the reader stayed. Negative durations are
// rejected and very long ones are capped.
func (s *ProjectService) CompleteView(ctx context.Context, rawID, rawViewID string, duration time.Duration) error {
	id, err := parseProjectID(rawID)
	if err != nil {
		return err
	}
	viewID, err := parseProjectID(rawViewID)
	if err != nil {
		return fmt.Errorf("%w: view id", domain.ErrInvalidInput)
	}
	if duration < 0 {
		return fmt.Errorf("%w: negative duration", domain.ErrInvalidInput)
	}
	if duration > maxViewDuration {
		duration = maxViewDuration
	}

	if err := s.backend.CompleteView(ctx, id, viewID, duration); err != nil {
		s.metrics.ObserveView("complete", "failed")
		s.logger.Warn("Failed to complete view", "project_id", id, "view_id", viewID, "error", err)
		return err
	}
	s.metrics.ObserveView("complete", "ok")
	return nil
}

func requireToken(ctx context.Context) error {
	if backend.TokenFrom(ctx) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

func mapAuthError(err error) error {
	if backend.IsStatus(err, http.StatusUnauthorized) {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return err
}

// Bookmarks lists the signed-in user's bookmarks
func (s *ProjectService) Bookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	if err := requireToken(ctx); err != nil {
		return nil, err
	}
	bookmarks, err := s.backend.ListBookmarks(ctx)
	if err != nil {
		return nil, mapAuthError(err)
	}
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}
	return bookmarks, nil
}

// AddBookmark saves a work for the signed-in user
func (s *ProjectService) AddBookmark(ctx context.Context, rawID string) error {
	if err := requireToken(ctx); err != nil {
		return err
	}
	id, err := parseProjectID(rawID)
	if err != nil {
		return err
	}
	if err := s.backend.AddBookmark(ctx, id); err != nil {
		return mapAuthError(err)
	}
	s.logger.Debug("Bookmark added", "project_id", id)
	return nil
}

// RemoveBookmark drops a saved work
func (s *ProjectService) RemoveBookmark(ctx context.Context, rawID string) error {
	if err := requireToken(ctx); err != nil {
		return err
	}
	id, err := parseProjectID(rawID)
	if err != nil {
		return err
	}
	if err := s.backend.RemoveBookmark(ctx, id); err != nil {
		return mapAuthError(err)
	}
	s.logger.Debug("Bookmark removed", "project_id", id)
	return nil
}

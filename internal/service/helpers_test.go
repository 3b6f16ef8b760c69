package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/observability"
	"github.com/amiyamandal-dev/repoportal/internal/repository/memory"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

var fixedNow = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []domain.SearchCriteria
	respond func(c domain.SearchCriteria) (*domain.ResultPage, error)
}

func (f *fakeSearcher) SearchProjects(ctx context.Context, c domain.SearchCriteria, perPage int) (*domain.ResultPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return &domain.ResultPage{Items: []domain.ProjectSummary{}, TotalCount: 0}, nil
	}
	return respond(c)
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func pageOf(titles ...string) *domain.ResultPage {
	items := make([]domain.ProjectSummary, 0, len(titles))
	for i, title := range titles {
		items = append(items, domain.ProjectSummary{ProjectID: domain.ID(strconv.Itoa(i + 1)), Title: title})
	}
	return &domain.ResultPage{Items: items, TotalCount: len(items) * 4}
}

type fixture struct {
	store    *memory.SessionRepo
	sel      *Selection
	searcher *fakeSearcher
	search   *SearchService
	metrics  *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewSessionRepo(0)
	searcher := &fakeSearcher{}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	svc := NewSearchService(searcher, domain.ItemsPerPage, metrics, logger.Nop())
	svc.now = func() time.Time { return fixedNow }

	return &fixture{
		store:    store,
		sel:      NewSelection(store, "sid-1", logger.Nop()),
		searcher: searcher,
		search:   svc,
		metrics:  metrics,
	}
}

func (s *SearchService) trackedSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.generations)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amiyamandal-dev/repoportal/internal/backend"
	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/observability"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// ProjectSearcher runs a search against the repository API
type ProjectSearcher interface {
	SearchProjects(ctx context.Context, criteria domain.SearchCriteria, perPage int) (*domain.ResultPage, error)
}

// SearchOutcome is the result of one orchestrated search
type SearchOutcome struct {
	Criteria domain.SearchCriteria
	Page     domain.ResultPage

	// Failed is set when the backend call failed and Page is the empty page
	Failed bool
	// Stale is set when a newer search for the same session was issued
	// while this one was in flight; nothing was persisted
	Stale bool
	// Cached is set when Page came from the session without a backend call
	Cached bool
}

// FilterUpdate carries the new value of one filter dimension.
// For DimCategories the three taxonomy levels are applied together.
type FilterUpdate struct {
	Dimension     domain.Dimension
	Categories    []domain.FilterSelection
	ResearchAreas []domain.FilterSelection
	Topics        []domain.FilterSelection
	Selected      []domain.FilterSelection
	Years         domain.YearRange
}

// SearchService resolves criteria, runs searches and keeps the session in sync
type SearchService struct {
	searcher ProjectSearcher
	metrics  *observability.Metrics
	perPage  int
	now      func() time.Time
	logger   *logger.Logger

	mu          sync.Mutex
	generations map[string]*generation
	sequenceTTL time.Duration
	lastSweep   time.Time
}

// generation sequences the searches of one session
type generation struct {
	n        uint64
	lastSeen time.Time
}

// DefaultSequenceTTL is how long an idle session's search sequence is kept
const DefaultSequenceTTL = 12 * time.Hour

// NewSearchService creates a new search service
func NewSearchService(
	searcher ProjectSearcher,
	perPage int,
	metrics *observability.Metrics,
	logger *logger.Logger,
) *SearchService {
	if perPage < 1 {
		perPage = domain.ItemsPerPage
	}
	return &SearchService{
		searcher:    searcher,
		metrics:     metrics,
		perPage:     perPage,
		now:         time.Now,
		logger:      logger.WithComponent("search-service"),
		generations: make(map[string]*generation),
		sequenceTTL: DefaultSequenceTTL,
	}
}

// SetSequenceTTL sets how long a session's search sequence outlives its
// last search. It should match the session store TTL.
func (s *SearchService) SetSequenceTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.sequenceTTL = ttl
	s.mu.Unlock()
}

// PerPage returns the page size used for searches
func (s *SearchService) PerPage() int {
	return s.perPage
}

// Now returns the service clock
func (s *SearchService) Now() time.Time {
	return s.now()
}

// Defaults returns the empty browse criteria
func (s *SearchService) Defaults() domain.SearchCriteria {
	return domain.DefaultCriteria(s.now())
}

// ResolveCriteria merges navigation, persisted state and defaults.
// Each field comes from the navigation when supplied there, else from the
// session, else from the defaults. Advanced rows are the exception: they
// come from the session only when no navigation was supplied at all, so a
// plain search or a filter link without rows leaves advanced mode.
func (s *SearchService) ResolveCriteria(ctx context.Context, sel *Selection, nav *domain.Navigation) domain.SearchCriteria {
	if nav == nil {
		nav = &domain.Navigation{}
	}
	c := s.Defaults()

	if nav.Query.Set {
		c.Query = nav.Query.Value
	} else if q, ok := sel.Query(ctx); ok {
		c.Query = q
	}

	if nav.Field.Set {
		c.Field = nav.Field.Value
	} else if f, ok := sel.Field(ctx); ok {
		c.Field = f
	}

	if nav.Page.Set {
		c.Page = nav.Page.Value
	} else if p, ok := sel.Page(ctx); ok {
		c.Page = p
	}

	lists := []struct {
		dim domain.Dimension
		opt domain.Opt[[]domain.FilterSelection]
	}{
		{domain.DimCategories, nav.Categories},
		{domain.DimResearchAreas, nav.ResearchAreas},
		{domain.DimTopics, nav.Topics},
		{domain.DimAuthors, nav.Authors},
		{domain.DimKeywords, nav.Keywords},
	}
	for _, l := range lists {
		if l.opt.Set {
			c = withIDs(c, l.dim, domain.NormalizeSelections(l.opt.Value))
		} else if ids, ok := sel.Selected(ctx, l.dim); ok {
			c = withIDs(c, l.dim, ids)
		}
	}

	if nav.Years.Set {
		c.Years = nav.Years.Value
	} else if y, ok := sel.Years(ctx); ok {
		c.Years = y
	}

	if nav.Advanced.Set {
		c.Advanced = append([]domain.FieldQuery{}, nav.Advanced.Value...)
	} else if nav.IsEmpty() {
		if rows, ok := sel.Advanced(ctx); ok && len(rows) > 0 {
			c.Advanced = rows
		}
	}

	return c.Normalize(s.now())
}

// Search runs criteria against the backend. It never returns an error:
// a failed call yields the empty page with Failed set, and persists nothing.
// On success the criteria and the page are written to the session.
func (s *SearchService) Search(ctx context.Context, sel *Selection, criteria domain.SearchCriteria) SearchOutcome {
	criteria = criteria.Normalize(s.now())
	endpoint := backend.BuildSearchRequest(criteria, s.perPage).Endpoint
	gen := s.nextGeneration(sel.SessionID())
	log := s.logger.WithSession(sel.SessionID())

	start := time.Now()
	page, err := s.searcher.SearchProjects(ctx, criteria, s.perPage)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("Search failed, showing empty results",
			"endpoint", endpoint,
			"page", criteria.Page,
			"error", err,
		)
		s.metrics.ObserveSearch(endpoint, "failed", elapsed.Seconds())
		return SearchOutcome{Criteria: criteria, Page: domain.EmptyResultPage(), Failed: true}
	}

	result := domain.EmptyResultPage()
	if page != nil {
		result = *page
		if result.Items == nil {
			result.Items = []domain.ProjectSummary{}
		}
	}

	if !s.isLatest(sel.SessionID(), gen) {
		log.Debug("Discarding stale search response", "endpoint", endpoint, "generation", gen)
		s.metrics.ObserveSearch(endpoint, "stale", elapsed.Seconds())
		return SearchOutcome{Criteria: criteria, Page: result, Stale: true}
	}

	if err := sel.SaveCriteria(ctx, criteria); err != nil {
		log.Warn("Failed to persist criteria", "error", err)
	}
	if err := sel.SaveResults(ctx, result); err != nil {
		log.Warn("Failed to persist results", "error", err)
	}

	s.metrics.ObserveSearch(endpoint, "ok", elapsed.Seconds())
	log.Debug("Search completed",
		"endpoint", endpoint,
		"query", criteria.Query,
		"results", result.TotalCount,
		"page", criteria.Page,
		"duration", elapsed,
	)

	return SearchOutcome{Criteria: criteria, Page: result}
}

// View is what the search page does when it is opened. With no navigation
// payload and a cached page in the session, the cached page is shown
// as-is. Otherwise the criteria are resolved and searched.
func (s *SearchService) View(ctx context.Context, sel *Selection, nav *domain.Navigation) SearchOutcome {
	criteria := s.ResolveCriteria(ctx, sel, nav)

	if nav.IsEmpty() {
		if cached, ok := sel.Results(ctx); ok {
			s.metrics.ObserveSearch(backend.BuildSearchRequest(criteria, s.perPage).Endpoint, "cached", 0)
			return SearchOutcome{Criteria: criteria, Page: cached, Cached: true}
		}
	}

	return s.Search(ctx, sel, criteria)
}

// ApplyFilter replaces one dimension of current, persists that dimension
// and returns the new criteria with the page reset to 1. Other dimensions
// are carried over unchanged.
func (s *SearchService) ApplyFilter(ctx context.Context, sel *Selection, current domain.SearchCriteria, update FilterUpdate) (domain.SearchCriteria, error) {
	next := current.Clone()

	switch update.Dimension {
	case domain.DimCategories:
		next = withIDs(next, domain.DimCategories, domain.NormalizeSelections(update.Categories))
		next = withIDs(next, domain.DimResearchAreas, domain.NormalizeSelections(update.ResearchAreas))
		next = withIDs(next, domain.DimTopics, domain.NormalizeSelections(update.Topics))
	case domain.DimResearchAreas, domain.DimTopics, domain.DimAuthors, domain.DimKeywords:
		next = withIDs(next, update.Dimension, domain.NormalizeSelections(update.Selected))
	case domain.DimYears:
		next.Years = update.Years
	default:
		return current, fmt.Errorf("%w: %q", domain.ErrUnknownDimension, update.Dimension)
	}

	next = next.WithPage(1).Normalize(s.now())

	if err := sel.SaveDimension(ctx, update.Dimension, next); err != nil {
		s.logger.WithSession(sel.SessionID()).Warn("Failed to persist filter",
			"dimension", update.Dimension,
			"error", err,
		)
	}
	return next, nil
}

// ClearAllFilters drops every persisted search key and returns the
// default criteria. Searches still in flight for the session become stale.
func (s *SearchService) ClearAllFilters(ctx context.Context, sel *Selection) domain.SearchCriteria {
	s.nextGeneration(sel.SessionID())
	if err := sel.ClearFilters(ctx); err != nil {
		s.logger.WithSession(sel.SessionID()).Warn("Failed to clear session filters", "error", err)
	}
	return s.Defaults()
}

// ChangePage returns current pointing at page n. Nothing else changes.
func (s *SearchService) ChangePage(current domain.SearchCriteria, n int) domain.SearchCriteria {
	return current.WithPage(n)
}

func (s *SearchService) nextGeneration(sessionID string) uint64 {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.sequenceTTL/2 {
		s.sweep(now)
	}
	g, ok := s.generations[sessionID]
	if !ok {
		g = &generation{}
		s.generations[sessionID] = g
	}
	g.n++
	g.lastSeen = now
	return g.n
}

func (s *SearchService) isLatest(sessionID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[sessionID]
	return ok && g.n == gen
}

// sweep drops sessions that have not searched within the TTL.
// Callers hold s.mu.
func (s *SearchService) sweep(now time.Time) {
	for id, g := range s.generations {
		if now.Sub(g.lastSeen) > s.sequenceTTL {
			delete(s.generations, id)
		}
	}
	s.lastSweep = now
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/observability"
	"github.com/amiyamandal-dev/repoportal/internal/search"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// OptionSource provides the filter option lists
type OptionSource interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListAuthors(ctx context.Context) ([]domain.FilterOption, error)
	ListKeywords(ctx context.Context) ([]domain.FilterOption, error)
}

// FilterConfig tunes the filter widgets
type FilterConfig struct {
	CacheTTL       time.Duration
	AuthorPreview  int
	KeywordPreview int

	// FetchTimeout bounds one option list fetch shared by every waiter
	FetchTimeout time.Duration
}

const defaultFetchTimeout = 15 * time.Second

// OptionList is one flat filter widget
type OptionList struct {
	Dimension domain.Dimension      `json:"dimension"`
	Options   []domain.FilterOption `json:"options"`
	Preview   []domain.FilterOption `json:"preview"`
	HasMore   bool                  `json:"hasMore"`
	Selected  []domain.ID           `json:"selected"`
}

// IsSelected reports whether id is checked in the widget
func (l OptionList) IsSelected(id domain.ID) bool {
	return domain.ContainsID(l.Selected, id)
}

// YearWidget is the year range filter
type YearWidget struct {
	Min      int              `json:"min"`
	Max      int              `json:"max"`
	Selected domain.YearRange `json:"selected"`
}

// CategoryTree is the three level taxonomy widget
type CategoryTree struct {
	Categories    []domain.Category `json:"categories"`
	Expanded      []domain.ID       `json:"expanded"`
	Selected      []domain.ID       `json:"selectedCategories"`
	ResearchAreas []domain.ID       `json:"selectedResearchAreas"`
	Topics        []domain.ID       `json:"selectedTopics"`
}

// IsExpanded reports whether a category node is open
func (t CategoryTree) IsExpanded(id domain.ID) bool {
	return domain.ContainsID(t.Expanded, id)
}

// HasCategory reports whether a category is checked
func (t CategoryTree) HasCategory(id domain.ID) bool {
	return domain.ContainsID(t.Selected, id)
}

// HasResearchArea reports whether a research area is checked
func (t CategoryTree) HasResearchArea(id domain.ID) bool {
	return domain.ContainsID(t.ResearchAreas, id)
}

// HasTopic reports whether a topic is checked
func (t CategoryTree) HasTopic(id domain.ID) bool {
	return domain.ContainsID(t.Topics, id)
}

// Panel is everything the filter sidebar shows
type Panel struct {
	Categories CategoryTree `json:"categories"`
	Authors    OptionList   `json:"authors"`
	Keywords   OptionList   `json:"keywords"`
	Years      YearWidget   `json:"years"`
}

// sources group dimensions by the backend call that produces them
const (
	sourceCategories = "categories"
	sourceAuthors    = "authors"
	sourceKeywords   = "keywords"
)

func sourceOf(dim domain.Dimension) (string, error) {
	switch dim {
	case domain.DimCategories, domain.DimResearchAreas, domain.DimTopics:
		return sourceCategories, nil
	case domain.DimAuthors:
		return sourceAuthors, nil
	case domain.DimKeywords:
		return sourceKeywords, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownDimension, dim)
}

type optionSet struct {
	tree      []domain.Category
	flat      map[domain.Dimension][]domain.FilterOption
	fetchedAt time.Time
}

// FilterService backs the filter widgets: option lists, pending
// selections, tree expansion and searching within a list
type FilterService struct {
	source  OptionSource
	search  *SearchService
	metrics *observability.Metrics
	cfg     FilterConfig
	now     func() time.Time
	logger  *logger.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	cache   map[string]*optionSet
	indexes map[domain.Dimension]*search.OptionIndex
}

// NewFilterService creates a new filter service
func NewFilterService(
	source OptionSource,
	searchService *SearchService,
	cfg FilterConfig,
	metrics *observability.Metrics,
	log *logger.Logger,
) (*FilterService, error) {
	if cfg.AuthorPreview <= 0 {
		cfg.AuthorPreview = 6
	}
	if cfg.KeywordPreview <= 0 {
		cfg.KeywordPreview = 5
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}

	indexes := make(map[domain.Dimension]*search.OptionIndex)
	for _, dim := range []domain.Dimension{
		domain.DimCategories, domain.DimResearchAreas, domain.DimTopics,
		domain.DimAuthors, domain.DimKeywords,
	} {
		idx, err := search.NewOptionIndex(log)
		if err != nil {
			for _, created := range indexes {
				_ = created.Close()
			}
			return nil, err
		}
		indexes[dim] = idx
	}

	return &FilterService{
		source:  source,
		search:  searchService,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		logger:  log.WithComponent("filter-service"),
		cache:   make(map[string]*optionSet),
		indexes: indexes,
	}, nil
}

// Close releases the option indexes
func (s *FilterService) Close() error {
	var firstErr error
	for _, idx := range s.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Invalidate forgets every cached option list
func (s *FilterService) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]*optionSet)
	s.mu.Unlock()
}

func (s *FilterService) cached(source string) (*optionSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.cache[source]
	if !ok || s.cfg.CacheTTL <= 0 || s.now().Sub(set.fetchedAt) > s.cfg.CacheTTL {
		return nil, false
	}
	return set, true
}

// load returns the option set for a source, fetching it at most once
// across concurrent callers. The fetch is detached from ctx so one
// cancelled caller does not fail the others.
func (s *FilterService) load(ctx context.Context, source string) (*optionSet, error) {
	if set, ok := s.cached(source); ok {
		return set, nil
	}

	v, err, _ := s.group.Do(source, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()

		set, err := s.fetch(ctx, source)
		if err != nil {
			s.metrics.ObserveOptions(source, "failed")
			return nil, err
		}
		s.metrics.ObserveOptions(source, "ok")

		for dim, opts := range set.flat {
			if err := s.indexes[dim].Replace(ctx, opts); err != nil {
				s.logger.Warn("Failed to index options", "dimension", dim, "error", err)
			}
		}

		s.mu.Lock()
		s.cache[source] = set
		s.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*optionSet), nil
}

func (s *FilterService) fetch(ctx context.Context, source string) (*optionSet, error) {
	set := &optionSet{fetchedAt: s.now()}

	switch source {
	case sourceCategories:
		tree, err := s.source.ListCategories(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load categories: %w", err)
		}
		if tree == nil {
			tree = []domain.Category{}
		}
		set.tree = tree
		set.flat = domain.FlattenCategories(tree)
	case sourceAuthors:
		opts, err := s.source.ListAuthors(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load authors: %w", err)
		}
		set.flat = map[domain.Dimension][]domain.FilterOption{domain.DimAuthors: sortByLabel(opts)}
	case sourceKeywords:
		opts, err := s.source.ListKeywords(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load keywords: %w", err)
		}
		set.flat = map[domain.Dimension][]domain.FilterOption{domain.DimKeywords: sortByLabel(opts)}
	default:
		return nil, fmt.Errorf("unknown option source %q", source)
	}
	return set, nil
}

// sortByLabel orders options alphabetically, ignoring case
func sortByLabel(opts []domain.FilterOption) []domain.FilterOption {
	out := make([]domain.FilterOption, 0, len(opts))
	for _, o := range opts {
		if o.ID != "" {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
	})
	return out
}

// Categories returns the taxonomy tree
func (s *FilterService) Categories(ctx context.Context) ([]domain.Category, error) {
	set, err := s.load(ctx, sourceCategories)
	if err != nil {
		return nil, err
	}
	return set.tree, nil
}

// Options returns the full option list of a dimension
func (s *FilterService) Options(ctx context.Context, dim domain.Dimension) ([]domain.FilterOption, error) {
	source, err := sourceOf(dim)
	if err != nil {
		return nil, err
	}
	set, err := s.load(ctx, source)
	if err != nil {
		return nil, err
	}
	opts := set.flat[dim]
	if opts == nil {
		opts = []domain.FilterOption{}
	}
	return opts, nil
}

// SearchOptions returns the options of dim whose label contains q,
// ignoring case. An empty q returns the whole list.
func (s *FilterService) SearchOptions(ctx context.Context, dim domain.Dimension, q string) ([]domain.FilterOption, error) {
	if _, err := s.Options(ctx, dim); err != nil {
		return nil, err
	}
	return s.indexes[dim].Search(ctx, q, 0)
}

// LoadPanel fetches the three option lists concurrently and combines them
// with the session's pending and committed selections. A list that fails
// to load is shown empty.
func (s *FilterService) LoadPanel(ctx context.Context, sel *Selection, committed domain.SearchCriteria) *Panel {
	var (
		tree     []domain.Category
		authors  []domain.FilterOption
		keywords []domain.FilterOption
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tree, err = s.Categories(gctx); err != nil {
			s.logger.Warn("Category list unavailable", "error", err)
			tree = []domain.Category{}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if authors, err = s.Options(gctx, domain.DimAuthors); err != nil {
			s.logger.Warn("Author list unavailable", "error", err)
			authors = []domain.FilterOption{}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if keywords, err = s.Options(gctx, domain.DimKeywords); err != nil {
			s.logger.Warn("Keyword list unavailable", "error", err)
			keywords = []domain.FilterOption{}
		}
		return nil
	})
	_ = g.Wait()

	now := s.now()
	return &Panel{
		Categories: CategoryTree{
			Categories:    tree,
			Expanded:      sel.Expanded(ctx),
			Selected:      s.Pending(ctx, sel, domain.DimCategories, committed),
			ResearchAreas: s.Pending(ctx, sel, domain.DimResearchAreas, committed),
			Topics:        s.Pending(ctx, sel, domain.DimTopics, committed),
		},
		Authors:  s.optionList(domain.DimAuthors, authors, s.cfg.AuthorPreview, s.Pending(ctx, sel, domain.DimAuthors, committed)),
		Keywords: s.optionList(domain.DimKeywords, keywords, s.cfg.KeywordPreview, s.Pending(ctx, sel, domain.DimKeywords, committed)),
		Years: YearWidget{
			Min:      domain.MinYear,
			Max:      now.Year(),
			Selected: committed.Years.Normalize(now),
		},
	}
}

func (s *FilterService) optionList(dim domain.Dimension, opts []domain.FilterOption, limit int, selected []domain.ID) OptionList {
	preview := opts
	if len(preview) > limit {
		preview = preview[:limit]
	}
	return OptionList{
		Dimension: dim,
		Options:   opts,
		Preview:   preview,
		HasMore:   len(opts) > limit,
		Selected:  selected,
	}
}

// Pending returns the widget's uncommitted selection, seeded from the
// committed criteria when the widget has not been touched
func (s *FilterService) Pending(ctx context.Context, sel *Selection, dim domain.Dimension, committed domain.SearchCriteria) []domain.ID {
	if ids, ok := sel.Pending(ctx, dim); ok {
		return ids
	}
	return append([]domain.ID{}, criteriaIDs(committed, dim)...)
}

// Toggle flips id in the widget's pending selection
func (s *FilterService) Toggle(ctx context.Context, sel *Selection, dim domain.Dimension, id domain.ID, committed domain.SearchCriteria) ([]domain.ID, error) {
	if _, ok := selectionKeys[dim]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDimension, dim)
	}
	next := domain.ToggleID(s.Pending(ctx, sel, dim, committed), id)
	if err := sel.SetPending(ctx, dim, next); err != nil {
		return nil, fmt.Errorf("failed to store pending selection: %w", err)
	}
	return next, nil
}

// Discard drops the widget's pending selection, as when a modal is cancelled
func (s *FilterService) Discard(ctx context.Context, sel *Selection, dim domain.Dimension) error {
	dims := []domain.Dimension{dim}
	if source, err := sourceOf(dim); err == nil && source == sourceCategories {
		dims = []domain.Dimension{domain.DimCategories, domain.DimResearchAreas, domain.DimTopics}
	}
	return sel.DiscardPending(ctx, dims...)
}

// Apply commits the widget's pending selection. The three taxonomy
// levels are always committed together.
func (s *FilterService) Apply(ctx context.Context, sel *Selection, dim domain.Dimension, committed domain.SearchCriteria) (domain.SearchCriteria, error) {
	source, err := sourceOf(dim)
	if err != nil {
		return committed, err
	}

	update := FilterUpdate{Dimension: dim}
	if source == sourceCategories {
		update.Dimension = domain.DimCategories
		update.Categories = domain.Selections(s.Pending(ctx, sel, domain.DimCategories, committed))
		update.ResearchAreas = domain.Selections(s.Pending(ctx, sel, domain.DimResearchAreas, committed))
		update.Topics = domain.Selections(s.Pending(ctx, sel, domain.DimTopics, committed))
	} else {
		update.Selected = domain.Selections(s.Pending(ctx, sel, dim, committed))
	}

	next, err := s.search.ApplyFilter(ctx, sel, committed, update)
	if err != nil {
		return committed, err
	}
	if err := s.Discard(ctx, sel, dim); err != nil {
		s.logger.Debug("Failed to drop pending selection", "dimension", dim, "error", err)
	}
	return next, nil
}

// ApplyYears commits a year range
func (s *FilterService) ApplyYears(ctx context.Context, sel *Selection, committed domain.SearchCriteria, years domain.YearRange) (domain.SearchCriteria, error) {
	return s.search.ApplyFilter(ctx, sel, committed, FilterUpdate{Dimension: domain.DimYears, Years: years})
}

// ToggleExpanded opens or closes a category node
func (s *FilterService) ToggleExpanded(ctx context.Context, sel *Selection, id domain.ID) ([]domain.ID, error) {
	next := domain.ToggleID(sel.Expanded(ctx), id)
	if err := sel.SetExpanded(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to store expanded nodes: %w", err)
	}
	return next, nil
}

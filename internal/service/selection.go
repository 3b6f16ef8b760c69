package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/repository"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// Session keys
const (
	KeySearchQuery           = "searchQuery"
	KeySearchOption          = "searchOption"
	KeySearchPage            = "searchPage"
	KeySearchResults         = "searchResults"
	KeySearchTotalCount      = "searchTotalCount"
	KeySearchAdvanced        = "searchAdvanced"
	KeySelectedCategories    = "selectedCategories"
	KeySelectedResearchAreas = "selectedResearchAreas"
	KeySelectedTopics        = "selectedTopics"
	KeySelectedAuthors       = "selectedAuthors"
	KeySelectedKeywords      = "selectedKeywords"
	KeySelectedYears         = "selectedYears"
	KeyExpandedCategories    = "expandedCategories"

	pendingPrefix = "pending:"
)

// searchKeys is everything ClearFilters removes
var searchKeys = []string{
	KeySearchQuery, KeySearchOption, KeySearchPage, KeySearchResults, KeySearchTotalCount,
	KeySearchAdvanced, KeySelectedCategories, KeySelectedResearchAreas, KeySelectedTopics,
	KeySelectedAuthors, KeySelectedKeywords, KeySelectedYears,
}

// selectionKeys maps each ID-list dimension to its session key
var selectionKeys = map[domain.Dimension]string{
	domain.DimCategories:    KeySelectedCategories,
	domain.DimResearchAreas: KeySelectedResearchAreas,
	domain.DimTopics:        KeySelectedTopics,
	domain.DimAuthors:       KeySelectedAuthors,
	domain.DimKeywords:      KeySelectedKeywords,
}

// PendingKey is the session key holding a widget's uncommitted selection
func PendingKey(dim domain.Dimension) string {
	return pendingPrefix + string(dim)
}

// Selection is the typed view of one session's persisted search state.
// Reads never fail: a missing, unreadable or corrupt entry is a miss.
type Selection struct {
	store     repository.SessionStore
	sessionID string
	logger    *logger.Logger
}

// NewSelection binds the store to a session
func NewSelection(store repository.SessionStore, sessionID string, log *logger.Logger) *Selection {
	return &Selection{
		store:     store,
		sessionID: sessionID,
		logger:    log.WithComponent("selection").WithSession(sessionID),
	}
}

// SessionID returns the bound session
func (s *Selection) SessionID() string {
	return s.sessionID
}

func (s *Selection) read(ctx context.Context, key string, dst interface{}) bool {
	raw, err := s.store.Get(ctx, s.sessionID, key)
	if errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if err != nil {
		s.logger.Warn("Session read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Debug("Ignoring corrupt session entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Selection) write(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.store.Set(ctx, s.sessionID, key, raw)
}

// Query returns the persisted free-text query
func (s *Selection) Query(ctx context.Context) (string, bool) {
	var q string
	ok := s.read(ctx, KeySearchQuery, &q)
	return q, ok
}

// Field returns the persisted search field
func (s *Selection) Field(ctx context.Context) (domain.SearchField, bool) {
	var raw string
	if !s.read(ctx, KeySearchOption, &raw) {
		return domain.FieldAll, false
	}
	return domain.ParseSearchField(raw)
}

// Page returns the persisted page number
func (s *Selection) Page(ctx context.Context) (int, bool) {
	var p int
	if !s.read(ctx, KeySearchPage, &p) || p < 1 {
		return 0, false
	}
	return p, true
}

// Selected returns the committed IDs of an ID-list dimension
func (s *Selection) Selected(ctx context.Context, dim domain.Dimension) ([]domain.ID, bool) {
	key, ok := selectionKeys[dim]
	if !ok {
		return nil, false
	}
	return s.readIDs(ctx, key)
}

func (s *Selection) readIDs(ctx context.Context, key string) ([]domain.ID, bool) {
	var sel []domain.FilterSelection
	if !s.read(ctx, key, &sel) {
		return nil, false
	}
	return domain.NormalizeSelections(sel), true
}

func (s *Selection) writeIDs(ctx context.Context, key string, ids []domain.ID) error {
	if ids == nil {
		ids = []domain.ID{}
	}
	return s.write(ctx, key, ids)
}

// Years returns the persisted year range
func (s *Selection) Years(ctx context.Context) (domain.YearRange, bool) {
	var y domain.YearRange
	ok := s.read(ctx, KeySelectedYears, &y)
	return y, ok
}

// Advanced returns the rows of the last advanced search
func (s *Selection) Advanced(ctx context.Context) ([]domain.FieldQuery, bool) {
	var rows []domain.FieldQuery
	if !s.read(ctx, KeySearchAdvanced, &rows) {
		return nil, false
	}
	return rows, true
}

// Results returns the cached result page. Both the items and the total
// must be present.
func (s *Selection) Results(ctx context.Context) (domain.ResultPage, bool) {
	var items []domain.ProjectSummary
	var total int
	if !s.read(ctx, KeySearchResults, &items) || !s.read(ctx, KeySearchTotalCount, &total) {
		return domain.ResultPage{}, false
	}
	if items == nil {
		items = []domain.ProjectSummary{}
	}
	return domain.ResultPage{Items: items, TotalCount: total}, true
}

// SaveCriteria persists every part of c. Keys are written one by one;
// a failure leaves earlier keys written.
func (s *Selection) SaveCriteria(ctx context.Context, c domain.SearchCriteria) error {
	writes := []struct {
		key   string
		value interface{}
	}{
		{KeySearchAdvanced, advancedRows(c.Advanced)},
		{KeySearchQuery, c.Query},
		{KeySearchOption, string(c.Field)},
		{KeySearchPage, c.Page},
		{KeySelectedYears, c.Years},
	}
	for _, w := range writes {
		if err := s.write(ctx, w.key, w.value); err != nil {
			return err
		}
	}
	for _, dim := range []domain.Dimension{
		domain.DimCategories, domain.DimResearchAreas, domain.DimTopics,
		domain.DimAuthors, domain.DimKeywords,
	} {
		if err := s.writeIDs(ctx, selectionKeys[dim], criteriaIDs(c, dim)); err != nil {
			return err
		}
	}
	return nil
}

// SaveDimension persists only the slice of c that belongs to dim.
// The categories dimension covers research areas and topics too.
func (s *Selection) SaveDimension(ctx context.Context, dim domain.Dimension, c domain.SearchCriteria) error {
	switch dim {
	case domain.DimYears:
		return s.write(ctx, KeySelectedYears, c.Years)
	case domain.DimCategories:
		for _, d := range []domain.Dimension{domain.DimCategories, domain.DimResearchAreas, domain.DimTopics} {
			if err := s.writeIDs(ctx, selectionKeys[d], criteriaIDs(c, d)); err != nil {
				return err
			}
		}
		return nil
	default:
		key, ok := selectionKeys[dim]
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownDimension, dim)
		}
		return s.writeIDs(ctx, key, criteriaIDs(c, dim))
	}
}

// SaveResults caches a result page
func (s *Selection) SaveResults(ctx context.Context, page domain.ResultPage) error {
	items := page.Items
	if items == nil {
		items = []domain.ProjectSummary{}
	}
	if err := s.write(ctx, KeySearchResults, items); err != nil {
		return err
	}
	return s.write(ctx, KeySearchTotalCount, page.TotalCount)
}

// ClearFilters removes every persisted search key and pending selection
func (s *Selection) ClearFilters(ctx context.Context) error {
	keys := append([]string{}, searchKeys...)
	for dim := range selectionKeys {
		keys = append(keys, PendingKey(dim))
	}
	return s.store.Delete(ctx, s.sessionID, keys...)
}

// Pending returns a widget's uncommitted selection
func (s *Selection) Pending(ctx context.Context, dim domain.Dimension) ([]domain.ID, bool) {
	return s.readIDs(ctx, PendingKey(dim))
}

// SetPending stores a widget's uncommitted selection
func (s *Selection) SetPending(ctx context.Context, dim domain.Dimension, ids []domain.ID) error {
	return s.writeIDs(ctx, PendingKey(dim), ids)
}

// DiscardPending drops uncommitted selections
func (s *Selection) DiscardPending(ctx context.Context, dims ...domain.Dimension) error {
	keys := make([]string, 0, len(dims))
	for _, d := range dims {
		keys = append(keys, PendingKey(d))
	}
	return s.store.Delete(ctx, s.sessionID, keys...)
}

// Expanded returns the category tree nodes the user has opened
func (s *Selection) Expanded(ctx context.Context) []domain.ID {
	ids, _ := s.readIDs(ctx, KeyExpandedCategories)
	return ids
}

// SetExpanded stores the opened tree nodes
func (s *Selection) SetExpanded(ctx context.Context, ids []domain.ID) error {
	return s.writeIDs(ctx, KeyExpandedCategories, ids)
}

func advancedRows(rows []domain.FieldQuery) []domain.FieldQuery {
	if rows == nil {
		return []domain.FieldQuery{}
	}
	return rows
}

func criteriaIDs(c domain.SearchCriteria, dim domain.Dimension) []domain.ID {
	switch dim {
	case domain.DimCategories:
		return c.Categories
	case domain.DimResearchAreas:
		return c.ResearchAreas
	case domain.DimTopics:
		return c.Topics
	case domain.DimAuthors:
		return c.Authors
	case domain.DimKeywords:
		return c.Keywords
	}
	return nil
}

func withIDs(c domain.SearchCriteria, dim domain.Dimension, ids []domain.ID) domain.SearchCriteria {
	out := c.Clone()
	ids = domain.UniqueIDs(ids)
	switch dim {
	case domain.DimCategories:
		out.Categories = ids
	case domain.DimResearchAreas:
		out.ResearchAreas = ids
	case domain.DimTopics:
		out.Topics = ids
	case domain.DimAuthors:
		out.Authors = ids
	case domain.DimKeywords:
		out.Keywords = ids
	}
	return out
}

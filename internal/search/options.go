// Package search provides in-process lookup over filter option lists.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// optionDocument is what gets indexed for one option
type optionDocument struct {
	Label      string `json:"label"`
	LabelLower string `json:"label_lower"`
	ParentID   string `json:"parent_id"`
}

// OptionIndex answers substring queries over one option list.
// It lives in memory and is rebuilt whenever the list is refetched.
type OptionIndex struct {
	mu      sync.RWMutex
	index   bleve.Index
	options map[domain.ID]domain.FilterOption
	logger  *logger.Logger
}

// NewOptionIndex creates an empty index
func NewOptionIndex(log *logger.Logger) (*OptionIndex, error) {
	idx, err := bleve.NewMemOnly(buildOptionMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create option index: %w", err)
	}
	return &OptionIndex{
		index:   idx,
		options: map[domain.ID]domain.FilterOption{},
		logger:  log.WithComponent("option-index"),
	}, nil
}

func buildOptionMapping() mapping.IndexMapping {
	optionMapping := bleve.NewDocumentMapping()

	labelFieldMapping := bleve.NewTextFieldMapping()
	labelFieldMapping.Store = true
	labelFieldMapping.Index = true
	optionMapping.AddFieldMappingsAt("label", labelFieldMapping)

	// Whole label as one lowercase term, so wildcards match substrings
	// that span words.
	lowerFieldMapping := bleve.NewKeywordFieldMapping()
	lowerFieldMapping.Store = false
	lowerFieldMapping.Index = true
	optionMapping.AddFieldMappingsAt("label_lower", lowerFieldMapping)

	parentFieldMapping := bleve.NewKeywordFieldMapping()
	parentFieldMapping.Store = true
	parentFieldMapping.Index = true
	optionMapping.AddFieldMappingsAt("parent_id", parentFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = optionMapping
	return indexMapping
}

// Replace swaps the indexed list for options
func (i *OptionIndex) Replace(ctx context.Context, options []domain.FilterOption) error {
	fresh, err := bleve.NewMemOnly(buildOptionMapping())
	if err != nil {
		return fmt.Errorf("failed to create option index: %w", err)
	}

	batch := fresh.NewBatch()
	byID := make(map[domain.ID]domain.FilterOption, len(options))
	for _, opt := range options {
		if opt.ID == "" {
			continue
		}
		byID[opt.ID] = opt
		doc := optionDocument{
			Label:      opt.Label,
			LabelLower: strings.ToLower(opt.Label),
			ParentID:   string(opt.ParentID),
		}
		if err := batch.Index(string(opt.ID), doc); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("failed to index option %s: %w", opt.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("failed to apply option batch: %w", err)
	}

	i.mu.Lock()
	old := i.index
	i.index = fresh
	i.options = byID
	i.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	i.logger.Debug("Rebuilt option index", "options", len(byID))
	return nil
}

// Search returns options whose label contains q (case-insensitive),
// ordered by label. An empty q returns every option.
func (i *OptionIndex) Search(ctx context.Context, q string, limit int) ([]domain.FilterOption, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	size := len(i.options)
	if limit > 0 && limit < size {
		size = limit
	}
	if size == 0 {
		return []domain.FilterOption{}, nil
	}

	term := strings.ToLower(strings.TrimSpace(q))
	term = strings.NewReplacer("*", "", "?", "").Replace(term)

	var req *bleve.SearchRequest
	if term == "" {
		req = bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), size, 0, false)
	} else {
		wildcard := bleve.NewWildcardQuery("*" + term + "*")
		wildcard.SetField("label_lower")
		req = bleve.NewSearchRequestOptions(wildcard, size, 0, false)
	}
	req.SortBy([]string{"label_lower", "_id"})

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("option search failed: %w", err)
	}

	out := make([]domain.FilterOption, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if opt, ok := i.options[domain.ID(hit.ID)]; ok {
			out = append(out, opt)
		}
	}
	return out, nil
}

// Count returns the number of indexed options
func (i *OptionIndex) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	count, err := i.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return count, nil
}

// Close releases the index
func (i *OptionIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index == nil {
		return nil
	}
	err := i.index.Close()
	i.index = nil
	return err
}

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

type fakeSource struct {
	categoryCalls atomic.Int32
	authorCalls   atomic.Int32
	keywordErr    error
	honourCancel  bool
}

func (s *fakeSource) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.categoryCalls.Add(1)
	return []domain.Category{{
		ID:   "1",
		Name: "Science",
		ResearchAreas: []domain.ResearchArea{{
			ID:     "10",
			Name:   "Hydrology",
			Topics: []domain.Topic{{ID: "100", Name: "Floods"}},
		}},
	}}, nil
}

func (s *fakeSource) ListAuthors(ctx context.Context) ([]domain.FilterOption, error) {
	s.authorCalls.Add(1)
	if s.honourCancel && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	names := []string{"zoe", "Ana Santos", "bea", "Carl", "dan", "Eve", "fay", "Gil"}
	out := make([]domain.FilterOption, 0, len(names))
	for i, n := range names {
		out = append(out, domain.FilterOption{ID: domain.ID(rune('a' + i)), Label: n})
	}
	return out, nil
}

func (s *fakeSource) ListKeywords(ctx context.Context) ([]domain.FilterOption, error) {
	if s.keywordErr != nil {
		return nil, s.keywordErr
	}
	return []domain.FilterOption{{ID: "k1", Label: "rain"}}, nil
}

func newFilterFixture(t *testing.T, ttl time.Duration) (*fixture, *fakeSource, *FilterService) {
	t.Helper()
	f := newFixture(t)
	source := &fakeSource{}
	svc, err := NewFilterService(source, f.search, FilterConfig{CacheTTL: ttl}, f.metrics, logger.Nop())
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = svc.Close() })
	return f, source, svc
}

func labelsOf(opts []domain.FilterOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Label)
	}
	return out
}

func TestLoadPanel(t *testing.T) {
	f, source, svc := newFilterFixture(t, time.Minute)
	source.keywordErr = errors.New("keywords down")

	committed := domain.DefaultCriteria(fixedNow)
	committed.Authors = []domain.ID{"b"}

	panel := svc.LoadPanel(context.Background(), f.sel, committed)

	assert.Equal(t, []string{"Ana Santos", "bea", "Carl", "dan", "Eve", "fay", "Gil", "zoe"}, labelsOf(panel.Authors.Options))
	assert.Len(t, panel.Authors.Preview, 6)
	assert.True(t, panel.Authors.HasMore)
	assert.True(t, panel.Authors.IsSelected("b"))

	assert.Empty(t, panel.Keywords.Options, "a failing list degrades to empty")
	assert.False(t, panel.Keywords.HasMore)

	require.Len(t, panel.Categories.Categories, 1)
	assert.Equal(t, domain.MinYear, panel.Years.Min)
	assert.Equal(t, 2025, panel.Years.Max)
}

func TestOptionsAreCached(t *testing.T) {
	_, source, svc := newFilterFixture(t, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Options(ctx, domain.DimAuthors)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	_, err := svc.Options(ctx, domain.DimAuthors)
	require.NoError(t, err)
	assert.LessOrEqual(t, source.authorCalls.Load(), int32(8))

	before := source.authorCalls.Load()
	_, err = svc.Options(ctx, domain.DimAuthors)
	require.NoError(t, err)
	assert.Equal(t, before, source.authorCalls.Load(), "served from cache")

	topics, err := svc.Options(ctx, domain.DimTopics)
	require.NoError(t, err)
	assert.Equal(t, []domain.FilterOption{{ID: "100", Label: "Floods", ParentID: "10"}}, topics)
	_, err = svc.Options(ctx, domain.DimResearchAreas)
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.categoryCalls.Load(), "one fetch feeds all taxonomy levels")
}

func TestOptionsWithoutCacheRefetch(t *testing.T) {
	_, source, svc := newFilterFixture(t, 0)
	ctx := context.Background()

	_, err := svc.Options(ctx, domain.DimAuthors)
	require.NoError(t, err)
	_, err = svc.Options(ctx, domain.DimAuthors)
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.authorCalls.Load())

	_, err = svc.Options(ctx, domain.DimYears)
	assert.ErrorIs(t, err, domain.ErrUnknownDimension)
}

func TestSearchOptions(t *testing.T) {
	_, _, svc := newFilterFixture(t, time.Minute)
	ctx := context.Background()

	got, err := svc.SearchOptions(ctx, domain.DimAuthors, "SAN")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana Santos"}, labelsOf(got))

	all, err := svc.SearchOptions(ctx, domain.DimAuthors, "")
	require.NoError(t, err)
	assert.Len(t, all, 8)

	floods, err := svc.SearchOptions(ctx, domain.DimTopics, "flo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Floods"}, labelsOf(floods))
}

func TestToggleAndApply(t *testing.T) {
	f, _, svc := newFilterFixture(t, time.Minute)
	ctx := context.Background()

	committed := domain.DefaultCriteria(fixedNow)
	committed.Query = "water"
	committed.Page = 3
	committed.Authors = []domain.ID{"1"}

	pending, err := svc.Toggle(ctx, f.sel, domain.DimAuthors, "2", committed)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"1", "2"}, pending)

	pending, err = svc.Toggle(ctx, f.sel, domain.DimAuthors, "1", committed)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"2"}, pending)
	assert.Equal(t, []domain.ID{"1"}, committed.Authors, "toggling does not commit")

	next, err := svc.Apply(ctx, f.sel, domain.DimAuthors, committed)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"2"}, next.Authors)
	assert.Equal(t, 1, next.Page)
	assert.Equal(t, "water", next.Query)

	_, ok := f.sel.Pending(ctx, domain.DimAuthors)
	assert.False(t, ok, "pending selection dropped after apply")

	_, err = svc.Toggle(ctx, f.sel, domain.DimYears, "1", committed)
	assert.ErrorIs(t, err, domain.ErrUnknownDimension)
}

func TestApplyTaxonomyLevelsTogether(t *testing.T) {
	f, _, svc := newFilterFixture(t, time.Minute)
	ctx := context.Background()
	committed := domain.DefaultCriteria(fixedNow)

	_, err := svc.Toggle(ctx, f.sel, domain.DimResearchAreas, "10", committed)
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, f.sel, domain.DimTopics, "100", committed)
	require.NoError(t, err)

	next, err := svc.Apply(ctx, f.sel, domain.DimTopics, committed)
	require.NoError(t, err)
	assert.Empty(t, next.Categories)
	assert.Equal(t, []domain.ID{"10"}, next.ResearchAreas)
	assert.Equal(t, []domain.ID{"100"}, next.Topics)

	stored, ok := f.sel.Selected(ctx, domain.DimResearchAreas)
	require.True(t, ok)
	assert.Equal(t, []domain.ID{"10"}, stored)
}

func TestDiscardPending(t *testing.T) {
	f, _, svc := newFilterFixture(t, time.Minute)
	ctx := context.Background()
	committed := domain.DefaultCriteria(fixedNow)

	_, err := svc.Toggle(ctx, f.sel, domain.DimKeywords, "k1", committed)
	require.NoError(t, err)
	require.NoError(t, svc.Discard(ctx, f.sel, domain.DimKeywords))
	assert.Empty(t, svc.Pending(ctx, f.sel, domain.DimKeywords, committed))
}

func TestApplyYears(t *testing.T) {
	f, _, svc := newFilterFixture(t, time.Minute)

	next, err := svc.ApplyYears(context.Background(), f.sel, domain.DefaultCriteria(fixedNow), domain.YearRange{From: 1800, To: 2000})
	require.NoError(t, err)
	assert.Equal(t, domain.YearRange{From: domain.MinYear, To: 2000}, next.Years)
	assert.Equal(t, 1, f.store.Len())
}

func TestToggleExpanded(t *testing.T) {
	f, _, svc := newFilterFixture(t, time.Minute)
	ctx := context.Background()

	open, err := svc.ToggleExpanded(ctx, f.sel, "1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"1"}, open)

	open, err = svc.ToggleExpanded(ctx, f.sel, "1")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestOptionFetchOutlivesCancelledCaller(t *testing.T) {
	_, source, svc := newFilterFixture(t, time.Minute)
	source.honourCancel = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts, err := svc.Options(ctx, domain.DimAuthors)
	require.NoError(t, err)
	assert.Len(t, opts, 8)

	opts, err = svc.SearchOptions(context.Background(), domain.DimAuthors, "")
	require.NoError(t, err)
	assert.Len(t, opts, 8)
	assert.Equal(t, int32(1), source.authorCalls.Load(), "served from cache")
}

func TestInvalidateRefetchesOptions(t *testing.T) {
	_, source, svc := newFilterFixture(t, time.Minute)
	ctx := context.Background()

	_, err := svc.SearchOptions(ctx, domain.DimAuthors, "")
	require.NoError(t, err)
	_, err = svc.SearchOptions(ctx, domain.DimAuthors, "")
	require.NoError(t, err)
	require.Equal(t, int32(1), source.authorCalls.Load())

	svc.Invalidate()

	_, err = svc.SearchOptions(ctx, domain.DimAuthors, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.authorCalls.Load())
}

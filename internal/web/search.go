package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/pagination"
	"github.com/amiyamandal-dev/repoportal/internal/service"
)

// advancedRows is how many rows the advanced form shows at least
const advancedRows = 3

var operators = []string{"AND", "OR", "NOT"}

type pageLink struct {
	Number  int
	URL     string
	Current bool
}

func dimensionHeading(dim domain.Dimension) string {
	switch dim {
	case domain.DimCategories:
		return "Categories"
	case domain.DimResearchAreas:
		return "Research areas"
	case domain.DimTopics:
		return "Topics"
	case domain.DimAuthors:
		return "Authors"
	case domain.DimKeywords:
		return "Keywords"
	}
	return "Publication year"
}

// filterAnchor is the sidebar section a dimension lives in
func filterAnchor(dim domain.Dimension) string {
	switch dim {
	case domain.DimResearchAreas, domain.DimTopics:
		return "#filters-" + string(domain.DimCategories)
	}
	return "#filters-" + string(dim)
}

// SearchPage renders results for the navigation in the query string.
// A bare /search shows the session's last results without a new search.
func (h *WebHandler) SearchPage(c *gin.Context) {
	ctx := c.Request.Context()
	sel := h.selection(c)

	nav := domain.ParseNavigation(c.Request.URL.Query())
	outcome := h.searchService.View(ctx, sel, nav)
	criteria := outcome.Criteria
	panel := h.filterService.LoadPanel(ctx, sel, criteria)

	pager := pagination.Window(criteria.Page, outcome.Page.TotalPages(h.searchService.PerPage()))
	links := make([]pageLink, 0, len(pager.Pages))
	for _, n := range pager.Pages {
		links = append(links, pageLink{
			Number:  n,
			URL:     searchURL(h.searchService.ChangePage(criteria, n)),
			Current: n == pager.Current,
		})
	}

	rows := append([]domain.FieldQuery{}, criteria.Advanced...)
	for len(rows) < advancedRows {
		rows = append(rows, domain.FieldQuery{Field: domain.FieldAll, Operator: "AND"})
	}

	h.render(c, http.StatusOK, "search", gin.H{
		"Title":        "Search",
		"Criteria":     criteria,
		"Fields":       fieldOptions(criteria.Field),
		"Operators":    operators,
		"AdvancedRows": rows,
		"Cards":        h.renderer.Cards(outcome.Page.Items),
		"TotalCount":   outcome.Page.TotalCount,
		"Failed":       outcome.Failed,
		"Panel":        panel,
		"Pager":        pager,
		"PageLinks":    links,
		"FirstURL":     searchURL(h.searchService.ChangePage(criteria, pager.First)),
		"PrevURL":      searchURL(h.searchService.ChangePage(criteria, pager.Prev)),
		"NextURL":      searchURL(h.searchService.ChangePage(criteria, pager.Next)),
		"LastURL":      searchURL(h.searchService.ChangePage(criteria, pager.Last)),
	})
}

// AdvancedSearch turns the advanced form into a navigation
func (h *WebHandler) AdvancedSearch(c *gin.Context) {
	ctx := c.Request.Context()
	sel := h.selection(c)

	fields := c.PostFormArray("field")
	terms := c.PostFormArray("term")
	ops := c.PostFormArray("operator")

	var rows []domain.FieldQuery
	for i, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		row := domain.FieldQuery{Field: domain.FieldAll, Term: term, Operator: "AND"}
		if i < len(fields) {
			row.Field, _ = domain.ParseSearchField(fields[i])
		}
		if i < len(ops) {
			for _, op := range operators {
				if strings.EqualFold(ops[i], op) {
					row.Operator = op
				}
			}
		}
		rows = append(rows, row)
	}

	criteria := h.searchService.ResolveCriteria(ctx, sel, nil)
	criteria.Advanced = rows
	c.Redirect(http.StatusSeeOther, searchURL(criteria.WithPage(1)))
}

func (h *WebHandler) dimension(c *gin.Context) (domain.Dimension, bool) {
	dim, err := domain.ParseDimension(c.Param("dimension"))
	if err != nil {
		h.renderError(c, http.StatusBadRequest, "Unknown filter.")
		return "", false
	}
	return dim, true
}

// ToggleFilter flips one option in a widget's pending selection
func (h *WebHandler) ToggleFilter(c *gin.Context) {
	dim, ok := h.dimension(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sel := h.selection(c)

	id := domain.ID(strings.TrimSpace(c.PostForm("id")))
	if id == "" {
		h.renderError(c, http.StatusBadRequest, "No option selected.")
		return
	}

	committed := h.searchService.ResolveCriteria(ctx, sel, nil)
	if _, err := h.filterService.Toggle(ctx, sel, dim, id, committed); err != nil {
		if errors.Is(err, domain.ErrUnknownDimension) {
			h.renderError(c, http.StatusBadRequest, "This filter has no options.")
			return
		}
		h.logger.Error("Failed to toggle filter", "dimension", dim, "error", err)
		h.renderError(c, http.StatusInternalServerError, "Could not update the filter.")
		return
	}

	c.Redirect(http.StatusSeeOther, safeReturn(c.PostForm("return"), "/search"+filterAnchor(dim)))
}

// ApplyFilter commits a widget and searches again from page 1
func (h *WebHandler) ApplyFilter(c *gin.Context) {
	dim, ok := h.dimension(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sel := h.selection(c)
	committed := h.searchService.ResolveCriteria(ctx, sel, nil)

	var (
		next domain.SearchCriteria
		err  error
	)
	if dim == domain.DimYears {
		from, ferr := strconv.Atoi(strings.TrimSpace(c.PostForm(domain.ParamFromYear)))
		to, terr := strconv.Atoi(strings.TrimSpace(c.PostForm(domain.ParamToYear)))
		if ferr != nil || terr != nil {
			h.renderError(c, http.StatusBadRequest, "Years must be numbers.")
			return
		}
		next, err = h.filterService.ApplyYears(ctx, sel, committed, domain.YearRange{From: from, To: to})
	} else {
		next, err = h.filterService.Apply(ctx, sel, dim, committed)
	}
	if err != nil {
		h.logger.Error("Failed to apply filter", "dimension", dim, "error", err)
		h.renderError(c, http.StatusBadRequest, "Could not apply the filter.")
		return
	}

	c.Redirect(http.StatusSeeOther, searchURL(next))
}

// DiscardFilter drops a widget's pending selection
func (h *WebHandler) DiscardFilter(c *gin.Context) {
	dim, ok := h.dimension(c)
	if !ok {
		return
	}
	if err := h.filterService.Discard(c.Request.Context(), h.selection(c), dim); err != nil {
		h.logger.Warn("Failed to discard pending filter", "dimension", dim, "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/search"+filterAnchor(dim))
}

// FilterOptions is the "show all" view of one widget with a search box
func (h *WebHandler) FilterOptions(c *gin.Context) {
	dim, ok := h.dimension(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sel := h.selection(c)
	q := strings.TrimSpace(c.Query("q"))

	opts, err := h.filterService.SearchOptions(ctx, dim, q)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownDimension) {
			h.renderError(c, http.StatusBadRequest, "This filter has no options.")
			return
		}
		h.logger.Warn("Failed to load filter options", "dimension", dim, "error", err)
		opts = []domain.FilterOption{}
	}

	committed := h.searchService.ResolveCriteria(ctx, sel, nil)
	list := service.OptionList{
		Dimension: dim,
		Options:   opts,
		Selected:  h.filterService.Pending(ctx, sel, dim, committed),
	}

	h.render(c, http.StatusOK, "options", gin.H{
		"Title":     dimensionHeading(dim),
		"Heading":   dimensionHeading(dim),
		"Dimension": dim,
		"Query":     q,
		"Options":   opts,
		"List":      list,
		"ReturnURL": c.Request.URL.RequestURI(),
	})
}

// ToggleCategory opens or closes a node of the category tree
func (h *WebHandler) ToggleCategory(c *gin.Context) {
	id := domain.ID(strings.TrimSpace(c.Param("id")))
	if _, err := h.filterService.ToggleExpanded(c.Request.Context(), h.selection(c), id); err != nil {
		h.logger.Warn("Failed to toggle category", "id", id, "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/search"+filterAnchor(domain.DimCategories))
}

// ClearFilters resets everything to the default browse
func (h *WebHandler) ClearFilters(c *gin.Context) {
	defaults := h.searchService.ClearAllFilters(c.Request.Context(), h.selection(c))
	c.Redirect(http.StatusSeeOther, searchURL(defaults))
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/pagination"
	"github.com/amiyamandal-dev/repoportal/internal/repository"
	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/internal/validator"
	"github.com/amiyamandal-dev/repoportal/internal/web"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
	"github.com/amiyamandal-dev/repoportal/pkg/response"
)

// maxOptions caps the options endpoint
const maxOptions = 200

// SearchHandler serves search and filter data as JSON
type SearchHandler struct {
	searchService *service.SearchService
	filterService *service.FilterService
	store         repository.SessionStore
	validator     *validator.Validator
	logger        *logger.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(
	searchService *service.SearchService,
	filterService *service.FilterService,
	store repository.SessionStore,
	validator *validator.Validator,
	logger *logger.Logger,
) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		filterService: filterService,
		store:         store,
		validator:     validator,
		logger:        logger.WithComponent("search-handler"),
	}
}

// AdvancedSearchRequest is the body of POST /search/advanced
type AdvancedSearchRequest struct {
	Query    string              `json:"query" validate:"max=200"`
	Field    domain.SearchField  `json:"field" validate:"omitempty,searchfield"`
	Rows     []domain.FieldQuery `json:"searchFields" validate:"required,min=1,max=10,dive"`
	FromYear int                 `json:"fromYear" validate:"omitempty,min=1900"`
	ToYear   int                 `json:"toYear" validate:"omitempty,min=1900,gtefield=FromYear"`
	Page     int                 `json:"page" validate:"omitempty,min=1"`
}

// searchMeta describes how a page was produced
type searchMeta struct {
	Criteria domain.SearchCriteria `json:"criteria"`
	Failed   bool                  `json:"failed"`
	Stale    bool                  `json:"stale"`
	Cached   bool                  `json:"cached"`
}

func (h *SearchHandler) selection(c *gin.Context) *service.Selection {
	return service.NewSelection(h.store, web.SessionID(c), h.logger)
}

func (h *SearchHandler) respond(c *gin.Context, outcome service.SearchOutcome) {
	perPage := h.searchService.PerPage()
	totalPages := outcome.Page.TotalPages(perPage)
	pager := pagination.Window(outcome.Criteria.Page, totalPages)

	response.Paginated(c, outcome.Page.Items, response.Pagination{
		Page:       outcome.Criteria.Page,
		PerPage:    perPage,
		Total:      outcome.Page.TotalCount,
		TotalPages: totalPages,
		Window:     pager.Pages,
	}, searchMeta{
		Criteria: outcome.Criteria,
		Failed:   outcome.Failed,
		Stale:    outcome.Stale,
		Cached:   outcome.Cached,
	})
}

// Search resolves the query string against the session and searches.
// Unlike the web view it rejects malformed numbers.
func (h *SearchHandler) Search(c *gin.Context) {
	parser := NewQueryParamParser(c)
	parser.Page()
	parser.Years()
	if err := parser.Error(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	sel := h.selection(c)
	nav := domain.ParseNavigation(c.Request.URL.Query())
	if nav.IsEmpty() {
		h.respond(c, h.searchService.View(ctx, sel, nav))
		return
	}

	criteria := h.searchService.ResolveCriteria(ctx, sel, nav)
	h.respond(c, h.searchService.Search(ctx, sel, criteria))
}

// AdvancedSearch runs a multi-field search. Filters come from the session.
func (h *SearchHandler) AdvancedSearch(c *gin.Context) {
	var req AdvancedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	sel := h.selection(c)
	criteria := h.searchService.ResolveCriteria(ctx, sel, nil)
	criteria.Query = req.Query
	if req.Field != "" {
		criteria.Field = req.Field
	}
	criteria.Advanced = req.Rows
	if req.FromYear != 0 || req.ToYear != 0 {
		years := criteria.Years
		if req.FromYear != 0 {
			years.From = req.FromYear
		}
		if req.ToYear != 0 {
			years.To = req.ToYear
		}
		criteria.Years = years
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	h.respond(c, h.searchService.Search(ctx, sel, criteria.WithPage(page).Normalize(h.searchService.Now())))
}

// Filters returns every widget with its committed or pending selection
func (h *SearchHandler) Filters(c *gin.Context) {
	ctx := c.Request.Context()
	sel := h.selection(c)
	committed := h.searchService.ResolveCriteria(ctx, sel, nil)
	response.Success(c, h.filterService.LoadPanel(ctx, sel, committed))
}

// RefreshFilters drops the cached option lists so the next widget load
// fetches them from the repository again. Admins only.
func (h *SearchHandler) RefreshFilters(c *gin.Context) {
	user := web.GetUser(c)
	if user == nil || !user.IsAdmin() {
		response.Error(c, http.StatusForbidden, domain.ErrForbidden.Error())
		return
	}
	h.filterService.Invalidate()
	h.logger.Info("Filter options invalidated", "user", user.Username)
	c.Status(http.StatusNoContent)
}

// FilterOptions searches within one dimension's options
func (h *SearchHandler) FilterOptions(c *gin.Context) {
	dim, err := domain.ParseDimension(c.Param("dimension"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	parser := NewQueryParamParser(c)
	q := parser.String("q", "")
	limit := parser.Limit("limit", 50, maxOptions)
	if err := parser.Error(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	opts, err := h.filterService.SearchOptions(c.Request.Context(), dim, q)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownDimension) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to load filter options", "dimension", dim, "error", err)
		response.FromError(c, err)
		return
	}

	total := len(opts)
	if len(opts) > limit {
		opts = opts[:limit]
	}
	c.JSON(200, gin.H{
		"success": true,
		"data":    opts,
		"meta": gin.H{
			"dimension": dim,
			"query":     q,
			"total":     total,
		},
	})
}

package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/render"
	"github.com/amiyamandal-dev/repoportal/internal/repository"
	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

//go:embed templates static
var assets embed.FS

// StaticFS is the embedded stylesheet directory
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// WebHandler handles web UI requests
type WebHandler struct {
	searchService  *service.SearchService
	filterService  *service.FilterService
	projectService *service.ProjectService
	authService    *service.AuthService
	store          repository.SessionStore
	renderer       *render.Renderer
	cookies        CookieOptions
	logger         *logger.Logger
	templates      map[string]*template.Template
}

// NewWebHandler creates a new web handler
func NewWebHandler(
	searchService *service.SearchService,
	filterService *service.FilterService,
	projectService *service.ProjectService,
	authService *service.AuthService,
	store repository.SessionStore,
	renderer *render.Renderer,
	cookies CookieOptions,
	log *logger.Logger,
) *WebHandler {
	funcMap := template.FuncMap{
		"upper": strings.ToUpper,
	}

	// Parse each page with the base layout
	templates := make(map[string]*template.Template)
	baseLayout := "templates/layouts/base.html"
	pages := map[string]string{
		"home":      "templates/pages/home.html",
		"search":    "templates/pages/search.html",
		"options":   "templates/pages/options.html",
		"project":   "templates/pages/project.html",
		"login":     "templates/pages/login.html",
		"bookmarks": "templates/pages/bookmarks.html",
		"error":     "templates/pages/error.html",
	}
	for name, pagePath := range pages {
		templates[name] = template.Must(
			template.New(name).Funcs(funcMap).ParseFS(assets, baseLayout, pagePath),
		)
	}

	return &WebHandler{
		searchService:  searchService,
		filterService:  filterService,
		projectService: projectService,
		authService:    authService,
		store:          store,
		renderer:       renderer,
		cookies:        cookies,
		logger:         log.WithComponent("web-handler"),
		templates:      templates,
	}
}

// selection binds the session store to the caller's session
func (h *WebHandler) selection(c *gin.Context) *service.Selection {
	return service.NewSelection(h.store, SessionID(c), h.logger)
}

func (h *WebHandler) render(c *gin.Context, status int, page string, data gin.H) {
	data["User"] = GetUser(c)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := h.templates[page].ExecuteTemplate(c.Writer, "base.html", data); err != nil {
		h.logger.Error("Template error", "page", page, "error", err)
		c.String(http.StatusInternalServerError, "Template error")
	}
}

func (h *WebHandler) renderError(c *gin.Context, status int, message string) {
	h.render(c, status, "error", gin.H{
		"Title":   http.StatusText(status),
		"Message": message,
	})
}

// searchURL is the navigation that fully describes c
func searchURL(c domain.SearchCriteria) string {
	return "/search?" + domain.EncodeNavigation(c).Encode()
}

// safeReturn only allows redirects back into the search pages
func safeReturn(raw, fallback string) string {
	u, err := url.Parse(raw)
	if err != nil || raw == "" || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/search") {
		return fallback
	}
	return u.RequestURI()
}

type fieldOption struct {
	Value    domain.SearchField
	Label    string
	Selected bool
}

func fieldOptions(selected domain.SearchField) []fieldOption {
	out := make([]fieldOption, 0, len(domain.SearchFields))
	for _, f := range domain.SearchFields {
		out = append(out, fieldOption{Value: f, Label: f.Label(), Selected: f == selected})
	}
	return out
}

// HomePage renders the home page
func (h *WebHandler) HomePage(c *gin.Context) {
	h.render(c, http.StatusOK, "home", gin.H{
		"Title":     "Home",
		"Fields":    fieldOptions(domain.FieldAll),
		"BrowseURL": searchURL(h.searchService.Defaults()),
	})
}

// NotFound renders the 404 page
func (h *WebHandler) NotFound(c *gin.Context) {
	h.renderError(c, http.StatusNotFound, "The page you requested does not exist.")
}

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amiyamandal-dev/repoportal/internal/api/handlers"
	"github.com/amiyamandal-dev/repoportal/internal/api/middleware"
	"github.com/amiyamandal-dev/repoportal/internal/config"
	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/internal/web"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
	"github.com/amiyamandal-dev/repoportal/pkg/response"
)

// Cookies derives the cookie settings shared by the web and API layers
func Cookies(cfg *config.Config) web.CookieOptions {
	return web.CookieOptions{
		Session:     cfg.Session.CookieName,
		AccessToken: cfg.Auth.CookieName,
		Secure:      cfg.Session.Secure,
		TokenMaxAge: int(cfg.Auth.CookieTTL / time.Second),
	}
}

// Router sets up the HTTP router with all routes and middleware
type Router struct {
	engine         *gin.Engine
	authHandler    *handlers.AuthHandler
	searchHandler  *handlers.SearchHandler
	projectHandler *handlers.ProjectHandler
	healthHandler  *handlers.HealthHandler
	webHandler     *web.WebHandler
	authService    *service.AuthService
	gatherer       prometheus.Gatherer
	limiter        *middleware.RateLimiter
	cfg            *config.Config
	logger         *logger.Logger
}

// NewRouter creates a new router
func NewRouter(
	authHandler *handlers.AuthHandler,
	searchHandler *handlers.SearchHandler,
	projectHandler *handlers.ProjectHandler,
	healthHandler *handlers.HealthHandler,
	webHandler *web.WebHandler,
	authService *service.AuthService,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
	logger *logger.Logger,
) *Router {
	return &Router{
		authHandler:    authHandler,
		searchHandler:  searchHandler,
		projectHandler: projectHandler,
		healthHandler:  healthHandler,
		webHandler:     webHandler,
		authService:    authService,
		gatherer:       gatherer,
		cfg:            cfg,
		logger:         logger,
	}
}

// Setup configures all routes and middleware
func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.cfg.Server.Mode)

	r.engine = gin.New()
	cookies := Cookies(r.cfg)

	r.engine.Use(gin.CustomRecovery(r.recovered))
	r.engine.Use(web.SessionMiddleware(cookies))
	r.engine.Use(middleware.LoggerMiddleware(r.logger))

	// Health and metrics (no rate limiting, no auth)
	r.engine.GET("/health", r.healthHandler.Health)
	r.engine.GET("/health/ready", r.healthHandler.Readiness)
	r.engine.GET("/health/live", r.healthHandler.Liveness)
	if r.gatherer != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	if r.cfg.Web.StaticDir != "" {
		r.engine.Static("/static", r.cfg.Web.StaticDir)
	} else {
		r.engine.StaticFS("/static", web.StaticFS())
	}

	// Web UI routes
	if r.webHandler != nil {
		webRoutes := r.engine.Group("")
		webRoutes.Use(web.AuthMiddleware(r.authService, cookies))
		{
			webRoutes.GET("/", r.webHandler.HomePage)
			webRoutes.GET("/search", r.webHandler.SearchPage)
			webRoutes.POST("/search/advanced", r.webHandler.AdvancedSearch)
			webRoutes.POST("/search/clear", r.webHandler.ClearFilters)
			webRoutes.POST("/search/categories/:id/expand", r.webHandler.ToggleCategory)

			filters := webRoutes.Group("/search/filters/:dimension")
			{
				filters.GET("/options", r.webHandler.FilterOptions)
				filters.POST("/toggle", r.webHandler.ToggleFilter)
				filters.POST("/apply", r.webHandler.ApplyFilter)
				filters.POST("/discard", r.webHandler.DiscardFilter)
			}

			webRoutes.GET("/projects/:id", r.webHandler.ProjectPage)
			webRoutes.POST("/projects/:id/views", r.webHandler.StartView)
			webRoutes.POST("/projects/:id/views/:viewID/complete", r.webHandler.CompleteView)

			webRoutes.GET("/login", r.webHandler.LoginPage)
			webRoutes.POST("/login", r.webHandler.WebLogin)
			webRoutes.POST("/logout", r.webHandler.WebLogout)

			bookmarks := webRoutes.Group("/bookmarks")
			bookmarks.Use(web.RequireAuth())
			{
				bookmarks.GET("", r.webHandler.BookmarksPage)
				bookmarks.POST("/:id", r.webHandler.AddBookmark)
				bookmarks.POST("/:id/delete", r.webHandler.RemoveBookmark)
			}
		}
	}
	r.engine.NoRoute(r.noRoute)

	// API v1 routes (with rate limiting)
	r.limiter = middleware.NewRateLimiter(r.cfg.RateLimit.RequestsPerMinute, r.cfg.RateLimit.Burst, 5*time.Minute)
	r.limiter.Start()

	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.RateLimitMiddleware(r.limiter))
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authHandler.Login)

			authProtected := auth.Group("")
			authProtected.Use(middleware.AuthMiddleware(r.authService, cookies.AccessToken))
			{
				authProtected.GET("/me", r.authHandler.GetMe)
			}
		}

		v1.GET("/search", r.searchHandler.Search)
		v1.POST("/search/advanced", r.searchHandler.AdvancedSearch)
		v1.GET("/filters", r.searchHandler.Filters)
		v1.GET("/filters/:dimension/options", r.searchHandler.FilterOptions)
		v1.POST("/filters/refresh",
			middleware.AuthMiddleware(r.authService, cookies.AccessToken),
			r.searchHandler.RefreshFilters,
		)

		projects := v1.Group("/projects")
		{
			projects.GET("/:id", r.projectHandler.Get)
			projects.POST("/:id/views", r.projectHandler.StartView)
			projects.PUT("/:id/views/:viewID", r.projectHandler.CompleteView)
		}

		bookmarks := v1.Group("/bookmarks")
		bookmarks.Use(middleware.AuthMiddleware(r.authService, cookies.AccessToken))
		{
			bookmarks.GET("", r.projectHandler.Bookmarks)
			bookmarks.POST("/:id", r.projectHandler.AddBookmark)
			bookmarks.DELETE("/:id", r.projectHandler.RemoveBookmark)
		}
	}

	return r.engine
}

func isAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}

// noRoute answers API clients in JSON and browsers with the 404 page
func (r *Router) noRoute(c *gin.Context) {
	if isAPI(c) || r.webHandler == nil {
		response.NotFound(c, "route not found")
		return
	}
	r.webHandler.NotFound(c)
}

func (r *Router) recovered(c *gin.Context, err interface{}) {
	r.logger.Error("Recovered from panic",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"panic", err,
	)
	if isAPI(c) {
		response.InternalServerError(c, http.StatusText(http.StatusInternalServerError))
		c.Abort()
		return
	}
	c.AbortWithStatus(http.StatusInternalServerError)
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	if r.engine == nil {
		return r.Setup()
	}
	return r.engine
}

// Handler is the engine as an http.Handler
func (r *Router) Handler() http.Handler {
	return r.GetEngine()
}

// Close stops background work started by Setup
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}

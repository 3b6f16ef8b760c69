package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiyamandal-dev/repoportal/internal/api/handlers"
	"github.com/amiyamandal-dev/repoportal/internal/auth"
	"github.com/amiyamandal-dev/repoportal/internal/backend"
	"github.com/amiyamandal-dev/repoportal/internal/config"
	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/observability"
	"github.com/amiyamandal-dev/repoportal/internal/render"
	"github.com/amiyamandal-dev/repoportal/internal/repository/memory"
	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/internal/validator"
	"github.com/amiyamandal-dev/repoportal/internal/web"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func fakeRepositoryAPI(authorCalls *atomic.Int32) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/api/search/", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{
				{"project_id": "1", "title": "Soil Moisture Sensing"},
				{"project_id": "2", "title": "Irrigation Models"},
			},
			"totalCount": 12,
		})
	})
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, []interface{}{})
	})
	mux.HandleFunc("/api/authors", func(w http.ResponseWriter, r *http.Request) {
		authorCalls.Add(1)
		write(w, http.StatusOK, []map[string]string{
			{"id": "a1", "name": "Grace Hopper"},
			{"id": "a2", "name": "Alan Turing"},
			{"id": "a3", "name": "Ada Lovelace"},
		})
	})
	mux.HandleFunc("/api/keywords", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, []interface{}{})
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			write(w, http.StatusUnauthorized, map[string]string{"error": "no token"})
			return
		}
		write(w, http.StatusOK, []interface{}{})
	})
	return mux
}

type testApp struct {
	router      *Router
	engine      *gin.Engine
	tokens      *auth.TokenInspector
	authorCalls *atomic.Int32
}

func newTestApp(t *testing.T, requestsPerMinute, burst int) *testApp {
	t.Helper()

	authorCalls := &atomic.Int32{}
	srv := httptest.NewServer(fakeRepositoryAPI(authorCalls))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Session.CookieName = "portal_sid"
	cfg.Auth.CookieName = "access_token"
	cfg.Auth.CookieTTL = time.Hour
	cfg.RateLimit.RequestsPerMinute = requestsPerMinute
	cfg.RateLimit.Burst = burst

	log := logger.Nop()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	client, err := backend.New(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, metrics, log)
	require.NoError(t, err)

	store := memory.NewSessionRepo(time.Hour)
	tokens := auth.NewTokenInspector(testSecret)
	v := validator.New()

	searchService := service.NewSearchService(client, domain.ItemsPerPage, metrics, log)
	filterService, err := service.NewFilterService(client, searchService, service.FilterConfig{CacheTTL: time.Minute}, metrics, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = filterService.Close() })
	projectService := service.NewProjectService(client, metrics, log)
	authService := service.NewAuthService(client, tokens, v, log)

	webHandler := web.NewWebHandler(searchService, filterService, projectService, authService, store, render.New(), Cookies(cfg), log)
	router := NewRouter(
		handlers.NewAuthHandler(authService, log),
		handlers.NewSearchHandler(searchService, filterService, store, v, log),
		handlers.NewProjectHandler(projectService, log),
		handlers.NewHealthHandler(store, client, log),
		webHandler,
		authService,
		reg,
		cfg,
		log,
	)
	engine := router.Setup()
	t.Cleanup(router.Close)

	return &testApp{router: router, engine: engine, tokens: tokens, authorCalls: authorCalls}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ready", body["status"])
	assert.Nil(t, body["warnings"])

	w = app.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, 600, 60)

	app.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=soil&field=title&page=1", nil))
	w := app.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_search_requests_total")
}

func TestRequestIDHeader(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAPISearch(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=soil&field=title&page=2", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], 2)

	pagination := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, pagination["page"])
	assert.EqualValues(t, 12, pagination["totalCount"])
	assert.EqualValues(t, 3, pagination["totalPages"])
	assert.EqualValues(t, 5, pagination["itemsPerPage"])
	assert.Len(t, pagination["window"], 3)
}

func TestAPISearchRejectsMalformedNumbers(t *testing.T) {
	app := newTestApp(t, 600, 60)

	for _, target := range []string{
		"/api/v1/search?page=two",
		"/api/v1/search?page=0",
		"/api/v1/search?fromYear=2020&toYear=2010",
	} {
		w := app.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestAPIAdvancedSearchValidation(t *testing.T) {
	app := newTestApp(t, 600, 60)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search/advanced", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return app.do(req)
	}

	w := post(`{"searchFields":[{"field":"title","term":"soil","operator":"AND"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(`{"searchFields":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(`{"searchFields":[{"field":"color","term":"red"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(`{"field":"color","searchFields":[{"field":"title","term":"soil"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIFilterOptions(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/filters/authors/options?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "Ada Lovelace", data[0].(map[string]interface{})["label"])
	assert.EqualValues(t, 3, body["meta"].(map[string]interface{})["total"])

	w = app.do(httptest.NewRequest(http.MethodGet, "/api/v1/filters/colors/options", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIFilters(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/filters", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Contains(t, data, "authors")
	assert.Contains(t, data, "years")
}

func TestAPIRefreshFilters(t *testing.T) {
	app := newTestApp(t, 600, 60)
	options := func() {
		w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/filters/authors/options", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	refresh := func(user *domain.User) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/filters/refresh", nil)
		if user != nil {
			token, _, err := app.tokens.Sign(user, time.Hour)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return app.do(req).Code
	}

	options()
	options()
	require.Equal(t, int32(1), app.authorCalls.Load())

	assert.Equal(t, http.StatusUnauthorized, refresh(nil))
	assert.Equal(t, http.StatusForbidden, refresh(&domain.User{ID: "u1", Username: "reader", Role: domain.RoleReader}))
	options()
	assert.Equal(t, int32(1), app.authorCalls.Load())

	assert.Equal(t, http.StatusNoContent, refresh(&domain.User{ID: "u2", Username: "curator", Role: domain.RoleAdmin}))
	options()
	assert.Equal(t, int32(2), app.authorCalls.Load())
}

func TestAPIUnknownRouteIsJSON(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "route not found", body["error"])
}

func TestAPIPanicRecovered(t *testing.T) {
	app := newTestApp(t, 600, 60)
	app.engine.GET("/api/v1/explode", func(c *gin.Context) { panic("boom") })

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/explode", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Internal Server Error", body["error"])
}

func TestAPIAuthMe(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := app.tokens.Sign(&domain.User{ID: "u1", Username: "reader", Role: domain.RoleReader}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = app.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "reader", user["username"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	w = app.do(req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	w = app.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIBookmarksForwardToken(t *testing.T) {
	app := newTestApp(t, 600, 60)

	token, _, err := app.tokens.Sign(&domain.User{ID: "u1", Username: "reader", Role: domain.RoleReader}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookmarks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := app.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRateLimit(t *testing.T) {
	app := newTestApp(t, 1, 2)

	for i := 0; i < 2; i++ {
		w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/filters/authors/options", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/filters/authors/options", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// pages are not limited
	w = app.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStaticAssetsEmbedded(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/static/portal.css", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebRoutesMounted(t *testing.T) {
	app := newTestApp(t, 600, 60)

	w := app.do(httptest.NewRequest(http.MethodGet, "/search?q=soil&field=title&page=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Soil Moisture Sensing")

	w = app.do(httptest.NewRequest(http.MethodGet, "/bookmarks", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = app.do(httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

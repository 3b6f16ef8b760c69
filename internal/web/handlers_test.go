package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiyamandal-dev/repoportal/internal/auth"
	"github.com/amiyamandal-dev/repoportal/internal/backend"
	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/observability"
	"github.com/amiyamandal-dev/repoportal/internal/render"
	"github.com/amiyamandal-dev/repoportal/internal/repository/memory"
	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/internal/validator"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCookies = CookieOptions{
	Session:     "portal_sid",
	AccessToken: "access_token",
	TokenMaxAge: 3600,
}

type testBackend struct {
	searches   int32
	failSearch atomic.Bool
}

func (b *testBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	write := func(status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/api/search/"):
		atomic.AddInt32(&b.searches, 1)
		if b.failSearch.Load() {
			write(http.StatusInternalServerError, map[string]string{"error": "boom"})
			return
		}
		total := 1
		if r.URL.Path == "/api/search/advanced" {
			total = 25
		}
		write(http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{
				{"project_id": "7", "title": "Deep Learning for Crops", "authors": "Ada Lovelace", "abstract": "Some *markdown*"},
			},
			"totalCount": total,
		})
	case r.URL.Path == "/api/categories":
		write(http.StatusOK, []map[string]interface{}{{"category_id": "c1", "category_name": "Science"}})
	case r.URL.Path == "/api/authors":
		write(http.StatusOK, []map[string]string{{"id": "a1", "name": "Ada Lovelace"}, {"id": "a2", "name": "Alan Turing"}})
	case r.URL.Path == "/api/keywords":
		write(http.StatusOK, map[string]interface{}{"data": []map[string]string{{"id": "k1", "name": "crops"}}})
	case r.URL.Path == "/api/projects/7":
		write(http.StatusOK, map[string]interface{}{"project_id": "7", "title": "Deep Learning for Crops", "view_count": 3})
	case r.URL.Path == "/api/projects/7/views" && r.Method == http.MethodPost:
		write(http.StatusCreated, map[string]string{"view_id": "v1"})
	case strings.HasPrefix(r.URL.Path, "/api/projects/7/views/"):
		write(http.StatusOK, map[string]bool{"ok": true})
	default:
		write(http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

type harness struct {
	router  *gin.Engine
	backend *testBackend
	store   *memory.SessionRepo
	sid     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	tb := &testBackend{}
	srv := httptest.NewServer(tb)
	t.Cleanup(srv.Close)

	log := logger.Nop()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	client, err := backend.New(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, metrics, log)
	require.NoError(t, err)

	store := memory.NewSessionRepo(0)
	searchService := service.NewSearchService(client, domain.ItemsPerPage, metrics, log)
	filterService, err := service.NewFilterService(client, searchService, service.FilterConfig{CacheTTL: time.Minute}, metrics, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = filterService.Close() })
	projectService := service.NewProjectService(client, metrics, log)
	authService := service.NewAuthService(client, auth.NewTokenInspector(""), validator.New(), log)

	h := NewWebHandler(searchService, filterService, projectService, authService, store, render.New(), testCookies, log)

	r := gin.New()
	r.Use(SessionMiddleware(testCookies), AuthMiddleware(authService, testCookies))
	r.GET("/", h.HomePage)
	r.GET("/search", h.SearchPage)
	r.POST("/search/advanced", h.AdvancedSearch)
	r.POST("/search/clear", h.ClearFilters)
	r.POST("/search/categories/:id/expand", h.ToggleCategory)
	r.POST("/search/filters/:dimension/toggle", h.ToggleFilter)
	r.POST("/search/filters/:dimension/apply", h.ApplyFilter)
	r.POST("/search/filters/:dimension/discard", h.DiscardFilter)
	r.GET("/search/filters/:dimension/options", h.FilterOptions)
	r.GET("/projects/:id", h.ProjectPage)
	r.POST("/projects/:id/views", h.StartView)
	r.POST("/projects/:id/views/:viewID/complete", h.CompleteView)
	r.GET("/bookmarks", RequireAuth(), h.BookmarksPage)
	r.GET("/login", h.LoginPage)
	r.NoRoute(h.NotFound)

	return &harness{router: r, backend: tb, store: store, sid: uuid.NewString()}
}

func (h *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: testCookies.Session, Value: h.sid})

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) searches() int {
	return int(atomic.LoadInt32(&h.backend.searches))
}

func TestSessionCookieIssued(t *testing.T) {
	h := newHarness(t)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	cookie := w.Result().Cookies()
	require.NotEmpty(t, cookie)
	assert.Equal(t, testCookies.Session, cookie[0].Name)
	_, err := uuid.Parse(cookie[0].Value)
	assert.NoError(t, err)
}

func TestSessionCookieKept(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestSearchPageRendersResults(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/search?q=deep&field=title&page=1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Deep Learning for Crops")
	assert.Contains(t, body, "<em>markdown</em>")
	assert.Contains(t, body, "Ada Lovelace")
	assert.Equal(t, 1, h.searches())
}

func TestBareSearchReusesSessionResults(t *testing.T) {
	h := newHarness(t)

	h.do(http.MethodGet, "/search?q=deep&field=title&page=1", nil)
	w := h.do(http.MethodGet, "/search", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Deep Learning for Crops")
	assert.Equal(t, 1, h.searches())
}

func TestBackendFailureShowsEmptyPage(t *testing.T) {
	h := newHarness(t)
	h.backend.failSearch.Store(true)

	w := h.do(http.MethodGet, "/search?q=deep&field=title&page=1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No results found.")
	assert.Contains(t, w.Body.String(), "not responding")
}

func TestToggleThenApplyResetsPage(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/search?q=deep&field=title&page=3", nil)

	w := h.do(http.MethodPost, "/search/filters/authors/toggle", url.Values{"id": {"a1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/search#filters-authors", w.Header().Get("Location"))

	w = h.do(http.MethodPost, "/search/filters/authors/apply", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/search", loc.Path)
	assert.Equal(t, "1", loc.Query().Get("page"))
	assert.Equal(t, "a1", loc.Query().Get("authors"))
	assert.Equal(t, "deep", loc.Query().Get("q"))
}

func TestApplyYears(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/search/filters/years/apply", url.Values{"fromYear": {"2020"}, "toYear": {"2010"}})

	require.Equal(t, http.StatusSeeOther, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "2010", loc.Query().Get("fromYear"))
	assert.Equal(t, "2020", loc.Query().Get("toYear"))

	w = h.do(http.MethodPost, "/search/filters/years/apply", url.Values{"fromYear": {"abc"}, "toYear": {"2010"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownDimension(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/search/filters/colors/toggle", url.Values{"id": {"red"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearFiltersRedirectsToDefaults(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/search?q=deep&field=title&authors=a1&page=2", nil)

	w := h.do(http.MethodPost, "/search/clear", url.Values{})

	require.Equal(t, http.StatusSeeOther, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "", loc.Query().Get("q"))
	assert.Equal(t, "", loc.Query().Get("authors"))
	assert.Equal(t, "1", loc.Query().Get("page"))
	assert.Equal(t, "allfields", loc.Query().Get("field"))
}

func TestAdvancedSearchRedirect(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/search/advanced", url.Values{
		"operator": {"AND", "not", "OR"},
		"field":    {"title", "author", "keywords"},
		"term":     {"crops", "smith", "  "},
	})

	require.Equal(t, http.StatusSeeOther, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	var rows []domain.FieldQuery
	require.NoError(t, json.Unmarshal([]byte(loc.Query().Get(domain.ParamAdvanced)), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, domain.FieldAuthor, rows[1].Field)
	assert.Equal(t, "NOT", rows[1].Operator)
}

func TestAdvancedRowsSurviveFilterChanges(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/search/advanced", url.Values{
		"operator": {"AND"},
		"field":    {"title"},
		"term":     {"water"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	advanced := w.Header().Get("Location")

	w = h.do(http.MethodGet, advanced, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), domain.ParamAdvanced+"=", "page links keep the rows")

	w = h.do(http.MethodPost, "/search/filters/authors/toggle", url.Values{"id": {"a1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = h.do(http.MethodGet, "/search", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), domain.ParamAdvanced+"=", "cached page links keep the rows")

	w = h.do(http.MethodPost, "/search/filters/authors/apply", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "a1", loc.Query().Get(domain.ParamAuthors))
	assert.Equal(t, "1", loc.Query().Get(domain.ParamPage))

	var rows []domain.FieldQuery
	require.NoError(t, json.Unmarshal([]byte(loc.Query().Get(domain.ParamAdvanced)), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, domain.FieldTitle, rows[0].Field)
	assert.Equal(t, "water", rows[0].Term)
}

func TestFilterOptionsSearch(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/search/filters/authors/options?q=tur", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alan Turing")
	assert.NotContains(t, w.Body.String(), "Ada Lovelace")
}

func TestProjectPage(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/projects/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Deep Learning for Crops")

	w = h.do(http.MethodGet, "/projects/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViewTrackingEndpoints(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/projects/7/views", url.Values{})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"view_id":"v1"}`, w.Body.String())

	w = h.do(http.MethodPost, "/projects/7/views/v1/complete", url.Values{"duration_seconds": {"42"}})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(http.MethodPost, "/projects/7/views/v1/complete", url.Values{"duration_seconds": {"soon"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookmarksRequireLogin(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/bookmarks", nil)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?next=%2Fbookmarks", w.Header().Get("Location"))
}

func TestNotFoundPage(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/nowhere", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSafeReturn(t *testing.T) {
	assert.Equal(t, "/search/filters/authors/options?q=a", safeReturn("/search/filters/authors/options?q=a", "/x"))
	assert.Equal(t, "/x", safeReturn("https://evil.example/search", "/x"))
	assert.Equal(t, "/x", safeReturn("//evil.example/search", "/x"))
	assert.Equal(t, "/x", safeReturn("/projects/1", "/x"))
	assert.Equal(t, "/x", safeReturn("", "/x"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/bookmarks", safeNext("/bookmarks"))
	assert.Equal(t, "/", safeNext("//evil.example"))
	assert.Equal(t, "/", safeNext("https://evil.example"))
	assert.Equal(t, "/", safeNext(""))
}

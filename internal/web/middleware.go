package web

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amiyamandal-dev/repoportal/internal/backend"
	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/service"
)

const (
	ContextUserKey    = "web_user"
	ContextSessionKey = "web_session"
)

// CookieOptions names the cookies the portal sets
type CookieOptions struct {
	Session     string
	AccessToken string
	Secure      bool
	TokenMaxAge int // seconds
}

// SessionMiddleware makes sure every request carries a session id. The
// cookie has no expiry so it lives as long as the browser session.
func SessionMiddleware(opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(opts.Session)
		if _, perr := uuid.Parse(sid); err != nil || perr != nil {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(opts.Session, sid, 0, "/", "", opts.Secure, true)
		}
		c.Set(ContextSessionKey, sid)
		c.Next()
	}
}

// AuthMiddleware reads the access-token cookie. A valid token puts the
// user in the gin context and the token in the request context so backend
// calls carry it. Invalid tokens are cleared.
func AuthMiddleware(authService *service.AuthService, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(opts.AccessToken)
		if err != nil || token == "" {
			c.Next()
			return
		}

		user, err := authService.CurrentUser(token)
		if err != nil {
			c.SetCookie(opts.AccessToken, "", -1, "/", "", opts.Secure, true)
			c.Next()
			return
		}

		c.Set(ContextUserKey, user)
		c.Request = c.Request.WithContext(backend.WithToken(c.Request.Context(), token))
		c.Next()
	}
}

// GetUser returns the authenticated user from context, if any
func GetUser(c *gin.Context) *domain.User {
	user, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	u, _ := user.(*domain.User)
	return u
}

// SessionID returns the session id set by SessionMiddleware
func SessionID(c *gin.Context) string {
	return c.GetString(ContextSessionKey)
}

// RequireAuth sends anonymous visitors to the login page
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUser(c) == nil {
			c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

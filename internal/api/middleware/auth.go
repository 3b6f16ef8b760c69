package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/backend"
	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/internal/web"
	"github.com/amiyamandal-dev/repoportal/pkg/response"
)

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// access-token cookie the web pages use
func bearerToken(c *gin.Context, cookieName string) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// AuthMiddleware requires a valid access token. The user is stored the
// same way the web middleware stores it and the token is forwarded to
// the repository API.
func AuthMiddleware(authService *service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c, cookieName)
		if !ok {
			response.Unauthorized(c, "Missing or malformed authorization")
			c.Abort()
			return
		}

		user, err := authService.CurrentUser(token)
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(web.ContextUserKey, user)
		c.Request = c.Request.WithContext(backend.WithToken(c.Request.Context(), token))
		c.Next()
	}
}

package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

// safeNext only allows local redirects after login
func safeNext(next string) string {
	if len(next) < 1 || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return "/"
	}
	return next
}

// LoginPage renders the login page
func (h *WebHandler) LoginPage(c *gin.Context) {
	if GetUser(c) != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	h.render(c, http.StatusOK, "login", gin.H{
		"Title": "Log in",
		"Next":  safeNext(c.Query("next")),
	})
}

// WebLogin handles login form submission
func (h *WebHandler) WebLogin(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		req = domain.LoginRequest{Username: c.PostForm("username")}
	}
	next := safeNext(c.PostForm("next"))

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusUnauthorized
		message := "Invalid username or password"
		switch {
		case errors.Is(err, domain.ErrValidationFailed):
			status = http.StatusBadRequest
			message = "Please enter your username and password"
		case !errors.Is(err, domain.ErrInvalidCredentials):
			status = http.StatusBadGateway
			message = "Login is unavailable right now"
		}
		h.render(c, status, "login", gin.H{
			"Title":    "Log in",
			"Error":    message,
			"Username": req.Username,
			"Next":     next,
		})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookies.AccessToken, resp.Token, h.cookies.TokenMaxAge, "/", "", h.cookies.Secure, true)
	c.Redirect(http.StatusSeeOther, next)
}

// WebLogout handles logout
func (h *WebHandler) WebLogout(c *gin.Context) {
	c.SetCookie(h.cookies.AccessToken, "", -1, "/", "", h.cookies.Secure, true)
	c.Redirect(http.StatusSeeOther, "/login")
}

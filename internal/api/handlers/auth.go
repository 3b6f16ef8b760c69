package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/internal/web"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
	"github.com/amiyamandal-dev/repoportal/pkg/response"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService *service.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger.WithComponent("auth-handler"),
	}
}

// Login exchanges credentials for a repository API token
func (h *AuthHandler) Login(c *gin.Context) {
	var req domain.LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	loginResp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidationFailed):
			response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrInvalidCredentials):
			response.Unauthorized(c, "Invalid username or password")
		default:
			h.logger.Error("Login failed", "error", err)
			response.FromError(c, err)
		}
		return
	}

	response.Success(c, loginResp)
}

// GetMe returns the current authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	user := web.GetUser(c)
	if user == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	response.Success(c, user)
}

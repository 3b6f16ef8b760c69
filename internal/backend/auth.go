package backend

import (
	"context"
	"net/http"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/auth/login",
		path:   "/api/auth/login",
		body:   req,
	}, &resp)
	if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusBadRequest) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, domain.ErrInvalidCredentials
	}
	return &resp, nil
}

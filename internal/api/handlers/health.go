package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// HealthChecker is anything that can report its own health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pinger reports whether a remote service answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	store   HealthChecker
	backend Pinger
	timeout time.Duration
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store HealthChecker, backend Pinger, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		backend: backend,
		timeout: 3 * time.Second,
		logger:  logger.WithComponent("health-handler"),
	}
}

// Health returns basic health status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Readiness checks if the service is ready to handle requests
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var (
		storeErr   error
		backendErr error
		wg         sync.WaitGroup
	)

	wg.Add(2)

	// Session store (required)
	go func() {
		defer wg.Done()
		storeErr = h.store.HealthCheck(ctx)
	}()

	// Repository API (optional)
	go func() {
		defer wg.Done()
		backendErr = h.backend.Ping(ctx)
	}()

	wg.Wait()

	checks := map[string]interface{}{
		"session_store": map[string]interface{}{
			"healthy":  storeErr == nil,
			"required": true,
		},
		"repository_api": map[string]interface{}{
			"healthy":  backendErr == nil,
			"required": false,
			"note":     "Searches show no results while the API is down",
		},
	}

	status := "ready"
	code := http.StatusOK
	if storeErr != nil {
		h.logger.Warn("Session store unhealthy", "error", storeErr)
		status = "not ready"
		code = http.StatusServiceUnavailable
	}

	body := gin.H{
		"status": status,
		"checks": checks,
	}

	if backendErr != nil {
		h.logger.Warn("Repository API unreachable", "error", backendErr)
		body["warnings"] = []string{"Repository API not available - searches and project pages will fail"}
	}

	c.JSON(code, body)
}

// Liveness checks if the service is alive
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

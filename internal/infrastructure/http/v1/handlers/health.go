package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db      Pinger
	clients func() int
}

// NewHealthHandler creates a new health handler. clients reports connected
// websocket clients and may be nil.
func NewHealthHandler(db Pinger, clients func() int) *HealthHandler {
	return &HealthHandler{db: db, clients: clients}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy",
			},
		})
		return
	}

	body := gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	}
	if h.clients != nil {
		body["websocketClients"] = h.clients()
	}
	c.JSON(http.StatusOK, body)
}

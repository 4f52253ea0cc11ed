package handlers

import (
	"fleet-map-service/internal/engine"
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	Engine *engine.Engine
}

// Health reports liveness plus current marker counts.
func (h *HealthHandler) Health(c *gin.Context) {
	stats, err := h.Engine.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": stats})
}

package handlers

import (
	"context"
	"fleet-map-service/internal/ports"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SimulationHandler struct {
	Control ports.SimulationControl
}

// Command forwards start, stop or reset to the backend simulator.
func (h *SimulationHandler) Command(c *gin.Context) {
	if h.Control == nil {
		writeError(c, http.StatusServiceUnavailable, "simulation control not configured")
		return
	}

	var send func(context.Context) error
	switch action := c.Param("action"); action {
	case "start":
		send = h.Control.Start
	case "stop":
		send = h.Control.Stop
	case "reset":
		send = h.Control.Reset
	default:
		writeError(c, http.StatusNotFound, "unknown simulation action "+action)
		return
	}

	if err := send(c.Request.Context()); err != nil {
		writeError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"action": c.Param("action")})
}

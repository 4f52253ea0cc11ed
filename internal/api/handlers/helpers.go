package handlers

import (
	"context"
	"errors"
	"fleet-map-service/internal/engine"
	"net/http"

	"github.com/gin-gonic/gin"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// writeEngineError maps engine and upstream failures to a status code.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrClosed):
		writeError(c, http.StatusServiceUnavailable, "map engine is shutting down")
	case errors.Is(err, engine.ErrNoSource):
		writeError(c, http.StatusNotImplemented, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "upstream timed out")
	case errors.Is(err, context.Canceled):
		writeError(c, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(c, http.StatusBadGateway, err.Error())
	}
}

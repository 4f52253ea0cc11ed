package handlers

import (
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/engine"
	"fleet-map-service/internal/services"
	"fleet-map-service/internal/taxonomy"
	"net/http"

	"github.com/gin-gonic/gin"
)

type VisibilityHandler struct {
	Engine *engine.Engine
}

func (h *VisibilityHandler) Get(c *gin.Context) {
	vis, err := h.Engine.Visibility(c.Request.Context())
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visibility": vis})
}

// Update merges {"factory": false, ...} into the visibility map.
// Unknown category names reject the whole request.
func (h *VisibilityHandler) Update(c *gin.Context) {
	var body map[string]bool
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}

	changes := make(map[domain.Category]bool, len(body))
	for name, visible := range body {
		cat, ok := taxonomy.ParseCategory(name)
		if !ok {
			writeError(c, http.StatusBadRequest, "unknown category "+name)
			return
		}
		changes[cat] = visible
	}

	res, err := h.Engine.SetVisibility(c.Request.Context(), changes)
	h.respond(c, res, err)
}

func (h *VisibilityHandler) ShowAll(c *gin.Context) {
	res, err := h.Engine.ShowAll(c.Request.Context())
	h.respond(c, res, err)
}

func (h *VisibilityHandler) HideAll(c *gin.Context) {
	res, err := h.Engine.HideAll(c.Request.Context())
	h.respond(c, res, err)
}

func (h *VisibilityHandler) respond(c *gin.Context, res services.ProjectResult, err error) {
	if err != nil {
		writeEngineError(c, err)
		return
	}
	vis, err := h.Engine.Visibility(c.Request.Context())
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visibility": vis, "projection": res})
}

package handlers

import (
	"fleet-map-service/internal/api/dto"
	"fleet-map-service/internal/engine"
	"fleet-map-service/internal/taxonomy"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type POIHandler struct {
	Engine *engine.Engine
	Log    *zap.Logger
	OnLoad func(engine.LoadReport, error)
}

func (h *POIHandler) List(c *gin.Context) {
	view, err := h.Engine.POIs(c.Request.Context())
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reload fetches a fresh batch. On failure the current markers stay.
func (h *POIHandler) Reload(c *gin.Context) {
	rep, err := h.Engine.LoadPOIs(c.Request.Context())
	if h.OnLoad != nil {
		h.OnLoad(rep, err)
	}
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Types lists backend type codes with their display category. When the
// source cannot answer, the built-in taxonomy is returned instead.
func (h *POIHandler) Types(c *gin.Context) {
	codes, err := h.Engine.POITypes(c.Request.Context())
	fallback := false
	if err != nil {
		h.Log.Warn("poi types unavailable, using built-in taxonomy", zap.Error(err))
		codes = taxonomy.KnownBackendCodes()
		fallback = true
	}

	out := dto.POITypesResponse{Types: make([]dto.POITypeResponse, 0, len(codes)), Fallback: fallback}
	for _, code := range codes {
		cat := taxonomy.ToInternalCategory(code)
		out.Types = append(out.Types, dto.POITypeResponse{Code: code, Category: cat, Label: taxonomy.Label(cat)})
	}
	c.JSON(http.StatusOK, out)
}

// Bounds returns the box around every POI currently drawn.
func (h *POIHandler) Bounds(c *gin.Context) {
	b, n, err := h.Engine.VisibleBounds(c.Request.Context())
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusOK, gin.H{"count": 0})
		return
	}
	c.JSON(http.StatusOK, dto.NewBoundsResponse(b, n))
}

func (h *POIHandler) Clear(c *gin.Context) {
	if err := h.Engine.ClearPOIs(c.Request.Context()); err != nil {
		writeEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"context"
	"errors"
	"fleet-map-service/internal/api/dto"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/engine"
	"fleet-map-service/internal/events"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type VehicleHandler struct {
	Engine    *engine.Engine
	OnRemoved func(context.Context, domain.VehicleID)
}

func (h *VehicleHandler) List(c *gin.Context) {
	vs, err := h.Engine.Vehicles(c.Request.Context())
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vs})
}

func (h *VehicleHandler) Create(c *gin.Context) {
	var req dto.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	v, err := req.ToDomain()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.Engine.RegisterVehicle(ctx, v, req.Assignment); err != nil {
		writeEngineError(c, err)
		return
	}
	info, _, err := h.Engine.Vehicle(ctx, v.ID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *VehicleHandler) Get(c *gin.Context) {
	id, ok := pathVehicleID(c)
	if !ok {
		return
	}
	info, found, err := h.Engine.Vehicle(c.Request.Context(), id)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if !found {
		writeError(c, http.StatusNotFound, "vehicle not tracked")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *VehicleHandler) Delete(c *gin.Context) {
	id, ok := pathVehicleID(c)
	if !ok {
		return
	}
	removed, err := h.Engine.RemoveVehicle(c.Request.Context(), id)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if !removed {
		writeError(c, http.StatusNotFound, "vehicle not tracked")
		return
	}
	if h.OnRemoved != nil {
		h.OnRemoved(c.Request.Context(), id)
	}
	c.Status(http.StatusNoContent)
}

// ApplyStatus takes the same payload as the event transports, minus the id.
func (h *VehicleHandler) ApplyStatus(c *gin.Context) {
	var req dto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ev, err := events.StatusEvent{
		VehicleID:  dto.VehicleIDJSON(c.Param("id")),
		Status:     req.Status,
		Position:   req.Position,
		Assignment: req.Assignment,
	}.Validate()
	if err != nil {
		if errors.Is(err, events.ErrMissingVehicleID) {
			writeError(c, http.StatusBadRequest, "invalid vehicle id")
			return
		}
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	applied, err := h.Engine.ApplyStatusChange(ctx, ev.VehicleID, ev.Status, ev.Data)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if !applied {
		writeError(c, http.StatusNotFound, "vehicle not tracked")
		return
	}
	info, _, err := h.Engine.Vehicle(ctx, ev.VehicleID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func pathVehicleID(c *gin.Context) (domain.VehicleID, bool) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid vehicle id")
		return 0, false
	}
	return domain.VehicleID(n), true
}

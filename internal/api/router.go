package api

import (
	"context"
	"fleet-map-service/internal/api/handlers"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/engine"
	"fleet-map-service/internal/platform/logger"
	"fleet-map-service/internal/platform/metrics"
	"fleet-map-service/internal/ports"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Deps struct {
	Engine     *engine.Engine
	Simulation ports.SimulationControl
	Metrics    *metrics.Metrics
	MapSocket  http.Handler
	Log        *zap.Logger

	// optional hooks
	OnPOILoad        func(engine.LoadReport, error)
	OnVehicleRemoved func(context.Context, domain.VehicleID)
}

// NewRouter wires HTTP handlers with their dependencies.
// Handlers stay unaware of concrete adapters.
func NewRouter(d Deps) *gin.Engine {
	log := logger.OrNop(d.Log).Named("http")

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(log))
	if d.Metrics != nil {
		r.Use(observe(d.Metrics))
	}

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	r.Use(cors.New(corsCfg))

	health := &handlers.HealthHandler{Engine: d.Engine}
	pois := &handlers.POIHandler{Engine: d.Engine, Log: log, OnLoad: d.OnPOILoad}
	vis := &handlers.VisibilityHandler{Engine: d.Engine}
	vehicles := &handlers.VehicleHandler{Engine: d.Engine, OnRemoved: d.OnVehicleRemoved}
	sim := &handlers.SimulationHandler{Control: d.Simulation}

	r.GET("/health", health.Health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	if d.MapSocket != nil {
		r.GET("/ws", gin.WrapH(d.MapSocket))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/pois", pois.List)
		v1.POST("/pois/reload", pois.Reload)
		v1.GET("/pois/types", pois.Types)
		v1.GET("/pois/bounds", pois.Bounds)
		v1.DELETE("/pois", pois.Clear)

		v1.GET("/visibility", vis.Get)
		v1.PUT("/visibility", vis.Update)
		v1.POST("/visibility/show-all", vis.ShowAll)
		v1.POST("/visibility/hide-all", vis.HideAll)

		v1.GET("/vehicles", vehicles.List)
		v1.POST("/vehicles", vehicles.Create)
		v1.GET("/vehicles/:id", vehicles.Get)
		v1.DELETE("/vehicles/:id", vehicles.Delete)
		v1.POST("/vehicles/:id/status", vehicles.ApplyStatus)

		v1.POST("/simulation/:action", sim.Command)
	}

	return r
}

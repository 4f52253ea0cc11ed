// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	StatusChangesTotal *prometheus.CounterVec
	VehiclesByStatus   *prometheus.GaugeVec

	POILoadsTotal  *prometheus.CounterVec
	POIsByCategory *prometheus.GaugeVec
	POIsRendered   prometheus.Gauge

	ObserverDropsTotal *prometheus.CounterVec

	mu       sync.Mutex
	statusOf map[int64]string
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		StatusChangesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_status_changes_total",
				Help: "Vehicle status changes applied, by previous and new status",
			},
			[]string{"from", "to"},
		),
		VehiclesByStatus: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleet_vehicles_by_status",
				Help: "Vehicles whose last applied status is the label value",
			},
			[]string{"status"},
		),

		POILoadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_poi_loads_total",
				Help: "POI batch loads, by result",
			},
			[]string{"result"},
		),
		POIsByCategory: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleet_pois_by_category",
				Help: "POIs in the current batch, by display category",
			},
			[]string{"category"},
		),
		POIsRendered: f.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_pois_rendered",
			Help: "POI markers drawn by the last projection",
		}),

		ObserverDropsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_observer_drops_total",
				Help: "Status changes an observer dropped because its queue was full",
			},
			[]string{"observer"},
		),

		statusOf: make(map[int64]string),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// StatusChanged records one applied status change for vehicle id.
func (m *Metrics) StatusChanged(id int64, from, to string) {
	m.StatusChangesTotal.WithLabelValues(from, to).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.statusOf[id]; ok {
		m.VehiclesByStatus.WithLabelValues(prev).Dec()
	}
	m.statusOf[id] = to
	m.VehiclesByStatus.WithLabelValues(to).Inc()
}

// VehicleRemoved forgets a vehicle's last status.
func (m *Metrics) VehicleRemoved(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.statusOf[id]; ok {
		m.VehiclesByStatus.WithLabelValues(prev).Dec()
		delete(m.statusOf, id)
	}
}

// POILoad records the outcome of a batch load. counts is nil on failure.
func (m *Metrics) POILoad(counts map[string]int, rendered int, err error) {
	if err != nil {
		m.POILoadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.POILoadsTotal.WithLabelValues("ok").Inc()
	for category, n := range counts {
		m.POIsByCategory.WithLabelValues(category).Set(float64(n))
	}
	m.POIsRendered.Set(float64(rendered))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, dur time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

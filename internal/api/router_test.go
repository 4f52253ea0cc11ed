package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fleet-map-service/internal/adapters/mapsurface"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/engine"
	"fleet-map-service/internal/platform/metrics"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	records  []domain.RawPOI
	typesErr error
}

func (s *fakeSource) FetchDisplayablePOIs(context.Context) ([]domain.RawPOI, error) {
	return s.records, nil
}

func (s *fakeSource) FetchPOITypes(context.Context) ([]string, error) {
	if s.typesErr != nil {
		return nil, s.typesErr
	}
	return []string{"FACTORY", "GAS_STATION"}, nil
}

type fakeSimulation struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (f *fakeSimulation) record(a string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return f.err
}

func (f *fakeSimulation) Start(context.Context) error { return f.record("start") }
func (f *fakeSimulation) Stop(context.Context) error  { return f.record("stop") }
func (f *fakeSimulation) Reset(context.Context) error { return f.record("reset") }

type fixture struct {
	router  *gin.Engine
	engine  *engine.Engine
	surface *mapsurface.RecordingSurface
	metrics *metrics.Metrics
	sim     *fakeSimulation
	removed []domain.VehicleID
}

func newFixture(t *testing.T, src *fakeSource) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		surface: mapsurface.NewRecordingSurface(),
		metrics: metrics.New(),
		sim:     &fakeSimulation{},
	}
	f.engine = engine.New(engine.Options{Source: src, Surface: f.surface})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- f.engine.Run(ctx) }()
	t.Cleanup(func() {
		f.engine.Close()
		cancel()
		select {
		case <-runErr:
		case <-time.After(2 * time.Second):
			t.Errorf("engine did not stop")
		}
	})

	f.router = NewRouter(Deps{
		Engine:     f.engine,
		Simulation: f.sim,
		Metrics:    f.metrics,
		OnVehicleRemoved: func(_ context.Context, id domain.VehicleID) {
			f.removed = append(f.removed, id)
		},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func scenario() []domain.RawPOI {
	return []domain.RawPOI{
		{ID: json.Number("1"), Name: "Chengdu Steel Works", PoiType: "FACTORY", Longitude: 104.0, Latitude: 30.6},
		{ID: json.Number("2"), Name: "Sinopec #12", PoiType: "GASSTATION", Longitude: 104.2, Latitude: 30.8},
		{ID: json.Number("3"), Name: "Mystery Yard", PoiType: "bogus", Longitude: 105.0, Latitude: 31.0},
	}
}

func TestHealthEchoesRequestID(t *testing.T) {
	f := newFixture(t, &fakeSource{})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestReloadListAndBounds(t *testing.T) {
	f := newFixture(t, &fakeSource{records: scenario()})

	w := f.do(t, http.MethodPost, "/api/v1/pois/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d: %s", w.Code, w.Body)
	}
	var rep engine.LoadReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Total != 3 || rep.Unclassified != 1 || rep.Projection.Rendered != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if f.surface.Live() != 2 {
		t.Fatalf("live markers = %d, want 2", f.surface.Live())
	}

	w = f.do(t, http.MethodGet, "/api/v1/pois", "")
	var view engine.POIView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Buckets[domain.CategoryFactory]) != 1 || view.Total != 3 {
		t.Fatalf("view = %+v", view)
	}

	w = f.do(t, http.MethodGet, "/api/v1/pois/bounds", "")
	var b struct {
		Count  int     `json:"count"`
		MinLng float64 `json:"minLng"`
		MaxLat float64 `json:"maxLat"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode bounds: %v", err)
	}
	if b.Count != 2 || b.MinLng != 104.0 || b.MaxLat != 30.8 {
		t.Fatalf("bounds = %+v", b)
	}

	w = f.do(t, http.MethodDelete, "/api/v1/pois", "")
	if w.Code != http.StatusNoContent || f.surface.Live() != 0 {
		t.Fatalf("clear status = %d, live = %d", w.Code, f.surface.Live())
	}
}

func TestTypesFallsBackToTaxonomy(t *testing.T) {
	f := newFixture(t, &fakeSource{typesErr: errors.New("backend down")})

	w := f.do(t, http.MethodGet, "/api/v1/pois/types", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Types []struct {
			Code     string `json:"code"`
			Category string `json:"category"`
		} `json:"types"`
		Fallback bool `json:"fallback"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Fallback || len(out.Types) == 0 {
		t.Fatalf("types = %+v", out)
	}
	for _, ty := range out.Types {
		if ty.Category == string(domain.CategoryUnknown) {
			t.Fatalf("built-in code %q classified as unknown", ty.Code)
		}
	}
}

func TestVisibilityUpdate(t *testing.T) {
	f := newFixture(t, &fakeSource{records: scenario()})
	f.do(t, http.MethodPost, "/api/v1/pois/reload", "")

	w := f.do(t, http.MethodPut, "/api/v1/visibility", `{"factory": false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if f.surface.Live() != 1 {
		t.Fatalf("live markers = %d, want 1", f.surface.Live())
	}

	w = f.do(t, http.MethodPut, "/api/v1/visibility", `{"spaceport": true}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown category status = %d, want 400", w.Code)
	}

	f.do(t, http.MethodPost, "/api/v1/visibility/hide-all", "")
	if f.surface.Live() != 0 {
		t.Fatalf("live after hide-all = %d, want 0", f.surface.Live())
	}
	f.do(t, http.MethodPost, "/api/v1/visibility/show-all", "")
	if f.surface.Live() != 2 {
		t.Fatalf("live after show-all = %d, want 2", f.surface.Live())
	}
}

func TestVehicleLifecycle(t *testing.T) {
	f := newFixture(t, &fakeSource{})

	w := f.do(t, http.MethodPost, "/api/v1/vehicles",
		`{"id": 7, "licensePlate": "川A12345", "maxLoadCapacity": 100, "maxVolumeCapacity": 10, "position": [104.06, 30.65]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	if f.surface.Live() != 1 {
		t.Fatalf("live markers = %d, want 1", f.surface.Live())
	}

	w = f.do(t, http.MethodPost, "/api/v1/vehicles/7/status",
		`{"status": "TRANSPORT_DRIVING", "assignment": {"startPOIName": "A", "endPOIName": "B", "currentLoad": 50, "currentVolume": 0}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status change = %d: %s", w.Code, w.Body)
	}
	var info struct {
		Status         string  `json:"status"`
		LoadPercentage float64 `json:"loadPercentage"`
		StatusText     string  `json:"statusText"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Status != "TRANSPORT_DRIVING" || info.LoadPercentage != 50 {
		t.Fatalf("vehicle = %+v", info)
	}
	if m := f.surface.Markers()[0]; !strings.HasSuffix(m.Title, info.StatusText) {
		t.Fatalf("marker title = %q, want suffix %q", m.Title, info.StatusText)
	}

	w = f.do(t, http.MethodDelete, "/api/v1/vehicles/7", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if len(f.removed) != 1 || f.removed[0] != 7 {
		t.Fatalf("removed hook = %v", f.removed)
	}
	if f.surface.Live() != 0 {
		t.Fatalf("live markers = %d, want 0", f.surface.Live())
	}
}

func TestVehicleStatusErrors(t *testing.T) {
	f := newFixture(t, &fakeSource{})

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"untracked", "/api/v1/vehicles/9/status", `{"status": "IDLE"}`, http.StatusNotFound},
		{"unknown status", "/api/v1/vehicles/9/status", `{"status": "FLYING"}`, http.StatusBadRequest},
		{"bad id", "/api/v1/vehicles/abc/status", `{"status": "IDLE"}`, http.StatusBadRequest},
		{"bad position", "/api/v1/vehicles/9/status", `{"status": "IDLE", "position": [1]}`, http.StatusBadRequest},
		{"missing status", "/api/v1/vehicles/9/status", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}

	if w := f.do(t, http.MethodGet, "/api/v1/vehicles/9", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get untracked = %d, want 404", w.Code)
	}
}

func TestSimulationCommands(t *testing.T) {
	f := newFixture(t, &fakeSource{})

	for _, a := range []string{"start", "stop", "reset"} {
		if w := f.do(t, http.MethodPost, "/api/v1/simulation/"+a, ""); w.Code != http.StatusAccepted {
			t.Fatalf("%s status = %d", a, w.Code)
		}
	}
	if got := strings.Join(f.sim.actions, ","); got != "start,stop,reset" {
		t.Fatalf("actions = %s", got)
	}

	if w := f.do(t, http.MethodPost, "/api/v1/simulation/pause", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown action status = %d, want 404", w.Code)
	}

	f.sim.err = errors.New("backend down")
	if w := f.do(t, http.MethodPost, "/api/v1/simulation/start", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("failing backend status = %d, want 502", w.Code)
	}
}

func TestClosedEngineIsUnavailable(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	f.engine.Close()

	if w := f.do(t, http.MethodGet, "/api/v1/vehicles", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRequestsAreCountedByRoute(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	f.do(t, http.MethodGet, "/api/v1/vehicles/42", "")
	f.do(t, http.MethodGet, "/api/v1/vehicles/43", "")

	got := testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/vehicles/:id", "404"))
	if got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}

	if w := f.do(t, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
}

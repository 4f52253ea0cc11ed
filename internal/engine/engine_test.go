package engine

import (
	"context"
	"errors"
	"fleet-map-service/internal/adapters/mapsurface"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/services"
	"sync"
	"testing"
	"time"
)

type staticSource struct {
	records []domain.RawPOI
	err     error
}

func (s *staticSource) FetchDisplayablePOIs(context.Context) ([]domain.RawPOI, error) {
	return s.records, s.err
}

func (s *staticSource) FetchPOITypes(context.Context) ([]string, error) {
	return []string{"FACTORY", "GAS_STATION"}, s.err
}

func batch() []domain.RawPOI {
	return []domain.RawPOI{
		{ID: "1", Name: "Chengdu Steel Works", PoiType: "FACTORY", Longitude: 104.0, Latitude: 30.6},
		{ID: "2", Name: "Sinopec #12", PoiType: "GASSTATION", Longitude: 104.2, Latitude: 30.8},
		{ID: "3", Name: "Mystery Yard", PoiType: "bogus", Longitude: 105.0, Latitude: 31.0},
	}
}

func startEngine(t *testing.T, opts Options) (*Engine, *mapsurface.RecordingSurface) {
	t.Helper()
	surface := mapsurface.NewRecordingSurface()
	opts.Surface = surface
	e := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	t.Cleanup(func() {
		e.Close()
		cancel()
		select {
		case <-runErr:
		case <-time.After(2 * time.Second):
			t.Errorf("engine did not stop")
		}
	})
	return e, surface
}

func TestEngineLoadAndVisibility(t *testing.T) {
	ctx := context.Background()
	e, surface := startEngine(t, Options{Source: &staticSource{records: batch()}})

	rep, err := e.LoadPOIs(ctx)
	if err != nil {
		t.Fatalf("LoadPOIs: %v", err)
	}
	if rep.Total != 3 || rep.Unclassified != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if surface.Live() != 2 {
		t.Fatalf("live markers = %d, want 2", surface.Live())
	}

	res, err := e.SetVisibility(ctx, map[domain.Category]bool{domain.CategoryFactory: false})
	if err != nil {
		t.Fatalf("SetVisibility: %v", err)
	}
	if res.Rendered != 1 || surface.Live() != 1 {
		t.Fatalf("rendered = %d, live = %d, want 1", res.Rendered, surface.Live())
	}

	vis, _ := e.Visibility(ctx)
	if vis[domain.CategoryFactory] || !vis[domain.CategoryGasStation] {
		t.Fatalf("visibility = %v", vis)
	}

	if _, err := e.HideAll(ctx); err != nil {
		t.Fatalf("HideAll: %v", err)
	}
	if surface.Live() != 0 {
		t.Fatalf("live markers after hide-all = %d", surface.Live())
	}
	if _, err := e.ShowAll(ctx); err != nil {
		t.Fatalf("ShowAll: %v", err)
	}
	if surface.Live() != 2 {
		t.Fatalf("live markers after show-all = %d", surface.Live())
	}
}

func TestEngineVisibleBounds(t *testing.T) {
	ctx := context.Background()
	e, _ := startEngine(t, Options{Source: &staticSource{records: batch()}})

	if _, n, _ := e.VisibleBounds(ctx); n != 0 {
		t.Fatalf("bounds before load cover %d POIs", n)
	}
	if _, err := e.LoadPOIs(ctx); err != nil {
		t.Fatalf("LoadPOIs: %v", err)
	}

	b, n, err := e.VisibleBounds(ctx)
	if err != nil {
		t.Fatalf("VisibleBounds: %v", err)
	}
	// unknown POI at 105,31 is not drawn
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if b.Min[0] != 104.0 || b.Max[0] != 104.2 || b.Min[1] != 30.6 || b.Max[1] != 30.8 {
		t.Fatalf("bound = %v", b)
	}
}

func TestEngineLoadFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{records: batch()}
	e, surface := startEngine(t, Options{Source: src})

	if _, err := e.LoadPOIs(ctx); err != nil {
		t.Fatalf("LoadPOIs: %v", err)
	}
	src.err = errors.New("backend down")
	if _, err := e.LoadPOIs(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if surface.Live() != 2 {
		t.Fatalf("live markers = %d, want 2", surface.Live())
	}
}

func TestEngineClearPOIsKeepsVehicles(t *testing.T) {
	ctx := context.Background()
	e, surface := startEngine(t, Options{Source: &staticSource{records: batch()}})

	e.LoadPOIs(ctx)
	e.RegisterVehicle(ctx, domain.Vehicle{ID: 1, LicensePlate: "A1", Position: &domain.Coordinates{Lon: 1, Lat: 1}}, nil)

	if err := e.ClearPOIs(ctx); err != nil {
		t.Fatalf("ClearPOIs: %v", err)
	}
	st, _ := e.Stats(ctx)
	if st.POIs != 0 || st.POIMarkers != 0 || st.VehicleMarkers != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if surface.Live() != 1 {
		t.Fatalf("live markers = %d, want 1", surface.Live())
	}
}

func TestEngineStatusChangeNotifiesObservers(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var got []services.StatusChange
	e, _ := startEngine(t, Options{Observers: []Observer{{
		Name: "test",
		Fn: func(c services.StatusChange) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, c)
			return nil
		},
	}}})

	v := domain.Vehicle{ID: 7, LicensePlate: "A7", MaxLoadCapacity: 100, Position: &domain.Coordinates{Lon: 104, Lat: 30}}
	if err := e.RegisterVehicle(ctx, v, nil); err != nil {
		t.Fatalf("RegisterVehicle: %v", err)
	}

	ok, err := e.ApplyStatusChange(ctx, 7, domain.StatusTransportDriving, services.StatusData{
		Assignment: &domain.Assignment{CurrentLoad: 50},
	})
	if err != nil || !ok {
		t.Fatalf("ApplyStatusChange = %v, %v", ok, err)
	}
	ok, _ = e.ApplyStatusChange(ctx, 8, domain.StatusIdle, services.StatusData{})
	if ok {
		t.Fatalf("unknown vehicle accepted")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Vehicle.LoadPercentage != 50 {
		t.Fatalf("changes = %+v", got)
	}
}

func TestEngineCloseClearsOnce(t *testing.T) {
	ctx := context.Background()
	e, surface := startEngine(t, Options{Source: &staticSource{records: batch()}})

	e.LoadPOIs(ctx)
	e.RegisterVehicle(ctx, domain.Vehicle{ID: 1, Position: &domain.Coordinates{}}, nil)
	markers := surface.Markers()

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	e.Close()

	if surface.Live() != 0 {
		t.Fatalf("live markers after close = %d", surface.Live())
	}
	for _, m := range markers {
		if n := surface.RemoveCount(m.Handle); n != 1 {
			t.Fatalf("marker %s released %d times, want 1", m.Handle, n)
		}
	}

	if _, err := e.Vehicles(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if _, err := e.LoadPOIs(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestEngineCloseWithoutRun(t *testing.T) {
	surface := mapsurface.NewRecordingSurface()
	e := New(Options{Surface: surface})

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Run after Close = %v, want ErrClosed", err)
	}
}

func TestEngineConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	e, _ := startEngine(t, Options{})

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id domain.VehicleID) {
			defer wg.Done()
			e.RegisterVehicle(ctx, domain.Vehicle{ID: id, Position: &domain.Coordinates{}}, nil)
			e.ApplyStatusChange(ctx, id, domain.StatusLoading, services.StatusData{})
		}(domain.VehicleID(i))
	}
	wg.Wait()

	vs, err := e.Vehicles(ctx)
	if err != nil {
		t.Fatalf("Vehicles: %v", err)
	}
	if len(vs) != 20 {
		t.Fatalf("vehicles = %d, want 20", len(vs))
	}
}

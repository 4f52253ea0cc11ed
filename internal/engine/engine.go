// Package engine owns the map state and serialises every mutation of it on
// a single goroutine.
package engine

import (
	"context"
	"errors"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/markers"
	"fleet-map-service/internal/platform/logger"
	"fleet-map-service/internal/platform/obs"
	"fleet-map-service/internal/ports"
	"fleet-map-service/internal/services"
	"fleet-map-service/internal/taxonomy"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrClosed   = errors.New("engine closed")
	ErrRunning  = errors.New("engine already running")
	ErrNoSource = errors.New("no poi source configured")
)

// Observer receives every applied status change.
type Observer struct {
	Name string
	Fn   func(services.StatusChange) error
}

type Options struct {
	Source     ports.POISource
	Surface    ports.MapSurface
	Icons      domain.IconSet
	Visibility map[domain.Category]bool
	Observers  []Observer
	Logger     *zap.Logger
}

type op struct {
	fn   func()
	err  error
	done chan struct{}
}

// Engine is the single owner of the marker registry, the POI buckets and the
// tracked vehicles. Public methods are safe for concurrent use; they hand a
// closure to the goroutine running Run and wait for it.
type Engine struct {
	ops  chan *op
	quit chan struct{}
	done chan struct{}

	mu       sync.Mutex
	started  bool
	closed   bool
	quitOnce sync.Once
	downOnce sync.Once

	source ports.POISource
	log    *zap.Logger

	// owned by the Run goroutine
	surface    ports.MapSurface
	reg        *markers.Registry
	notifier   *services.StatusNotifier
	tracker    *services.VehicleTracker
	result     services.ClassifyResult
	byID       map[string]domain.POI
	visibility map[domain.Category]bool
	icons      domain.IconSet
	projection services.ProjectResult
	loadedAt   time.Time
}

func New(opts Options) *Engine {
	log := logger.OrNop(opts.Logger).Named("engine")

	icons := opts.Icons
	if icons == nil {
		icons = services.DefaultPOIIcons()
	}
	visibility := services.DefaultVisibility()
	maps.Copy(visibility, opts.Visibility)

	reg := markers.NewRegistry(opts.Surface)
	notifier := services.NewStatusNotifier(log)
	for _, o := range opts.Observers {
		notifier.Subscribe(o.Name, o.Fn)
	}

	return &Engine{
		ops:        make(chan *op),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		source:     opts.Source,
		log:        log,
		surface:    opts.Surface,
		reg:        reg,
		notifier:   notifier,
		tracker:    services.NewVehicleTracker(reg, opts.Surface, notifier, log),
		result:     services.NewEmptyClassifyResult(),
		byID:       make(map[string]domain.POI),
		visibility: visibility,
		icons:      maps.Clone(icons),
	}
}

// Run processes operations until ctx is cancelled or Close is called, then
// tears the map down. It returns ErrRunning if called twice.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.started {
		e.mu.Unlock()
		return ErrRunning
	}
	e.started = true
	e.mu.Unlock()

	defer close(e.done)
	e.log.Info("engine started")

	for {
		select {
		case <-ctx.Done():
			e.markClosed()
			e.shutdown()
			return ctx.Err()
		case <-e.quit:
			e.shutdown()
			return nil
		case o := <-e.ops:
			e.exec(o)
		}
	}
}

// Close stops the engine and clears every marker. Only the first call has
// any effect.
func (e *Engine) Close() error {
	started := e.markClosed()
	if started {
		<-e.done
		return nil
	}
	e.shutdown()
	return nil
}

func (e *Engine) markClosed() (started bool) {
	e.mu.Lock()
	e.closed = true
	started = e.started
	e.mu.Unlock()

	e.quitOnce.Do(func() { close(e.quit) })
	return started
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) shutdown() {
	e.downOnce.Do(func() {
		n := e.reg.Len()
		e.reg.Clear()
		e.tracker.Clear()
		e.result = services.NewEmptyClassifyResult()
		clear(e.byID)
		e.log.Info("engine stopped", zap.Int("markers_released", n))
	})
}

func (e *Engine) exec(o *op) {
	defer close(o.done)
	if e.isClosed() {
		o.err = ErrClosed
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.err = fmt.Errorf("engine op panicked: %v", r)
			e.log.Error("engine op panicked", zap.Any("panic", r))
		}
	}()
	o.fn()
}

// do runs fn on the engine goroutine and waits for it.
func (e *Engine) do(ctx context.Context, fn func()) error {
	o := &op{fn: fn, done: make(chan struct{})}
	select {
	case e.ops <- o:
	case <-e.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-o.done
	return o.err
}

// LoadReport summarises one fetch + classify + project cycle.
type LoadReport struct {
	Total        int                     `json:"total"`
	Unclassified int                     `json:"unclassified"`
	Issues       int                     `json:"issues"`
	Counts       map[domain.Category]int `json:"counts"`
	Projection   services.ProjectResult  `json:"projection"`
}

// LoadPOIs fetches a batch from the source and replaces the rendered POIs.
//
// The fetch runs on the caller goroutine. Concurrent loads are not ordered:
// whichever batch reaches the engine last is the one shown.
func (e *Engine) LoadPOIs(ctx context.Context) (rep LoadReport, err error) {
	defer obs.Time(ctx, e.log, "engine.LoadPOIs")(&err)

	if e.source == nil {
		return LoadReport{}, ErrNoSource
	}
	if e.isClosed() {
		return LoadReport{}, ErrClosed
	}

	records, err := e.source.FetchDisplayablePOIs(ctx)
	if err != nil {
		return LoadReport{}, fmt.Errorf("load pois: fetch: %w", err)
	}
	return e.ReplacePOIs(ctx, records)
}

// ReplacePOIs classifies records and redraws the POI markers from them.
func (e *Engine) ReplacePOIs(ctx context.Context, records []domain.RawPOI) (LoadReport, error) {
	var rep LoadReport
	err := e.do(ctx, func() {
		res := services.ClassifyPOIs(records)
		e.result = res
		e.byID = make(map[string]domain.POI, res.Total())
		for _, pois := range res.Buckets {
			for _, p := range pois {
				e.byID[p.ID] = p
			}
		}
		e.loadedAt = time.Now()
		e.reproject()

		rep = LoadReport{
			Total:        res.Total(),
			Unclassified: res.UnclassifiedCount,
			Issues:       len(res.Issues),
			Counts:       res.Counts(),
			Projection:   e.projection,
		}
		if len(res.Issues) > 0 {
			e.log.Warn("poi batch had data issues", zap.Int("issues", len(res.Issues)))
		}
		e.log.Info("pois loaded",
			zap.Int("total", rep.Total),
			zap.Int("unclassified", rep.Unclassified),
			zap.Int("rendered", e.projection.Rendered),
		)
	})
	return rep, err
}

// POITypes returns the backend taxonomy codes.
func (e *Engine) POITypes(ctx context.Context) ([]string, error) {
	if e.source == nil {
		return nil, ErrNoSource
	}
	types, err := e.source.FetchPOITypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("poi types: fetch: %w", err)
	}
	return types, nil
}

// POIView is a detached copy of the classified batch.
type POIView struct {
	Buckets      map[domain.Category][]domain.POI `json:"buckets"`
	Counts       map[domain.Category]int          `json:"counts"`
	Total        int                              `json:"total"`
	Unclassified int                              `json:"unclassified"`
	Issues       []services.ClassifyIssue         `json:"issues"`
	Projection   services.ProjectResult           `json:"projection"`
	LoadedAt     time.Time                        `json:"loadedAt"`
}

func (e *Engine) POIs(ctx context.Context) (POIView, error) {
	var v POIView
	err := e.do(ctx, func() {
		buckets := make(map[domain.Category][]domain.POI, len(e.result.Buckets))
		for c, pois := range e.result.Buckets {
			buckets[c] = append([]domain.POI{}, pois...)
		}
		v = POIView{
			Buckets:      buckets,
			Counts:       e.result.Counts(),
			Total:        e.result.Total(),
			Unclassified: e.result.UnclassifiedCount,
			Issues:       append([]services.ClassifyIssue{}, e.result.Issues...),
			Projection:   e.projection,
			LoadedAt:     e.loadedAt,
		}
	})
	return v, err
}

// ClearPOIs drops every bucket and POI marker. Vehicles are untouched.
func (e *Engine) ClearPOIs(ctx context.Context) error {
	return e.do(ctx, func() {
		n := e.reg.ClearKind(markers.KindPOI)
		e.result = services.NewEmptyClassifyResult()
		clear(e.byID)
		e.projection = services.ProjectResult{}
		e.log.Info("pois cleared", zap.Int("markers_released", n))
	})
}

// SetVisibility merges changes into the visibility map and redraws.
func (e *Engine) SetVisibility(ctx context.Context, changes map[domain.Category]bool) (services.ProjectResult, error) {
	var res services.ProjectResult
	err := e.do(ctx, func() {
		maps.Copy(e.visibility, changes)
		e.reproject()
		res = e.projection
	})
	return res, err
}

func (e *Engine) ShowAll(ctx context.Context) (services.ProjectResult, error) {
	return e.SetVisibility(ctx, allCategories(true))
}

func (e *Engine) HideAll(ctx context.Context) (services.ProjectResult, error) {
	return e.SetVisibility(ctx, allCategories(false))
}

func (e *Engine) Visibility(ctx context.Context) (map[domain.Category]bool, error) {
	var out map[domain.Category]bool
	err := e.do(ctx, func() { out = maps.Clone(e.visibility) })
	return out, err
}

// SetIcons replaces the POI icon set and redraws.
func (e *Engine) SetIcons(ctx context.Context, icons domain.IconSet) (services.ProjectResult, error) {
	var res services.ProjectResult
	err := e.do(ctx, func() {
		e.icons = maps.Clone(icons)
		e.reproject()
		res = e.projection
	})
	return res, err
}

func (e *Engine) reproject() {
	e.projection = services.ProjectPOIs(e.reg, e.surface, e.result.Buckets, e.visibility, e.icons, e.log)
}

func allCategories(v bool) map[domain.Category]bool {
	out := make(map[domain.Category]bool)
	for _, c := range taxonomy.AllCategories() {
		out[c] = v
	}
	return out
}

// RegisterVehicle starts tracking v, replacing any vehicle with the same id.
func (e *Engine) RegisterVehicle(ctx context.Context, v domain.Vehicle, assignment *domain.Assignment) error {
	return e.do(ctx, func() { e.tracker.Track(v, assignment) })
}

func (e *Engine) RemoveVehicle(ctx context.Context, id domain.VehicleID) (bool, error) {
	var ok bool
	err := e.do(ctx, func() { ok = e.tracker.Untrack(id) })
	return ok, err
}

// ApplyStatusChange applies one backend status event. It reports false when
// the vehicle is not tracked.
func (e *Engine) ApplyStatusChange(ctx context.Context, id domain.VehicleID, status domain.VehicleStatus, data services.StatusData) (bool, error) {
	var ok bool
	err := e.do(ctx, func() { ok = e.tracker.ApplyStatusChange(id, status, data) })
	return ok, err
}

func (e *Engine) Vehicle(ctx context.Context, id domain.VehicleID) (services.VehicleInfo, bool, error) {
	var (
		info services.VehicleInfo
		ok   bool
	)
	err := e.do(ctx, func() { info, ok = e.tracker.Vehicle(id) })
	return info, ok, err
}

func (e *Engine) Vehicles(ctx context.Context) ([]domain.VehicleSnapshot, error) {
	var out []domain.VehicleSnapshot
	err := e.do(ctx, func() { out = e.tracker.Vehicles() })
	return out, err
}

// Subscribe adds a status change observer.
func (e *Engine) Subscribe(ctx context.Context, name string, fn func(services.StatusChange) error) error {
	return e.do(ctx, func() { e.notifier.Subscribe(name, fn) })
}

type Stats struct {
	POIs           int `json:"pois"`
	POIMarkers     int `json:"poiMarkers"`
	Vehicles       int `json:"vehicles"`
	VehicleMarkers int `json:"vehicleMarkers"`
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := e.do(ctx, func() {
		s = Stats{
			POIs:           e.result.Total(),
			POIMarkers:     e.reg.CountKind(markers.KindPOI),
			Vehicles:       e.tracker.Len(),
			VehicleMarkers: e.reg.CountKind(markers.KindVehicle),
		}
	})
	return s, err
}

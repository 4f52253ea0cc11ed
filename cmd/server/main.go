package main

import (
	"context"
	"errors"
	"fleet-map-service/internal/adapters/backend"
	"fleet-map-service/internal/adapters/cache"
	"fleet-map-service/internal/adapters/mapsurface"
	"fleet-map-service/internal/adapters/repositories"
	"fleet-map-service/internal/api"
	"fleet-map-service/internal/config"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/engine"
	"fleet-map-service/internal/events"
	"fleet-map-service/internal/observers"
	"fleet-map-service/internal/platform/db"
	"fleet-map-service/internal/platform/logger"
	"fleet-map-service/internal/platform/metrics"
	"fleet-map-service/internal/ports"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// main is the application composition root.
// It wires concrete adapters (backend HTTP or Postgres, SQLite snapshot,
// websocket map, Redis or AMQP events) behind ports and starts the HTTP server.
func main() {
	cfg, loader, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}

	log, err := logger.New("fleet-map-service", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		stdlog.Fatal(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, loader, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, loader *config.Loader, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()

	var sim ports.SimulationControl
	client, err := backend.NewClient(cfg.BackendURL, log)
	if err != nil {
		log.Warn("backend client disabled", zap.Error(err))
	} else {
		sim = backend.NewHTTPSimulationControl(client)
	}

	source, closeSource, err := openSource(ctx, cfg, client, log)
	if err != nil {
		return err
	}
	defer closeSource()

	display, err := loader.Display()
	if err != nil {
		return err
	}

	hub := mapsurface.NewHub(log)
	surface := mapsurface.NewWSSurface(hub, log)

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	goRun(func() { hub.Run(ctx) })

	obs := []engine.Observer{
		{Name: "metrics", Fn: observers.Metrics(m)},
		{Name: "panel", Fn: observers.PanelFeed(surface)},
	}

	var snapshots *observers.RedisSnapshot
	var rdb *redis.Client
	if cfg.EventTransport == config.TransportRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		snapshots = observers.NewRedisSnapshot(rdb, cfg.RedisKeyPrefix, cfg.RedisSnapshotTTL, m, log)
		obs = append(obs, engine.Observer{Name: "redis_snapshot", Fn: snapshots.Observe})
		goRun(func() { snapshots.Run(ctx) })
	}

	eng := engine.New(engine.Options{
		Source:     source,
		Surface:    surface,
		Icons:      display.Icons,
		Visibility: display.Visibility,
		Observers:  obs,
		Logger:     log,
	})
	goRun(func() {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("engine stopped", zap.Error(err))
		}
	})

	onLoad := poiLoadRecorder(m)
	reload := func() {
		rep, err := eng.LoadPOIs(ctx)
		onLoad(rep, err)
		if err != nil {
			log.Warn("poi load failed, keeping current markers", zap.Error(err))
		}
	}
	reload()

	if cfg.ReloadInterval > 0 {
		goRun(func() {
			t := time.NewTicker(cfg.ReloadInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					reload()
				}
			}
		})
	}

	loader.Watch(func(d config.Display, err error) {
		if err != nil {
			log.Warn("config reload rejected", zap.Error(err))
			return
		}
		if _, err := eng.SetIcons(ctx, d.Icons); err != nil {
			log.Warn("apply icons failed", zap.Error(err))
		}
		if _, err := eng.SetVisibility(ctx, d.Visibility); err != nil {
			log.Warn("apply visibility failed", zap.Error(err))
		}
		log.Info("display config reloaded")
	})

	switch cfg.EventTransport {
	case config.TransportRedis:
		consumer := events.NewRedisConsumer(rdb, cfg.RedisStatusChannel, eng, log)
		goRun(func() { logConsumerExit(log, consumer.Run(ctx)) })
	case config.TransportAMQP:
		consumer := events.NewAMQPConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, eng, log)
		goRun(func() { logConsumerExit(log, consumer.Run(ctx)) })
	}

	router := api.NewRouter(api.Deps{
		Engine:     eng,
		Simulation: sim,
		Metrics:    m,
		MapSocket:  surface,
		Log:        log,
		OnPOILoad:  onLoad,
		OnVehicleRemoved: func(ctx context.Context, id domain.VehicleID) {
			m.VehicleRemoved(int64(id))
			if snapshots != nil {
				if err := snapshots.Forget(ctx, id); err != nil {
					log.Warn("forget vehicle snapshot failed", zap.Int64("vehicle_id", int64(id)), zap.Error(err))
				}
			}
		},
	})

	// WriteTimeout covers slow backend fetches on reload; websocket writes
	// set their own deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		stop()
		eng.Close()
		wg.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := eng.Close(); err != nil {
		log.Warn("engine close", zap.Error(err))
	}
	wg.Wait()
	return nil
}

// openSource picks the POI source and, when SNAPSHOT_DB_PATH is set, wraps it
// with the SQLite snapshot fallback.
func openSource(ctx context.Context, cfg config.Config, client *backend.Client, log *zap.Logger) (ports.POISource, func(), error) {
	var (
		source  ports.POISource
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.POISource {
	case config.SourcePostgres:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		source = repositories.NewPgPOIRepository(pool, log)
	default:
		if client == nil {
			return nil, nil, errors.New("open poi source: backend client unavailable")
		}
		source = backend.NewHTTPPOISource(client)
	}

	if cfg.SnapshotDBPath == "" {
		return source, closeAll, nil
	}

	sqlDB, err := db.OpenSQLite(cfg.SnapshotDBPath)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = sqlDB.Close() })
	if err := cache.InitSnapshotSchema(sqlDB); err != nil {
		closeAll()
		return nil, nil, err
	}
	return cache.NewSnapshotPOISource(source, sqlDB, log), closeAll, nil
}

func poiLoadRecorder(m *metrics.Metrics) func(engine.LoadReport, error) {
	return func(rep engine.LoadReport, err error) {
		if err != nil {
			m.POILoad(nil, 0, err)
			return
		}
		counts := make(map[string]int, len(rep.Counts))
		for c, n := range rep.Counts {
			counts[c.String()] = n
		}
		m.POILoad(counts, rep.Projection.Rendered, nil)
	}
}

func logConsumerExit(log *zap.Logger, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("status consumer stopped", zap.Error(err))
	}
}

package observers

import (
	"context"
	"encoding/json"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/platform/metrics"
	"fleet-map-service/internal/services"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const snapshotObserverName = "redis_snapshot"

// RedisSnapshot caches the latest snapshot of every vehicle in Redis under
// "<prefix>:vehicle:<id>" so other services can read fleet state.
//
// Observe never blocks: writes are queued for the worker started by Run and
// dropped with a warning when the queue is full.
type RedisSnapshot struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	queue   chan domain.VehicleSnapshot
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewRedisSnapshot(rdb *redis.Client, prefix string, ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *RedisSnapshot {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisSnapshot{
		rdb:     rdb,
		prefix:  prefix,
		ttl:     ttl,
		queue:   make(chan domain.VehicleSnapshot, 256),
		metrics: m,
		log:     log.Named(snapshotObserverName),
	}
}

func (r *RedisSnapshot) Key(id domain.VehicleID) string {
	return fmt.Sprintf("%s:vehicle:%s", r.prefix, id)
}

// Observe is the notifier callback.
func (r *RedisSnapshot) Observe(c services.StatusChange) error {
	select {
	case r.queue <- c.Vehicle:
	default:
		if r.metrics != nil {
			r.metrics.ObserverDropsTotal.WithLabelValues(snapshotObserverName).Inc()
		}
		r.log.Warn("snapshot queue full, dropping write", zap.Int64("vehicle_id", int64(c.VehicleID)))
	}
	return nil
}

// Run writes queued snapshots until ctx is cancelled.
func (r *RedisSnapshot) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-r.queue:
			if err := r.write(ctx, v); err != nil {
				r.log.Warn("cache vehicle snapshot failed", zap.Int64("vehicle_id", int64(v.ID)), zap.Error(err))
			}
		}
	}
}

func (r *RedisSnapshot) write(ctx context.Context, v domain.VehicleSnapshot) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, r.Key(v.ID), data, r.ttl)
	pipe.HSet(ctx, r.prefix+":vehicles:status", v.ID.String(), v.Status.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// Get reads a cached snapshot. The bool is false when none is cached.
func (r *RedisSnapshot) Get(ctx context.Context, id domain.VehicleID) (domain.VehicleSnapshot, bool, error) {
	data, err := r.rdb.Get(ctx, r.Key(id)).Bytes()
	if err == redis.Nil {
		return domain.VehicleSnapshot{}, false, nil
	}
	if err != nil {
		return domain.VehicleSnapshot{}, false, fmt.Errorf("get snapshot: %w", err)
	}

	var v domain.VehicleSnapshot
	if err := json.Unmarshal(data, &v); err != nil {
		return domain.VehicleSnapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return v, true, nil
}

// Forget removes a vehicle's cached snapshot.
func (r *RedisSnapshot) Forget(ctx context.Context, id domain.VehicleID) error {
	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, r.Key(id))
	pipe.HDel(ctx, r.prefix+":vehicles:status", id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("forget snapshot: %w", err)
	}
	return nil
}

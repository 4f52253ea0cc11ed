package observers

import (
	"context"
	"encoding/json"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/platform/metrics"
	"fleet-map-service/internal/services"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

func change(id domain.VehicleID, from, to domain.VehicleStatus) services.StatusChange {
	return services.StatusChange{
		VehicleID: id,
		OldStatus: from,
		NewStatus: to,
		Vehicle:   domain.VehicleSnapshot{ID: id, LicensePlate: "A1", Status: to, LoadPercentage: 50},
		At:        time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestRedisSnapshotWritesInBackground(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	obs := NewRedisSnapshot(rdb, "fleet", 10*time.Minute, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go obs.Run(ctx)

	if err := obs.Observe(change(7, domain.StatusIdle, domain.StatusLoading)); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	var (
		got domain.VehicleSnapshot
		ok  bool
	)
	deadline := time.Now().Add(2 * time.Second)
	for !ok {
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never written")
		}
		var err error
		got, ok, err = obs.Get(ctx, 7)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got.Status != domain.StatusLoading || got.LoadPercentage != 50 {
		t.Fatalf("snapshot = %+v", got)
	}
	if ttl := mr.TTL(obs.Key(7)); ttl != 10*time.Minute {
		t.Fatalf("ttl = %v, want 10m", ttl)
	}
	if st := mr.HGet("fleet:vehicles:status", "7"); st != "LOADING" {
		t.Fatalf("status hash = %q", st)
	}

	if err := obs.Forget(ctx, 7); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok, _ := obs.Get(ctx, 7); ok {
		t.Fatalf("snapshot still cached after Forget")
	}
}

func TestRedisSnapshotDropsWhenQueueFull(t *testing.T) {
	m := metrics.New()
	obs := NewRedisSnapshot(nil, "fleet", time.Minute, m, nil)

	// no worker running
	for i := 0; i < cap(obs.queue)+3; i++ {
		obs.Observe(change(1, domain.StatusIdle, domain.StatusLoading))
	}

	if got := testutil.ToFloat64(m.ObserverDropsTotal.WithLabelValues(snapshotObserverName)); got != 3 {
		t.Fatalf("drops = %v, want 3", got)
	}
}

type capturePublisher struct {
	msgType string
	payload []byte
}

func (c *capturePublisher) Publish(msgType string, payload any) error {
	c.msgType = msgType
	b, err := json.Marshal(payload)
	c.payload = b
	return err
}

func TestPanelFeed(t *testing.T) {
	p := &capturePublisher{}
	if err := PanelFeed(p)(change(3, domain.StatusLoading, domain.StatusTransportDriving)); err != nil {
		t.Fatalf("PanelFeed: %v", err)
	}
	if p.msgType != MsgVehicleStatus {
		t.Fatalf("type = %q", p.msgType)
	}

	var got struct {
		VehicleID  int64  `json:"vehicleId"`
		NewStatus  string `json:"newStatus"`
		StatusText string `json:"statusText"`
	}
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.VehicleID != 3 || got.NewStatus != "TRANSPORT_DRIVING" || got.StatusText != "In transit" {
		t.Fatalf("payload = %s", p.payload)
	}
}

func TestMetricsObserver(t *testing.T) {
	m := metrics.New()
	Metrics(m)(change(1, domain.StatusIdle, domain.StatusBreakdown))

	if got := testutil.ToFloat64(m.VehiclesByStatus.WithLabelValues("BREAKDOWN")); got != 1 {
		t.Fatalf("BREAKDOWN = %v, want 1", got)
	}
}

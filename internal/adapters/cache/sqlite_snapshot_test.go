package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/platform/db"
	"path/filepath"
	"testing"
)

type flakySource struct {
	records []domain.RawPOI
	types   []string
	err     error
}

func (f *flakySource) FetchDisplayablePOIs(context.Context) ([]domain.RawPOI, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *flakySource) FetchPOITypes(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.types, nil
}

func openSnapshot(t *testing.T, upstream *flakySource) *SnapshotPOISource {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := InitSnapshotSchema(sqlDB); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return NewSnapshotPOISource(upstream, sqlDB, nil)
}

func TestSnapshotServesLastGoodBatch(t *testing.T) {
	ctx := context.Background()
	upstream := &flakySource{
		records: []domain.RawPOI{
			{ID: json.Number("1"), Name: "Depot", PoiType: "WAREHOUSE", Longitude: json.Number("104.06"), Latitude: "30.65"},
			{ID: "2", Name: "Pump", PoiType: "GAS_STATION", Longitude: nil, Latitude: nil},
		},
		types: []string{"WAREHOUSE", "GAS_STATION"},
	}
	src := openSnapshot(t, upstream)

	if _, err := src.FetchDisplayablePOIs(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := src.FetchPOITypes(ctx); err != nil {
		t.Fatalf("first types fetch: %v", err)
	}

	upstream.err = errors.New("backend down")

	got, err := src.FetchDisplayablePOIs(ctx)
	if err != nil {
		t.Fatalf("fetch with upstream down: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if id, ok := got[0].ID.(json.Number); !ok || id.String() != "1" {
		t.Fatalf("id = %#v", got[0].ID)
	}
	if lat, ok := got[0].Latitude.(string); !ok || lat != "30.65" {
		t.Fatalf("latitude = %#v", got[0].Latitude)
	}
	if got[1].Longitude != nil {
		t.Fatalf("longitude = %#v, want nil", got[1].Longitude)
	}

	types, err := src.FetchPOITypes(ctx)
	if err != nil || len(types) != 2 || types[0] != "WAREHOUSE" {
		t.Fatalf("types = %v, %v", types, err)
	}
}

func TestSnapshotWithoutHistoryReturnsUpstreamError(t *testing.T) {
	upErr := errors.New("backend down")
	src := openSnapshot(t, &flakySource{err: upErr})

	if _, err := src.FetchDisplayablePOIs(context.Background()); !errors.Is(err, upErr) {
		t.Fatalf("err = %v, want upstream error", err)
	}
}

func TestSnapshotEmptyBatchIsStillASnapshot(t *testing.T) {
	ctx := context.Background()
	upstream := &flakySource{records: []domain.RawPOI{}}
	src := openSnapshot(t, upstream)

	if _, err := src.FetchDisplayablePOIs(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	upstream.err = errors.New("down")

	got, err := src.FetchDisplayablePOIs(ctx)
	if err != nil {
		t.Fatalf("fetch with upstream down: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("records = %d, want 0", len(got))
	}
}

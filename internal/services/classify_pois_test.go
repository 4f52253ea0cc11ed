package services

import (
	"encoding/json"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/taxonomy"
	"testing"
)

func scenarioRecords() []domain.RawPOI {
	return []domain.RawPOI{
		{ID: json.Number("1"), Name: "Chengdu Steel Works", PoiType: "FACTORY", Longitude: 104.01, Latitude: 30.61},
		{ID: json.Number("2"), Name: "Sinopec #12", PoiType: "GASSTATION", Longitude: 104.07, Latitude: 30.66},
		{ID: json.Number("3"), Name: "Mystery Yard", PoiType: "bogus", Longitude: 104.10, Latitude: 30.70},
	}
}

func TestClassifyPOIsScenario(t *testing.T) {
	res := ClassifyPOIs(scenarioRecords())

	want := map[domain.Category]int{
		domain.CategoryFactory:     1,
		domain.CategoryGasStation:  1,
		domain.CategoryUnknown:     1,
		domain.CategoryWarehouse:   0,
		domain.CategoryMaintenance: 0,
		domain.CategoryRestArea:    0,
		domain.CategoryTransport:   0,
	}
	for c, n := range want {
		pois, ok := res.Buckets[c]
		if !ok {
			t.Fatalf("bucket %q missing", c)
		}
		if len(pois) != n {
			t.Errorf("bucket %q has %d POIs, want %d", c, len(pois), n)
		}
	}

	if res.UnclassifiedCount != 1 {
		t.Fatalf("unclassified = %d, want 1", res.UnclassifiedCount)
	}
	if len(res.Issues) != 0 {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
}

func TestClassifyPOIsKeepsEveryRecord(t *testing.T) {
	records := []domain.RawPOI{
		{ID: "a", Name: "Depot", PoiType: "WAREHOUSE", Longitude: "104.2", Latitude: "30.1"},
		{ID: 17.0, Name: "", PoiType: "REST_AREA", Longitude: nil, Latitude: "north"},
		{ID: nil, Name: "No id", PoiType: "", Longitude: json.Number("104"), Latitude: json.Number("x")},
		{ID: "d", Name: "Garage", PoiType: "maintenance_center", Longitude: 104.3, Latitude: 30.3},
	}

	res := ClassifyPOIs(records)

	if res.Total() != len(records) {
		t.Fatalf("total = %d, want %d", res.Total(), len(records))
	}
	for c := range res.Buckets {
		if _, ok := taxonomy.ParseCategory(string(c)); !ok {
			t.Fatalf("bucket key %q is not a category", c)
		}
	}
	if len(res.Buckets) != len(taxonomy.AllCategories()) {
		t.Fatalf("bucket count = %d, want %d", len(res.Buckets), len(taxonomy.AllCategories()))
	}
}

func TestClassifyPOIsCoercion(t *testing.T) {
	records := []domain.RawPOI{
		{ID: 17.0, Name: "", PoiType: "REST_AREA", Longitude: nil, Latitude: "north"},
		{ID: "w", Name: "Depot", PoiType: "WAREHOUSE", Longitude: " 104.25 ", Latitude: json.Number("30.5")},
	}

	res := ClassifyPOIs(records)

	rest := res.Buckets[domain.CategoryRestArea]
	if len(rest) != 1 {
		t.Fatalf("rest area bucket = %d, want 1", len(rest))
	}
	got := rest[0]
	if got.ID != "17" {
		t.Errorf("id = %q, want 17", got.ID)
	}
	if got.Name != "POI 17" {
		t.Errorf("name = %q, want fallback", got.Name)
	}
	if got.Position.Lon != 0 || got.Position.Lat != 0 {
		t.Errorf("position = %+v, want zero fallback", got.Position)
	}

	wh := res.Buckets[domain.CategoryWarehouse][0]
	if wh.Position.Lon != 104.25 || wh.Position.Lat != 30.5 {
		t.Errorf("warehouse position = %+v", wh.Position)
	}

	fields := map[string]bool{}
	for _, is := range res.Issues {
		fields[is.Field] = true
	}
	for _, f := range []string{"name", "longitude", "latitude"} {
		if !fields[f] {
			t.Errorf("missing issue for field %q in %+v", f, res.Issues)
		}
	}
}

func TestClassifyPOIsEmpty(t *testing.T) {
	res := ClassifyPOIs(nil)
	if res.Total() != 0 || res.UnclassifiedCount != 0 {
		t.Fatalf("empty batch produced %+v", res)
	}
	if len(res.Buckets) != 7 {
		t.Fatalf("bucket count = %d, want 7", len(res.Buckets))
	}
}

func TestClassifyPOIsRenamesDuplicateIDs(t *testing.T) {
	records := []domain.RawPOI{
		{ID: "7", Name: "North Plant", PoiType: "FACTORY", Longitude: 104.0, Latitude: 30.6},
		{ID: "7", Name: "Sinopec #7", PoiType: "GASSTATION", Longitude: 104.1, Latitude: 30.7},
		{ID: "7#1", Name: "Odd Id Depot", PoiType: "WAREHOUSE", Longitude: 104.2, Latitude: 30.8},
	}

	res := ClassifyPOIs(records)

	if res.Total() != 3 {
		t.Fatalf("total = %d, want 3", res.Total())
	}
	if got := res.Buckets[domain.CategoryFactory][0].ID; got != "7" {
		t.Fatalf("first id = %q, want 7", got)
	}
	if got := res.Buckets[domain.CategoryGasStation][0].ID; got != "7#1" {
		t.Fatalf("duplicate id = %q, want 7#1", got)
	}
	if got := res.Buckets[domain.CategoryWarehouse][0].ID; got != "7#1#2" {
		t.Fatalf("colliding id = %q, want 7#1#2", got)
	}

	dups := 0
	for _, is := range res.Issues {
		if is.Field == "id" && is.Reason == "duplicate" {
			dups++
		}
	}
	if dups != 2 {
		t.Fatalf("duplicate issues = %d, want 2: %+v", dups, res.Issues)
	}
}

func TestClassifyPOIsLargeFloatIDs(t *testing.T) {
	records := []domain.RawPOI{
		{ID: 1e20, Name: "A", PoiType: "FACTORY"},
		{ID: 2e20, Name: "B", PoiType: "FACTORY"},
		{ID: 42.0, Name: "C", PoiType: "FACTORY"},
	}

	res := ClassifyPOIs(records)
	got := res.Buckets[domain.CategoryFactory]
	want := []string{"100000000000000000000", "200000000000000000000", "42"}
	for i, w := range want {
		if got[i].ID != w {
			t.Errorf("id[%d] = %q, want %q", i, got[i].ID, w)
		}
	}
	if len(res.Issues) != 0 {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
}

package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InitSchema creates the pois table used by PgPOIRepository.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("init schema: pool is nil")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	createPOIsQuery := `
	CREATE TABLE IF NOT EXISTS pois (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		poi_type TEXT NOT NULL,
		longitude DOUBLE PRECISION,
		latitude DOUBLE PRECISION,
		address TEXT,
		tel TEXT,
		displayable BOOLEAN NOT NULL DEFAULT TRUE
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_pois_poi_type ON pois(poi_type);
	`

	statements := []string{
		createPOIsQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type POISeed struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PoiType     string   `json:"poiType"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
	Address     string   `json:"address"`
	Tel         string   `json:"tel"`
	Displayable *bool    `json:"displayable"`
}

// ParseSeed validates a JSON array of POI seeds.
func ParseSeed(b []byte) ([]POISeed, error) {
	var data []POISeed
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("seed pois: parse json: %w", err)
	}

	seen := make(map[string]struct{}, len(data))
	rows := make([]POISeed, 0, len(data))
	for i, item := range data {
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return nil, fmt.Errorf("seed pois: item at index %d: id cannot be empty", i+1)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("seed pois: item at index %d: duplicate id %q", i+1, item.ID)
		}
		seen[item.ID] = struct{}{}

		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return nil, fmt.Errorf("seed pois: item %q: name cannot be empty", item.ID)
		}
		item.PoiType = strings.TrimSpace(item.PoiType)
		if item.Displayable == nil {
			t := true
			item.Displayable = &t
		}
		rows = append(rows, item)
	}
	return rows, nil
}

// SeedFromJSON upserts the POIs listed in a JSON file.
func SeedFromJSON(ctx context.Context, pool *pgxpool.Pool, jsonPath string) (int, error) {
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed pois: read %q: %w", jsonPath, err)
	}

	rows, err := ParseSeed(b)
	if err != nil {
		return 0, err
	}

	query := `
	INSERT INTO pois (id, name, poi_type, longitude, latitude, address, tel, displayable)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		poi_type = EXCLUDED.poi_type,
		longitude = EXCLUDED.longitude,
		latitude = EXCLUDED.latitude,
		address = EXCLUDED.address,
		tel = EXCLUDED.tel,
		displayable = EXCLUDED.displayable;
	`

	batch := &pgx.Batch{}
	for _, p := range rows {
		batch.Queue(query, p.ID, p.Name, p.PoiType, p.Longitude, p.Latitude, p.Address, p.Tel, *p.Displayable)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed pois: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	for _, p := range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("seed pois: insert id=%s: %w", p.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("seed pois: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("seed pois: commit tx: %w", err)
	}

	return len(rows), nil
}

package repositories

import (
	"context"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/platform/obs"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PgPOIRepository reads displayable POIs straight from the backend's
// Postgres database. It implements ports.POISource.
type PgPOIRepository struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPgPOIRepository(pool *pgxpool.Pool, log *zap.Logger) *PgPOIRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &PgPOIRepository{pool: pool, log: log.Named("pg_pois")}
}

func (r *PgPOIRepository) FetchDisplayablePOIs(ctx context.Context) (_ []domain.RawPOI, err error) {
	defer obs.Time(ctx, r.log, "pg.FetchDisplayablePOIs")(&err)

	query := `
		SELECT id, name, poi_type, longitude, latitude, address, tel
		FROM pois
		WHERE displayable
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch pois: query pois table: %w", err)
	}
	defer rows.Close()

	var out []domain.RawPOI
	for rows.Next() {
		var (
			id, name, poiType string
			lon, lat          *float64
			address, tel      *string
		)
		if err := rows.Scan(&id, &name, &poiType, &lon, &lat, &address, &tel); err != nil {
			return nil, fmt.Errorf("fetch pois: scan row: %w", err)
		}

		raw := domain.RawPOI{ID: id, Name: name, PoiType: poiType}
		if lon != nil {
			raw.Longitude = *lon
		}
		if lat != nil {
			raw.Latitude = *lat
		}
		if address != nil {
			raw.Address = *address
		}
		if tel != nil {
			raw.Tel = *tel
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch pois: row iteration: %w", err)
	}

	return out, nil
}

func (r *PgPOIRepository) FetchPOITypes(ctx context.Context) (_ []string, err error) {
	defer obs.Time(ctx, r.log, "pg.FetchPOITypes")(&err)

	rows, err := r.pool.Query(ctx, `SELECT DISTINCT poi_type FROM pois ORDER BY poi_type`)
	if err != nil {
		return nil, fmt.Errorf("fetch poi types: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("fetch poi types: scan row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch poi types: row iteration: %w", err)
	}
	return out, nil
}

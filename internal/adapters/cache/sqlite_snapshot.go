package cache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/platform/obs"
	"fleet-map-service/internal/ports"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// InitSnapshotSchema creates the snapshot tables.
func InitSnapshotSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init snapshot schema: db is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init snapshot schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`
		CREATE TABLE IF NOT EXISTS poi_snapshot (
			seq INTEGER PRIMARY KEY,
			payload TEXT NOT NULL
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS poi_type_snapshot (
			seq INTEGER PRIMARY KEY,
			code TEXT NOT NULL
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS snapshot_meta (
			name TEXT PRIMARY KEY,
			saved_at INTEGER NOT NULL
		);
		`,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init snapshot schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init snapshot schema: commit tx: %w", err)
	}
	return nil
}

// SnapshotPOISource wraps a POISource and keeps the last good batch in
// SQLite. When the upstream fetch fails the snapshot is served instead.
type SnapshotPOISource struct {
	upstream ports.POISource
	DB       *sql.DB
	log      *zap.Logger
}

func NewSnapshotPOISource(upstream ports.POISource, db *sql.DB, log *zap.Logger) *SnapshotPOISource {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotPOISource{upstream: upstream, DB: db, log: log.Named("snapshot")}
}

func (s *SnapshotPOISource) FetchDisplayablePOIs(ctx context.Context) (_ []domain.RawPOI, err error) {
	defer obs.Time(ctx, s.log, "snapshot.FetchDisplayablePOIs")(&err)

	records, upErr := s.upstream.FetchDisplayablePOIs(ctx)
	if upErr == nil {
		if err := s.SavePOIs(ctx, records); err != nil {
			s.log.Warn("save poi snapshot failed", zap.Error(err))
		}
		return records, nil
	}

	snap, savedAt, err := s.LoadPOIs(ctx)
	if err != nil || savedAt.IsZero() {
		return nil, upErr
	}
	s.log.Warn("poi source unavailable, serving snapshot",
		zap.Time("saved_at", savedAt),
		zap.Int("pois", len(snap)),
		zap.Error(upErr),
	)
	return snap, nil
}

func (s *SnapshotPOISource) FetchPOITypes(ctx context.Context) (_ []string, err error) {
	defer obs.Time(ctx, s.log, "snapshot.FetchPOITypes")(&err)

	types, upErr := s.upstream.FetchPOITypes(ctx)
	if upErr == nil {
		if err := s.saveTypes(ctx, types); err != nil {
			s.log.Warn("save poi type snapshot failed", zap.Error(err))
		}
		return types, nil
	}

	snap, savedAt, err := s.loadTypes(ctx)
	if err != nil || savedAt.IsZero() {
		return nil, upErr
	}
	return snap, nil
}

// SavePOIs replaces the stored snapshot with records.
func (s *SnapshotPOISource) SavePOIs(ctx context.Context, records []domain.RawPOI) error {
	if s.DB == nil {
		return errors.New("poi snapshot: db is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save poi snapshot: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM poi_snapshot`); err != nil {
		return fmt.Errorf("save poi snapshot: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO poi_snapshot (seq, payload) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("save poi snapshot: db prepare: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("save poi snapshot: encode record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, string(payload)); err != nil {
			return fmt.Errorf("save poi snapshot: insert record %d: %w", i, err)
		}
	}

	if err := touch(ctx, tx, "pois"); err != nil {
		return fmt.Errorf("save poi snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save poi snapshot: commit: %w", err)
	}
	return nil
}

// LoadPOIs returns the stored snapshot and when it was saved. A zero time
// means no snapshot was ever saved.
func (s *SnapshotPOISource) LoadPOIs(ctx context.Context) ([]domain.RawPOI, time.Time, error) {
	if s.DB == nil {
		return nil, time.Time{}, errors.New("poi snapshot: db is nil")
	}

	savedAt, err := savedAt(ctx, s.DB, "pois")
	if err != nil || savedAt.IsZero() {
		return nil, savedAt, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT payload FROM poi_snapshot ORDER BY seq`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load poi snapshot: query: %w", err)
	}
	defer rows.Close()

	var out []domain.RawPOI
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, time.Time{}, fmt.Errorf("load poi snapshot: scan rows: %w", err)
		}

		var r domain.RawPOI
		dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
		dec.UseNumber()
		if err := dec.Decode(&r); err != nil {
			return nil, time.Time{}, fmt.Errorf("load poi snapshot: decode: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("load poi snapshot: row iteration: %w", err)
	}

	return out, savedAt, nil
}

func (s *SnapshotPOISource) saveTypes(ctx context.Context, types []string) error {
	if s.DB == nil {
		return errors.New("poi snapshot: db is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save type snapshot: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM poi_type_snapshot`); err != nil {
		return fmt.Errorf("save type snapshot: clear: %w", err)
	}
	for i, t := range types {
		if _, err := tx.ExecContext(ctx, `INSERT INTO poi_type_snapshot (seq, code) VALUES (?, ?)`, i, t); err != nil {
			return fmt.Errorf("save type snapshot: insert %q: %w", t, err)
		}
	}
	if err := touch(ctx, tx, "types"); err != nil {
		return fmt.Errorf("save type snapshot: %w", err)
	}
	return tx.Commit()
}

func (s *SnapshotPOISource) loadTypes(ctx context.Context) ([]string, time.Time, error) {
	if s.DB == nil {
		return nil, time.Time{}, errors.New("poi snapshot: db is nil")
	}

	savedAt, err := savedAt(ctx, s.DB, "types")
	if err != nil || savedAt.IsZero() {
		return nil, savedAt, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT code FROM poi_type_snapshot ORDER BY seq`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load type snapshot: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, time.Time{}, fmt.Errorf("load type snapshot: scan rows: %w", err)
		}
		out = append(out, code)
	}
	return out, savedAt, rows.Err()
}

func touch(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO snapshot_meta (name, saved_at) VALUES (?, ?)
	`, name, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("update snapshot_meta: %w", err)
	}
	return nil
}

func savedAt(ctx context.Context, db *sql.DB, name string) (time.Time, error) {
	var ms int64
	err := db.QueryRowContext(ctx, `SELECT saved_at FROM snapshot_meta WHERE name = ?`, name).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read snapshot_meta: %w", err)
	}
	return time.UnixMilli(ms), nil
}

package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fleetwatch/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:fleetwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		// recorded_at is unix nanoseconds: numeric ORDER BY, no
		// string-format ordering pitfalls.
		`CREATE TABLE IF NOT EXISTS asset_telemetry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset_id TEXT NOT NULL,
			temperature_c REAL NOT NULL,
			vibration_rms REAL NOT NULL,
			pressure_psi REAL NOT NULL,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_asset_telemetry_latest
			ON asset_telemetry(asset_id, recorded_at DESC, id DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) InsertReading(ctx context.Context, sample model.ReadingSample) (model.Reading, error) {
	if err := checkSample(sample); err != nil {
		return model.Reading{}, err
	}
	r := model.Reading{
		AssetID:      strings.TrimSpace(sample.AssetID),
		TemperatureC: sample.TemperatureC,
		VibrationRMS: sample.VibrationRMS,
		PressurePSI:  sample.PressurePSI,
		RecordedAt:   nowUTC(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO asset_telemetry (asset_id, temperature_c, vibration_rms, pressure_psi, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.AssetID, r.TemperatureC, r.VibrationRMS, r.PressurePSI, r.RecordedAt.UnixNano(),
	)
	if err != nil {
		return model.Reading{}, err
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return model.Reading{}, err
	}
	return r, nil
}

func (s *sqliteStore) LatestReadings(ctx context.Context, assetID string, limit int) ([]model.Reading, error) {
	if err := checkLatestArgs(assetID, limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset_id, temperature_c, vibration_rms, pressure_psi, recorded_at
		FROM asset_telemetry
		WHERE asset_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`,
		assetID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reading, 0)
	for rows.Next() {
		var r model.Reading
		var ns int64
		if err := rows.Scan(&r.ID, &r.AssetID, &r.TemperatureC, &r.VibrationRMS, &r.PressurePSI, &ns); err != nil {
			return nil, err
		}
		r.RecordedAt = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteReadings(ctx context.Context, assetID string) (int64, error) {
	var res sql.Result
	var err error
	if strings.TrimSpace(assetID) == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM asset_telemetry`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM asset_telemetry WHERE asset_id = ?`, assetID)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) ListAssets(ctx context.Context) ([]AssetCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, COUNT(*) FROM asset_telemetry GROUP BY asset_id ORDER BY asset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssetCounts(rows)
}

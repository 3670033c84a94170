package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetwatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/fleetwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS asset_telemetry (
			id BIGSERIAL PRIMARY KEY,
			asset_id TEXT NOT NULL,
			temperature_c DOUBLE PRECISION NOT NULL,
			vibration_rms DOUBLE PRECISION NOT NULL,
			pressure_psi DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
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

func (s *postgresStore) InsertReading(ctx context.Context, sample model.ReadingSample) (model.Reading, error) {
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
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO asset_telemetry (asset_id, temperature_c, vibration_rms, pressure_psi, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		r.AssetID, r.TemperatureC, r.VibrationRMS, r.PressurePSI, r.RecordedAt,
	).Scan(&r.ID)
	if err != nil {
		return model.Reading{}, err
	}
	return r, nil
}

func (s *postgresStore) LatestReadings(ctx context.Context, assetID string, limit int) ([]model.Reading, error) {
	if err := checkLatestArgs(assetID, limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset_id, temperature_c, vibration_rms, pressure_psi, recorded_at
		FROM asset_telemetry
		WHERE asset_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2`,
		assetID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

func (s *postgresStore) DeleteReadings(ctx context.Context, assetID string) (int64, error) {
	var res sql.Result
	var err error
	if strings.TrimSpace(assetID) == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM asset_telemetry`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM asset_telemetry WHERE asset_id = $1`, assetID)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *postgresStore) ListAssets(ctx context.Context) ([]AssetCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, COUNT(*) FROM asset_telemetry GROUP BY asset_id ORDER BY asset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssetCounts(rows)
}

func scanReadings(rows *sql.Rows) ([]model.Reading, error) {
	out := make([]model.Reading, 0)
	for rows.Next() {
		var r model.Reading
		if err := rows.Scan(&r.ID, &r.AssetID, &r.TemperatureC, &r.VibrationRMS, &r.PressurePSI, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.RecordedAt = r.RecordedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanAssetCounts(rows *sql.Rows) ([]AssetCount, error) {
	out := make([]AssetCount, 0)
	for rows.Next() {
		var ac AssetCount
		if err := rows.Scan(&ac.AssetID, &ac.Readings); err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

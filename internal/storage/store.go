package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
)

// Store owns the persisted readings. LatestReadings is the one query
// shape the risk computation depends on: newest-first by
// (recorded_at, id), with id breaking timestamp collisions.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error
	InsertReading(ctx context.Context, sample model.ReadingSample) (model.Reading, error)
	LatestReadings(ctx context.Context, assetID string, limit int) ([]model.Reading, error)
	DeleteReadings(ctx context.Context, assetID string) (int64, error)
	ListAssets(ctx context.Context) ([]AssetCount, error)
}

type AssetCount struct {
	AssetID  string `json:"asset_id"`
	Readings int64  `json:"readings"`
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) Ping(ctx context.Context) error {
	if b.db == nil {
		return errors.New("store not initialized")
	}
	return b.db.PingContext(ctx)
}

func checkLatestArgs(assetID string, limit int) error {
	if strings.TrimSpace(assetID) == "" {
		return fmt.Errorf("%w: empty asset id", model.ErrInvalidArgument)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", model.ErrInvalidArgument, limit)
	}
	return nil
}

func checkSample(sample model.ReadingSample) error {
	if strings.TrimSpace(sample.AssetID) == "" {
		return fmt.Errorf("%w: empty asset id", model.ErrInvalidArgument)
	}
	return nil
}

// recorded_at is assigned here, not by a column default, so ordering
// semantics are identical across drivers.
func nowUTC() time.Time {
	return time.Now().UTC()
}

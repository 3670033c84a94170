package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
	"fleetwatch/internal/normalize"
	"fleetwatch/internal/risk"
	"fleetwatch/internal/stats"
	"fleetwatch/internal/storage"
)

// Service composes the store and the risk engine behind the two
// operations the system exposes: ingest one reading, retrieve the latest
// window plus its assessment. The engine is swapped atomically on policy
// updates; in-flight computations keep the engine they started with.
type Service struct {
	logger *slog.Logger
	store  storage.Store
	stats  *stats.Store
	recent *stats.Recent
	engine atomic.Value
}

func New(eng *risk.Engine, store storage.Store, statsStore *stats.Store, recent *stats.Recent, logger *slog.Logger) *Service {
	s := &Service{
		logger: logger,
		store:  store,
		stats:  statsStore,
		recent: recent,
	}
	s.engine.Store(eng)
	return s
}

func (s *Service) Engine() *risk.Engine {
	return s.engine.Load().(*risk.Engine)
}

// UpdatePolicy builds a fresh engine from the new policy and swaps it
// in. An invalid policy is rejected and the running engine is untouched.
func (s *Service) UpdatePolicy(rc config.RiskConfig) error {
	eng, err := risk.NewEngine(rc)
	if err != nil {
		return err
	}
	s.engine.Store(eng)
	if s.logger != nil {
		s.logger.Info("risk policy updated",
			"default_window", rc.DefaultWindow,
			"decay", rc.Decay,
			"thresholds", fmt.Sprintf("%g/%g/%g", rc.Thresholds.LowMax, rc.Thresholds.MediumMax, rc.Thresholds.HighMax),
		)
	}
	return nil
}

// Ingest validates one sample and writes it through. The returned
// Reading carries the store-assigned id and recorded_at.
func (s *Service) Ingest(ctx context.Context, sample model.ReadingSample) (model.Reading, error) {
	sample, err := normalize.Check(sample)
	if err != nil {
		return model.Reading{}, err
	}
	reading, err := s.store.InsertReading(ctx, sample)
	if err != nil {
		return model.Reading{}, err
	}
	if s.stats != nil {
		s.stats.Accepted(reading)
	}
	if s.recent != nil {
		s.recent.Add(reading)
	}
	return reading, nil
}

// Run consumes samples from the channel-fed ingest sources until the
// context is cancelled. Failed writes are logged and dropped; brokered
// sources have no caller to report to.
func (s *Service) Run(ctx context.Context, in <-chan model.ReadingSample) {
	go func() {
		for {
			select {
			case sample := <-in:
				if _, err := s.Ingest(ctx, sample); err != nil {
					if s.logger != nil {
						s.logger.Warn("ingest write failed", "asset_id", sample.AssetID, "err", err)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// LatestResult is one retrieval: the window actually used and its
// assessment. Assessment is nil exactly when the window is empty.
type LatestResult struct {
	AssetID         string
	WindowRequested int
	Readings        []model.Reading
	Assessment      *model.RiskAssessment
}

// Latest fetches the newest-first window and computes its risk. The
// limit is clamped to the policy's max window. An asset with no readings
// yields the empty window plus ErrInsufficientData, which callers are
// expected to treat as "no data yet", not a fault.
func (s *Service) Latest(ctx context.Context, assetID string, limit int) (LatestResult, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return LatestResult{}, fmt.Errorf("%w: empty asset id", model.ErrInvalidArgument)
	}
	if limit <= 0 {
		return LatestResult{}, fmt.Errorf("%w: limit must be positive, got %d", model.ErrInvalidArgument, limit)
	}
	eng := s.Engine()
	if max := eng.Config().MaxWindow; limit > max {
		limit = max
	}
	window, err := s.store.LatestReadings(ctx, assetID, limit)
	if err != nil {
		return LatestResult{}, fmt.Errorf("latest readings for %s: %w", assetID, err)
	}
	result := LatestResult{AssetID: assetID, WindowRequested: limit, Readings: window}
	assessment, err := eng.ComputeRisk(window)
	if err != nil {
		if errors.Is(err, model.ErrInsufficientData) {
			return result, fmt.Errorf("asset %s: %w", assetID, err)
		}
		return result, err
	}
	result.Assessment = &assessment
	return result, nil
}

// Reset bulk-deletes readings for one asset, or for every asset when
// assetID is empty, and drops the matching ingest stats.
func (s *Service) Reset(ctx context.Context, assetID string) (int64, error) {
	removed, err := s.store.DeleteReadings(ctx, assetID)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(assetID) == "" {
		if s.stats != nil {
			s.stats.Clear()
		}
		if s.recent != nil {
			s.recent.Clear()
		}
	} else if s.stats != nil {
		s.stats.Remove(strings.TrimSpace(assetID))
	}
	return removed, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) ListAssets(ctx context.Context) ([]storage.AssetCount, error) {
	return s.store.ListAssets(ctx)
}

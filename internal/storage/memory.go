package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fleetwatch/internal/model"
)

// memoryStore keeps readings in process memory. It backs tests and the
// "memory" driver, and implements the same ordering contract as the SQL
// stores.
type memoryStore struct {
	mu       sync.RWMutex
	readings []model.Reading
	nextID   int64
	now      func() time.Time
}

func NewMemory() Store {
	return &memoryStore{nextID: 1, now: nowUTC}
}

func (s *memoryStore) Init(ctx context.Context) error { return nil }

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) Ping(ctx context.Context) error { return nil }

func (s *memoryStore) InsertReading(ctx context.Context, sample model.ReadingSample) (model.Reading, error) {
	if err := checkSample(sample); err != nil {
		return model.Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Reading{
		ID:           s.nextID,
		AssetID:      strings.TrimSpace(sample.AssetID),
		TemperatureC: sample.TemperatureC,
		VibrationRMS: sample.VibrationRMS,
		PressurePSI:  sample.PressurePSI,
		RecordedAt:   s.now(),
	}
	s.nextID++
	s.readings = append(s.readings, r)
	return r, nil
}

func (s *memoryStore) LatestReadings(ctx context.Context, assetID string, limit int) ([]model.Reading, error) {
	if err := checkLatestArgs(assetID, limit); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]model.Reading, 0)
	for _, r := range s.readings {
		if r.AssetID == assetID {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].RecordedAt.Equal(matched[j].RecordedAt) {
			return matched[i].RecordedAt.After(matched[j].RecordedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *memoryStore) DeleteReadings(ctx context.Context, assetID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		removed := int64(len(s.readings))
		s.readings = nil
		return removed, nil
	}
	kept := s.readings[:0]
	var removed int64
	for _, r := range s.readings {
		if r.AssetID == assetID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.readings = kept
	return removed, nil
}

func (s *memoryStore) ListAssets(ctx context.Context) ([]AssetCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int64)
	for _, r := range s.readings {
		counts[r.AssetID]++
	}
	out := make([]AssetCount, 0, len(counts))
	for asset, n := range counts {
		out = append(out, AssetCount{AssetID: asset, Readings: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

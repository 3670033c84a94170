package stats

import (
	"sync"
	"time"

	"fleetwatch/internal/model"
)

// Store tracks ingestion per asset: accepted-reading counts and the last
// accepted sample. It never holds computed risk; assessments are
// recomputed from the store on every request.
type Store struct {
	mu      sync.RWMutex
	byAsset map[string]*model.AssetStats
	limit   int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byAsset: make(map[string]*model.AssetStats),
		limit:   limit,
	}
}

func (s *Store) Accepted(reading model.Reading) {
	if reading.AssetID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byAsset[reading.AssetID]
	if !ok {
		st = &model.AssetStats{AssetID: reading.AssetID}
		s.byAsset[reading.AssetID] = st
	}
	st.Accepted++
	st.LastSample = reading.Sample()
	st.LastSeen = reading.RecordedAt
	if len(s.byAsset) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(assetID string) (model.AssetStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byAsset[assetID]
	if !ok {
		return model.AssetStats{}, false
	}
	return *st, true
}

func (s *Store) GetAll() map[string]model.AssetStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.AssetStats, len(s.byAsset))
	for asset, st := range s.byAsset {
		out[asset] = *st
	}
	return out
}

func (s *Store) evictOldest() {
	var oldestAsset string
	var oldest time.Time
	for asset, st := range s.byAsset {
		if oldestAsset == "" || st.LastSeen.Before(oldest) {
			oldestAsset = asset
			oldest = st.LastSeen
		}
	}
	if oldestAsset != "" {
		delete(s.byAsset, oldestAsset)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAsset = make(map[string]*model.AssetStats)
}

func (s *Store) Remove(assetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byAsset, assetID)
}

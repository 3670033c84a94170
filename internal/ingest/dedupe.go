package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"fleetwatch/internal/model"
)

// DedupeCache suppresses byte-identical samples seen within a TTL. It
// guards the brokered sources against at-least-once redelivery; HTTP
// ingestion never consults it, since a caller re-sending the same values
// is two legitimate readings.
type DedupeCache struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewDedupeCache() *DedupeCache {
	return &DedupeCache{items: make(map[string]time.Time)}
}

func (d *DedupeCache) Seen(key string, now time.Time, ttl time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ts, ok := d.items[key]; ok {
		if now.Sub(ts) <= ttl {
			return true
		}
	}
	d.items[key] = now
	if len(d.items) > 10000 {
		d.compact(now, ttl)
	}
	return false
}

func (d *DedupeCache) compact(now time.Time, ttl time.Duration) {
	for k, ts := range d.items {
		if now.Sub(ts) > ttl {
			delete(d.items, k)
		}
	}
}

func HashSample(sample model.ReadingSample) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%g|%g|%g",
		sample.AssetID, sample.TemperatureC, sample.VibrationRMS, sample.PressurePSI)))
	return hex.EncodeToString(h[:])
}

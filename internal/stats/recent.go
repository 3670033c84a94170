package stats

import (
	"sync"

	"fleetwatch/internal/model"
)

// Recent is a bounded ring of the most recently accepted readings across
// all assets, oldest first.
type Recent struct {
	mu    sync.RWMutex
	buf   []model.Reading
	limit int
}

func NewRecent(limit int) *Recent {
	if limit <= 0 {
		limit = 1000
	}
	return &Recent{limit: limit}
}

func (r *Recent) Add(reading model.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) < r.limit {
		r.buf = append(r.buf, reading)
		return
	}
	copy(r.buf, r.buf[1:])
	r.buf[len(r.buf)-1] = reading
}

// List returns up to limit of the most recent entries, oldest first.
// A non-positive limit returns everything buffered.
func (r *Recent) List(limit int) []model.Reading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.buf) {
		limit = len(r.buf)
	}
	out := make([]model.Reading, 0, limit)
	start := len(r.buf) - limit
	for i := start; i < len(r.buf); i++ {
		out = append(out, r.buf[i])
	}
	return out
}

func (r *Recent) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = nil
}

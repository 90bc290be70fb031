package tracker

import (
	"sort"
	"time"

	"github.com/ernie/tourney-tracker/internal/domain"
)

// Registry is the in-memory map of live tournaments, keyed by room:
// at most one tracked tournament per room at any time. The termination
// events of the feed protocol carry no format field, so a finer key
// could not be matched back on removal.
//
// The Registry does no locking of its own; the Tracker serializes all
// access under one mutex.
type Registry struct {
	records map[string]*domain.Tournament
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*domain.Tournament)}
}

// TryCreate inserts the record iff the key is absent and reports
// whether the insert happened. A false return is the dedup signal:
// the caller must skip all side effects.
func (r *Registry) TryCreate(key string, rec *domain.Tournament) bool {
	if _, exists := r.records[key]; exists {
		return false
	}
	r.records[key] = rec
	return true
}

// Find returns the record for a key, or nil
func (r *Registry) Find(key string) *domain.Tournament {
	return r.records[key]
}

// RemoveByRoom removes and returns the first record whose room
// matches, or nil. Stopping at the first match is sound because the
// key scheme guarantees at most one record per room.
func (r *Registry) RemoveByRoom(room string) *domain.Tournament {
	for key, rec := range r.records {
		if rec.Room == room {
			delete(r.records, key)
			return rec
		}
	}
	return nil
}

// Remove deletes a record by key; removing an absent key is a no-op
func (r *Registry) Remove(key string) {
	delete(r.records, key)
}

// OlderThan returns the keys of all records whose age meets or
// exceeds maxAge at the given instant
func (r *Registry) OlderThan(now time.Time, maxAge time.Duration) []string {
	var stale []string
	for key, rec := range r.records {
		if now.Sub(rec.StartedAt) >= maxAge {
			stale = append(stale, key)
		}
	}
	return stale
}

// All returns copies of every live record, ordered by room for stable
// listings
func (r *Registry) All() []domain.Tournament {
	out := make([]domain.Tournament, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

// Len returns the number of live records
func (r *Registry) Len() int {
	return len(r.records)
}

package effectiveness

import (
	"sync"
	"time"

	"github.com/Alias1177/Calibrator/models"
)

// Store holds the historical effectiveness table keyed "{symbol}_{side}".
// Readers see either the old or the new table, never a partial one.
type Store struct {
	mu        sync.RWMutex
	table     map[string]models.Effectiveness
	updatedAt time.Time
}

// NewStore creates a store seeded with initial, which may be nil
func NewStore(initial map[string]models.Effectiveness) *Store {
	s := &Store{table: make(map[string]models.Effectiveness, len(initial))}
	for k, v := range initial {
		s.table[k] = v
	}
	if len(initial) > 0 {
		s.updatedAt = time.Now()
	}
	return s
}

// Lookup implements models.EffectivenessReader
func (s *Store) Lookup(symbol string, side models.Direction) (models.Effectiveness, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.table[models.EffectivenessKey(symbol, side)]
	return e, ok
}

// Replace swaps in a new table
func (s *Store) Replace(table map[string]models.Effectiveness) {
	next := make(map[string]models.Effectiveness, len(table))
	for k, v := range table {
		next[k] = v
	}

	s.mu.Lock()
	s.table = next
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Set updates one entry, last write wins
func (s *Store) Set(symbol string, side models.Direction, e models.Effectiveness) {
	s.mu.Lock()
	s.table[models.EffectivenessKey(symbol, side)] = e
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Snapshot returns a copy of the table
func (s *Store) Snapshot() map[string]models.Effectiveness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Effectiveness, len(s.table))
	for k, v := range s.table {
		out[k] = v
	}
	return out
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}

// UpdatedAt is the time of the last write, zero if never written
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

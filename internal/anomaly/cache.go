package anomaly

import (
	"encoding/binary"
	"hash/fnv"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/Alias1177/Calibrator/models"
)

// cacheKey identifies one detector run
type cacheKey struct {
	kind   models.PatternKind
	index  int
	length int
	hash   uint64
}

type cacheEntry struct {
	detection *models.PatternDetection
	expires   time.Time
}

// PatternCache is a bounded TTL cache of detector results, including negative ones
type PatternCache struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

// NewPatternCache creates a cache. A non-positive ttl disables caching.
func NewPatternCache(ttl time.Duration, maxSize int) *PatternCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &PatternCache{
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// get returns a cached result; found is false on a miss or an expired entry
func (c *PatternCache) get(key cacheKey) (det *models.PatternDetection, found bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return nil, false
	}
	return cloneDetection(entry.detection), true
}

func (c *PatternCache) put(key cacheKey, det *models.PatternDetection) {
	if c == nil || c.ttl <= 0 {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evict(now)
	}
	c.entries[key] = cacheEntry{detection: cloneDetection(det), expires: now.Add(c.ttl)}
}

// cloneDetection copies a detection so callers never share its Details map with the cache
func cloneDetection(det *models.PatternDetection) *models.PatternDetection {
	if det == nil {
		return nil
	}
	out := *det
	out.Details = maps.Clone(det.Details)
	return &out
}

// evict drops expired entries, then the entries closest to expiry until there is room
func (c *PatternCache) evict(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	for len(c.entries) >= c.maxSize {
		var oldest cacheKey
		var oldestAt time.Time
		first := true
		for k, e := range c.entries {
			if first || e.expires.Before(oldestAt) {
				oldest, oldestAt, first = k, e.expires, false
			}
		}
		delete(c.entries, oldest)
	}
}

// Len returns the number of stored entries, expired ones included
func (c *PatternCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// windowHash fingerprints the OHLCV content of candles[from, to]
func windowHash(candles []models.Candle, from, to int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	for k := from; k <= to; k++ {
		c := candles[k]
		write(c.Open)
		write(c.High)
		write(c.Low)
		write(c.Close)
		write(c.Volume)
	}
	return h.Sum64()
}

package anomaly

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Calibrator/models"
)

// icebergWindow has five volume spikes at the same price inside a 100-102 range
func icebergWindow() models.MarketWindow {
	return models.MarketWindow{Symbol: "SOLUSDT", Candles: generateTestCandles(20, func(i int) models.Candle {
		if i%4 == 3 {
			return models.Candle{Open: 101, High: 101.2, Low: 100.8, Close: 101, Volume: 1000}
		}
		p := 100 + float64(i%2)*2
		return models.Candle{Open: p, High: p + 0.3, Low: p - 0.3, Close: p, Volume: 100}
	})}
}

// spoofingWindow moves 1% per bar and then prints heavy volume with almost no movement
func spoofingWindow() models.MarketWindow {
	candles := make([]models.Candle, 10)
	price := 100.0
	for i := range candles {
		volume := 100.0
		switch {
		case i == 9:
			price *= 1.001
			volume = 500
		case i > 0:
			price *= 1.01
		}
		candles[i] = models.Candle{Open: price, High: price, Low: price, Close: price, Volume: volume}
	}
	return models.MarketWindow{Symbol: "SOLUSDT", Candles: candles}
}

func TestDetectIceberg(t *testing.T) {
	cfg := DefaultPatternConfig()
	cfg.Iceberg.StdDevMult = 1.0
	d := NewPatternDetector(cfg)

	det, ok := d.DetectIceberg(icebergWindow(), 19)

	require.True(t, ok)
	assert.Equal(t, models.PatternIceberg, det.Kind)
	assert.Equal(t, 19, det.WindowIndex)
	assert.InDelta(t, 0.775, det.Confidence, 1e-9)
	assert.Equal(t, 5.0, det.Details["large_trades_count"])
	assert.InDelta(t, 1.0, det.Details["price_concentration"], 1e-9)
	assert.InDelta(t, 101.0, det.Details["price_level"], 1e-9)
	assert.InDelta(t, 325.0, det.Details["mean_volume"], 1e-9)
}

func TestDetectIcebergDefaultsAreStrict(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig())

	// At most 20/(1+2²) = 4 of 20 bars can sit above mean+2σ, fewer than the 5 required
	_, ok := d.DetectIceberg(icebergWindow(), 19)
	assert.False(t, ok)

	_, ok = d.DetectIceberg(icebergWindow(), 10)
	assert.False(t, ok, "недостаточно данных")
}

func TestDetectSpoofing(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig())

	det, ok := d.DetectSpoofing(spoofingWindow(), 9)

	require.True(t, ok)
	assert.Equal(t, models.PatternSpoofing, det.Kind)
	assert.InDelta(t, 0.9587, det.Confidence, 1e-3)
	assert.Equal(t, 1.0, det.Details["high_ratio_count"])
	assert.Equal(t, 1.0, det.Details["volume_anomaly"])
	assert.Equal(t, 1.0, det.Details["price_anomaly"])
}

func TestDetectNothingOnFlatMarket(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig())
	w := flatWindow(60)

	assert.Empty(t, d.Detect(w, 59))
	assert.Empty(t, d.Detect(w, 2))
	assert.Empty(t, d.Detect(models.MarketWindow{}, 0))
}

func TestDetectorCachesResults(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d.cache.now = func() time.Time { return now }
	w := spoofingWindow()

	first := d.Detect(w, 9)
	require.Len(t, first, 1)
	assert.Equal(t, 1, d.cache.Len())

	second := d.Detect(w, 9)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, d.cache.Len())

	// Different content at the same index is a different key; misses are cached too
	changed := spoofingWindow()
	changed.Candles[9].Volume = 100
	assert.Empty(t, d.Detect(changed, 9))
	assert.Equal(t, 2, d.cache.Len())
	assert.Empty(t, d.Detect(changed, 9))
	assert.Equal(t, 2, d.cache.Len())
}

func TestCachedDetectionsAreIndependent(t *testing.T) {
	d := NewPatternDetector(DefaultPatternConfig())
	w := spoofingWindow()

	first := d.Detect(w, 9)
	require.Len(t, first, 1)
	want := first[0].Details["current_volume_ratio"]
	first[0].Details["current_volume_ratio"] = -999

	second := d.Detect(w, 9)
	require.Len(t, second, 1)
	assert.InDelta(t, want, second[0].Details["current_volume_ratio"], 1e-9)

	second[0].Details["current_volume_ratio"] = -1
	third := d.Detect(w, 9)
	assert.InDelta(t, want, third[0].Details["current_volume_ratio"], 1e-9)
}

func TestPatternCacheExpiry(t *testing.T) {
	cache := NewPatternCache(30*time.Second, 2)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	det := &models.PatternDetection{Kind: models.PatternSpoofing, Confidence: 0.7}
	key := cacheKey{kind: models.PatternSpoofing, index: 9, length: 10, hash: 1}
	cache.put(key, det)

	got, found := cache.get(key)
	require.True(t, found)
	assert.Equal(t, det, got)

	now = now.Add(31 * time.Second)
	_, found = cache.get(key)
	assert.False(t, found)

	// Full cache evicts expired and then oldest entries
	cache.put(cacheKey{index: 1}, nil)
	cache.put(cacheKey{index: 2}, nil)
	cache.put(cacheKey{index: 3}, nil)
	assert.Equal(t, 2, cache.Len())
	_, found = cache.get(cacheKey{index: 3})
	assert.True(t, found)
}

func TestPatternCacheDisabled(t *testing.T) {
	cache := NewPatternCache(0, 10)
	cache.put(cacheKey{index: 1}, nil)

	_, found := cache.get(cacheKey{index: 1})
	assert.False(t, found)
	assert.Equal(t, 0, cache.Len())
}

func TestWindowHash(t *testing.T) {
	w := spoofingWindow()
	h := windowHash(w.Candles, 0, 9)
	assert.Equal(t, h, windowHash(spoofingWindow().Candles, 0, 9))

	w.Candles[3].Close = math.Nextafter(w.Candles[3].Close, 200)
	assert.NotEqual(t, h, windowHash(w.Candles, 0, 9))
}

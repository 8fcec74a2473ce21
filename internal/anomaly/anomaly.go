package anomaly

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Calibrator/internal/calculate"
	"github.com/Alias1177/Calibrator/models"
)

// IcebergConfig tunes detection of large hidden orders
type IcebergConfig struct {
	Lookback       int     `yaml:"lookback"`
	StdDevMult     float64 `yaml:"std_dev_mult"`
	MinLargeTrades int     `yaml:"min_large_trades"`
	MinConfidence  float64 `yaml:"min_confidence"`
}

// SpoofingConfig tunes detection of volume without price movement
type SpoofingConfig struct {
	Lookback            int     `yaml:"lookback"`
	DivergenceThreshold float64 `yaml:"divergence_threshold"`
	VolumeAnomalyMult   float64 `yaml:"volume_anomaly_mult"`
	PriceAnomalyMult    float64 `yaml:"price_anomaly_mult"`
	MinConfidence       float64 `yaml:"min_confidence"`
}

// PatternConfig configures the institutional pattern detector
type PatternConfig struct {
	Iceberg   IcebergConfig  `yaml:"iceberg"`
	Spoofing  SpoofingConfig `yaml:"spoofing"`
	CacheTTL  time.Duration  `yaml:"cache_ttl"`
	CacheSize int            `yaml:"cache_size"`
}

// DefaultPatternConfig returns the production detector settings
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		Iceberg: IcebergConfig{
			Lookback:       20,
			StdDevMult:     2.0,
			MinLargeTrades: 5,
			MinConfidence:  0.5,
		},
		Spoofing: SpoofingConfig{
			Lookback:            10,
			DivergenceThreshold: 0.5,
			VolumeAnomalyMult:   1.5,
			PriceAnomalyMult:    0.5,
			MinConfidence:       0.5,
		},
		CacheTTL:  30 * time.Second,
		CacheSize: 1024,
	}
}

// PatternDetector finds iceberg and spoofing footprints in OHLCV data
type PatternDetector struct {
	cfg    PatternConfig
	cache  *PatternCache
	logger zerolog.Logger
}

// NewPatternDetector creates a detector with its own result cache
func NewPatternDetector(cfg PatternConfig) *PatternDetector {
	return &PatternDetector{
		cfg:    cfg,
		cache:  NewPatternCache(cfg.CacheTTL, cfg.CacheSize),
		logger: log.With().Str("component", "pattern_detector").Logger(),
	}
}

// Detect runs every detector on bar i
func (d *PatternDetector) Detect(w models.MarketWindow, i int) []models.PatternDetection {
	var out []models.PatternDetection
	if det, ok := d.DetectIceberg(w, i); ok {
		out = append(out, det)
	}
	if det, ok := d.DetectSpoofing(w, i); ok {
		out = append(out, det)
	}
	return out
}

// DetectIceberg looks for repeated volume outliers concentrated around one price
func (d *PatternDetector) DetectIceberg(w models.MarketWindow, i int) (models.PatternDetection, bool) {
	cfg := d.cfg.Iceberg
	if !w.Valid(i) || cfg.Lookback <= 0 || i+1 < cfg.Lookback {
		return models.PatternDetection{}, false
	}
	from := i - cfg.Lookback + 1
	return d.cached(models.PatternIceberg, w, from, i, func() *models.PatternDetection {
		volumes := w.Volumes(from, i)
		closes := w.Closes(from, i)

		meanVolume := calculate.Mean(volumes)
		threshold := meanVolume + cfg.StdDevMult*calculate.StdDev(volumes)

		var largeVolumes, largeCloses []float64
		for k, v := range volumes {
			if v > threshold {
				largeVolumes = append(largeVolumes, v)
				largeCloses = append(largeCloses, closes[k])
			}
		}
		count := len(largeVolumes)
		if count < cfg.MinLargeTrades {
			return nil
		}

		lo, hi := calculate.MinMax(closes)
		concentration := 0.0
		if hi-lo > 0 {
			concentration = 1 - calculate.StdDev(largeCloses)/(hi-lo)
		}

		confidence := math.Min(1, float64(count)/float64(cfg.MinLargeTrades)*0.3+
			concentration*0.4+
			float64(count)/float64(len(volumes))*0.3)
		if confidence < cfg.MinConfidence {
			return nil
		}

		return &models.PatternDetection{
			Kind:       models.PatternIceberg,
			Confidence: confidence,
			Details: map[string]float64{
				"large_trades_count":  float64(count),
				"mean_volume":         meanVolume,
				"large_trade_mean":    calculate.Mean(largeVolumes),
				"price_concentration": concentration,
				"price_level":         calculate.Mean(largeCloses),
			},
			WindowIndex: i,
		}
	})
}

// DetectSpoofing looks for heavy volume that fails to move price
func (d *PatternDetector) DetectSpoofing(w models.MarketWindow, i int) (models.PatternDetection, bool) {
	cfg := d.cfg.Spoofing
	if !w.Valid(i) || cfg.Lookback < 2 || i+1 < cfg.Lookback {
		return models.PatternDetection{}, false
	}
	from := i - cfg.Lookback + 1
	return d.cached(models.PatternSpoofing, w, from, i, func() *models.PatternDetection {
		volumes := w.Volumes(from, i)
		closes := w.Closes(from, i)

		priceChanges := make([]float64, len(closes))
		var moves []float64
		for k := 1; k < len(closes); k++ {
			priceChanges[k] = math.Abs(calculate.Ratio(closes[k]-closes[k-1], closes[k-1], 0))
			if priceChanges[k] > 0 {
				moves = append(moves, priceChanges[k])
			}
		}

		meanVolume := calculate.Mean(volumes)
		meanPriceChange := calculate.Mean(moves)
		if meanVolume == 0 || meanPriceChange == 0 {
			return nil
		}

		// Volume per unit of price movement, normalised so 1.0 is the window average
		var ratios []float64
		highRatioCount := 0
		for k := 1; k < len(volumes); k++ {
			if priceChanges[k] <= 0 {
				continue
			}
			ratio := volumes[k] / (priceChanges[k] * meanVolume / meanPriceChange)
			ratios = append(ratios, ratio)
			if ratio > 1+cfg.DivergenceThreshold {
				highRatioCount++
			}
		}
		if len(ratios) == 0 {
			return nil
		}
		highRatioPct := float64(highRatioCount) / float64(len(ratios))

		currentVolume := volumes[len(volumes)-1]
		currentChange := priceChanges[len(priceChanges)-1]
		volumeAnomaly := currentVolume > meanVolume*cfg.VolumeAnomalyMult
		priceAnomaly := currentChange < meanPriceChange*cfg.PriceAnomalyMult

		both := 0.0
		if volumeAnomaly && priceAnomaly {
			both = 1
		}
		confidence := calculate.Clamp(highRatioPct*0.4+both*0.4+(currentVolume/meanVolume-1)*0.2, 0, 1)
		if confidence < cfg.MinConfidence {
			return nil
		}

		return &models.PatternDetection{
			Kind:       models.PatternSpoofing,
			Confidence: confidence,
			Details: map[string]float64{
				"volume_price_divergence": calculate.Mean(ratios),
				"high_ratio_count":        float64(highRatioCount),
				"high_ratio_pct":          highRatioPct,
				"volume_anomaly":          boolToFloat(volumeAnomaly),
				"price_anomaly":           boolToFloat(priceAnomaly),
				"current_volume_ratio":    currentVolume / meanVolume,
			},
			WindowIndex: i,
		}
	})
}

// cached serves a detector result from the cache or computes and stores it
func (d *PatternDetector) cached(kind models.PatternKind, w models.MarketWindow, from, i int, compute func() *models.PatternDetection) (models.PatternDetection, bool) {
	key := cacheKey{kind: kind, index: i, length: w.Len(), hash: windowHash(w.Candles, from, i)}
	if det, found := d.cache.get(key); found {
		if det == nil {
			return models.PatternDetection{}, false
		}
		return *det, true
	}

	det := compute()
	d.cache.put(key, det)
	if det == nil {
		return models.PatternDetection{}, false
	}

	d.logger.Debug().
		Str("symbol", w.Symbol).
		Str("pattern", string(det.Kind)).
		Int("index", i).
		Float64("confidence", det.Confidence).
		Msg("Institutional pattern detected")
	return *det, true
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

package calculate

import (
	"math"

	"github.com/Alias1177/Calibrator/models"
)

// RegimeThresholds are the adaptive thresholds of one volatility regime
type RegimeThresholds struct {
	MinDistanceMult float64 `yaml:"min_distance_mult"`
	MaxDistanceMult float64 `yaml:"max_distance_mult"`
	ADXThreshold    float64 `yaml:"adx_threshold"`
	VolumeThreshold float64 `yaml:"volume_threshold"`
}

// VolatilityConfig configures the volatility regime detector
type VolatilityConfig struct {
	ShortATRPeriod     int     `yaml:"short_atr_period"`
	LongATRPeriod      int     `yaml:"long_atr_period"`
	ATRPeriod          int     `yaml:"atr_period"`
	LowRatio           float64 `yaml:"low_ratio"`
	HighRatio          float64 `yaml:"high_ratio"`
	PercentileLookback int     `yaml:"percentile_lookback"`
	FallbackATRPct     float64 `yaml:"fallback_atr_pct"`

	// Adaptive filters
	FilterLookback   int     `yaml:"filter_lookback"`
	DefaultADX       float64 `yaml:"default_adx"`
	ExtremeLowRatio  float64 `yaml:"extreme_low_ratio"`
	ExtremeHighRatio float64 `yaml:"extreme_high_ratio"`

	Low    RegimeThresholds `yaml:"low"`
	Normal RegimeThresholds `yaml:"normal"`
	High   RegimeThresholds `yaml:"high"`
}

// DefaultVolatilityConfig returns the production thresholds.
// LOW is the most permissive regime and HIGH the strictest.
func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		ShortATRPeriod:     5,
		LongATRPeriod:      20,
		ATRPeriod:          14,
		LowRatio:           0.7,
		HighRatio:          1.5,
		PercentileLookback: 50,
		FallbackATRPct:     0.02,
		FilterLookback:     20,
		DefaultADX:         20,
		ExtremeLowRatio:    0.5,
		ExtremeHighRatio:   3.0,
		Low:                RegimeThresholds{MinDistanceMult: 0.10, MaxDistanceMult: 0.20, ADXThreshold: 12, VolumeThreshold: 0.9},
		Normal:             RegimeThresholds{MinDistanceMult: 0.15, MaxDistanceMult: 0.25, ADXThreshold: 15, VolumeThreshold: 1.0},
		High:               RegimeThresholds{MinDistanceMult: 0.20, MaxDistanceMult: 0.30, ADXThreshold: 18, VolumeThreshold: 1.2},
	}
}

// For returns the thresholds of a regime
func (c VolatilityConfig) For(regime models.VolatilityRegime) RegimeThresholds {
	switch regime {
	case models.VolatilityLow:
		return c.Low
	case models.VolatilityHigh:
		return c.High
	default:
		return c.Normal
	}
}

// ClassifyRatio maps an ATR ratio to a regime
func (c VolatilityConfig) ClassifyRatio(ratio float64) models.VolatilityRegime {
	switch {
	case ratio < c.LowRatio:
		return models.VolatilityLow
	case ratio > c.HighRatio:
		return models.VolatilityHigh
	default:
		return models.VolatilityNormal
	}
}

// VolatilityDetector classifies short-term volatility and derives adaptive thresholds
type VolatilityDetector struct {
	cfg VolatilityConfig
}

// NewVolatilityDetector creates a detector
func NewVolatilityDetector(cfg VolatilityConfig) *VolatilityDetector {
	return &VolatilityDetector{cfg: cfg}
}

// Detect builds the volatility profile of bar i. It never fails: short or degenerate
// windows produce the NORMAL profile around a fallback ATR.
func (d *VolatilityDetector) Detect(w models.MarketWindow, i int) models.VolatilityProfile {
	if !w.Valid(i) {
		return d.profile(models.VolatilityNormal, d.cfg.FallbackATRPct, 1.0, 50)
	}
	candles := w.Candles
	price := candles[i].Close

	currentATR, ok := ATRAt(candles, i, d.cfg.ATRPeriod)
	if !ok || currentATR <= 0 || !Finite(currentATR) {
		// Нет истории - берем процент от цены
		currentATR = price * d.cfg.FallbackATRPct
	}
	if currentATR <= 0 || !Finite(currentATR) {
		currentATR = d.cfg.FallbackATRPct
	}

	regime := models.VolatilityNormal
	ratio := 1.0
	atrShort, okShort := ATR(candles, i, d.cfg.ShortATRPeriod)
	atrLong, okLong := ATR(candles, i, d.cfg.LongATRPeriod)
	if okShort && okLong {
		if atrLong == 0 {
			// Рынок стоит на месте: нулевая волатильность это LOW, а не NaN
			regime, ratio = models.VolatilityLow, 0
		} else {
			ratio = atrShort / atrLong
			regime = d.cfg.ClassifyRatio(ratio)
		}
	}

	return d.profile(regime, currentATR, ratio, d.percentile(candles, i))
}

func (d *VolatilityDetector) profile(regime models.VolatilityRegime, atr, ratio, percentile float64) models.VolatilityProfile {
	th := d.cfg.For(regime)
	return models.VolatilityProfile{
		Regime:               regime,
		CurrentATR:           atr,
		MinDistance:          atr * th.MinDistanceMult,
		MaxDistance:          atr * th.MaxDistanceMult,
		ADXThreshold:         th.ADXThreshold,
		VolumeThreshold:      th.VolumeThreshold,
		ATRRatio:             ratio,
		VolatilityPercentile: percentile,
	}
}

// percentile ranks the true range of bar i among the last PercentileLookback true ranges
func (d *VolatilityDetector) percentile(candles []models.Candle, i int) float64 {
	n := d.cfg.PercentileLookback
	if n <= 0 || i < n {
		return 50
	}
	trs := make([]float64, 0, n)
	for k := i - n + 1; k <= i; k++ {
		trs = append(trs, TrueRange(candles[k], candles[k-1]))
	}
	return PercentileRank(trs, trs[len(trs)-1])
}

// CheckFilters applies the adaptive entry filters of bar i with the thresholds of profile
func (d *VolatilityDetector) CheckFilters(w models.MarketWindow, i int, profile models.VolatilityProfile) models.FilterCheck {
	check := models.FilterCheck{Total: 4}
	if !w.Valid(i) {
		check.Passed = true
		check.PassedCount = check.Total
		return check
	}
	candles := w.Candles

	record := func(name string, ok bool) {
		if ok {
			check.PassedCount++
			return
		}
		check.Failed = append(check.Failed, name)
	}

	// 1. Range of the recent bars must cover the minimum distance
	distanceOK := true
	if i >= d.cfg.FilterLookback {
		high, low := math.Inf(-1), math.Inf(1)
		for k := i - d.cfg.FilterLookback; k <= i; k++ {
			high = math.Max(high, candles[k].High)
			low = math.Min(low, candles[k].Low)
		}
		distanceOK = high-low >= profile.MinDistance
	}
	record("min_distance", distanceOK)

	// 2. Trend strength
	adx := d.cfg.DefaultADX
	if candles[i].ADX != nil && Finite(*candles[i].ADX) {
		adx = *candles[i].ADX
	}
	record("adx", adx >= profile.ADXThreshold)

	// 3. Volume against the previous bars
	volumeRatio := 1.0
	if i >= d.cfg.FilterLookback {
		avg := Mean(w.Volumes(i-d.cfg.FilterLookback, i-1))
		volumeRatio = Ratio(candles[i].Volume, avg, 1.0)
	}
	record("volume", volumeRatio >= profile.VolumeThreshold)

	// 4. Only extreme regimes are blocked
	volatilityOK := !(profile.Regime == models.VolatilityLow && profile.ATRRatio < d.cfg.ExtremeLowRatio) &&
		!(profile.Regime == models.VolatilityHigh && profile.ATRRatio > d.cfg.ExtremeHighRatio)
	record("volatility", volatilityOK)

	check.Passed = check.PassedCount == check.Total
	return check
}

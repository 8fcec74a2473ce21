package anomaly

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Calibrator/internal/calculate"
	"github.com/Alias1177/Calibrator/models"
)

// RegimeMultiplierTable holds the parameter multipliers of every regime
type RegimeMultiplierTable struct {
	BullTrend    models.RegimeMultipliers `yaml:"bull_trend"`
	BearTrend    models.RegimeMultipliers `yaml:"bear_trend"`
	HighVolRange models.RegimeMultipliers `yaml:"high_vol_range"`
	LowVolRange  models.RegimeMultipliers `yaml:"low_vol_range"`
	Crash        models.RegimeMultipliers `yaml:"crash"`
}

// For returns the row of a regime; unknown regimes get the LOW_VOL_RANGE row
func (t RegimeMultiplierTable) For(regime models.Regime) models.RegimeMultipliers {
	switch regime {
	case models.RegimeBullTrend:
		return t.BullTrend
	case models.RegimeBearTrend:
		return t.BearTrend
	case models.RegimeHighVolRange:
		return t.HighVolRange
	case models.RegimeCrash:
		return t.Crash
	default:
		return t.LowVolRange
	}
}

// RegimeConfig configures the market regime classifier
type RegimeConfig struct {
	EMAPeriod    int `yaml:"ema_period"`
	ADXPeriod    int `yaml:"adx_period"`
	ATRPeriod    int `yaml:"atr_period"`
	ATRAvgPeriod int `yaml:"atr_avg_period"`

	ADXTrend            float64 `yaml:"adx_trend"`
	ADXRange            float64 `yaml:"adx_range"`
	ADXExcessSpan       float64 `yaml:"adx_excess_span"`
	TrendDistanceCapPct float64 `yaml:"trend_distance_cap_pct"`
	HighVolRatio        float64 `yaml:"high_vol_ratio"`
	HighVolSpan         float64 `yaml:"high_vol_span"`
	LowVolRatio         float64 `yaml:"low_vol_ratio"`
	LowVolSpan          float64 `yaml:"low_vol_span"`
	CrashDropPct        float64 `yaml:"crash_drop_pct"`
	CrashATRRatio       float64 `yaml:"crash_atr_ratio"`
	CrashLookback       int     `yaml:"crash_lookback"`
	CrashScore          float64 `yaml:"crash_score"`
	FallbackConfidence  float64 `yaml:"fallback_confidence"`

	HistorySize      int `yaml:"history_size"`
	StatisticsWindow int `yaml:"statistics_window"`

	Multipliers RegimeMultiplierTable `yaml:"multipliers"`
}

// DefaultRegimeConfig returns the production thresholds and multipliers
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		EMAPeriod:           200,
		ADXPeriod:           14,
		ATRPeriod:           14,
		ATRAvgPeriod:        20,
		ADXTrend:            25,
		ADXRange:            20,
		ADXExcessSpan:       30,
		TrendDistanceCapPct: 10,
		HighVolRatio:        1.5,
		HighVolSpan:         1.0,
		LowVolRatio:         0.8,
		LowVolSpan:          0.3,
		CrashDropPct:        8,
		CrashATRRatio:       2.0,
		CrashLookback:       5,
		CrashScore:          0.9,
		FallbackConfidence:  0.5,
		HistorySize:         100,
		StatisticsWindow:    24,
		Multipliers: RegimeMultiplierTable{
			BullTrend:    models.RegimeMultipliers{PositionSize: 1.4, StopLoss: 0.8, TakeProfit: 1.5, Aggression: 1.3, QualityThreshold: 0.90},
			BearTrend:    models.RegimeMultipliers{PositionSize: 0.6, StopLoss: 1.3, TakeProfit: 1.2, Aggression: 0.7, QualityThreshold: 1.15},
			HighVolRange: models.RegimeMultipliers{PositionSize: 0.8, StopLoss: 1.5, TakeProfit: 1.3, Aggression: 0.9, QualityThreshold: 1.10},
			LowVolRange:  models.RegimeMultipliers{PositionSize: 1.2, StopLoss: 0.9, TakeProfit: 1.4, Aggression: 1.1, QualityThreshold: 0.95},
			Crash:        models.RegimeMultipliers{PositionSize: 0.3, StopLoss: 2.0, TakeProfit: 0.8, Aggression: 0.3, QualityThreshold: 1.50},
		},
	}
}

// RegimeRecord is one entry of the classification history
type RegimeRecord struct {
	Symbol     string        `json:"symbol"`
	Regime     models.Regime `json:"regime"`
	Confidence float64       `json:"confidence"`
	At         time.Time     `json:"at"`
}

// RegimeStatistics summarizes the recent history
type RegimeStatistics struct {
	Current      models.Regime             `json:"current"`
	Confidence   float64                   `json:"confidence"`
	Samples      int                       `json:"samples"`
	Distribution map[models.Regime]float64 `json:"distribution"`
}

// RegimeClassifier assigns one of five market regimes and keeps a bounded history
type RegimeClassifier struct {
	cfg    RegimeConfig
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	history []RegimeRecord
}

// NewRegimeClassifier creates a classifier
func NewRegimeClassifier(cfg RegimeConfig) *RegimeClassifier {
	return &RegimeClassifier{
		cfg:    cfg,
		logger: log.With().Str("component", "regime_classifier").Logger(),
		now:    time.Now,
	}
}

// Multipliers returns the confidence-scaled multipliers of a classification
func (c *RegimeClassifier) Multipliers(rc models.RegimeClassification) models.RegimeMultipliers {
	return c.cfg.Multipliers.For(rc.Regime).Scale(rc.Confidence)
}

// Classify determines the market regime at bar i. It never fails: a crash is detected on
// any window, otherwise a window too short for the trend EMA yields the default
// LOW_VOL_RANGE classification.
func (c *RegimeClassifier) Classify(w models.MarketWindow, i int) models.RegimeClassification {
	ind, ok := c.indicators(w, i)

	scores := make(map[models.Regime]float64, len(models.Regimes))
	for _, r := range models.Regimes {
		scores[r] = 0
	}

	// CRASH needs only the return and the ATR ratio and overrides everything else
	if ind.PriceChange5 < -c.cfg.CrashDropPct && ind.ATRRatio > c.cfg.CrashATRRatio {
		scores[models.RegimeCrash] = c.cfg.CrashScore
		c.logger.Warn().
			Str("symbol", w.Symbol).
			Float64("price_change_pct", ind.PriceChange5).
			Float64("atr_ratio", ind.ATRRatio).
			Bool("ema_available", ok).
			Msg("Crash regime detected")
		rc := models.RegimeClassification{
			Regime:     models.RegimeCrash,
			Confidence: c.cfg.CrashScore,
			Scores:     scores,
			Indicators: ind,
		}
		c.record(w.Symbol, rc)
		return rc
	}

	if !ok {
		rc := c.defaultClassification(ind)
		c.record(w.Symbol, rc)
		return rc
	}

	distancePct := (ind.Price - ind.EMA200) / ind.EMA200 * 100
	adxExcess := math.Min((ind.ADX-c.cfg.ADXTrend)/c.cfg.ADXExcessSpan, 1)

	if ind.ADX > c.cfg.ADXTrend {
		if ind.Price > ind.EMA200 {
			scores[models.RegimeBullTrend] = (math.Min(distancePct, c.cfg.TrendDistanceCapPct)/c.cfg.TrendDistanceCapPct + adxExcess) / 2
		} else if ind.Price < ind.EMA200 {
			scores[models.RegimeBearTrend] = (math.Min(-distancePct, c.cfg.TrendDistanceCapPct)/c.cfg.TrendDistanceCapPct + adxExcess) / 2
		}
	}

	if ind.ADX < c.cfg.ADXRange {
		if ind.ATRRatio > c.cfg.HighVolRatio {
			scores[models.RegimeHighVolRange] = math.Min((ind.ATRRatio-c.cfg.HighVolRatio)/c.cfg.HighVolSpan, 1)
		}
		if ind.ATRRatio < c.cfg.LowVolRatio {
			scores[models.RegimeLowVolRange] = math.Min((c.cfg.LowVolRatio-ind.ATRRatio)/c.cfg.LowVolSpan, 1)
		}
	}

	best, bestScore := models.RegimeLowVolRange, 0.0
	for _, r := range models.Regimes {
		if scores[r] > bestScore {
			best, bestScore = r, scores[r]
		}
	}

	rc := models.RegimeClassification{Scores: scores, Indicators: ind}
	if bestScore > 0 {
		rc.Regime = best
		rc.Confidence = calculate.Clamp(bestScore, 0, 1)
	} else {
		rc.Fallback = true
		rc.Confidence = c.cfg.FallbackConfidence
		switch {
		case ind.Price > ind.EMA200:
			rc.Regime = models.RegimeBullTrend
		case ind.Price < ind.EMA200:
			rc.Regime = models.RegimeBearTrend
		default:
			rc.Regime = models.RegimeLowVolRange
		}
		scores[rc.Regime] = rc.Confidence
	}

	c.logger.Debug().
		Str("symbol", w.Symbol).
		Str("regime", string(rc.Regime)).
		Float64("confidence", rc.Confidence).
		Float64("adx", ind.ADX).
		Float64("atr_ratio", ind.ATRRatio).
		Msg("Market regime classified")

	c.record(w.Symbol, rc)
	return rc
}

// indicators gathers the classification inputs of bar i, computing the ones the window lacks.
// ok is false when the trend EMA is unavailable; the crash inputs are filled in regardless.
func (c *RegimeClassifier) indicators(w models.MarketWindow, i int) (ind models.RegimeIndicators, ok bool) {
	if !w.Valid(i) {
		return ind, false
	}
	candles := w.Candles
	ind.Price = candles[i].Close

	adx, found := calculate.ADXAt(candles, i, c.cfg.ADXPeriod)
	if !found {
		adx = c.cfg.ADXRange
	}
	ind.ADX = adx
	ind.ATRRatio = c.atrRatio(candles, i)

	if i >= c.cfg.CrashLookback {
		prev := candles[i-c.cfg.CrashLookback].Close
		ind.PriceChange5 = calculate.Ratio(ind.Price-prev, prev, 0) * 100
	}

	switch {
	case candles[i].EMA200 != nil && calculate.Finite(*candles[i].EMA200):
		ind.EMA200 = *candles[i].EMA200
	case i+1 >= c.cfg.EMAPeriod:
		ema, computed := calculate.EMA(w.Closes(0, i), c.cfg.EMAPeriod)
		if !computed {
			return ind, false
		}
		ind.EMA200 = ema
	default:
		return ind, false
	}
	if ind.EMA200 <= 0 || ind.Price <= 0 {
		return ind, false
	}

	ind.SufficientData = true
	return ind, true
}

// atrRatio divides the current ATR by the average ATR of the last ATRAvgPeriod bars
func (c *RegimeClassifier) atrRatio(candles []models.Candle, i int) float64 {
	current, ok := calculate.ATRAt(candles, i, c.cfg.ATRPeriod)
	if !ok {
		return 1.0
	}

	var values []float64
	for k := i - c.cfg.ATRAvgPeriod + 1; k <= i; k++ {
		if k < 0 {
			continue
		}
		if v, ok := calculate.ATRAt(candles, k, c.cfg.ATRPeriod); ok {
			values = append(values, v)
		}
	}
	avg := calculate.Mean(values)
	if avg <= 0 {
		return 1.0
	}
	return calculate.Ratio(current, avg, 1.0)
}

func (c *RegimeClassifier) defaultClassification(ind models.RegimeIndicators) models.RegimeClassification {
	scores := make(map[models.Regime]float64, len(models.Regimes))
	for _, r := range models.Regimes {
		scores[r] = 0
	}
	scores[models.RegimeLowVolRange] = c.cfg.FallbackConfidence
	return models.RegimeClassification{
		Regime:     models.RegimeLowVolRange,
		Confidence: c.cfg.FallbackConfidence,
		Scores:     scores,
		Indicators: ind,
		Fallback:   true,
	}
}

func (c *RegimeClassifier) record(symbol string, rc models.RegimeClassification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, RegimeRecord{
		Symbol:     symbol,
		Regime:     rc.Regime,
		Confidence: rc.Confidence,
		At:         c.now(),
	})
	if over := len(c.history) - c.cfg.HistorySize; over > 0 {
		c.history = append(c.history[:0:0], c.history[over:]...)
	}
}

// History returns a copy of the recorded classifications, oldest first
func (c *RegimeClassifier) History() []RegimeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]RegimeRecord, len(c.history))
	copy(out, c.history)
	return out
}

// Statistics reports the regime distribution over the most recent records
func (c *RegimeClassifier) Statistics() RegimeStatistics {
	history := c.History()
	stats := RegimeStatistics{Distribution: make(map[models.Regime]float64)}
	if len(history) == 0 {
		return stats
	}

	last := history[len(history)-1]
	stats.Current = last.Regime
	stats.Confidence = last.Confidence

	recent := history
	if len(recent) > c.cfg.StatisticsWindow {
		recent = recent[len(recent)-c.cfg.StatisticsWindow:]
	}
	stats.Samples = len(recent)
	for _, r := range recent {
		stats.Distribution[r.Regime] += 100 / float64(len(recent))
	}
	return stats
}

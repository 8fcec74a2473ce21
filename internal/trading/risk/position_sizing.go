package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Calibrator/internal/calculate"
	"github.com/Alias1177/Calibrator/models"
)

// FactorWeights are the blend weights of the sizing factors
type FactorWeights struct {
	Volatility      float64 `yaml:"volatility"`
	TrendStrength   float64 `yaml:"trend_strength"`
	VolumeProfile   float64 `yaml:"volume_profile"`
	MarketSentiment float64 `yaml:"market_sentiment"`
	AccountHealth   float64 `yaml:"account_health"`
}

// SizingConfig configures the position sizing engine
type SizingConfig struct {
	Weights       FactorWeights `yaml:"weights"`
	Lookback      int           `yaml:"lookback"`
	TrendMinBars  int           `yaml:"trend_min_bars"`
	HistoryWeight float64       `yaml:"history_weight"`
	MinRiskPct    float64       `yaml:"min_risk_pct"`
	MaxRiskPct    float64       `yaml:"max_risk_pct"`
	MinLeverage   float64       `yaml:"min_leverage"`
	MaxLeverage   float64       `yaml:"max_leverage"`
}

// DefaultSizingConfig returns the production sizing settings
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		Weights: FactorWeights{
			Volatility:      0.25,
			TrendStrength:   0.20,
			VolumeProfile:   0.15,
			MarketSentiment: 0.15,
			AccountHealth:   0.25,
		},
		Lookback:      20,
		TrendMinBars:  50,
		HistoryWeight: 0.5,
		MinRiskPct:    0.5,
		MaxRiskPct:    8,
		MinLeverage:   1,
		MaxLeverage:   20,
	}
}

// SizingInput is everything the sizing engine reads for one signal
type SizingInput struct {
	Window    models.MarketWindow
	Index     int
	Direction models.Direction
	Account   models.AccountSnapshot
	Base      models.BaseParams
	// PositionScale is the regime position-size multiplier, applied to risk before clamping
	PositionScale float64
	History       models.EffectivenessReader
}

// PositionSizer blends live market factors with historical effectiveness
type PositionSizer struct {
	cfg    SizingConfig
	logger zerolog.Logger
}

// NewPositionSizer creates a sizing engine
func NewPositionSizer(cfg SizingConfig) *PositionSizer {
	return &PositionSizer{
		cfg:    cfg,
		logger: log.With().Str("component", "position_sizing").Logger(),
	}
}

// Size computes risk percent, leverage and entry amount
func (s *PositionSizer) Size(in SizingInput) models.SizingResult {
	f := s.Factors(in.Window, in.Index, in.Account)
	w := s.cfg.Weights

	riskFactor := blend(
		[]float64{f.Volatility, f.VolumeProfile, f.MarketSentiment, f.AccountHealth},
		[]float64{w.Volatility, w.VolumeProfile, w.MarketSentiment, w.AccountHealth},
	)
	leverageFactor := blend(
		[]float64{f.TrendStrength, f.MarketSentiment, f.AccountHealth},
		[]float64{w.TrendStrength, w.MarketSentiment, w.AccountHealth},
	)

	histRisk, histLeverage := in.Base.RiskPct, in.Base.Leverage
	result := models.SizingResult{Factors: f, RiskFactor: riskFactor, LeverageFactor: leverageFactor}
	if in.History != nil {
		if eff, ok := in.History.Lookup(in.Window.Symbol, in.Direction); ok {
			result.History, result.HasHistory = eff, true
			if eff.OptimalRiskPct > 0 {
				histRisk = eff.OptimalRiskPct
			}
			if eff.OptimalLeverage > 0 {
				histLeverage = eff.OptimalLeverage
			}
		}
	}

	hw := s.cfg.HistoryWeight
	riskPct := histRisk*hw + in.Base.RiskPct*riskFactor*(1-hw)
	leverage := histLeverage*hw + in.Base.Leverage*leverageFactor*(1-hw)

	if in.PositionScale > 0 && calculate.Finite(in.PositionScale) {
		riskPct *= in.PositionScale
	}

	riskPct = calculate.Clamp(finiteOr(riskPct, in.Base.RiskPct), s.cfg.MinRiskPct, s.cfg.MaxRiskPct)
	leverage = calculate.Clamp(finiteOr(leverage, in.Base.Leverage), s.cfg.MinLeverage, s.cfg.MaxLeverage)

	entry := in.Account.FreeDeposit * riskPct / 100
	if in.Account.TradeMode == models.Futures {
		entry *= leverage
	} else {
		leverage = 1
	}

	result.RiskPct = riskPct
	result.Leverage = leverage
	result.EntryAmount = entry

	s.logger.Debug().
		Str("symbol", in.Window.Symbol).
		Str("side", string(in.Direction)).
		Float64("risk_pct", riskPct).
		Float64("leverage", leverage).
		Float64("entry_amount", entry).
		Bool("history", result.HasHistory).
		Msg("Position sized")

	return result
}

// Factors evaluates every sizing factor of bar i. A factor that fails is 1.0.
func (s *PositionSizer) Factors(w models.MarketWindow, i int, account models.AccountSnapshot) models.SizingFactors {
	return models.SizingFactors{
		Volatility:      s.guard("volatility", func() (float64, error) { return s.volatilityFactor(w, i) }),
		TrendStrength:   s.guard("trend_strength", func() (float64, error) { return s.trendFactor(w, i) }),
		VolumeProfile:   s.guard("volume_profile", func() (float64, error) { return s.volumeFactor(w, i) }),
		MarketSentiment: s.guard("market_sentiment", func() (float64, error) { return s.sentimentFactor(w, i) }),
		AccountHealth:   s.guard("account_health", func() (float64, error) { return accountHealthFactor(account), nil }),
	}
}

// guard runs one factor and turns errors, non-finite results and panics into 1.0
func (s *PositionSizer) guard(name string, fn func() (float64, error)) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("factor", name).Interface("panic", r).Msg("Sizing factor panicked")
			v = 1.0
		}
	}()

	v, err := fn()
	if err != nil {
		s.logger.Warn().Err(err).Str("factor", name).Msg("Sizing factor failed")
		return 1.0
	}
	if !calculate.Finite(v) {
		s.logger.Warn().Str("factor", name).Float64("value", v).Msg("Sizing factor is not finite")
		return 1.0
	}
	return v
}

// volatilityFactor shrinks size when the previous closes are dispersed
func (s *PositionSizer) volatilityFactor(w models.MarketWindow, i int) (float64, error) {
	n := s.cfg.Lookback
	if !w.Valid(i) || i < n {
		return 1.0, nil
	}
	closes := w.Closes(i-n, i-1)
	mean := calculate.Mean(closes)
	if mean == 0 {
		return 0, fmt.Errorf("zero mean close over %d bars", n)
	}
	volatility := calculate.SampleStdDev(closes) / mean
	return calculate.Clamp(1-volatility*2, 0.5, 1.2), nil
}

// trendFactor allows more leverage when the fast and slow EMAs diverge
func (s *PositionSizer) trendFactor(w models.MarketWindow, i int) (float64, error) {
	if !w.Valid(i) || i < s.cfg.TrendMinBars {
		return 1.0, nil
	}
	c := w.Candles[i]
	if c.EMAFast == nil || c.EMASlow == nil {
		return 1.0, nil
	}
	if c.Close == 0 {
		return 0, fmt.Errorf("zero close at bar %d", i)
	}
	distance := math.Abs(*c.EMAFast-*c.EMASlow) / c.Close
	return calculate.Clamp(0.8+distance*100, 0.8, 1.5), nil
}

func (s *PositionSizer) volumeFactor(w models.MarketWindow, i int) (float64, error) {
	n := s.cfg.Lookback
	if !w.Valid(i) || i < n {
		return 1.0, nil
	}
	avg := calculate.Mean(w.Volumes(i-n, i-1))
	ratio := calculate.Ratio(w.Candles[i].Volume, avg, 1.0)
	return calculate.Clamp(0.8+ratio*0.4, 0.8, 1.3), nil
}

// sentimentFactor averages the RSI and ADX terms; a missing indicator counts as neutral
func (s *PositionSizer) sentimentFactor(w models.MarketWindow, i int) (float64, error) {
	if !w.Valid(i) {
		return 1.0, nil
	}
	c := w.Candles[i]

	rsiTerm := 1.0
	if c.RSI != nil && calculate.Finite(*c.RSI) {
		switch {
		case *c.RSI > 70:
			rsiTerm = 0.8
		case *c.RSI < 30:
			rsiTerm = 1.2
		}
	}

	adxTerm := 1.0
	if c.ADX != nil && calculate.Finite(*c.ADX) {
		switch {
		case *c.ADX > 30:
			adxTerm = 1.1
		case *c.ADX < 20:
			adxTerm = 0.9
		}
	}

	return (rsiTerm + adxTerm) / 2, nil
}

func accountHealthFactor(a models.AccountSnapshot) float64 {
	profitRatio := 0.0
	if a.Deposit > 0 {
		profitRatio = a.TotalProfit / a.Deposit
	}
	profit := calculate.Clamp(0.8+profitRatio*2, 0.7, 1.3)
	diversification := calculate.Clamp(1-float64(a.OpenPositions)*0.05, 0.7, 1.0)
	return (profit + diversification) / 2
}

// blend is the weighted mean of factors, 1.0 when the weights sum to zero
func blend(factors, weights []float64) float64 {
	var sum, total float64
	for k, f := range factors {
		sum += f * weights[k]
		total += weights[k]
	}
	if total <= 0 {
		return 1.0
	}
	return sum / total
}

func finiteOr(v, fallback float64) float64 {
	if calculate.Finite(v) {
		return v
	}
	return fallback
}

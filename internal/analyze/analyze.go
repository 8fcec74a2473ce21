package analyze

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Calibrator/internal/analysis/technical"
	"github.com/Alias1177/Calibrator/internal/anomaly"
	"github.com/Alias1177/Calibrator/internal/calculate"
	"github.com/Alias1177/Calibrator/internal/trading/exits"
	"github.com/Alias1177/Calibrator/internal/trading/risk"
	"github.com/Alias1177/Calibrator/internal/validation"
	"github.com/Alias1177/Calibrator/models"
)

// ErrInvalidRequest is returned for requests the engine cannot evaluate at all
var ErrInvalidRequest = errors.New("invalid request")

// idNamespace scopes the deterministic trade parameter IDs
var idNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e3f-9a10-2c4d6e8f0b1a")

// Config is the immutable tuning of every pipeline component
type Config struct {
	EnrichIndicators bool                       `yaml:"enrich_indicators"`
	Periods          calculate.Periods          `yaml:"periods"`
	Volatility       calculate.VolatilityConfig `yaml:"volatility"`
	Regime           anomaly.RegimeConfig       `yaml:"regime"`
	Patterns         anomaly.PatternConfig      `yaml:"patterns"`
	Quality          anomaly.QualityConfig      `yaml:"quality"`
	Zones            technical.ZoneConfig       `yaml:"zones"`
	Exits            exits.Config               `yaml:"exits"`
	Sizing           risk.SizingConfig          `yaml:"sizing"`
	// BaseQualityThreshold is scaled by the regime quality multiplier
	BaseQualityThreshold float64 `yaml:"base_quality_threshold"`
}

// DefaultConfig returns the production configuration
func DefaultConfig() Config {
	return Config{
		EnrichIndicators:     true,
		Periods:              calculate.DefaultPeriods(),
		Volatility:           calculate.DefaultVolatilityConfig(),
		Regime:               anomaly.DefaultRegimeConfig(),
		Patterns:             anomaly.DefaultPatternConfig(),
		Quality:              anomaly.DefaultQualityConfig(),
		Zones:                technical.DefaultZoneConfig(),
		Exits:                exits.DefaultConfig(),
		Sizing:               risk.DefaultSizingConfig(),
		BaseQualityThreshold: 0.4,
	}
}

// Request is one parameterization job
type Request struct {
	Window     models.MarketWindow
	Index      int
	Direction  models.Direction
	Account    models.AccountSnapshot
	Base       models.BaseParams
	Instrument models.Instrument
	// Effectiveness is optional; nil means no history for any symbol
	Effectiveness models.EffectivenessReader
	// Zones overrides the levels derived from the window
	Zones []models.ZoneLevel
}

// Engine turns a market window and an account snapshot into validated trade parameters.
// It is safe for concurrent use.
type Engine struct {
	cfg        Config
	volatility *calculate.VolatilityDetector
	regimes    *anomaly.RegimeClassifier
	patterns   *anomaly.PatternDetector
	quality    *anomaly.QualityAdjuster
	zones      *technical.ZoneProvider
	exits      *exits.Calculator
	sizer      *risk.PositionSizer
	validator  *validation.Validator
	logger     zerolog.Logger
}

// NewEngine wires every component from cfg
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:        cfg,
		volatility: calculate.NewVolatilityDetector(cfg.Volatility),
		regimes:    anomaly.NewRegimeClassifier(cfg.Regime),
		patterns:   anomaly.NewPatternDetector(cfg.Patterns),
		quality:    anomaly.NewQualityAdjuster(cfg.Quality),
		zones:      technical.NewZoneProvider(cfg.Zones),
		exits:      exits.NewCalculator(cfg.Exits),
		sizer:      risk.NewPositionSizer(cfg.Sizing),
		validator:  validation.NewValidator(validation.DefaultRegistry()),
		logger:     log.With().Str("component", "engine").Logger(),
	}
}

// Regimes exposes the classifier for history and statistics
func (e *Engine) Regimes() *anomaly.RegimeClassifier {
	return e.regimes
}

// ComputeTradeParameters runs the whole pipeline for one signal.
// Invariant violations are returned as *validation.ValidationError.
func (e *Engine) ComputeTradeParameters(req Request) (*models.TradeParameters, error) {
	if !req.Window.Valid(req.Index) {
		return nil, fmt.Errorf("%w: index %d outside window of %d candles", ErrInvalidRequest, req.Index, req.Window.Len())
	}
	if !req.Direction.Valid() {
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidRequest, req.Direction)
	}

	w := req.Window
	if e.cfg.EnrichIndicators {
		w = calculate.Enrich(w, e.cfg.Periods)
	}
	i := req.Index

	// 1. Volatility and regime
	profile := e.volatility.Detect(w, i)
	filters := e.volatility.CheckFilters(w, i, profile)
	regime := e.regimes.Classify(w, i)
	mult := e.regimes.Multipliers(regime)

	// 2. Institutional patterns
	quality := e.quality.Adjust(e.patterns.Detect(w, i))

	// 3. Exit levels from the regime-adjusted base
	levels, method := req.Zones, models.ExitZone
	if len(levels) == 0 {
		levels, method = e.zones.Levels(w, i)
	}
	adjusted := req.Base
	adjusted.TP1Pct *= mult.TakeProfit
	adjusted.TP2Pct *= mult.TakeProfit
	adjusted.SLPct *= mult.StopLoss

	entry := w.Candles[i].Close
	exitLevels := e.exits.Calculate(entry, req.Direction, levels, method, adjusted)

	// 4. Size
	sizing := e.sizer.Size(risk.SizingInput{
		Window:        w,
		Index:         i,
		Direction:     req.Direction,
		Account:       req.Account,
		Base:          req.Base,
		PositionScale: mult.PositionSize,
		History:       req.Effectiveness,
	})

	// 5. Assemble
	params := e.assemble(w, req, entry, exitLevels, sizing)
	params.QualityScore = quality.QualityScore
	params.Recommendation = quality.Recommendation
	params.Regime = regime.Regime
	params.RegimeConfidence = regime.Confidence
	params.VolatilityRegime = profile.Regime
	params.ExitMethod = exitLevels.Method
	params.Diagnostics = models.Diagnostics{
		Volatility:  profile,
		Filters:     filters,
		Regime:      regime,
		Multipliers: mult,
		Exits:       exitLevels,
		Sizing:      sizing,
		Quality:     quality,
	}
	params.ID = tradeID(params, w.Candles[i].Datetime, i)

	// 6. Validate
	if err := e.validate(params, profile, regime, mult); err != nil {
		e.logger.Error().Err(err).Str("symbol", params.Symbol).Str("side", string(params.Direction)).Msg("Trade parameters rejected")
		return nil, err
	}

	e.logger.Info().
		Str("id", params.ID).
		Str("symbol", params.Symbol).
		Str("side", string(params.Direction)).
		Float64("entry", params.EntryPrice).
		Float64("sl", params.SLPrice).
		Float64("tp1", params.TP1Price).
		Float64("tp2", params.TP2Price).
		Float64("risk_pct", params.RiskPct).
		Float64("leverage", params.Leverage).
		Str("regime", string(params.Regime)).
		Str("exit_method", string(params.ExitMethod)).
		Msg("Trade parameters computed")

	return params, nil
}

// assemble converts percentage exits into prices and rounds them to the instrument grid
func (e *Engine) assemble(w models.MarketWindow, req Request, entry float64, ex models.ExitLevels, sizing models.SizingResult) *models.TradeParameters {
	sign := req.Direction.Sign()
	p := &models.TradeParameters{
		Symbol:      w.Symbol,
		Direction:   req.Direction,
		EntryPrice:  entry,
		SLPrice:     entry * (1 - sign*ex.SLPct/100),
		TP1Price:    entry * (1 + sign*ex.TP1Pct/100),
		TP2Price:    entry * (1 + sign*ex.TP2Pct/100),
		EntryAmount: sizing.EntryAmount,
		FreeDeposit: req.Account.FreeDeposit,
		Leverage:    sizing.Leverage,
		RiskPct:     sizing.RiskPct,
	}
	if entry > 0 {
		p.Quantity = sizing.EntryAmount / entry
	}
	roundToInstrument(p, req.Instrument)
	return p
}

func (e *Engine) validate(p *models.TradeParameters, profile models.VolatilityProfile, regime models.RegimeClassification, mult models.RegimeMultipliers) error {
	if _, err := e.validator.Validate(validation.EntityVolatility, profile); err != nil {
		return err
	}
	if _, err := e.validator.Validate(validation.EntityRegime, regime); err != nil {
		return err
	}

	report, err := e.validator.Validate(validation.EntityTrade, validation.TradeCheck{
		Params:           *p,
		MinDistance:      profile.MinDistance,
		QualityThreshold: e.cfg.BaseQualityThreshold * mult.QualityThreshold,
	})
	if err != nil {
		return err
	}
	for _, w := range report.Warnings {
		p.Diagnostics.Warnings = append(p.Diagnostics.Warnings, w.Invariant)
	}
	return nil
}

// tradeID derives a stable ID from the computed parameters, so equal requests get equal IDs
func tradeID(p *models.TradeParameters, datetime string, index int) string {
	key := fmt.Sprintf("%s|%s|%s|%d|%.10g|%.10g|%.10g|%.10g|%.10g|%.10g|%.10g|%s|%s",
		p.Symbol, p.Direction, datetime, index, p.EntryPrice, p.SLPrice, p.TP1Price, p.TP2Price,
		p.Quantity, p.Leverage, p.RiskPct, p.Regime, p.ExitMethod)
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

package validation

import (
	"math"

	"github.com/Alias1177/Calibrator/models"
)

// Trade limits enforced as errors
const (
	MinRiskPct  = 0.1
	MaxRiskPct  = 10.0
	MinLeverage = 1.0
	MaxLeverage = 20.0
)

// priceEpsilon absorbs float noise when comparing amounts
const priceEpsilon = 1e-9

// TradeCheck is the subject of trade invariants: the parameters plus the context
// the warnings compare against
type TradeCheck struct {
	Params models.TradeParameters
	// MinDistance is the volatility profile's minimum meaningful stop distance, in price units
	MinDistance float64
	// QualityThreshold is the regime-adjusted minimum quality score
	QualityThreshold float64
}

func typed[T any](check func(T) bool) func(any) bool {
	return func(subject any) bool {
		t, ok := subject.(T)
		return ok && check(t)
	}
}

func typedFields[T any](fields func(T) map[string]any) func(any) map[string]any {
	return func(subject any) map[string]any {
		t, ok := subject.(T)
		if !ok {
			return map[string]any{"subject": subject}
		}
		return fields(t)
	}
}

func tradePrices(c TradeCheck) map[string]any {
	p := c.Params
	return map[string]any{
		"direction": p.Direction,
		"entry":     p.EntryPrice,
		"sl":        p.SLPrice,
		"tp1":       p.TP1Price,
		"tp2":       p.TP2Price,
	}
}

// RegisterTradeInvariants adds the trade parameter rules
func RegisterTradeInvariants(r *Registry) {
	r.Register(EntityTrade,
		Invariant{
			Name:     "known_direction",
			Severity: SeverityError,
			Message:  "direction must be LONG or SHORT",
			Check:    typed(func(c TradeCheck) bool { return c.Params.Direction.Valid() }),
			Fields: typedFields(func(c TradeCheck) map[string]any {
				return map[string]any{"direction": c.Params.Direction}
			}),
		},
		Invariant{
			Name:     "positive_prices",
			Severity: SeverityError,
			Message:  "entry, stop and take-profit prices must be positive",
			Check: typed(func(c TradeCheck) bool {
				p := c.Params
				return p.EntryPrice > 0 && p.SLPrice > 0 && p.TP1Price > 0 && p.TP2Price > 0
			}),
			Fields: typedFields(tradePrices),
		},
		Invariant{
			Name:     "long_price_order",
			Severity: SeverityError,
			Message:  "LONG requires tp1, tp2 > entry > sl",
			Check: typed(func(c TradeCheck) bool {
				p := c.Params
				return p.Direction != models.Long ||
					(p.TP1Price > p.EntryPrice && p.TP2Price > p.EntryPrice && p.EntryPrice > p.SLPrice)
			}),
			Fields: typedFields(tradePrices),
		},
		Invariant{
			Name:     "short_price_order",
			Severity: SeverityError,
			Message:  "SHORT requires sl > entry > tp1, tp2",
			Check: typed(func(c TradeCheck) bool {
				p := c.Params
				return p.Direction != models.Short ||
					(p.SLPrice > p.EntryPrice && p.EntryPrice > p.TP1Price && p.EntryPrice > p.TP2Price)
			}),
			Fields: typedFields(tradePrices),
		},
		Invariant{
			Name:     "tp2_not_inside_tp1",
			Severity: SeverityError,
			Message:  "tp2 must not be closer to entry than tp1",
			Check: typed(func(c TradeCheck) bool {
				p := c.Params
				return (p.TP2Price-p.TP1Price)*p.Direction.Sign() >= 0
			}),
			Fields: typedFields(tradePrices),
		},
		Invariant{
			Name:     "risk_in_range",
			Severity: SeverityError,
			Message:  "risk percent must be within [0.1, 10]",
			Check: typed(func(c TradeCheck) bool {
				return c.Params.RiskPct >= MinRiskPct && c.Params.RiskPct <= MaxRiskPct
			}),
			Fields: typedFields(func(c TradeCheck) map[string]any {
				return map[string]any{"risk_pct": c.Params.RiskPct}
			}),
		},
		Invariant{
			Name:     "leverage_in_range",
			Severity: SeverityError,
			Message:  "leverage must be within [1, 20]",
			Check: typed(func(c TradeCheck) bool {
				return c.Params.Leverage >= MinLeverage && c.Params.Leverage <= MaxLeverage
			}),
			Fields: typedFields(func(c TradeCheck) map[string]any {
				return map[string]any{"leverage": c.Params.Leverage}
			}),
		},
		Invariant{
			Name:     "positive_quantity",
			Severity: SeverityError,
			Message:  "quantity must be positive",
			Check:    typed(func(c TradeCheck) bool { return c.Params.Quantity > 0 }),
			Fields: typedFields(func(c TradeCheck) map[string]any {
				return map[string]any{"quantity": c.Params.Quantity, "entry_amount": c.Params.EntryAmount}
			}),
		},

		Invariant{
			Name:     "tp2_distinct",
			Severity: SeverityWarning,
			Message:  "tp2 equals tp1",
			Check:    typed(func(c TradeCheck) bool { return c.Params.TP2Price != c.Params.TP1Price }),
			Fields: typedFields(func(c TradeCheck) map[string]any {
				return map[string]any{"tp1": c.Params.TP1Price, "tp2": c.Params.TP2Price}
			}),
		},
		Invariant{
			Name:     "stop_beyond_noise",
			Severity: SeverityWarning,
			Message:  "stop distance is below the volatility minimum",
			Check: typed(func(c TradeCheck) bool {
				return math.Abs(c.Params.EntryPrice-c.Params.SLPrice)+priceEpsilon >= c.MinDistance
			}),
			Fields: typedFields(func(c TradeCheck) map[string]any {
				return map[string]any{
					"stop_distance": math.Abs(c.Params.EntryPrice - c.Params.SLPrice),
					"min_distance":  c.MinDistance,
				}
			}),
		},
		Invariant{
			Name:     "quality_above_threshold",
			Severity: SeverityWarning,
			Message:  "quality score is below the regime threshold",
			Check:    typed(func(c TradeCheck) bool { return c.Params.QualityScore >= c.QualityThreshold }),
			Fields: typedFields(func(c TradeCheck) map[string]any {
				return map[string]any{
					"quality_score": c.Params.QualityScore,
					"threshold":     c.QualityThreshold,
					"regime":        c.Params.Regime,
				}
			}),
		},
		Invariant{
			Name:     "entry_within_margin",
			Severity: SeverityWarning,
			Message:  "entry amount exceeds free deposit times leverage",
			Check: typed(func(c TradeCheck) bool {
				p := c.Params
				return p.EntryAmount <= p.FreeDeposit*p.Leverage*(1+priceEpsilon)
			}),
			Fields: typedFields(func(c TradeCheck) map[string]any {
				p := c.Params
				return map[string]any{
					"entry_amount": p.EntryAmount,
					"free_deposit": p.FreeDeposit,
					"leverage":     p.Leverage,
				}
			}),
		},
	)
}

// RegisterVolatilityInvariants adds the volatility profile rules
func RegisterVolatilityInvariants(r *Registry) {
	r.Register(EntityVolatility,
		Invariant{
			Name:     "distance_band_ordered",
			Severity: SeverityError,
			Message:  "min distance must be below max distance",
			Check: typed(func(p models.VolatilityProfile) bool {
				return p.MinDistance > 0 && p.MinDistance < p.MaxDistance
			}),
			Fields: typedFields(func(p models.VolatilityProfile) map[string]any {
				return map[string]any{"min_distance": p.MinDistance, "max_distance": p.MaxDistance, "regime": p.Regime}
			}),
		},
	)
}

// RegisterRegimeInvariants adds the regime classification rules
func RegisterRegimeInvariants(r *Registry) {
	r.Register(EntityRegime,
		Invariant{
			Name:     "confidence_in_unit_range",
			Severity: SeverityError,
			Message:  "confidence must be within [0, 1]",
			Check: typed(func(rc models.RegimeClassification) bool {
				return rc.Confidence >= 0 && rc.Confidence <= 1
			}),
			Fields: typedFields(func(rc models.RegimeClassification) map[string]any {
				return map[string]any{"confidence": rc.Confidence}
			}),
		},
		Invariant{
			Name:     "regime_is_top_score",
			Severity: SeverityError,
			Message:  "regime must carry the highest score",
			Check: typed(func(rc models.RegimeClassification) bool {
				top := rc.Scores[rc.Regime]
				for _, s := range rc.Scores {
					if s > top {
						return false
					}
				}
				return true
			}),
			Fields: typedFields(func(rc models.RegimeClassification) map[string]any {
				fields := map[string]any{"regime": rc.Regime}
				for r, s := range rc.Scores {
					fields[string(r)] = s
				}
				return fields
			}),
		},
	)
}

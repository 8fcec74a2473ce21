package models

// VolatilityRegime is the ATR ratio bucket
type VolatilityRegime string

const (
	VolatilityLow    VolatilityRegime = "LOW"
	VolatilityNormal VolatilityRegime = "NORMAL"
	VolatilityHigh   VolatilityRegime = "HIGH"
)

// VolatilityProfile describes current volatility and the thresholds derived from it
type VolatilityProfile struct {
	Regime               VolatilityRegime `json:"regime"`
	CurrentATR           float64          `json:"current_atr"`
	MinDistance          float64          `json:"min_distance"`
	MaxDistance          float64          `json:"max_distance"`
	ADXThreshold         float64          `json:"adx_threshold"`
	VolumeThreshold      float64          `json:"volume_threshold"`
	ATRRatio             float64          `json:"atr_ratio"`
	VolatilityPercentile float64          `json:"volatility_percentile"`
}

// FilterCheck is the outcome of the adaptive entry filters
type FilterCheck struct {
	Passed      bool     `json:"passed"`
	PassedCount int      `json:"passed_count"`
	Total       int      `json:"total"`
	Failed      []string `json:"failed,omitempty"`
}

// Regime is a market regime label
type Regime string

const (
	RegimeBullTrend    Regime = "BULL_TREND"
	RegimeBearTrend    Regime = "BEAR_TREND"
	RegimeHighVolRange Regime = "HIGH_VOL_RANGE"
	RegimeLowVolRange  Regime = "LOW_VOL_RANGE"
	RegimeCrash        Regime = "CRASH"
)

// Regimes lists every regime in a fixed order
var Regimes = []Regime{RegimeBullTrend, RegimeBearTrend, RegimeHighVolRange, RegimeLowVolRange, RegimeCrash}

// RegimeIndicators is the snapshot of inputs the classification used
type RegimeIndicators struct {
	Price          float64 `json:"price"`
	EMA200         float64 `json:"ema_200"`
	ADX            float64 `json:"adx"`
	ATRRatio       float64 `json:"atr_ratio"`
	PriceChange5   float64 `json:"price_change_5_pct"`
	SufficientData bool    `json:"sufficient_data"`
}

// RegimeClassification holds the chosen regime and all candidate scores
type RegimeClassification struct {
	Regime     Regime             `json:"regime"`
	Confidence float64            `json:"confidence"`
	Scores     map[Regime]float64 `json:"scores"`
	Indicators RegimeIndicators   `json:"indicators"`
	// Fallback is set when no rule scored and the regime came from price vs EMA-200,
	// or from the default when EMA-200 is unavailable
	Fallback bool `json:"fallback"`
}

// RegimeMultipliers are the parameter adjustments of a regime
type RegimeMultipliers struct {
	PositionSize     float64 `json:"position_size" yaml:"position_size"`
	StopLoss         float64 `json:"sl" yaml:"sl"`
	TakeProfit       float64 `json:"tp" yaml:"tp"`
	Aggression       float64 `json:"aggression" yaml:"aggression"`
	QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold"`
}

// Scale interpolates every multiplier towards 1.0 by confidence
func (m RegimeMultipliers) Scale(confidence float64) RegimeMultipliers {
	lerp := func(v float64) float64 { return 1 + (v-1)*confidence }
	return RegimeMultipliers{
		PositionSize:     lerp(m.PositionSize),
		StopLoss:         lerp(m.StopLoss),
		TakeProfit:       lerp(m.TakeProfit),
		Aggression:       lerp(m.Aggression),
		QualityThreshold: lerp(m.QualityThreshold),
	}
}

// ZoneKind tags a price level as support or resistance
type ZoneKind string

const (
	Support    ZoneKind = "support"
	Resistance ZoneKind = "resistance"
)

// ZoneLevel is a price level that may act as a target or a stop
type ZoneLevel struct {
	Price    float64  `json:"price"`
	Kind     ZoneKind `json:"kind"`
	Strength float64  `json:"strength"`
	Label    string   `json:"label,omitempty"`
}

// ExitMethod tells which source produced the exit levels
type ExitMethod string

const (
	ExitZone      ExitMethod = "zone"
	ExitFibonacci ExitMethod = "fibonacci"
	ExitBase      ExitMethod = "base"
)

// ExitDetails records the levels each exit was anchored to, nil when the base value was used
type ExitDetails struct {
	TP1Level *float64 `json:"tp1_level,omitempty"`
	TP2Level *float64 `json:"tp2_level,omitempty"`
	SLLevel  *float64 `json:"sl_level,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// ExitLevels are percentage distances from entry
type ExitLevels struct {
	TP1Pct  float64     `json:"tp1_pct"`
	TP2Pct  float64     `json:"tp2_pct"`
	SLPct   float64     `json:"sl_pct"`
	Method  ExitMethod  `json:"method"`
	Details ExitDetails `json:"details"`
}

// PatternKind names an institutional footprint
type PatternKind string

const (
	PatternIceberg  PatternKind = "iceberg"
	PatternSpoofing PatternKind = "spoofing"
)

// PatternDetection is one detected footprint
type PatternDetection struct {
	Kind        PatternKind        `json:"kind"`
	Confidence  float64            `json:"confidence"`
	Details     map[string]float64 `json:"details"`
	WindowIndex int                `json:"window_index"`
}

// Recommendation is the verdict derived from a quality score
type Recommendation string

const (
	RecommendReject   Recommendation = "reject"
	RecommendWeak     Recommendation = "weak"
	RecommendModerate Recommendation = "moderate"
	RecommendStrong   Recommendation = "strong"
)

// PatternImpact is the quality change one detection caused
type PatternImpact struct {
	Kind       PatternKind `json:"kind"`
	Confidence float64     `json:"confidence"`
	Delta      float64     `json:"delta"`
}

// SignalQuality is the pattern-adjusted quality of a signal
type SignalQuality struct {
	QualityScore   float64            `json:"quality_score"`
	Patterns       []PatternDetection `json:"patterns"`
	Impacts        []PatternImpact    `json:"impacts"`
	Recommendation Recommendation     `json:"recommendation"`
}

// SizingFactors are the live market multipliers used by the sizing engine
type SizingFactors struct {
	Volatility      float64 `json:"volatility"`
	TrendStrength   float64 `json:"trend_strength"`
	VolumeProfile   float64 `json:"volume_profile"`
	MarketSentiment float64 `json:"market_sentiment"`
	AccountHealth   float64 `json:"account_health"`
}

// SizingResult is the output of position sizing
type SizingResult struct {
	RiskPct        float64       `json:"risk_pct"`
	Leverage       float64       `json:"leverage"`
	EntryAmount    float64       `json:"entry_amount"`
	Factors        SizingFactors `json:"factors"`
	RiskFactor     float64       `json:"risk_factor"`
	LeverageFactor float64       `json:"leverage_factor"`
	History        Effectiveness `json:"history"`
	HasHistory     bool          `json:"has_history"`
}

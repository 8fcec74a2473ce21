package models

// Diagnostics keeps every intermediate result behind a TradeParameters value
type Diagnostics struct {
	Volatility  VolatilityProfile    `json:"volatility"`
	Filters     FilterCheck          `json:"filters"`
	Regime      RegimeClassification `json:"regime"`
	Multipliers RegimeMultipliers    `json:"multipliers"`
	Exits       ExitLevels           `json:"exits"`
	Sizing      SizingResult         `json:"sizing"`
	Quality     SignalQuality        `json:"quality"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// TradeParameters is the complete, validated output for one signal
type TradeParameters struct {
	ID               string           `json:"id"`
	Symbol           string           `json:"symbol"`
	Direction        Direction        `json:"direction"`
	EntryPrice       float64          `json:"entry_price"`
	SLPrice          float64          `json:"sl_price"`
	TP1Price         float64          `json:"tp1_price"`
	TP2Price         float64          `json:"tp2_price"`
	Quantity         float64          `json:"quantity"`
	EntryAmount      float64          `json:"entry_amount"`
	FreeDeposit      float64          `json:"free_deposit"`
	Leverage         float64          `json:"leverage"`
	RiskPct          float64          `json:"risk_pct"`
	QualityScore     float64          `json:"quality_score"`
	Recommendation   Recommendation   `json:"recommendation"`
	Regime           Regime           `json:"regime"`
	RegimeConfidence float64          `json:"regime_confidence"`
	VolatilityRegime VolatilityRegime `json:"volatility_regime"`
	ExitMethod       ExitMethod       `json:"exit_method"`
	Diagnostics      Diagnostics      `json:"diagnostics"`
}

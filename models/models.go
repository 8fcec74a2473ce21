package models

// Direction is the side of a trade
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Valid reports whether d is one of the known directions
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// TradeMode selects spot or leveraged sizing
type TradeMode string

const (
	Spot    TradeMode = "spot"
	Futures TradeMode = "futures"
)

// Indicators holds optional precomputed indicator values for a candle.
// A nil field means the value is unavailable for that bar.
type Indicators struct {
	EMAFast *float64 `json:"ema_fast,omitempty"`
	EMASlow *float64 `json:"ema_slow,omitempty"`
	EMA200  *float64 `json:"ema_200,omitempty"`
	ADX     *float64 `json:"adx,omitempty"`
	ATR     *float64 `json:"atr,omitempty"`
	RSI     *float64 `json:"rsi,omitempty"`
}

// Candle represents a single price candle
type Candle struct {
	Datetime string  `json:"datetime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`

	Indicators
}

// MarketWindow is an ordered series of candles for one symbol.
// Components evaluate it at a trailing index and never modify it.
type MarketWindow struct {
	Symbol  string   `json:"symbol"`
	Candles []Candle `json:"candles"`
}

// Len returns the number of candles in the window
func (w MarketWindow) Len() int {
	return len(w.Candles)
}

// Valid reports whether i addresses a candle of the window
func (w MarketWindow) Valid(i int) bool {
	return i >= 0 && i < len(w.Candles)
}

// Closes returns close prices of candles [from, to]
func (w MarketWindow) Closes(from, to int) []float64 {
	if from < 0 {
		from = 0
	}
	if to >= len(w.Candles) {
		to = len(w.Candles) - 1
	}
	if to < from {
		return nil
	}
	out := make([]float64, 0, to-from+1)
	for k := from; k <= to; k++ {
		out = append(out, w.Candles[k].Close)
	}
	return out
}

// Volumes returns volumes of candles [from, to]
func (w MarketWindow) Volumes(from, to int) []float64 {
	if from < 0 {
		from = 0
	}
	if to >= len(w.Candles) {
		to = len(w.Candles) - 1
	}
	if to < from {
		return nil
	}
	out := make([]float64, 0, to-from+1)
	for k := from; k <= to; k++ {
		out = append(out, w.Candles[k].Volume)
	}
	return out
}

// AccountSnapshot is the account state used for sizing.
// FreeDeposit is the money available for new positions; zero means none.
type AccountSnapshot struct {
	Deposit       float64   `json:"deposit"`
	FreeDeposit   float64   `json:"free_deposit"`
	TotalProfit   float64   `json:"total_profit"`
	TradeMode     TradeMode `json:"trade_mode"`
	OpenPositions int       `json:"open_positions"`
}

// BaseParams are the caller's unadjusted trade settings, percentages in percent units
type BaseParams struct {
	RiskPct  float64 `json:"risk_pct" yaml:"risk_pct"`
	Leverage float64 `json:"leverage" yaml:"leverage"`
	TP1Pct   float64 `json:"tp1_pct" yaml:"tp1_pct"`
	TP2Pct   float64 `json:"tp2_pct" yaml:"tp2_pct"`
	SLPct    float64 `json:"sl_pct" yaml:"sl_pct"`
}

// Instrument carries exchange rounding rules. Zero values disable rounding.
type Instrument struct {
	TickSize float64 `json:"tick_size"`
	StepSize float64 `json:"step_size"`
}

// Effectiveness is the historical outcome summary for a symbol and side
type Effectiveness struct {
	AvgProfitPct    float64 `json:"avg_profit_pct"`
	SuccessRate     float64 `json:"success_rate"`
	OptimalRiskPct  float64 `json:"optimal_risk_pct,omitempty"`
	OptimalLeverage float64 `json:"optimal_leverage,omitempty"`
}

// NeutralEffectiveness is used when no history exists for a key
var NeutralEffectiveness = Effectiveness{AvgProfitPct: 0, SuccessRate: 0.5}

// EffectivenessKey builds the "{symbol}_{side}" lookup key
func EffectivenessKey(symbol string, side Direction) string {
	return symbol + "_" + string(side)
}

// Float returns a pointer to v, handy for optional indicator fields
func Float(v float64) *float64 {
	return &v
}

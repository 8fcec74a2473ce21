package calculate

import (
	"github.com/Alias1177/Calibrator/models"
)

// Periods configures the indicators filled in by Enrich
type Periods struct {
	EMAFast  int `yaml:"ema_fast"`
	EMASlow  int `yaml:"ema_slow"`
	EMATrend int `yaml:"ema_trend"`
	ADX      int `yaml:"adx"`
	ATR      int `yaml:"atr"`
	RSI      int `yaml:"rsi"`
}

// DefaultPeriods returns the usual indicator periods
func DefaultPeriods() Periods {
	return Periods{
		EMAFast:  12,
		EMASlow:  26,
		EMATrend: 200,
		ADX:      14,
		ATR:      14,
		RSI:      14,
	}
}

// Enrich returns a copy of the window where missing indicator values are computed from the candles.
// Values supplied by the caller are kept; values that cannot be computed stay nil.
func Enrich(w models.MarketWindow, p Periods) models.MarketWindow {
	out := models.MarketWindow{Symbol: w.Symbol, Candles: make([]models.Candle, len(w.Candles))}
	copy(out.Candles, w.Candles)
	if len(out.Candles) == 0 {
		return out
	}

	closes := w.Closes(0, len(w.Candles)-1)

	var (
		emaFast  []float64
		emaSlow  []float64
		emaTrend []float64
		adx      []float64
		atr      []float64
		rsi      []float64
	)
	// Compute a series only when at least one bar needs it
	for k := range out.Candles {
		c := &out.Candles[k]
		if c.EMAFast == nil {
			if emaFast == nil {
				emaFast = EMASeries(closes, p.EMAFast)
			}
			c.EMAFast = pick(emaFast, k)
		}
		if c.EMASlow == nil {
			if emaSlow == nil {
				emaSlow = EMASeries(closes, p.EMASlow)
			}
			c.EMASlow = pick(emaSlow, k)
		}
		if c.EMA200 == nil {
			if emaTrend == nil {
				emaTrend = EMASeries(closes, p.EMATrend)
			}
			c.EMA200 = pick(emaTrend, k)
		}
		if c.ADX == nil {
			if adx == nil {
				adx = ADXSeries(w.Candles, p.ADX)
			}
			c.ADX = pick(adx, k)
		}
		if c.ATR == nil {
			if atr == nil {
				atr = ATRSeries(w.Candles, p.ATR)
			}
			c.ATR = pick(atr, k)
		}
		if c.RSI == nil {
			if rsi == nil {
				rsi = RSISeries(closes, p.RSI)
			}
			c.RSI = pick(rsi, k)
		}
	}

	return out
}

func pick(series []float64, k int) *float64 {
	if k >= len(series) || !Finite(series[k]) {
		return nil
	}
	return models.Float(series[k])
}

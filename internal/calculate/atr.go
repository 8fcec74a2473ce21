package calculate

import (
	"math"

	"github.com/Alias1177/Calibrator/models"
)

// TrueRange is the greatest of:
// 1. Current High - Current Low
// 2. Abs(Current High - Previous Close)
// 3. Abs(Current Low - Previous Close)
func TrueRange(cur, prev models.Candle) float64 {
	highLow := cur.High - cur.Low
	highPrevClose := math.Abs(cur.High - prev.Close)
	lowPrevClose := math.Abs(cur.Low - prev.Close)
	return math.Max(highLow, math.Max(highPrevClose, lowPrevClose))
}

// TrueRangeAt returns the true range of bar i. The first bar has no previous close and uses High - Low.
func TrueRangeAt(candles []models.Candle, i int) float64 {
	if i <= 0 {
		return candles[0].High - candles[0].Low
	}
	return TrueRange(candles[i], candles[i-1])
}

// ATR averages the last period true ranges ending at bar i.
// ok is false when bar i has fewer than period previous bars.
func ATR(candles []models.Candle, i, period int) (float64, bool) {
	if period <= 0 || i >= len(candles) || i < period {
		return 0, false
	}

	var sum float64
	for k := i - period + 1; k <= i; k++ {
		sum += TrueRange(candles[k], candles[k-1])
	}
	return sum / float64(period), true
}

// ATRSeries returns ATR(period) for every bar; bars without enough history hold NaN
func ATRSeries(candles []models.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	var sum float64
	for k := range candles {
		if k > 0 {
			sum += TrueRange(candles[k], candles[k-1])
		}
		if k > period {
			sum -= TrueRange(candles[k-period], candles[k-period-1])
		}
		if k >= period {
			out[k] = sum / float64(period)
		} else {
			out[k] = math.NaN()
		}
	}
	return out
}

// ATRAt prefers the candle's precomputed ATR and falls back to computing it
func ATRAt(candles []models.Candle, i, period int) (float64, bool) {
	if i >= 0 && i < len(candles) && candles[i].ATR != nil && Finite(*candles[i].ATR) {
		return *candles[i].ATR, true
	}
	return ATR(candles, i, period)
}

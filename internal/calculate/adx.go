package calculate

import (
	"math"

	"github.com/Alias1177/Calibrator/models"
)

// ADXResult holds the directional movement values of one bar
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// ADX computes Wilder's ADX over candles[:i+1].
// ok is false when fewer than 2*period bars are available.
// Zero true range or zero directional movement yields 0 instead of NaN.
func ADX(candles []models.Candle, i, period int) (ADXResult, bool) {
	if period <= 0 || i < 0 || i >= len(candles) || i+1 < period*2 {
		return ADXResult{}, false
	}
	var last ADXResult
	walkADX(candles[:i+1], period, func(_ int, r ADXResult) { last = r })
	return last, true
}

// ADXSeries returns ADX for every bar; bars with fewer than 2*period bars of history hold NaN
func ADXSeries(candles []models.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	for k := range out {
		out[k] = math.NaN()
	}
	if period <= 0 || len(candles) < period*2 {
		return out
	}
	walkADX(candles, period, func(k int, r ADXResult) {
		if k+1 >= period*2 {
			out[k] = r.ADX
		}
	})
	return out
}

// ADXAt prefers the candle's precomputed ADX
func ADXAt(candles []models.Candle, i, period int) (float64, bool) {
	if i >= 0 && i < len(candles) && candles[i].ADX != nil && Finite(*candles[i].ADX) {
		return *candles[i].ADX, true
	}
	res, ok := ADX(candles, i, period)
	return res.ADX, ok
}

// walkADX runs the Wilder recurrence and reports the state at every bar from bar period on
func walkADX(series []models.Candle, period int, emit func(bar int, r ADXResult)) {
	// +DM, -DM and TR for each bar
	n := len(series) - 1
	if n < period {
		return
	}
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	trueRange := make([]float64, n)
	for k := 1; k < len(series); k++ {
		upMove := series[k].High - series[k-1].High
		downMove := series[k-1].Low - series[k].Low

		if upMove > downMove && upMove > 0 {
			plusDM[k-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[k-1] = downMove
		}
		trueRange[k-1] = TrueRange(series[k], series[k-1])
	}

	var smoothedPlusDM, smoothedMinusDM, smoothedTR float64
	for k := 0; k < period; k++ {
		smoothedPlusDM += plusDM[k]
		smoothedMinusDM += minusDM[k]
		smoothedTR += trueRange[k]
	}

	plusDI, minusDI := directional(smoothedPlusDM, smoothedMinusDM, smoothedTR)
	adx := dx(plusDI, minusDI)
	emit(period, ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI})

	for k := period; k < n; k++ {
		smoothedPlusDM = smoothedPlusDM - (smoothedPlusDM / float64(period)) + plusDM[k]
		smoothedMinusDM = smoothedMinusDM - (smoothedMinusDM / float64(period)) + minusDM[k]
		smoothedTR = smoothedTR - (smoothedTR / float64(period)) + trueRange[k]

		plusDI, minusDI = directional(smoothedPlusDM, smoothedMinusDM, smoothedTR)
		adx = ((float64(period-1) * adx) + dx(plusDI, minusDI)) / float64(period)
		emit(k+1, ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI})
	}
}

func directional(plusDM, minusDM, tr float64) (float64, float64) {
	if tr == 0 {
		return 0, 0
	}
	return plusDM / tr * 100, minusDM / tr * 100
}

func dx(plusDI, minusDI float64) float64 {
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return math.Abs(plusDI-minusDI) / sum * 100
}

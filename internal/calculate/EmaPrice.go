package calculate

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// EMASeries returns EMA(period) aligned with prices. Bars before the first full period hold NaN.
func EMASeries(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	alignTail(out, helper.ChanToSlice(ema.Compute(helper.SliceToChan(prices))))
	return out
}

// EMA returns the EMA of the last price
func EMA(prices []float64, period int) (float64, bool) {
	series := EMASeries(prices, period)
	if len(series) == 0 {
		return 0, false
	}
	last := series[len(series)-1]
	return last, Finite(last)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for k := range out {
		out[k] = math.NaN()
	}
	return out
}

// alignTail copies an indicator output so that its last value lands on the last input bar
func alignTail(dst, values []float64) {
	if len(values) > len(dst) {
		values = values[len(values)-len(dst):]
	}
	copy(dst[len(dst)-len(values):], values)
}

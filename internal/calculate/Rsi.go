package calculate

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
)

// RSISeries returns RSI(period) aligned with prices; NaN where undefined
func RSISeries(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) <= period {
		return out
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	alignTail(out, helper.ChanToSlice(rsi.Compute(helper.SliceToChan(prices))))
	return out
}

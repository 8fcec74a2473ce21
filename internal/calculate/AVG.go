package calculate

import "math"

// Mean calculates simple average
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, value := range values {
		sum += value
	}

	return sum / float64(len(values))
}

// StdDev is the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// SampleStdDev is the standard deviation with Bessel's correction
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// PercentileRank returns the share (0-100) of values less than or equal to v
func PercentileRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 50
	}
	var below int
	for _, x := range values {
		if x <= v {
			below++
		}
	}
	return float64(below) / float64(len(values)) * 100
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Finite reports whether v is neither NaN nor infinite
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Ratio divides a by b and returns fallback when the result is not finite
func Ratio(a, b, fallback float64) float64 {
	if b == 0 {
		return fallback
	}
	r := a / b
	if !Finite(r) {
		return fallback
	}
	return r
}

// MinMax returns the smallest and largest value
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

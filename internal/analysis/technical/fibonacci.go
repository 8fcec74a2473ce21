package technical

import (
	"fmt"
	"sort"

	"github.com/Alias1177/Calibrator/models"
)

// FibonacciConfig configures retracement and extension levels
type FibonacciConfig struct {
	Lookback    int       `yaml:"lookback"`
	Retracement []float64 `yaml:"retracement"`
	Extension   []float64 `yaml:"extension"`
}

// DefaultFibonacciConfig returns the classic ratios
func DefaultFibonacciConfig() FibonacciConfig {
	return FibonacciConfig{
		Lookback:    100,
		Retracement: []float64{0.236, 0.382, 0.5, 0.618, 0.705, 0.786},
		Extension:   []float64{1.272, 1.618},
	}
}

// fibStrength ranks the ratios traders watch most
var fibStrength = map[float64]float64{
	0.236: 0.6,
	0.382: 0.8,
	0.5:   0.9,
	0.618: 1.0,
	0.705: 0.8,
	0.786: 0.7,
	1.272: 0.7,
	1.618: 0.8,
}

// FibonacciLevels builds retracement and extension levels from the swing of the last Lookback bars.
// In an up swing (low before high) levels are measured down from the high and extensions project
// above it; a down swing is mirrored. Levels are sorted by price.
func FibonacciLevels(w models.MarketWindow, i int, cfg FibonacciConfig) []models.ZoneLevel {
	if !w.Valid(i) || cfg.Lookback < 2 {
		return nil
	}
	from := i - cfg.Lookback + 1
	if from < 0 {
		from = 0
	}

	hiIdx, loIdx := from, from
	for k := from; k <= i; k++ {
		if w.Candles[k].High > w.Candles[hiIdx].High {
			hiIdx = k
		}
		if w.Candles[k].Low < w.Candles[loIdx].Low {
			loIdx = k
		}
	}
	high, low := w.Candles[hiIdx].High, w.Candles[loIdx].Low
	diff := high - low
	if diff <= 0 {
		return nil
	}
	up := hiIdx > loIdx
	current := w.Candles[i].Close

	levels := make([]models.ZoneLevel, 0, len(cfg.Retracement)+len(cfg.Extension)+2)
	add := func(price, strength float64, label string) {
		if price <= 0 || price == current {
			return
		}
		kind := models.Support
		if price > current {
			kind = models.Resistance
		}
		levels = append(levels, models.ZoneLevel{Price: price, Kind: kind, Strength: strength, Label: label})
	}

	add(high, 1.0, "swing_high")
	add(low, 1.0, "swing_low")
	for _, r := range cfg.Retracement {
		price := low + diff*r
		if up {
			price = high - diff*r
		}
		add(price, strengthOf(r), fmt.Sprintf("fib_%.3f", r))
	}
	for _, e := range cfg.Extension {
		price := low - diff*(e-1)
		if up {
			price = high + diff*(e-1)
		}
		add(price, strengthOf(e), fmt.Sprintf("fib_ext_%.3f", e))
	}

	sort.Slice(levels, func(a, b int) bool { return levels[a].Price < levels[b].Price })
	return levels
}

func strengthOf(ratio float64) float64 {
	if s, ok := fibStrength[ratio]; ok {
		return s
	}
	return 0.5
}

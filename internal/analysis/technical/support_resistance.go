package technical

import (
	"math"
	"sort"

	"github.com/Alias1177/Calibrator/models"
)

// SwingConfig configures swing-point support/resistance detection
type SwingConfig struct {
	Lookback         int     `yaml:"lookback"`
	Width            int     `yaml:"width"`
	ClusterPct       float64 `yaml:"cluster_pct"`
	MaxLevelsPerSide int     `yaml:"max_levels_per_side"`
}

// DefaultSwingConfig returns the usual swing settings
func DefaultSwingConfig() SwingConfig {
	return SwingConfig{
		Lookback:         100,
		Width:            2,
		ClusterPct:       0.3,
		MaxLevelsPerSide: 3,
	}
}

type swingPoint struct {
	price float64
	kind  models.ZoneKind
}

type cluster struct {
	sum         float64
	count       int
	supports    int
	resistances int
}

func (c *cluster) mean() float64 { return c.sum / float64(c.count) }

// SupportResistance finds swing highs and lows in the last Lookback bars, merges the ones
// within ClusterPct percent of each other and keeps the levels nearest to the current close.
func SupportResistance(w models.MarketWindow, i int, cfg SwingConfig) []models.ZoneLevel {
	if !w.Valid(i) || cfg.Width < 1 {
		return nil
	}
	from := i - cfg.Lookback + 1
	if from < 0 {
		from = 0
	}
	candles := w.Candles
	current := candles[i].Close
	if current <= 0 {
		return nil
	}

	// Scan for swing highs and lows
	var points []swingPoint
	for k := from + cfg.Width; k <= i-cfg.Width; k++ {
		isLow, isHigh := true, true
		for d := 1; d <= cfg.Width; d++ {
			if candles[k].Low >= candles[k-d].Low || candles[k].Low >= candles[k+d].Low {
				isLow = false
			}
			if candles[k].High <= candles[k-d].High || candles[k].High <= candles[k+d].High {
				isHigh = false
			}
		}
		if isLow {
			points = append(points, swingPoint{price: candles[k].Low, kind: models.Support})
		}
		if isHigh {
			points = append(points, swingPoint{price: candles[k].High, kind: models.Resistance})
		}
	}
	if len(points) == 0 {
		return nil
	}

	// Round nearby levels together
	sort.Slice(points, func(a, b int) bool { return points[a].price < points[b].price })
	tolerance := current * cfg.ClusterPct / 100
	var clusters []*cluster
	for _, p := range points {
		last := len(clusters) - 1
		if last >= 0 && math.Abs(p.price-clusters[last].mean()) <= tolerance {
			clusters[last].add(p)
			continue
		}
		c := &cluster{}
		c.add(p)
		clusters = append(clusters, c)
	}

	maxTouches := 0
	for _, c := range clusters {
		if c.count > maxTouches {
			maxTouches = c.count
		}
	}

	var below, above []models.ZoneLevel
	for _, c := range clusters {
		price := c.mean()
		kind := models.Support
		switch {
		case c.resistances > c.supports:
			kind = models.Resistance
		case c.resistances == c.supports && price > current:
			kind = models.Resistance
		}
		level := models.ZoneLevel{
			Price:    price,
			Kind:     kind,
			Strength: float64(c.count) / float64(maxTouches),
			Label:    "swing_" + string(kind),
		}
		switch {
		case price < current:
			below = append(below, level)
		case price > current:
			above = append(above, level)
		}
	}

	// Nearest levels first, then limit to most significant levels
	sort.Slice(below, func(a, b int) bool { return below[a].Price > below[b].Price })
	sort.Slice(above, func(a, b int) bool { return above[a].Price < above[b].Price })
	if cfg.MaxLevelsPerSide > 0 {
		if len(below) > cfg.MaxLevelsPerSide {
			below = below[:cfg.MaxLevelsPerSide]
		}
		if len(above) > cfg.MaxLevelsPerSide {
			above = above[:cfg.MaxLevelsPerSide]
		}
	}

	levels := append(below, above...)
	sort.Slice(levels, func(a, b int) bool { return levels[a].Price < levels[b].Price })
	return levels
}

func (c *cluster) add(p swingPoint) {
	c.sum += p.price
	c.count++
	if p.kind == models.Support {
		c.supports++
	} else {
		c.resistances++
	}
}

package exits

import (
	"math"
	"sort"

	"github.com/Alias1177/Calibrator/models"
)

// Config bounds how far zone levels may move exits away from the base values
type Config struct {
	TP1FloorMult float64 `yaml:"tp1_floor_mult"`
	TP2FloorMult float64 `yaml:"tp2_floor_mult"`
	SLCapMult    float64 `yaml:"sl_cap_mult"`
}

// DefaultConfig returns the production bounds
func DefaultConfig() Config {
	return Config{
		TP1FloorMult: 0.8,
		TP2FloorMult: 0.8,
		SLCapMult:    1.2,
	}
}

// Calculator anchors take-profit and stop-loss distances to nearby levels
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate returns exit distances in percent of entry.
//
// TP1 is the nearest qualifying level in the profit direction, never closer than
// TP1FloorMult of the base. TP2 is the next qualifying level beyond TP1; without one it keeps
// the base spacing beyond TP1. SL is the nearest qualifying level in the loss direction,
// never wider than SLCapMult of the base. For zone levels the kind must match the role
// (resistance is a long target and a short stop), for Fibonacci levels only the side counts.
func (c *Calculator) Calculate(entry float64, dir models.Direction, levels []models.ZoneLevel, method models.ExitMethod, base models.BaseParams) models.ExitLevels {
	if len(levels) == 0 || method == models.ExitBase || entry <= 0 {
		return models.ExitLevels{
			TP1Pct:  base.TP1Pct,
			TP2Pct:  base.TP2Pct,
			SLPct:   base.SLPct,
			Method:  models.ExitBase,
			Details: models.ExitDetails{Reason: "no_levels"},
		}
	}

	sign := dir.Sign()
	targets, stops := c.partition(entry, dir, levels, method)

	out := models.ExitLevels{Method: method}

	if len(targets) > 0 {
		out.TP1Pct = math.Max(pct(entry, targets[0].Price), c.cfg.TP1FloorMult*base.TP1Pct)
		out.Details.TP1Level = models.Float(targets[0].Price)
	} else {
		out.TP1Pct = base.TP1Pct
		out.Details.Reason = "no_target_levels"
	}

	tp1Price := entry * (1 + sign*out.TP1Pct/100)
	out.TP2Pct = math.Max(base.TP2Pct, out.TP1Pct+(base.TP2Pct-base.TP1Pct))
	for _, l := range targets {
		if (l.Price-tp1Price)*sign > 0 {
			out.TP2Pct = math.Max(pct(entry, l.Price), c.cfg.TP2FloorMult*base.TP2Pct)
			out.Details.TP2Level = models.Float(l.Price)
			break
		}
	}
	out.TP2Pct = math.Max(out.TP2Pct, out.TP1Pct)

	if len(stops) > 0 {
		out.SLPct = math.Min(pct(entry, stops[0].Price), c.cfg.SLCapMult*base.SLPct)
		out.Details.SLLevel = models.Float(stops[0].Price)
	} else {
		out.SLPct = base.SLPct
		if out.Details.Reason == "" {
			out.Details.Reason = "no_stop_levels"
		}
	}

	return out
}

// partition splits levels into targets and stops, each sorted nearest first
func (c *Calculator) partition(entry float64, dir models.Direction, levels []models.ZoneLevel, method models.ExitMethod) (targets, stops []models.ZoneLevel) {
	targetKind, stopKind := models.Resistance, models.Support
	if dir == models.Short {
		targetKind, stopKind = models.Support, models.Resistance
	}
	sign := dir.Sign()

	for _, l := range levels {
		if l.Price <= 0 {
			continue
		}
		side := (l.Price - entry) * sign
		switch {
		case side > 0 && (method != models.ExitZone || l.Kind == targetKind):
			targets = append(targets, l)
		case side < 0 && (method != models.ExitZone || l.Kind == stopKind):
			stops = append(stops, l)
		}
	}

	byDistance := func(s []models.ZoneLevel) {
		sort.SliceStable(s, func(a, b int) bool {
			return math.Abs(s[a].Price-entry) < math.Abs(s[b].Price-entry)
		})
	}
	byDistance(targets)
	byDistance(stops)
	return targets, stops
}

func pct(entry, price float64) float64 {
	return math.Abs(price-entry) / entry * 100
}

package exits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Calibrator/models"
)

var base = models.BaseParams{RiskPct: 2, Leverage: 5, TP1Pct: 2, TP2Pct: 4, SLPct: 2}

func TestCalculateZoneLong(t *testing.T) {
	c := NewCalculator(DefaultConfig())
	levels := []models.ZoneLevel{
		{Price: 95, Kind: models.Support, Strength: 1},
		{Price: 105, Kind: models.Resistance, Strength: 1},
	}

	exits := c.Calculate(100, models.Long, levels, models.ExitZone, base)

	assert.Equal(t, models.ExitZone, exits.Method)
	assert.InDelta(t, 5.0, exits.TP1Pct, 1e-9)
	assert.InDelta(t, 7.0, exits.TP2Pct, 1e-9, "no second zone keeps the base spacing beyond TP1")
	assert.InDelta(t, 2.4, exits.SLPct, 1e-9, "stop capped at 1.2x base")
	require.NotNil(t, exits.Details.TP1Level)
	assert.Equal(t, 105.0, *exits.Details.TP1Level)
	assert.Nil(t, exits.Details.TP2Level)
	require.NotNil(t, exits.Details.SLLevel)
	assert.Equal(t, 95.0, *exits.Details.SLLevel)
}

func TestCalculateZoneShortMirrorsLong(t *testing.T) {
	c := NewCalculator(DefaultConfig())
	levels := []models.ZoneLevel{
		{Price: 95, Kind: models.Support, Strength: 1},
		{Price: 105, Kind: models.Resistance, Strength: 1},
	}

	exits := c.Calculate(100, models.Short, levels, models.ExitZone, base)

	assert.InDelta(t, 5.0, exits.TP1Pct, 1e-9)
	assert.InDelta(t, 7.0, exits.TP2Pct, 1e-9)
	assert.InDelta(t, 2.4, exits.SLPct, 1e-9)
	assert.Equal(t, 95.0, *exits.Details.TP1Level)
	assert.Equal(t, 105.0, *exits.Details.SLLevel)
}

func TestCalculateFloorsAndSecondTarget(t *testing.T) {
	c := NewCalculator(DefaultConfig())
	levels := []models.ZoneLevel{
		{Price: 99.5, Kind: models.Support},
		{Price: 100.5, Kind: models.Resistance},
		{Price: 101, Kind: models.Resistance},
		{Price: 106, Kind: models.Resistance},
	}

	exits := c.Calculate(100, models.Long, levels, models.ExitZone, base)

	// 0.5% target is floored to 1.6%, TP2 skips 101 which sits inside the floored TP1
	assert.InDelta(t, 1.6, exits.TP1Pct, 1e-9)
	assert.InDelta(t, 6.0, exits.TP2Pct, 1e-9)
	assert.Equal(t, 106.0, *exits.Details.TP2Level)
	assert.InDelta(t, 0.5, exits.SLPct, 1e-9)
}

func TestCalculateZoneKindMustMatch(t *testing.T) {
	c := NewCalculator(DefaultConfig())
	// Support above a long entry is not a target in zone mode, but it is in Fibonacci mode
	levels := []models.ZoneLevel{{Price: 103, Kind: models.Support}}

	zone := c.Calculate(100, models.Long, levels, models.ExitZone, base)
	assert.Equal(t, 2.0, zone.TP1Pct)
	assert.Equal(t, 4.0, zone.TP2Pct)
	assert.Equal(t, 2.0, zone.SLPct)
	assert.Equal(t, "no_target_levels", zone.Details.Reason)

	fib := c.Calculate(100, models.Long, levels, models.ExitFibonacci, base)
	assert.Equal(t, models.ExitFibonacci, fib.Method)
	assert.InDelta(t, 3.0, fib.TP1Pct, 1e-9)
	assert.InDelta(t, 5.0, fib.TP2Pct, 1e-9)
}

func TestCalculateWithoutLevels(t *testing.T) {
	c := NewCalculator(DefaultConfig())

	for _, method := range []models.ExitMethod{models.ExitZone, models.ExitBase} {
		exits := c.Calculate(100, models.Long, nil, method, base)
		assert.Equal(t, models.ExitBase, exits.Method)
		assert.Equal(t, base.TP1Pct, exits.TP1Pct)
		assert.Equal(t, base.TP2Pct, exits.TP2Pct)
		assert.Equal(t, base.SLPct, exits.SLPct)
	}
}

func TestCalculateKeepsTP2BeyondTP1(t *testing.T) {
	c := NewCalculator(DefaultConfig())
	inverted := models.BaseParams{TP1Pct: 3, TP2Pct: 2, SLPct: 1}
	levels := []models.ZoneLevel{{Price: 104, Kind: models.Resistance}}

	exits := c.Calculate(100, models.Long, levels, models.ExitZone, inverted)

	assert.InDelta(t, 4.0, exits.TP1Pct, 1e-9)
	assert.GreaterOrEqual(t, exits.TP2Pct, exits.TP1Pct)
}

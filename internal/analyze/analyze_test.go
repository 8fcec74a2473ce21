package analyze

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Calibrator/internal/effectiveness"
	"github.com/Alias1177/Calibrator/internal/validation"
	"github.com/Alias1177/Calibrator/models"
)

var (
	testAccount = models.AccountSnapshot{Deposit: 1000, FreeDeposit: 800, TotalProfit: 50, TradeMode: models.Futures}
	testBase    = models.BaseParams{RiskPct: 2, Leverage: 5, TP1Pct: 2, TP2Pct: 4, SLPct: 2}
)

func generateTestCandles(n int, generator func(int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
	}
	return candles
}

func flatWindow(n int) models.MarketWindow {
	return models.MarketWindow{Symbol: "BTCUSDT", Candles: generateTestCandles(n, func(i int) models.Candle {
		return models.Candle{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000}
	})}
}

// trendingWindow rises in waves so that swings exist on both sides of the last close
func trendingWindow(n int) models.MarketWindow {
	return models.MarketWindow{Symbol: "ETHUSDT", Candles: generateTestCandles(n, func(i int) models.Candle {
		p := 100 + float64(i)*0.1 + 3*math.Sin(float64(i)/4)
		return models.Candle{
			Datetime: fmt.Sprintf("bar-%d", i),
			Open:     p - 0.2,
			High:     p + 0.6,
			Low:      p - 0.6,
			Close:    p,
			Volume:   1000 + float64(i%5)*100,
		}
	})}
}

// randomWalk is a seeded geometric random walk with noisy volume
func randomWalk(rng *rand.Rand, n int) models.MarketWindow {
	p := 50 + rng.Float64()*100
	return models.MarketWindow{Symbol: "RNDUSDT", Candles: generateTestCandles(n, func(i int) models.Candle {
		open := p
		p *= 1 + rng.NormFloat64()*0.01
		high := math.Max(open, p) * (1 + rng.Float64()*0.004)
		low := math.Min(open, p) * (1 - rng.Float64()*0.004)
		return models.Candle{Open: open, High: high, Low: low, Close: p, Volume: 500 + rng.Float64()*1500}
	})}
}

func assertGeometry(t *testing.T, p *models.TradeParameters) {
	t.Helper()
	if p.Direction == models.Long {
		assert.Less(t, p.SLPrice, p.EntryPrice)
		assert.Less(t, p.EntryPrice, p.TP1Price)
		assert.LessOrEqual(t, p.TP1Price, p.TP2Price)
	} else {
		assert.Greater(t, p.SLPrice, p.EntryPrice)
		assert.Greater(t, p.EntryPrice, p.TP1Price)
		assert.GreaterOrEqual(t, p.TP1Price, p.TP2Price)
	}
}

func TestFlatWindow(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	w := flatWindow(300)

	p, err := engine.ComputeTradeParameters(Request{
		Window: w, Index: 299, Direction: models.Long, Account: testAccount, Base: testBase,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VolatilityLow, p.VolatilityRegime)
	assert.Equal(t, 0.0, p.Diagnostics.Volatility.ATRRatio)
	assert.Equal(t, models.RegimeLowVolRange, p.Regime)
	assert.Equal(t, 0.5, p.RegimeConfidence)
	assert.True(t, p.Diagnostics.Regime.Fallback)
	assert.Equal(t, models.ExitBase, p.ExitMethod)
	assert.Equal(t, 1.0, p.QualityScore)
	assert.Equal(t, models.RecommendStrong, p.Recommendation)
	assertGeometry(t, p)

	// LOW_VOL_RANGE at half confidence: tp x1.2, sl x0.95
	assert.InDelta(t, 102.4, p.TP1Price, 1e-9)
	assert.InDelta(t, 104.8, p.TP2Price, 1e-9)
	assert.InDelta(t, 98.1, p.SLPrice, 1e-9)
}

func TestCallerZones(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	w := trendingWindow(260)
	entry := w.Candles[259].Close
	zones := []models.ZoneLevel{
		{Price: entry * 1.05, Kind: models.Resistance, Strength: 1},
		{Price: entry * 0.95, Kind: models.Support, Strength: 1},
	}

	tests := []struct {
		name    string
		dir     models.Direction
		wantTP1 float64
	}{
		{name: "LONG берет сопротивление", dir: models.Long, wantTP1: entry * 1.05},
		{name: "SHORT берет поддержку", dir: models.Short, wantTP1: entry * 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := engine.ComputeTradeParameters(Request{
				Window: w, Index: 259, Direction: tt.dir, Account: testAccount, Base: testBase, Zones: zones,
			})
			require.NoError(t, err)

			assert.Equal(t, models.ExitZone, p.ExitMethod)
			assert.InDelta(t, tt.wantTP1, p.TP1Price, 1e-9)
			assertGeometry(t, p)

			// the stop is capped well inside the 5% zone
			ex := p.Diagnostics.Exits
			assert.Less(t, ex.SLPct, 5.0)
			assert.InDelta(t, entry*(1-tt.dir.Sign()*ex.SLPct/100), p.SLPrice, 1e-9)
			assert.InDelta(t, entry*(1+tt.dir.Sign()*ex.TP2Pct/100), p.TP2Price, 1e-9)
		})
	}
}

func TestIdempotent(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	req := Request{Window: trendingWindow(260), Index: 259, Direction: models.Short, Account: testAccount, Base: testBase}

	first, err := engine.ComputeTradeParameters(req)
	require.NoError(t, err)
	second, err := engine.ComputeTradeParameters(req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.ID)

	other := req
	other.Index = 258
	third, err := engine.ComputeTradeParameters(other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestResultDoesNotShareCachedPatterns(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	// Steady 1% moves, then heavy volume with almost no movement
	candles := make([]models.Candle, 10)
	price := 100.0
	for i := range candles {
		volume := 100.0
		switch {
		case i == 9:
			price *= 1.001
			volume = 500
		case i > 0:
			price *= 1.01
		}
		candles[i] = models.Candle{Datetime: fmt.Sprintf("bar-%d", i), Open: price, High: price, Low: price, Close: price, Volume: volume}
	}
	req := Request{
		Window:    models.MarketWindow{Symbol: "SOLUSDT", Candles: candles},
		Index:     9,
		Direction: models.Long,
		Account:   testAccount,
		Base:      testBase,
	}

	first, err := engine.ComputeTradeParameters(req)
	require.NoError(t, err)
	require.NotEmpty(t, first.Diagnostics.Quality.Patterns)
	want := first.Diagnostics.Quality.Patterns[0].Details["current_volume_ratio"]
	first.Diagnostics.Quality.Patterns[0].Details["current_volume_ratio"] = -999

	second, err := engine.ComputeTradeParameters(req)
	require.NoError(t, err)
	require.NotEmpty(t, second.Diagnostics.Quality.Patterns)
	assert.InDelta(t, want, second.Diagnostics.Quality.Patterns[0].Details["current_volume_ratio"], 1e-9)
}

func TestWindowIsNotModified(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	w := trendingWindow(260)

	_, err := engine.ComputeTradeParameters(Request{Window: w, Index: 259, Direction: models.Long, Account: testAccount, Base: testBase})
	require.NoError(t, err)

	for _, c := range w.Candles {
		assert.Nil(t, c.EMA200)
		assert.Nil(t, c.ADX)
	}
}

func TestRandomWindowsStayInBounds(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	rng := rand.New(rand.NewSource(42))

	for k := 0; k < 60; k++ {
		w := randomWalk(rng, 220+rng.Intn(80))
		dir := models.Long
		if rng.Intn(2) == 1 {
			dir = models.Short
		}
		mode := models.Futures
		if rng.Intn(3) == 0 {
			mode = models.Spot
		}
		tp1 := 0.5 + rng.Float64()*4
		base := models.BaseParams{
			RiskPct:  0.5 + rng.Float64()*5,
			Leverage: 1 + rng.Float64()*19,
			TP1Pct:   tp1,
			TP2Pct:   tp1 + 0.5 + rng.Float64()*4,
			SLPct:    0.5 + rng.Float64()*4,
		}
		account := models.AccountSnapshot{
			Deposit:       500 + rng.Float64()*10000,
			TotalProfit:   (rng.Float64() - 0.5) * 2000,
			TradeMode:     mode,
			OpenPositions: rng.Intn(8),
		}
		account.FreeDeposit = account.Deposit * (0.1 + rng.Float64()*0.9)

		p, err := engine.ComputeTradeParameters(Request{
			Window: w, Index: w.Len() - 1, Direction: dir, Account: account, Base: base,
		})
		require.NoError(t, err, "window %d", k)

		assertGeometry(t, p)
		assert.GreaterOrEqual(t, p.RiskPct, 0.5)
		assert.LessOrEqual(t, p.RiskPct, 8.0)
		assert.GreaterOrEqual(t, p.Leverage, 1.0)
		assert.LessOrEqual(t, p.Leverage, 20.0)
		if mode == models.Spot {
			assert.Equal(t, 1.0, p.Leverage)
		}
		assert.Greater(t, p.Quantity, 0.0)
		assert.GreaterOrEqual(t, p.RegimeConfidence, 0.0)
		assert.LessOrEqual(t, p.RegimeConfidence, 1.0)
	}
}

func TestZeroPricesAreRejected(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	w := models.MarketWindow{Symbol: "DEADUSDT", Candles: generateTestCandles(30, func(i int) models.Candle {
		return models.Candle{Volume: 1000}
	})}

	p, err := engine.ComputeTradeParameters(Request{Window: w, Index: 29, Direction: models.Long, Account: testAccount, Base: testBase})
	assert.Nil(t, p)

	var verr *validation.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Names(), "positive_prices")
}

func TestNoFreeDepositIsRejected(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	for _, mode := range []models.TradeMode{models.Futures, models.Spot} {
		t.Run(string(mode), func(t *testing.T) {
			account := models.AccountSnapshot{Deposit: 10000, FreeDeposit: 0, TradeMode: mode}

			p, err := engine.ComputeTradeParameters(Request{
				Window: trendingWindow(260), Index: 259, Direction: models.Long, Account: account, Base: testBase,
			})
			assert.Nil(t, p)

			var verr *validation.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Names(), "positive_quantity")
		})
	}
}

func TestInvalidRequest(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	_, err := engine.ComputeTradeParameters(Request{Window: flatWindow(10), Index: 10, Direction: models.Long})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = engine.ComputeTradeParameters(Request{Window: flatWindow(10), Index: 9, Direction: "UP"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestInstrumentRounding(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	p, err := engine.ComputeTradeParameters(Request{
		Window:     trendingWindow(260),
		Index:      259,
		Direction:  models.Long,
		Account:    testAccount,
		Base:       testBase,
		Instrument: models.Instrument{TickSize: 0.05, StepSize: 0.001},
	})
	require.NoError(t, err)

	for _, price := range []float64{p.EntryPrice, p.SLPrice, p.TP1Price, p.TP2Price} {
		assert.InDelta(t, math.Round(price/0.05), price/0.05, 1e-6)
	}
	assert.InDelta(t, math.Round(p.Quantity/0.001), p.Quantity/0.001, 1e-6)
	assert.InDelta(t, p.Quantity*p.EntryPrice, p.EntryAmount, 1e-6)
}

func TestEffectivenessHistory(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	store := effectiveness.NewStore(map[string]models.Effectiveness{
		"ETHUSDT_LONG": {AvgProfitPct: 2, SuccessRate: 0.65, OptimalRiskPct: 6, OptimalLeverage: 12},
	})
	req := Request{Window: trendingWindow(260), Index: 259, Direction: models.Long, Account: testAccount, Base: testBase}

	cold, err := engine.ComputeTradeParameters(req)
	require.NoError(t, err)
	assert.False(t, cold.Diagnostics.Sizing.HasHistory)

	req.Effectiveness = store
	warm, err := engine.ComputeTradeParameters(req)
	require.NoError(t, err)
	assert.True(t, warm.Diagnostics.Sizing.HasHistory)
	assert.Greater(t, warm.Leverage, cold.Leverage)
	assert.NotEqual(t, cold.ID, warm.ID)
}

func TestConcurrentSymbols(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	rng := rand.New(rand.NewSource(7))

	windows := make([]models.MarketWindow, 8)
	for k := range windows {
		windows[k] = randomWalk(rng, 250)
		windows[k].Symbol = fmt.Sprintf("SYM%dUSDT", k)
	}

	sequential := make([]*models.TradeParameters, len(windows))
	for k, w := range windows {
		p, err := engine.ComputeTradeParameters(Request{Window: w, Index: 249, Direction: models.Long, Account: testAccount, Base: testBase})
		require.NoError(t, err)
		sequential[k] = p
	}

	parallel := make([]*models.TradeParameters, len(windows))
	var wg sync.WaitGroup
	for k, w := range windows {
		wg.Add(1)
		go func(k int, w models.MarketWindow) {
			defer wg.Done()
			p, err := engine.ComputeTradeParameters(Request{Window: w, Index: 249, Direction: models.Long, Account: testAccount, Base: testBase})
			assert.NoError(t, err)
			parallel[k] = p
		}(k, w)
	}
	wg.Wait()

	assert.Equal(t, sequential, parallel)
	assert.Len(t, engine.Regimes().History(), 2*len(windows))
}

package effectiveness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Calibrator/models"
)

type fakeSource struct {
	mu    sync.Mutex
	table map[string]models.Effectiveness
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Load(ctx context.Context) (map[string]models.Effectiveness, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

func (f *fakeSource) set(table map[string]models.Effectiveness, err error) {
	f.mu.Lock()
	f.table, f.err = table, err
	f.mu.Unlock()
}

func TestStore(t *testing.T) {
	s := NewStore(map[string]models.Effectiveness{
		"BTCUSDT_LONG": {AvgProfitPct: 1.5, SuccessRate: 0.6, OptimalRiskPct: 3, OptimalLeverage: 8},
	})

	e, ok := s.Lookup("BTCUSDT", models.Long)
	require.True(t, ok)
	assert.Equal(t, 3.0, e.OptimalRiskPct)

	_, ok = s.Lookup("BTCUSDT", models.Short)
	assert.False(t, ok, "sides are separate keys")

	s.Set("BTCUSDT", models.Short, models.Effectiveness{SuccessRate: 0.4})
	_, ok = s.Lookup("BTCUSDT", models.Short)
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len())

	snap := s.Snapshot()
	snap["ETHUSDT_LONG"] = models.Effectiveness{}
	assert.Equal(t, 2, s.Len(), "snapshot is a copy")

	s.Replace(map[string]models.Effectiveness{"ETHUSDT_LONG": {SuccessRate: 0.7}})
	_, ok = s.Lookup("BTCUSDT", models.Long)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.UpdatedAt().IsZero())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				s.Set("BTCUSDT", models.Long, models.Effectiveness{OptimalRiskPct: float64(k)})
			}
		}()
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				s.Lookup("BTCUSDT", models.Long)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}

func TestRefreshKeepsTableOnError(t *testing.T) {
	store := NewStore(nil)
	src := &fakeSource{table: map[string]models.Effectiveness{"BTCUSDT_LONG": {OptimalRiskPct: 2}}}
	r := NewRefresher(store, src, RefresherOptions{})

	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, 1, store.Len())

	src.set(nil, errors.New("connection refused"))
	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	e, ok := store.Lookup("BTCUSDT", models.Long)
	require.True(t, ok)
	assert.Equal(t, 2.0, e.OptimalRiskPct)
}

func TestTriggerIsRateLimited(t *testing.T) {
	r := NewRefresher(NewStore(nil), &fakeSource{}, RefresherOptions{MinTriggerGap: time.Hour})

	assert.True(t, r.Trigger())
	assert.False(t, r.Trigger())
}

func TestRunReloadsOnTrigger(t *testing.T) {
	store := NewStore(nil)
	src := &fakeSource{table: map[string]models.Effectiveness{}}
	r := NewRefresher(store, src, RefresherOptions{Interval: time.Hour, MinTriggerGap: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	src.set(map[string]models.Effectiveness{"SOLUSDT_SHORT": {SuccessRate: 0.55}}, nil)
	require.True(t, r.Trigger())
	require.Eventually(t, func() bool {
		_, ok := store.Lookup("SOLUSDT", models.Short)
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunReloadsOnTick(t *testing.T) {
	src := &fakeSource{table: map[string]models.Effectiveness{}}
	r := NewRefresher(NewStore(nil), src, RefresherOptions{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	assert.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

package effectiveness

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Alias1177/Calibrator/models"
)

// RefresherOptions holds options for creating a Refresher
type RefresherOptions struct {
	Interval time.Duration
	// MinTriggerGap limits how often Trigger may force a reload
	MinTriggerGap time.Duration
	LoadTimeout   time.Duration
}

// Refresher keeps a Store in sync with an EffectivenessSource
type Refresher struct {
	store   *Store
	source  models.EffectivenessSource
	opts    RefresherOptions
	limiter *rate.Limiter
	trigger chan struct{}
	logger  zerolog.Logger
}

// NewRefresher creates a refresher. Zero options fall back to a 5 minute interval,
// a 10 second trigger gap and a 30 second load timeout.
func NewRefresher(store *Store, source models.EffectivenessSource, opts RefresherOptions) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.MinTriggerGap <= 0 {
		opts.MinTriggerGap = 10 * time.Second
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Refresher{
		store:   store,
		source:  source,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.MinTriggerGap), 1),
		trigger: make(chan struct{}, 1),
		logger:  log.With().Str("component", "effectiveness_refresher").Logger(),
	}
}

// Refresh loads the table once. On failure the store keeps its previous table.
func (r *Refresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.LoadTimeout)
	defer cancel()

	table, err := r.source.Load(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Int("kept_entries", r.store.Len()).Msg("Effectiveness reload failed, keeping previous table")
		return fmt.Errorf("loading effectiveness: %w", err)
	}
	r.store.Replace(table)
	r.logger.Info().Int("entries", len(table)).Msg("Effectiveness table reloaded")
	return nil
}

// Trigger asks Run for an immediate reload. It returns false when the request was rate limited.
func (r *Refresher) Trigger() bool {
	if !r.limiter.Allow() {
		return false
	}
	select {
	case r.trigger <- struct{}{}:
	default:
		// a reload is already pending
	}
	return true
}

// Run reloads on start, then on every tick and trigger until ctx is done
func (r *Refresher) Run(ctx context.Context) error {
	_ = r.Refresh(ctx)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = r.Refresh(ctx)
		case <-r.trigger:
			_ = r.Refresh(ctx)
		}
	}
}

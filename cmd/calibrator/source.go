package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Calibrator/internal/config"
	"github.com/Alias1177/Calibrator/internal/database"
	httpclient "github.com/Alias1177/Calibrator/internal/platform/http"
	"github.com/Alias1177/Calibrator/models"
)

// openSource builds the configured effectiveness source. A nil source means no history.
func openSource(ctx context.Context, cfg *config.Config) (models.EffectivenessSource, func(), error) {
	noop := func() {}

	switch cfg.EffectivenessSource {
	case config.SourceNone, "":
		return nil, noop, nil

	case config.SourceFile:
		return database.NewFileSource(cfg.EffectivenessFile), noop, nil

	case config.SourcePostgres:
		db, err := database.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, noop, err
		}
		return database.NewPostgresSource(db), func() {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}, nil

	case config.SourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return database.NewRedisSource(client, cfg.RedisKey), func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close redis client")
			}
		}, nil

	case config.SourceHTTP:
		if cfg.EffectivenessURL == "" {
			return nil, noop, fmt.Errorf("EFFECTIVENESS_URL is required for the http source")
		}
		client := httpclient.NewClient(httpclient.ClientOptions{
			Timeout:        cfg.HTTPTimeout,
			RequestsPerSec: cfg.HTTPRequestsPerSec,
		})
		return httpclient.NewEffectivenessSource(client, cfg.EffectivenessURL, cfg.EffectivenessToken), noop, nil
	}

	return nil, noop, fmt.Errorf("unknown effectiveness source %q", cfg.EffectivenessSource)
}

package http

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Calibrator/internal/database"
	"github.com/Alias1177/Calibrator/models"
)

// EffectivenessSource fetches the effectiveness table as JSON from an HTTP endpoint
type EffectivenessSource struct {
	client *Client
	url    string
	token  string
	logger zerolog.Logger
}

// NewEffectivenessSource creates a source for url. A non-empty token is sent as a bearer token.
func NewEffectivenessSource(client *Client, url, token string) *EffectivenessSource {
	return &EffectivenessSource{
		client: client,
		url:    url,
		token:  token,
		logger: log.With().Str("component", "effectiveness_http").Logger(),
	}
}

// Load implements models.EffectivenessSource
func (s *EffectivenessSource) Load(ctx context.Context) (map[string]models.Effectiveness, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	s.logger.Debug().Str("url", s.url).Msg("Fetching effectiveness")

	resp, err := s.client.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetching effectiveness: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return database.DecodeTable(body)
}

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Calibrator/models"
)

// ErrNoEffectiveness is returned when a source holds no effectiveness data
var ErrNoEffectiveness = errors.New("no effectiveness data")

// FileSource reads the effectiveness table from a JSON file
type FileSource struct {
	Path string
}

// NewFileSource creates a source reading path
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load implements models.EffectivenessSource
func (s *FileSource) Load(ctx context.Context) (map[string]models.Effectiveness, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", s.Path, ErrNoEffectiveness)
		}
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}
	return DecodeTable(data)
}

// DecodeTable parses a JSON effectiveness mapping and drops entries with malformed keys
func DecodeTable(data []byte) (map[string]models.Effectiveness, error) {
	var raw map[string]models.Effectiveness
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding effectiveness: %w", err)
	}
	table := make(map[string]models.Effectiveness, len(raw))
	for key, e := range raw {
		if !ValidKey(key) {
			log.Warn().Str("component", "effectiveness_source").Str("key", key).Msg("Skipping malformed effectiveness key")
			continue
		}
		table[key] = e
	}
	if len(table) == 0 {
		return nil, ErrNoEffectiveness
	}
	return table, nil
}

// ValidKey reports whether key has the "{symbol}_{side}" form
func ValidKey(key string) bool {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 {
		return false
	}
	return models.Direction(key[idx+1:]).Valid()
}

package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alias1177/Calibrator/models"
)

func TestQualityAdjuster(t *testing.T) {
	q := NewQualityAdjuster(DefaultQualityConfig())

	tests := []struct {
		name           string
		patterns       []models.PatternDetection
		score          float64
		recommendation models.Recommendation
	}{
		{
			name:           "Без паттернов",
			score:          1.0,
			recommendation: models.RecommendStrong,
		},
		{
			name:           "Спуфинг",
			patterns:       []models.PatternDetection{{Kind: models.PatternSpoofing, Confidence: 0.9}},
			score:          0.55,
			recommendation: models.RecommendWeak,
		},
		{
			name: "Айсберг и спуфинг",
			patterns: []models.PatternDetection{
				{Kind: models.PatternIceberg, Confidence: 0.5},
				{Kind: models.PatternSpoofing, Confidence: 1.0},
			},
			score:          0.65,
			recommendation: models.RecommendModerate,
		},
		{
			name: "Двойной спуфинг",
			patterns: []models.PatternDetection{
				{Kind: models.PatternSpoofing, Confidence: 1.0},
				{Kind: models.PatternSpoofing, Confidence: 1.0},
			},
			score:          0,
			recommendation: models.RecommendReject,
		},
		{
			name:           "Айсберг не выходит за 1.0",
			patterns:       []models.PatternDetection{{Kind: models.PatternIceberg, Confidence: 0.8}},
			score:          1.0,
			recommendation: models.RecommendStrong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quality := q.Adjust(tt.patterns)
			assert.InDelta(t, tt.score, quality.QualityScore, 1e-9)
			assert.Equal(t, tt.recommendation, quality.Recommendation)
			assert.Len(t, quality.Impacts, len(tt.patterns))
		})
	}
}

func TestRecommendCutPoints(t *testing.T) {
	q := NewQualityAdjuster(DefaultQualityConfig())

	assert.Equal(t, models.RecommendReject, q.Recommend(0.39))
	assert.Equal(t, models.RecommendWeak, q.Recommend(0.4))
	assert.Equal(t, models.RecommendModerate, q.Recommend(0.6))
	assert.Equal(t, models.RecommendStrong, q.Recommend(0.8))
}

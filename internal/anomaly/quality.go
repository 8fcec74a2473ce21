package anomaly

import (
	"github.com/Alias1177/Calibrator/internal/calculate"
	"github.com/Alias1177/Calibrator/models"
)

// QualityConfig tunes how patterns move the quality score
type QualityConfig struct {
	IcebergWeight  float64 `yaml:"iceberg_weight"`
	SpoofingWeight float64 `yaml:"spoofing_weight"`
	RejectBelow    float64 `yaml:"reject_below"`
	WeakBelow      float64 `yaml:"weak_below"`
	ModerateBelow  float64 `yaml:"moderate_below"`
}

// DefaultQualityConfig returns the production weights and cut points
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		IcebergWeight:  0.3,
		SpoofingWeight: 0.5,
		RejectBelow:    0.4,
		WeakBelow:      0.6,
		ModerateBelow:  0.8,
	}
}

// QualityAdjuster turns pattern detections into a signal quality verdict
type QualityAdjuster struct {
	cfg QualityConfig
}

// NewQualityAdjuster creates an adjuster
func NewQualityAdjuster(cfg QualityConfig) *QualityAdjuster {
	return &QualityAdjuster{cfg: cfg}
}

// Adjust starts from a perfect score, rewards icebergs and penalizes spoofing
func (q *QualityAdjuster) Adjust(patterns []models.PatternDetection) models.SignalQuality {
	score := 1.0
	impacts := make([]models.PatternImpact, 0, len(patterns))
	for _, p := range patterns {
		var delta float64
		switch p.Kind {
		case models.PatternIceberg:
			delta = p.Confidence * q.cfg.IcebergWeight
		case models.PatternSpoofing:
			delta = -p.Confidence * q.cfg.SpoofingWeight
		}
		score += delta
		impacts = append(impacts, models.PatternImpact{Kind: p.Kind, Confidence: p.Confidence, Delta: delta})
	}
	score = calculate.Clamp(score, 0, 1)

	return models.SignalQuality{
		QualityScore:   score,
		Patterns:       patterns,
		Impacts:        impacts,
		Recommendation: q.Recommend(score),
	}
}

// Recommend maps a score to a verdict
func (q *QualityAdjuster) Recommend(score float64) models.Recommendation {
	switch {
	case score < q.cfg.RejectBelow:
		return models.RecommendReject
	case score < q.cfg.WeakBelow:
		return models.RecommendWeak
	case score < q.cfg.ModerateBelow:
		return models.RecommendModerate
	default:
		return models.RecommendStrong
	}
}

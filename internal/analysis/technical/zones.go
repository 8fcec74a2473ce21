package technical

import (
	"github.com/Alias1177/Calibrator/models"
)

// Zone source modes
const (
	ModeAuto      = "auto"
	ModeZones     = "zones"
	ModeFibonacci = "fibonacci"
)

// ZoneConfig selects and tunes the level source
type ZoneConfig struct {
	Mode      string          `yaml:"mode"`
	Swing     SwingConfig     `yaml:"swing"`
	Fibonacci FibonacciConfig `yaml:"fibonacci"`
}

// DefaultZoneConfig prefers swing zones and falls back to Fibonacci levels
func DefaultZoneConfig() ZoneConfig {
	return ZoneConfig{
		Mode:      ModeAuto,
		Swing:     DefaultSwingConfig(),
		Fibonacci: DefaultFibonacciConfig(),
	}
}

// ZoneProvider derives candidate exit levels from the window
type ZoneProvider struct {
	cfg ZoneConfig
}

// NewZoneProvider creates a provider
func NewZoneProvider(cfg ZoneConfig) *ZoneProvider {
	return &ZoneProvider{cfg: cfg}
}

// Levels returns the levels of bar i and the exit method they imply.
// No levels means the base method.
func (p *ZoneProvider) Levels(w models.MarketWindow, i int) ([]models.ZoneLevel, models.ExitMethod) {
	switch p.cfg.Mode {
	case ModeZones:
		if levels := SupportResistance(w, i, p.cfg.Swing); len(levels) > 0 {
			return levels, models.ExitZone
		}
	case ModeFibonacci:
		if levels := FibonacciLevels(w, i, p.cfg.Fibonacci); len(levels) > 0 {
			return levels, models.ExitFibonacci
		}
	default:
		if levels := SupportResistance(w, i, p.cfg.Swing); len(levels) > 0 {
			return levels, models.ExitZone
		}
		if levels := FibonacciLevels(w, i, p.cfg.Fibonacci); len(levels) > 0 {
			return levels, models.ExitFibonacci
		}
	}
	return nil, models.ExitBase
}

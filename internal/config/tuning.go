package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Alias1177/Calibrator/internal/analyze"
)

// ErrInvalidTuning is returned when a tuning file sets inconsistent values
var ErrInvalidTuning = errors.New("invalid tuning")

// Tuning is the numeric configuration of every engine component
type Tuning = analyze.Config

// LoadTuning returns the defaults overlaid with the YAML file at path.
// Keys missing from the file keep their default value.
func LoadTuning(path string) (Tuning, error) {
	t := analyze.DefaultConfig()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("reading tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parsing tuning file %s: %w", path, err)
	}
	if err := checkTuning(t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func checkTuning(t Tuning) error {
	var problems []error
	if t.Volatility.LowRatio >= t.Volatility.HighRatio {
		problems = append(problems, fmt.Errorf("volatility.low_ratio %.2f must be below high_ratio %.2f", t.Volatility.LowRatio, t.Volatility.HighRatio))
	}
	for name, th := range map[string]struct{ min, max float64 }{
		"low":    {t.Volatility.Low.MinDistanceMult, t.Volatility.Low.MaxDistanceMult},
		"normal": {t.Volatility.Normal.MinDistanceMult, t.Volatility.Normal.MaxDistanceMult},
		"high":   {t.Volatility.High.MinDistanceMult, t.Volatility.High.MaxDistanceMult},
	} {
		if th.min <= 0 || th.min >= th.max {
			problems = append(problems, fmt.Errorf("volatility.%s distance band [%.2f, %.2f] is empty", name, th.min, th.max))
		}
	}
	if t.Sizing.MinRiskPct > t.Sizing.MaxRiskPct || t.Sizing.MinLeverage > t.Sizing.MaxLeverage {
		problems = append(problems, errors.New("sizing bounds are inverted"))
	}
	if t.Sizing.HistoryWeight < 0 || t.Sizing.HistoryWeight > 1 {
		problems = append(problems, fmt.Errorf("sizing.history_weight %.2f outside [0, 1]", t.Sizing.HistoryWeight))
	}
	if t.Exits.TP1FloorMult <= 0 || t.Exits.TP2FloorMult <= 0 || t.Exits.SLCapMult <= 0 {
		problems = append(problems, errors.New("exit multipliers must be positive"))
	}
	if t.Regime.HistorySize <= 0 {
		problems = append(problems, errors.New("regime.history_size must be positive"))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTuning, errors.Join(problems...))
	}
	return nil
}

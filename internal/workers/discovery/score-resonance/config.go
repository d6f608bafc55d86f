// internal/workers/discovery/score-resonance/config.go
package scoreresonance

import (
	"time"

	"resonance-pipeline/internal/common/config"
	"resonance-pipeline/internal/models"
)

type Config struct {
	Breakpoints         models.TierBreakpoints
	SaturationConstant  float64
	CoMentionWindow     time.Duration
	CrossMarketConstant float64
	EconomicBlocs       map[string]string
	ScaleTierRange      int
}

// LoadConfig maps the scoring section of the app config onto the worker.
func LoadConfig(cfg config.ScoringConfig) *Config {
	return &Config{
		Breakpoints:         cfg.Breakpoints,
		SaturationConstant:  cfg.SaturationConstant,
		CoMentionWindow:     time.Duration(cfg.CoMentionWindowDays) * 24 * time.Hour,
		CrossMarketConstant: cfg.CrossMarketConstant,
		EconomicBlocs:       cfg.EconomicBlocs,
		ScaleTierRange:      cfg.ScaleTierRange,
	}
}

// internal/orchestrator/config.go
package orchestrator

import (
	"time"

	"resonance-pipeline/internal/common/config"
)

type Config struct {
	WorkerPoolSize        int
	MinSuccessFraction    float64
	DefaultRetainFraction float64
	RunDeadline           time.Duration
}

// LoadConfig maps the pipeline section of the app config onto the
// orchestrator.
func LoadConfig(cfg config.PipelineConfig) *Config {
	return &Config{
		WorkerPoolSize:        cfg.WorkerPoolSize,
		MinSuccessFraction:    cfg.MinSuccessFraction,
		DefaultRetainFraction: cfg.DefaultRetainFraction,
		RunDeadline:           time.Duration(cfg.RunDeadline) * time.Millisecond,
	}
}

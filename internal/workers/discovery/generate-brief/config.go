// internal/workers/discovery/generate-brief/config.go
package generatebrief

import (
	"time"

	"resonance-pipeline/internal/common/config"
)

type Config struct {
	MaxTokens       int
	PrimaryTimeout  time.Duration
	FallbackTimeout time.Duration
}

// LoadConfig maps the genai section of the app config onto the worker.
func LoadConfig(cfg config.GenAIConfig) *Config {
	return &Config{
		MaxTokens:       cfg.MaxTokens,
		PrimaryTimeout:  cfg.Primary.TimeoutDuration(),
		FallbackTimeout: cfg.Fallback.TimeoutDuration(),
	}
}

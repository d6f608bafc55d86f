// internal/workers/discovery/collect-brand-intel/config.go
package collectbrandintel

import (
	"time"

	"resonance-pipeline/internal/common/config"
)

type ProviderPolicy struct {
	Timeout    time.Duration
	MaxRetries int
}

type Config struct {
	Registry      ProviderPolicy
	Firmographics ProviderPolicy
	Mediawatch    ProviderPolicy
	CacheTTL      time.Duration
}

// LoadConfig maps the providers section of the app config onto the worker.
func LoadConfig(cfg config.ProvidersConfig) *Config {
	policy := func(p config.ProviderConfig) ProviderPolicy {
		return ProviderPolicy{
			Timeout:    p.TimeoutDuration(),
			MaxRetries: p.MaxRetries,
		}
	}
	return &Config{
		Registry:      policy(cfg.Registry),
		Firmographics: policy(cfg.Firmographics),
		Mediawatch:    policy(cfg.Mediawatch),
		CacheTTL:      time.Duration(cfg.CacheTTL) * time.Millisecond,
	}
}

func (c *Config) policyFor(name string) ProviderPolicy {
	switch name {
	case "registry":
		return c.Registry
	case "firmographics":
		return c.Firmographics
	case "mediawatch":
		return c.Mediawatch
	default:
		return ProviderPolicy{Timeout: 5 * time.Second, MaxRetries: 2}
	}
}

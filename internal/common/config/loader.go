// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"resonance-pipeline/internal/models"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root so
// tests running from package directories pick it up too.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "resonance-pipeline"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "media-mentions"
	}

	if cfg.Pipeline.WorkerPoolSize == 0 {
		cfg.Pipeline.WorkerPoolSize = 8
	}
	if cfg.Pipeline.MinSuccessFraction == 0 {
		cfg.Pipeline.MinSuccessFraction = 0.5
	}
	if cfg.Pipeline.DefaultRetainFraction == 0 {
		cfg.Pipeline.DefaultRetainFraction = 0.1
	}
	if cfg.Pipeline.RunDeadline == 0 {
		cfg.Pipeline.RunDeadline = 300000
	}

	if cfg.Scoring.Weights.Sum() == 0 {
		cfg.Scoring.Weights = models.EqualWeights()
	}
	if cfg.Scoring.Breakpoints == (models.TierBreakpoints{}) {
		cfg.Scoring.Breakpoints = models.DefaultTierBreakpoints()
	}
	if cfg.Scoring.SaturationConstant == 0 {
		cfg.Scoring.SaturationConstant = 5
	}
	if cfg.Scoring.CoMentionWindowDays == 0 {
		cfg.Scoring.CoMentionWindowDays = 90
	}
	if cfg.Scoring.CrossMarketConstant == 0 {
		cfg.Scoring.CrossMarketConstant = 0.3
	}
	if cfg.Scoring.ScaleTierRange == 0 {
		cfg.Scoring.ScaleTierRange = 4 // tiers run 1..5
	}

	for _, p := range []*ProviderConfig{
		&cfg.Providers.Registry,
		&cfg.Providers.Firmographics,
		&cfg.Providers.Mediawatch,
	} {
		if p.Timeout == 0 {
			p.Timeout = 5000
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = 2
		}
	}
	if cfg.Providers.CacheTTL == 0 {
		cfg.Providers.CacheTTL = 3600000
	}

	if cfg.GenAI.Primary.Name == "" {
		cfg.GenAI.Primary.Name = "primary"
	}
	if cfg.GenAI.Fallback.Name == "" {
		cfg.GenAI.Fallback.Name = "fallback"
	}
	if cfg.GenAI.Primary.Timeout == 0 {
		cfg.GenAI.Primary.Timeout = 20000
	}
	if cfg.GenAI.Fallback.Timeout == 0 {
		cfg.GenAI.Fallback.Timeout = 20000
	}
	if cfg.GenAI.MaxTokens == 0 {
		cfg.GenAI.MaxTokens = 1024
	}

	if cfg.CRM.Timeout == 0 {
		cfg.CRM.Timeout = 10000
	}

	if cfg.Weights.AdjustInterval == 0 {
		cfg.Weights.AdjustInterval = 3600000
	}
	if cfg.Weights.Epsilon == 0 {
		cfg.Weights.Epsilon = 0.1
	}
	if cfg.Weights.PerturbDelta == 0 {
		cfg.Weights.PerturbDelta = 0.05
	}
	if cfg.Weights.MinObservations == 0 {
		cfg.Weights.MinObservations = 10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if err := cfg.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if cfg.Scoring.Breakpoints.Tier1 <= cfg.Scoring.Breakpoints.Tier2 ||
		cfg.Scoring.Breakpoints.Tier2 <= cfg.Scoring.Breakpoints.Tier3 {
		return fmt.Errorf("scoring.breakpoints must be strictly decreasing, got %.1f/%.1f/%.1f",
			cfg.Scoring.Breakpoints.Tier1, cfg.Scoring.Breakpoints.Tier2, cfg.Scoring.Breakpoints.Tier3)
	}
	if cfg.Pipeline.MinSuccessFraction < 0 || cfg.Pipeline.MinSuccessFraction > 1 {
		return fmt.Errorf("pipeline.min_success_fraction must be in [0,1], got %f", cfg.Pipeline.MinSuccessFraction)
	}
	if cfg.Pipeline.DefaultRetainFraction <= 0 || cfg.Pipeline.DefaultRetainFraction > 1 {
		return fmt.Errorf("pipeline.default_retain_fraction must be in (0,1], got %f", cfg.Pipeline.DefaultRetainFraction)
	}
	if cfg.Scoring.CrossMarketConstant < 0 || cfg.Scoring.CrossMarketConstant > 1 {
		return fmt.Errorf("scoring.cross_market_constant must be in [0,1], got %f", cfg.Scoring.CrossMarketConstant)
	}
	if cfg.Scoring.SaturationConstant <= 0 {
		return fmt.Errorf("scoring.saturation_constant must be positive, got %f", cfg.Scoring.SaturationConstant)
	}
	return nil
}

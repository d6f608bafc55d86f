// internal/common/config/config.go
package config

import (
	"fmt"
	"time"

	"resonance-pipeline/internal/models"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Providers ProvidersConfig `mapstructure:"providers"`
	GenAI     GenAIConfig     `mapstructure:"genai"`
	CRM       CRMConfig       `mapstructure:"crm"`
	Weights   WeightsConfig   `mapstructure:"weights"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"` // media-mentions index
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Pipeline Configuration ---

// PipelineConfig holds the orchestrator's run-level knobs.
type PipelineConfig struct {
	WorkerPoolSize        int     `mapstructure:"worker_pool_size"`
	MinSuccessFraction    float64 `mapstructure:"min_success_fraction"`
	DefaultRetainFraction float64 `mapstructure:"default_retain_fraction"`
	RunDeadline           int     `mapstructure:"run_deadline"` // milliseconds
}

// ScoringConfig holds the resonance scorer's tunables. Breakpoints and the
// geographic/media constants are named configuration, not embedded constants.
type ScoringConfig struct {
	Weights             models.Weights         `mapstructure:"weights"`
	Breakpoints         models.TierBreakpoints `mapstructure:"breakpoints"`
	SaturationConstant  float64                `mapstructure:"saturation_constant"`
	CoMentionWindowDays int                    `mapstructure:"co_mention_window_days"`
	CrossMarketConstant float64                `mapstructure:"cross_market_constant"`
	EconomicBlocs       map[string]string      `mapstructure:"economic_blocs"` // country code -> bloc id
	ScaleTierRange      int                    `mapstructure:"scale_tier_range"`
}

// ProvidersConfig holds settings for the three market-intel providers.
type ProvidersConfig struct {
	Registry      ProviderConfig `mapstructure:"registry"`
	Firmographics ProviderConfig `mapstructure:"firmographics"`
	Mediawatch    ProviderConfig `mapstructure:"mediawatch"`
	CacheTTL      int            `mapstructure:"cache_ttl"` // milliseconds
}

type ProviderConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

func (p ProviderConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Millisecond
}

// GenAIConfig holds primary and fallback language-model backends.
type GenAIConfig struct {
	Primary     BackendConfig `mapstructure:"primary"`
	Fallback    BackendConfig `mapstructure:"fallback"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

type BackendConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

func (b BackendConfig) TimeoutDuration() time.Duration {
	return time.Duration(b.Timeout) * time.Millisecond
}

// CRMConfig holds the downstream CRM ingestion endpoint.
type CRMConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	OAuthToken string `mapstructure:"oauth_token"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// WeightsConfig holds the weight-adjustment loop settings.
type WeightsConfig struct {
	AdjustInterval  int     `mapstructure:"adjust_interval"` // milliseconds
	Epsilon         float64 `mapstructure:"epsilon"`
	PerturbDelta    float64 `mapstructure:"perturb_delta"`
	MinObservations int     `mapstructure:"min_observations"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Package config loads service configuration from defaults, an optional YAML
// file and TEAMFORGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/teamforge/internal/llm"
	"github.com/jonathan/teamforge/internal/logging"
)

// EnvPrefix is prepended to every environment override, e.g. TEAMFORGE_SERVER_PORT.
const EnvPrefix = "TEAMFORGE"

// Vector store backends
const (
	VectorMemory   = "memory"
	VectorPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig points at PostgreSQL. An empty URL runs without persistence.
type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	Migrate bool   `mapstructure:"migrate"`
}

// LLMConfig selects models and retry behaviour.
type LLMConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	Provider      string        `mapstructure:"provider"`
	LiteModel     string        `mapstructure:"lite_model"`
	StandardModel string        `mapstructure:"standard_model"`
	AdvancedModel string        `mapstructure:"advanced_model"`
	Temperature   float64       `mapstructure:"temperature"`
	JSONMode      bool          `mapstructure:"json_mode"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

// VectorConfig selects the profile index.
type VectorConfig struct {
	Backend        string `mapstructure:"backend"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TopK           int    `mapstructure:"top_k"`
}

// AgentsConfig tunes the pipelines.
type AgentsConfig struct {
	MaxTimezoneDiff  float64       `mapstructure:"max_timezone_diff"`
	MaxParallelTasks int           `mapstructure:"max_parallel_tasks"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds JWT settings. With Required false, requests without a token are accepted.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"`
	JWTExpirationHours int    `mapstructure:"jwt_expiration_hours"`
	Required           bool   `mapstructure:"required"`
}

// RateLimitConfig mirrors ratelimit.Config.
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLimit    int           `mapstructure:"default_limit"`
	DefaultWindow   time.Duration `mapstructure:"default_window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Whitelist       []string      `mapstructure:"whitelist"`
	Blacklist       []string      `mapstructure:"blacklist"`
}

// LoggingConfig selects level and handler format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	llmDefaults := llm.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{Migrate: true},
		LLM: LLMConfig{
			Provider:      string(llmDefaults.Provider),
			LiteModel:     llmDefaults.Models[llm.TierLite],
			StandardModel: llmDefaults.Models[llm.TierStandard],
			AdvancedModel: llmDefaults.Models[llm.TierAdvanced],
			Temperature:   float64(llmDefaults.Temperature),
			JSONMode:      llmDefaults.JSONMode,
			MaxAttempts:   llmDefaults.MaxAttempts,
			RetryBackoff:  llmDefaults.RetryBackoff,
		},
		Vector: VectorConfig{
			Backend:        VectorMemory,
			EmbeddingModel: "text-embedding-004",
			TopK:           5,
		},
		Agents: AgentsConfig{
			MaxTimezoneDiff:  4.0,
			MaxParallelTasks: 1,
			Timeout:          5 * time.Minute,
		},
		Auth: AuthConfig{JWTExpirationHours: 24},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: logging.LevelInfo, Format: logging.FormatJSON},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.migrate", d.Database.Migrate)

	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.lite_model", d.LLM.LiteModel)
	v.SetDefault("llm.standard_model", d.LLM.StandardModel)
	v.SetDefault("llm.advanced_model", d.LLM.AdvancedModel)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.json_mode", d.LLM.JSONMode)
	v.SetDefault("llm.max_attempts", d.LLM.MaxAttempts)
	v.SetDefault("llm.retry_backoff", d.LLM.RetryBackoff)

	v.SetDefault("vector.backend", d.Vector.Backend)
	v.SetDefault("vector.embedding_model", d.Vector.EmbeddingModel)
	v.SetDefault("vector.top_k", d.Vector.TopK)

	v.SetDefault("agents.max_timezone_diff", d.Agents.MaxTimezoneDiff)
	v.SetDefault("agents.max_parallel_tasks", d.Agents.MaxParallelTasks)
	v.SetDefault("agents.timeout", d.Agents.Timeout)

	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.jwt_expiration_hours", d.Auth.JWTExpirationHours)
	v.SetDefault("auth.required", d.Auth.Required)

	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.default_limit", d.RateLimit.DefaultLimit)
	v.SetDefault("ratelimit.default_window", d.RateLimit.DefaultWindow)
	v.SetDefault("ratelimit.cleanup_interval", d.RateLimit.CleanupInterval)
	v.SetDefault("ratelimit.whitelist", d.RateLimit.Whitelist)
	v.SetDefault("ratelimit.blacklist", d.RateLimit.Blacklist)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// legacyEnv maps keys to the unprefixed variable names used in .env files.
var legacyEnv = map[string]string{
	"database.url":    "DATABASE_URL",
	"llm.api_key":     "GEMINI_API_KEY",
	"auth.jwt_secret": "JWT_SECRET",
	"server.port":     "PORT",
}

// NewViper returns a viper instance with defaults and environment binding applied.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

// Load reads the configuration, merging an optional YAML file at path, and validates it.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Secrets are not required here; the commands that need them check for them.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port))
	}
	if c.LLM.Provider != "" && c.LLM.Provider != string(llm.ProviderGemini) {
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature))
	}
	if c.LLM.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("llm.max_attempts must be at least 1, got %d", c.LLM.MaxAttempts))
	}
	if c.Vector.Backend != VectorMemory && c.Vector.Backend != VectorPostgres {
		errs = append(errs, fmt.Errorf("vector.backend must be %q or %q, got %q", VectorMemory, VectorPostgres, c.Vector.Backend))
	}
	if c.Vector.Backend == VectorPostgres && c.Database.URL == "" {
		errs = append(errs, fmt.Errorf("vector.backend %q requires database.url", VectorPostgres))
	}
	if c.Vector.TopK < 1 {
		errs = append(errs, fmt.Errorf("vector.top_k must be at least 1, got %d", c.Vector.TopK))
	}
	if c.Agents.MaxTimezoneDiff < 0 {
		errs = append(errs, fmt.Errorf("agents.max_timezone_diff must be non-negative"))
	}
	if c.Agents.MaxParallelTasks < 1 {
		errs = append(errs, fmt.Errorf("agents.max_parallel_tasks must be at least 1, got %d", c.Agents.MaxParallelTasks))
	}
	if c.Agents.Timeout < 0 {
		errs = append(errs, fmt.Errorf("agents.timeout must be non-negative"))
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.required needs auth.jwt_secret"))
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultLimit < 1 {
		errs = append(errs, fmt.Errorf("ratelimit.default_limit must be at least 1 when enabled"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatText:
	default:
		errs = append(errs, fmt.Errorf("logging.format must be %q or %q, got %q", logging.FormatJSON, logging.FormatText, c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config error: %w", errors.Join(errs...))
	}
	return nil
}

// LLMClientConfig converts the LLM section into the client configuration.
func (c *Config) LLMClientConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	if c.LLM.Provider != "" {
		cfg.Provider = llm.Provider(c.LLM.Provider)
	}
	for tier, model := range map[llm.ModelTier]string{
		llm.TierLite:     c.LLM.LiteModel,
		llm.TierStandard: c.LLM.StandardModel,
		llm.TierAdvanced: c.LLM.AdvancedModel,
	} {
		if model != "" {
			cfg.Models[tier] = model
		}
	}
	cfg.Temperature = float32(c.LLM.Temperature)
	cfg.JSONMode = c.LLM.JSONMode
	cfg.MaxAttempts = c.LLM.MaxAttempts
	cfg.RetryBackoff = c.LLM.RetryBackoff
	return cfg
}

// JWT returns the validated JWT settings.
func (c *Config) JWT() (*JWTConfig, error) {
	return NewJWTConfig(c.Auth.JWTSecret, c.Auth.JWTExpirationHours)
}

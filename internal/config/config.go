package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string        `mapstructure:"PORT"`
	Env           string        `mapstructure:"ENV"`
	DatabaseURL   string        `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL      string        `mapstructure:"REDIS_URL"`
	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	GenAIAPIKey   string        `mapstructure:"GENAI_API_KEY"`
	GenAIBaseURL  string        `mapstructure:"GENAI_BASE_URL"`
	GenAIModel    string        `mapstructure:"GENAI_MODEL"`
	GenAITimeout  time.Duration `mapstructure:"GENAI_TIMEOUT"`
	UploadDir     string        `mapstructure:"UPLOAD_DIR"`
	CORSOrigins   []string      `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("GENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("GENAI_TIMEOUT", "30s")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("SESSION_SECRET")
	v.BindEnv("SESSION_TTL")
	v.BindEnv("GENAI_API_KEY")
	v.BindEnv("GENAI_BASE_URL")
	v.BindEnv("GENAI_MODEL")
	v.BindEnv("GENAI_TIMEOUT")
	v.BindEnv("UPLOAD_DIR")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// the session signing secret and the generative-text API key must be set
// explicitly; there are no hardcoded fallbacks.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be \"development\", \"staging\", or \"production\", got %q", c.Env)
	}

	if !c.IsDev() {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required when ENV=%q. Refusing to start with an unsigned session cookie", c.Env)
		}
		if c.GenAIAPIKey == "" {
			return fmt.Errorf("GENAI_API_KEY is required when ENV=%q", c.Env)
		}
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes, got %d", len(c.SessionSecret))
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.GenAITimeout <= 0 {
		return fmt.Errorf("GENAI_TIMEOUT must be positive, got %s", c.GenAITimeout)
	}

	return nil
}

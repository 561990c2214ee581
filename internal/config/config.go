// Package config provides configuration loading for the NutriFact console.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Session SessionConfig `mapstructure:"session"`
	Stripe  StripeConfig  `mapstructure:"stripe"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"` // dev, staging, prod
	BaseURL      string        `mapstructure:"base_url"`
}

// BackendConfig holds the remote NutriFact REST API configuration.
// This application owns no data; every read and mutation goes here.
type BackendConfig struct {
	URL       string        `mapstructure:"url"`
	Prefix    string        `mapstructure:"prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
	GetRetry  bool          `mapstructure:"get_retry"` // one retry on connectivity failure, GETs only
	UserAgent string        `mapstructure:"user_agent"`
}

// BaseURL returns the backend base URL including the API prefix.
func (c BackendConfig) BaseURL() string {
	return strings.TrimRight(c.URL, "/") + c.Prefix
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig holds browser session configuration.
type SessionConfig struct {
	Name   string        `mapstructure:"name"`
	Secret string        `mapstructure:"secret"`
	MaxAge time.Duration `mapstructure:"max_age"`
	Secure bool          `mapstructure:"secure"`
}

// StripeConfig holds payment processor configuration.
type StripeConfig struct {
	PublishableKey string `mapstructure:"publishable_key"`
	SecretKey      string `mapstructure:"secret_key"`
	// DirectSubscribe enables the in-page card flow; when false only the
	// hosted checkout redirect is offered.
	DirectSubscribe bool `mapstructure:"direct_subscribe"`
}

// OAuthConfig holds social sign-in configuration.
type OAuthConfig struct {
	GitHubID     string `mapstructure:"github_id"`
	GitHubSecret string `mapstructure:"github_secret"`
	GoogleID     string `mapstructure:"google_id"`
	GoogleSecret string `mapstructure:"google_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

// Load reads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/nutrifact")

	v.SetEnvPrefix("NUTRIFACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Explicitly bind secrets (nested struct issue with viper)
	v.BindEnv("session.secret", "NUTRIFACT_SESSION_SECRET")
	v.BindEnv("stripe.publishable_key", "NUTRIFACT_STRIPE_PUBLISHABLE_KEY")
	v.BindEnv("stripe.secret_key", "NUTRIFACT_STRIPE_SECRET_KEY")
	v.BindEnv("oauth.github_id", "NUTRIFACT_OAUTH_GITHUB_ID")
	v.BindEnv("oauth.github_secret", "NUTRIFACT_OAUTH_GITHUB_SECRET")
	v.BindEnv("oauth.google_id", "NUTRIFACT_OAUTH_GOOGLE_ID")
	v.BindEnv("oauth.google_secret", "NUTRIFACT_OAUTH_GOOGLE_SECRET")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Session.Secret == "" && cfg.Server.Environment != "dev" {
		return nil, fmt.Errorf("session.secret is required outside dev")
	}

	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.base_url", "http://localhost:3000")

	// Backend defaults
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.prefix", "/api/v1")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.get_retry", true)
	v.SetDefault("backend.user_agent", "nutrifact-console/1.0")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Session defaults
	v.SetDefault("session.name", "nutrifact_session")
	v.SetDefault("session.max_age", "168h") // 7 days
	v.SetDefault("session.secure", false)

	// Stripe defaults
	v.SetDefault("stripe.direct_subscribe", true)

	// OAuth defaults
	v.SetDefault("oauth.callback_url", "http://localhost:3000")
}

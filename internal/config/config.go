package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	AuthIssuer           string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL          string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience         string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey       string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	FacilityTimezone     string        `mapstructure:"FACILITY_TIMEZONE"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	DirectoryCacheTTL    time.Duration `mapstructure:"DIRECTORY_CACHE_TTL"`
	WizardSessionTTL     time.Duration `mapstructure:"WIZARD_SESSION_TTL"`
	ProfileRetryAttempts int           `mapstructure:"PROFILE_RETRY_ATTEMPTS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit            string        `mapstructure:"BODY_LIMIT"`
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
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("FACILITY_TIMEZONE", "UTC")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("DIRECTORY_CACHE_TTL", "5m")
	v.SetDefault("WIZARD_SESSION_TTL", "30m")
	v.SetDefault("PROFILE_RETRY_ATTEMPTS", 3)
	v.SetDefault("BODY_LIMIT", "64K")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
		"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
		"CORS_ORIGINS", "FACILITY_TIMEZONE", "REQUEST_TIMEOUT",
		"DIRECTORY_CACHE_TTL", "WIZARD_SESSION_TTL", "PROFILE_RETRY_ATTEMPTS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); unauthenticated requests get admin access.")
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

// Location returns the facility-local time zone that every appointment date and
// time is interpreted in.
func (c *Config) Location() (*time.Location, error) {
	name := c.FacilityTimezone
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load FACILITY_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run. Outside development a
// token verifier (issuer, JWKS URL or signing key) must be configured.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.IsProduction() && c.AuthSigningKey != "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is for development only and must not be set in production")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ProfileRetryAttempts < 1 || c.ProfileRetryAttempts > 5 {
		return fmt.Errorf("PROFILE_RETRY_ATTEMPTS must be between 1 and 5, got %d", c.ProfileRetryAttempts)
	}
	return nil
}

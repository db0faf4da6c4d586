package config

import (
	"encoding/hex"
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
	DBSchema             string        `mapstructure:"DB_SCHEMA"`
	MigrationsDir        string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	AuthIssuer           string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL          string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience         string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey       string        `mapstructure:"AUTH_SIGNING_KEY"`
	AdminEmails          string        `mapstructure:"ADMIN_EMAILS"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit            string        `mapstructure:"BODY_LIMIT"`
	RowstoreBackend      string        `mapstructure:"ROWSTORE_BACKEND"`
	SupabaseURL          string        `mapstructure:"SUPABASE_URL"`
	SupabaseServiceKey   string        `mapstructure:"SUPABASE_SERVICE_KEY"`
	EHRBaseURL           string        `mapstructure:"EHR_BASE_URL"`
	EHRAPIKey            string        `mapstructure:"EHR_API_KEY"`
	EHRTimeout           time.Duration `mapstructure:"EHR_TIMEOUT"`
	AvailabilityCacheTTL time.Duration `mapstructure:"AVAILABILITY_CACHE_TTL"`
	BookingTimezone      string        `mapstructure:"BOOKING_TIMEZONE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"MIGRATIONS_DIR", "REDIS_URL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"AUTH_SIGNING_KEY", "ADMIN_EMAILS", "CORS_ORIGINS", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "BODY_LIMIT", "ROWSTORE_BACKEND", "SUPABASE_URL",
	"SUPABASE_SERVICE_KEY", "EHR_BASE_URL", "EHR_API_KEY", "EHR_TIMEOUT",
	"AVAILABILITY_CACHE_TTL", "BOOKING_TIMEZONE",
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
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("ROWSTORE_BACKEND", "postgres")
	v.SetDefault("EHR_TIMEOUT", "10s")
	v.SetDefault("AVAILABILITY_CACHE_TTL", "60s")
	v.SetDefault("BOOKING_TIMEZONE", "America/Denver")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); requests without a token get admin access")
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

// AdminEmailList returns the normalized ADMIN_EMAILS seed list.
func (c *Config) AdminEmailList() []string {
	var out []string
	for _, e := range strings.Split(c.AdminEmails, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// SigningKey decodes AUTH_SIGNING_KEY. An empty key yields nil.
func (c *Config) SigningKey() ([]byte, error) {
	if c.AuthSigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.AuthSigningKey)
	if err != nil {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is not valid hex: %w", err)
	}
	return key, nil
}

// Location returns the booking time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.BookingTimezone)
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.IsProduction() && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER must be set in production (current ENV=%q)", c.Env)
	}
	if _, err := c.SigningKey(); err != nil {
		return err
	}

	switch c.RowstoreBackend {
	case "postgres":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when ROWSTORE_BACKEND is \"supabase\"")
		}
	default:
		return fmt.Errorf("ROWSTORE_BACKEND must be \"postgres\" or \"supabase\", got %q", c.RowstoreBackend)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("BOOKING_TIMEZONE %q: %w", c.BookingTimezone, err)
	}
	if c.EHRTimeout <= 0 {
		return fmt.Errorf("EHR_TIMEOUT must be positive")
	}
	return nil
}

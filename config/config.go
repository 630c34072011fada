// Package config loads the server configuration from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DeploymentProfile selects environment dependent behaviour such as the
// Secure cookie flag.
type DeploymentProfile int

const (
	Local DeploymentProfile = iota
	Production
)

func (p DeploymentProfile) String() string {
	if p == Production {
		return "production"
	}
	return "local"
}

// ParseProfile maps APP_ENV values onto a profile. Anything that is not a
// known local name is treated as production so a typo never relaxes cookies.
func ParseProfile(s string) DeploymentProfile {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local", "dev", "development", "test":
		return Local
	default:
		return Production
	}
}

const (
	defaultSessionSecret = "local-session-secret-change-me-0123456789"
	defaultTokenSecret   = "local-token-secret-change-me-0123456789"
	// any port on localhost, for the SPA dev server
	localOrigins = "http://localhost:*"
)

type Config struct {
	Profile  DeploymentProfile
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Google   GoogleConfig   `mapstructure:"google"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// FloodRPS is the per-IP request rate allowed on the auth routes before
	// any account level checks run.
	FloodRPS float64 `mapstructure:"flood_rps"`
	// TrustProxy makes client IPs come from X-Forwarded-For and X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"` // mysql or sqlite
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Host         string        `mapstructure:"host"`
	Name         string        `mapstructure:"name"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// DSN returns the MySQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Name,
	)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a shared redis is configured. Without one the
// rate limiters keep their windows in process memory.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type AuthConfig struct {
	SessionSecret       string        `mapstructure:"session_secret"`
	TokenSecret         string        `mapstructure:"token_secret"`
	TokenSecretPrevious string        `mapstructure:"token_secret_previous"`
	SessionTTL          time.Duration `mapstructure:"session_ttl"`
	TokenTTL            time.Duration `mapstructure:"token_ttl"`
	LockoutThreshold    int           `mapstructure:"lockout_threshold"`
	LockoutDuration     time.Duration `mapstructure:"lockout_duration"`
	LoginRateLimit      int           `mapstructure:"login_rate_limit"`
	LoginRateWindow     time.Duration `mapstructure:"login_rate_window"`
	ResetRateLimit      int           `mapstructure:"reset_rate_limit"`
	ResetRateWindow     time.Duration `mapstructure:"reset_rate_window"`
	ResetTokenTTL       time.Duration `mapstructure:"reset_token_ttl"`
	ResetURL            string        `mapstructure:"reset_url"`
	HashConcurrency     int           `mapstructure:"hash_concurrency"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	// SuccessURL is where the browser goes after signing in. Empty answers
	// the callback with JSON instead.
	SuccessURL string `mapstructure:"success_url"`
}

// Enabled reports whether Google sign-in is configured.
func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// Load reads an optional .env file and then the process environment.
// Keys map onto env vars by upper-casing and replacing dots, so
// auth.lockout_threshold is AUTH_LOCKOUT_THRESHOLD.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Profile = ParseProfile(v.GetString("app_env"))
	if len(cfg.Server.AllowedOrigins) == 0 && cfg.Profile != Production {
		cfg.Server.AllowedOrigins = []string{localOrigins}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that are unsafe for the selected profile.
func (c *Config) Validate() error {
	if c.Profile == Production {
		if c.Auth.SessionSecret == defaultSessionSecret || len(c.Auth.SessionSecret) < 32 {
			return errors.New("AUTH_SESSION_SECRET must be set to at least 32 characters in production")
		}
		if c.Auth.TokenSecret == defaultTokenSecret || len(c.Auth.TokenSecret) < 32 {
			return errors.New("AUTH_TOKEN_SECRET must be set to at least 32 characters in production")
		}
		if len(c.Server.AllowedOrigins) == 0 {
			return errors.New("SERVER_ALLOWED_ORIGINS must be set in production")
		}
		for _, origin := range c.Server.AllowedOrigins {
			if strings.Contains(origin, "*") {
				return fmt.Errorf("SERVER_ALLOWED_ORIGINS must not use wildcards in production, got %q", origin)
			}
		}
	}
	if c.Auth.LockoutThreshold < 1 {
		return errors.New("AUTH_LOCKOUT_THRESHOLD must be positive")
	}
	if c.Auth.LoginRateLimit < 1 || c.Auth.ResetRateLimit < 1 {
		return errors.New("rate limits must be positive")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "local")

	v.SetDefault("server.addr", ":5005")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.allowed_origins", "")
	v.SetDefault("server.flood_rps", 5.0)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.host", "127.0.0.1:3306")
	v.SetDefault("database.name", "whiskeyshelf")
	v.SetDefault("database.sqlite_path", "whiskeyshelf.db")
	v.SetDefault("database.query_timeout", "5s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.session_secret", defaultSessionSecret)
	v.SetDefault("auth.token_secret", defaultTokenSecret)
	v.SetDefault("auth.token_secret_previous", "")
	v.SetDefault("auth.session_ttl", "720h")
	v.SetDefault("auth.token_ttl", "720h")
	v.SetDefault("auth.lockout_threshold", 5)
	v.SetDefault("auth.lockout_duration", "30m")
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("auth.login_rate_window", "15m")
	v.SetDefault("auth.reset_rate_limit", 5)
	v.SetDefault("auth.reset_rate_window", "1h")
	v.SetDefault("auth.reset_token_ttl", "1h")
	v.SetDefault("auth.reset_url", "http://localhost:5173/reset-password")
	v.SetDefault("auth.hash_concurrency", 0)

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "http://localhost:5005/api/auth/google/callback")
	v.SetDefault("google.success_url", "")

	v.SetDefault("log.file", "logs.txt")
	v.SetDefault("log.level", "info")
}

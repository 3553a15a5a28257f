package config

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/trialscore/trialscore/internal/domain/reconcile"
)

// minProductionSecretLen is the shortest SECRET_KEY accepted outside development.
const minProductionSecretLen = 32

type Config struct {
	Port             string                     `mapstructure:"PORT"`
	Env              string                     `mapstructure:"ENV"`
	DatabaseURL      string                     `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32                      `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32                      `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir    string                     `mapstructure:"MIGRATIONS_DIR"`
	SecretKey        string                     `mapstructure:"SECRET_KEY"`
	TokenTTL         time.Duration              `mapstructure:"TOKEN_TTL"`
	BcryptCost       int                        `mapstructure:"BCRYPT_COST"`
	ScoreTolerance   float64                    `mapstructure:"SCORE_TOLERANCE"`
	AgreementRule    reconcile.AgreementRule    `mapstructure:"AGREEMENT_RULE"`
	DisagreementRule reconcile.DisagreementRule `mapstructure:"DISAGREEMENT_RULE"`
	CORSOrigins      []string                   `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64                    `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int                        `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout   time.Duration              `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit        string                     `mapstructure:"BODY_LIMIT"`
}

// Load reads configuration from an optional .env file and the process
// environment. The returned Config is treated as read-only by the rest of the
// program.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	defaults := reconcile.DefaultPolicy()
	v.SetDefault("SCORE_TOLERANCE", defaults.Tolerance)
	v.SetDefault("AGREEMENT_RULE", string(defaults.Agreement))
	v.SetDefault("DISAGREEMENT_RULE", string(defaults.Disagreement))
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
		"SECRET_KEY", "TOKEN_TTL", "BCRYPT_COST",
		"SCORE_TOLERANCE", "AGREEMENT_RULE", "DISAGREEMENT_RULE",
		"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
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
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
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

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be \"development\" or \"production\", got %q", c.Env)
	}
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.IsProduction() && len(c.SecretKey) < minProductionSecretLen {
		return fmt.Errorf("SECRET_KEY must be at least %d bytes in production, got %d",
			minProductionSecretLen, len(c.SecretKey))
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if math.IsNaN(c.ScoreTolerance) || math.IsInf(c.ScoreTolerance, 0) || c.ScoreTolerance < 0 {
		return fmt.Errorf("SCORE_TOLERANCE must be a non-negative number, got %v", c.ScoreTolerance)
	}
	if !c.AgreementRule.Valid() {
		return fmt.Errorf("AGREEMENT_RULE must be one of %v, got %q", reconcile.AgreementRules, c.AgreementRule)
	}
	if !c.DisagreementRule.Valid() {
		return fmt.Errorf("DISAGREEMENT_RULE must be one of %v, got %q", reconcile.DisagreementRules, c.DisagreementRule)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

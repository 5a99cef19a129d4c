package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is only acceptable in development.
const DefaultJWTSecret = "dev-secret"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Addr               string               `yaml:"addr"`
	Env                string               `yaml:"env"`
	JWTSecret          string               `yaml:"jwt_secret"`
	APITimeout         time.Duration        `yaml:"timeout"`
	DatabasePath       string               `yaml:"database_path"`
	TokenDuration      time.Duration        `yaml:"token_duration"`
	ChallengeTTL       time.Duration        `yaml:"challenge_ttl"`
	AllowInsecureLogin bool                 `yaml:"allow_insecure_login"`
	LogLevel           string               `yaml:"log_level"`
	ChallengeStore     ChallengeStoreConfig `yaml:"challenge_store"`
	Jobs               JobsConfig           `yaml:"jobs"`
}

type ChallengeStoreConfig struct {
	// Backend is "memory" (single instance) or "redis" (shared).
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
}

type JobsConfig struct {
	Workers int `yaml:"workers"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:               getEnv("BOUNTY_ADDR", ":8080"),
		Env:                getEnv("BOUNTY_ENV", ""),
		JWTSecret:          getEnv("BOUNTY_JWT_SECRET", DefaultJWTSecret),
		APITimeout:         15 * time.Second,
		DatabasePath:       getEnv("BOUNTY_DATABASE_PATH", "bounty.db"),
		TokenDuration:      7 * 24 * time.Hour,
		ChallengeTTL:       5 * time.Minute,
		AllowInsecureLogin: getEnvBool("BOUNTY_ALLOW_INSECURE_LOGIN", false),
		LogLevel:           getEnv("BOUNTY_LOG_LEVEL", "info"),
		ChallengeStore: ChallengeStoreConfig{
			Backend:   getEnv("BOUNTY_CHALLENGE_STORE", StoreMemory),
			RedisAddr: getEnv("BOUNTY_REDIS_ADDR", "localhost:6379"),
		},
		Jobs: JobsConfig{Workers: 2},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode. An
// unset environment is treated as production.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// Validate checks required fields and refuses development-only settings
// outside development.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, errors.New("token_duration must be positive"))
	}
	if c.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("challenge_ttl must be positive"))
	}
	switch c.ChallengeStore.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.ChallengeStore.RedisAddr == "" {
			errs = append(errs, errors.New("challenge_store.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown challenge_store.backend %q", c.ChallengeStore.Backend))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if !c.IsDevelopment() {
		if c.JWTSecret == DefaultJWTSecret {
			errs = append(errs, errors.New("insecure jwt_secret: set BOUNTY_JWT_SECRET outside development"))
		}
		if c.AllowInsecureLogin {
			errs = append(errs, errors.New("allow_insecure_login is only permitted in development"))
		}
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

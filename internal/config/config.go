package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read into Config, e.g.
// ROUTES_DATABASE_URL sets database.url.
const EnvPrefix = "ROUTES_"

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "ROUTES_CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/route-results/config.yaml",
}

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Throttle ThrottleConfig `koanf:"throttle"`
	Worker   WorkerConfig   `koanf:"worker"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver" validate:"oneof=postgres sqlite"`
	URL      string `koanf:"url" validate:"required_if=Driver postgres"`
	Path     string `koanf:"path" validate:"required_if=Driver sqlite"`
	SeedPath string `koanf:"seed_path"`
}

// Redis is optional; without an address the throttle window is kept in
// process memory.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	Key      string `koanf:"key" validate:"required"`
}

type ThrottleConfig struct {
	Limit  int           `koanf:"limit" validate:"gt=0"`
	Window time.Duration `koanf:"window" validate:"gt=0"`
	Pause  time.Duration `koanf:"pause" validate:"gte=0"`
}

type WorkerConfig struct {
	Concurrency  int           `koanf:"concurrency" validate:"gt=0,lte=64"`
	Batch        int           `koanf:"batch" validate:"gt=0"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
	ClaimLease   time.Duration `koanf:"claim_lease" validate:"gt=0"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gt=0"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
}

type ServerConfig struct {
	Port string `koanf:"port" validate:"required,numeric"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Path:     "data/app.db",
			SeedPath: "data/seeds/fixture.json",
		},
		Redis: RedisConfig{
			Key: "route-results:status-changes",
		},
		Throttle: ThrottleConfig{
			Limit:  200,
			Window: 15 * time.Second,
			Pause:  15 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			Batch:        16,
			PollInterval: 2 * time.Second,
			ClaimLease:   10 * time.Minute,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads defaults, then the optional YAML file, then ROUTES_*
// environment variables (a .env file is loaded first when present), and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config: defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config: file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load config: environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("load config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// envKey maps ROUTES_WORKER_POLL_INTERVAL to worker.poll_interval: the
// first segment after the prefix names the section.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Get returns the environment variable key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package server

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the backend configuration loaded from YAML with
// environment overrides.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
}

// ServerConfig controls the listener and HTTP concerns. The backend always
// speaks plain HTTP; the identity gateway in front of it terminates TLS.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	DevMode        bool     `yaml:"dev_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StoreConfig selects and configures the sale store backend.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoadConfig reads the YAML config file and merges environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(b))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns a development-ready configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8000",
			DevMode:    true,
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr: "127.0.0.1:6379",
			},
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"SALESD_LISTEN_ADDR":     func(v string) { cfg.Server.ListenAddr = v },
		"SALESD_DEV_MODE":        func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"SALESD_ALLOWED_ORIGINS": func(v string) { cfg.Server.AllowedOrigins = splitAndTrim(v) },
		"SALESD_STORE_BACKEND":   func(v string) { cfg.Store.Backend = v },
		"SALESD_REDIS_ADDR":      func(v string) { cfg.Store.Redis.Addr = v },
		"SALESD_REDIS_PASSWORD":  func(v string) { cfg.Store.Redis.Password = v },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate performs sanity checks on the config.
func (c Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr is required")
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be 'memory' or 'redis', got %q", c.Store.Backend)
	}
	return nil
}

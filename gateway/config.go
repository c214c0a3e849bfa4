package gateway

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultSessionTTL = 12 * time.Hour

// Config is the gateway configuration loaded from YAML with environment
// overrides.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig controls the listener and TLS behaviour.
type ServerConfig struct {
	PublicURL       string    `yaml:"public_url"`
	ListenAddr      string    `yaml:"listen_addr"`
	HTTPListenAddr  string    `yaml:"http_listen_addr"`
	HTTPSListenAddr string    `yaml:"https_listen_addr"`
	DevMode         bool      `yaml:"dev_mode"`
	CookieDomain    string    `yaml:"cookie_domain"`
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig defines autocert behaviour for production listeners.
type TLSConfig struct {
	Domains  []string `yaml:"domains"`
	Email    string   `yaml:"email"`
	CacheDir string   `yaml:"cache_dir"`
}

// SessionConfig holds the cookie session settings. TTL is a Go duration
// string; the parsed value lands in ParsedTTL during validation.
type SessionConfig struct {
	Secret    string        `yaml:"secret"`
	TTL       string        `yaml:"ttl"`
	ParsedTTL time.Duration `yaml:"-"`
}

// UpstreamConfig names the services the gateway fronts.
type UpstreamConfig struct {
	API      string `yaml:"api"`
	Frontend string `yaml:"frontend"`
}

// ProvidersConfig groups the configured identity providers.
type ProvidersConfig struct {
	Default string                        `yaml:"default"`
	GitHub  GitHubProviderConfig          `yaml:"github"`
	OIDC    map[string]OIDCProviderConfig `yaml:"oidc"`
}

// GitHubProviderConfig holds the OAuth app credentials for GitHub login.
type GitHubProviderConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// OIDCProviderConfig describes an upstream OIDC issuer.
type OIDCProviderConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// DefaultConfig returns a development-friendly configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			PublicURL:       "http://127.0.0.1:4280",
			ListenAddr:      "127.0.0.1:4280",
			HTTPListenAddr:  ":80",
			HTTPSListenAddr: ":443",
			DevMode:         true,
			TLS:             TLSConfig{CacheDir: "./autocert-cache"},
		},
		Session: SessionConfig{ParsedTTL: DefaultSessionTTL},
		Upstream: UpstreamConfig{
			API: "http://127.0.0.1:8000",
		},
	}
}

// LoadConfig reads the YAML file at path and applies environment overrides.
// Unknown YAML fields are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"SALESD_GW_PUBLIC_URL":    func(v string) { cfg.Server.PublicURL = v },
		"SALESD_GW_LISTEN_ADDR":   func(v string) { cfg.Server.ListenAddr = v },
		"SALESD_GW_DEV_MODE":      func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"SALESD_GW_COOKIE_DOMAIN": func(v string) { cfg.Server.CookieDomain = v },
		"SALESD_GW_SESSION_SECRET": func(v string) {
			cfg.Session.Secret = v
		},
		"SALESD_GW_API_URL":      func(v string) { cfg.Upstream.API = v },
		"SALESD_GW_FRONTEND_URL": func(v string) { cfg.Upstream.Frontend = v },
		"SALESD_GW_GITHUB_CLIENT_ID": func(v string) {
			cfg.Providers.GitHub.ClientID = v
		},
		"SALESD_GW_GITHUB_CLIENT_SECRET": func(v string) {
			cfg.Providers.GitHub.ClientSecret = v
		},
	}
	for key, apply := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			apply(v)
		}
	}
}

func parseBool(raw string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

// Validate checks the configuration for internal consistency. In dev mode a
// missing session secret is generated so the gateway can start with no
// config file at all.
func (c *Config) Validate() error {
	if c.Server.PublicURL == "" {
		return errors.New("server.public_url is required")
	}
	if _, err := url.Parse(c.Server.PublicURL); err != nil {
		return fmt.Errorf("server.public_url: %w", err)
	}
	if c.Upstream.API == "" {
		return errors.New("upstream.api is required")
	}
	if _, err := url.Parse(c.Upstream.API); err != nil {
		return fmt.Errorf("upstream.api: %w", err)
	}
	if c.Upstream.Frontend != "" {
		if _, err := url.Parse(c.Upstream.Frontend); err != nil {
			return fmt.Errorf("upstream.frontend: %w", err)
		}
	}
	c.Session.ParsedTTL = parseDuration(c.Session.TTL, DefaultSessionTTL)

	if c.Session.Secret == "" {
		if !c.Server.DevMode {
			return errors.New("session.secret is required outside dev mode")
		}
		secret, err := randomSecret()
		if err != nil {
			return fmt.Errorf("generate session secret: %w", err)
		}
		c.Session.Secret = secret
	}

	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		return errors.New("server.tls.domains is required outside dev mode")
	}

	if c.Providers.Default != "" && !c.hasProvider(c.Providers.Default) {
		return fmt.Errorf("default provider %q is not configured", c.Providers.Default)
	}
	return nil
}

func (c *Config) hasProvider(name string) bool {
	if name == "github" && c.Providers.GitHub.ClientID != "" {
		return true
	}
	_, ok := c.Providers.OIDC[name]
	return ok
}

func parseDuration(val string, fallback time.Duration) time.Duration {
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

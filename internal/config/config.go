// Package config handles TOML configuration parsing and validation for
// resolvdhcpd.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
	Hooks  HooksConfig  `toml:"hooks"`
}

// QTag is an 802.1Q tag applied to responses sent on the L2 path.
type QTag struct {
	PCP int `toml:"pcp"`
	DEI bool `toml:"dei"`
	VID int `toml:"vid"`
}

// ServerConfig holds core server settings (spec §6.2).
type ServerConfig struct {
	ServerIP   string `toml:"server_ip"`
	ServerPort int    `toml:"server_port"`
	ClientPort int    `toml:"client_port"`
	ProxyPort  int    `toml:"proxy_port"`

	// BackendPath is the bbolt file backing internal/backend/boltbackend,
	// the reference Backend implementation. Concrete backends are outside
	// core scope; this field only feeds the bundled one.
	BackendPath string `toml:"backend_path"`

	ResponseInterface     string `toml:"response_interface"`
	ResponseInterfaceQTags []QTag `toml:"response_interface_qtags"`

	AllowLocal    bool     `toml:"allow_local"`
	AllowRelays   bool     `toml:"allow_relays"`
	AllowedRelays []string `toml:"allowed_relays"`

	Authoritative bool `toml:"authoritative"`
	NAKRenewals   bool `toml:"nak_renewals"`

	UnauthorizedClientTimeout string `toml:"unauthorized_client_timeout"`
	MisbehavingClientTimeout  string `toml:"misbehaving_client_timeout"`
	EnableSuspend             bool   `toml:"enable_suspend"`
	SuspendThreshold          int    `toml:"suspend_threshold"`

	LogLevel string `toml:"log_level"`
	PIDFile  string `toml:"pid_file"`
}

// CacheConfig holds resolver cache settings (spec §4.4).
type CacheConfig struct {
	Enabled          bool   `toml:"enabled"`
	OnDisk           bool   `toml:"on_disk"`
	PersistentPath   string `toml:"persistent_path"`
	NegativeCache    bool   `toml:"negative_cache"`
	NegativeCacheTTL string `toml:"negative_cache_ttl"`
}

// HooksConfig holds extension-point settings (spec §4.8).
type HooksConfig struct {
	ScriptConcurrency int           `toml:"script_concurrency"`
	ScriptTimeout     string        `toml:"script_timeout"`
	Scripts           []ScriptHook  `toml:"script"`
	Webhooks          []WebhookHook `toml:"webhook"`
	RADIUS            RADIUSHook    `toml:"radius"`
}

// ScriptHook defines an external-process hook.
type ScriptHook struct {
	Name    string   `toml:"name"`
	Events  []string `toml:"events"`
	Command string   `toml:"command"`
	Timeout string   `toml:"timeout"`
}

// WebhookHook defines an HTTP-callback hook.
type WebhookHook struct {
	Name         string            `toml:"name"`
	Events       []string          `toml:"events"`
	URL          string            `toml:"url"`
	Method       string            `toml:"method"`
	Headers      map[string]string `toml:"headers"`
	Timeout      string            `toml:"timeout"`
	Retries      int               `toml:"retries"`
	RetryBackoff string            `toml:"retry_backoff"`
	Secret       string            `toml:"secret"`
}

// RADIUSHook configures resolving handle_unknown_mac via RADIUS Access-Request.
type RADIUSHook struct {
	Enabled bool   `toml:"enabled"`
	Server  string `toml:"server"`
	Secret  string `toml:"secret"`
	Timeout string `toml:"timeout"`
}

// Load reads and parses a TOML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.ServerPort == 0 {
		cfg.Server.ServerPort = DefaultServerPort
	}
	if cfg.Server.ClientPort == 0 {
		cfg.Server.ClientPort = DefaultClientPort
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Server.PIDFile == "" {
		cfg.Server.PIDFile = DefaultPIDFile
	}
	if cfg.Server.BackendPath == "" {
		cfg.Server.BackendPath = DefaultBackendPath
	}
	if cfg.Server.UnauthorizedClientTimeout == "" {
		cfg.Server.UnauthorizedClientTimeout = DefaultUnauthorizedClientTimeout.String()
	}
	if cfg.Server.MisbehavingClientTimeout == "" {
		cfg.Server.MisbehavingClientTimeout = DefaultMisbehavingClientTimeout.String()
	}
	if cfg.Server.SuspendThreshold == 0 {
		cfg.Server.SuspendThreshold = DefaultSuspendThreshold
	}

	if cfg.Cache.NegativeCacheTTL == "" {
		cfg.Cache.NegativeCacheTTL = DefaultNegativeCacheTTL.String()
	}

	if cfg.Hooks.ScriptConcurrency == 0 {
		cfg.Hooks.ScriptConcurrency = DefaultScriptConcurrency
	}
	if cfg.Hooks.ScriptTimeout == "" {
		cfg.Hooks.ScriptTimeout = DefaultScriptTimeout.String()
	}
	if cfg.Hooks.RADIUS.Timeout == "" {
		cfg.Hooks.RADIUS.Timeout = DefaultRADIUSTimeout.String()
	}

	for i := range cfg.Hooks.Webhooks {
		if cfg.Hooks.Webhooks[i].Method == "" {
			cfg.Hooks.Webhooks[i].Method = "POST"
		}
		if cfg.Hooks.Webhooks[i].Retries == 0 {
			cfg.Hooks.Webhooks[i].Retries = DefaultWebhookRetries
		}
		if cfg.Hooks.Webhooks[i].RetryBackoff == "" {
			cfg.Hooks.Webhooks[i].RetryBackoff = DefaultWebhookRetryBackoff.String()
		}
	}
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	if cfg.Server.ServerIP == "" {
		return fmt.Errorf("server.server_ip is required")
	}
	if ip := net.ParseIP(cfg.Server.ServerIP); ip == nil {
		return fmt.Errorf("server.server_ip %q is not a valid IP address", cfg.Server.ServerIP)
	}

	for i, relay := range cfg.Server.AllowedRelays {
		if net.ParseIP(relay) == nil {
			return fmt.Errorf("server.allowed_relays[%d] %q is not a valid IPv4 address", i, relay)
		}
	}

	if cfg.Server.ResponseInterface != "" {
		for i, qt := range cfg.Server.ResponseInterfaceQTags {
			if qt.PCP < 0 || qt.PCP > 7 {
				return fmt.Errorf("server.response_interface_qtags[%d]: pcp must be 0-7, got %d", i, qt.PCP)
			}
			if qt.VID < 0 || qt.VID > 4094 {
				return fmt.Errorf("server.response_interface_qtags[%d]: vid must be 0-4094, got %d", i, qt.VID)
			}
		}
	}

	if _, err := time.ParseDuration(cfg.Server.UnauthorizedClientTimeout); err != nil {
		return fmt.Errorf("server.unauthorized_client_timeout: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Server.MisbehavingClientTimeout); err != nil {
		return fmt.Errorf("server.misbehaving_client_timeout: %w", err)
	}

	if cfg.Cache.Enabled && cfg.Cache.NegativeCache {
		if _, err := time.ParseDuration(cfg.Cache.NegativeCacheTTL); err != nil {
			return fmt.Errorf("cache.negative_cache_ttl: %w", err)
		}
	}

	if cfg.Hooks.RADIUS.Enabled {
		if cfg.Hooks.RADIUS.Server == "" {
			return fmt.Errorf("hooks.radius.server is required when radius is enabled")
		}
		if _, err := time.ParseDuration(cfg.Hooks.RADIUS.Timeout); err != nil {
			return fmt.Errorf("hooks.radius.timeout: %w", err)
		}
	}

	for i, s := range cfg.Hooks.Scripts {
		if s.Command == "" {
			return fmt.Errorf("hooks.script[%d]: command is required", i)
		}
		if s.Timeout != "" {
			if _, err := time.ParseDuration(s.Timeout); err != nil {
				return fmt.Errorf("hooks.script[%d].timeout: %w", i, err)
			}
		}
	}

	for i, w := range cfg.Hooks.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("hooks.webhook[%d]: url is required", i)
		}
		if w.Timeout != "" {
			if _, err := time.ParseDuration(w.Timeout); err != nil {
				return fmt.Errorf("hooks.webhook[%d].timeout: %w", i, err)
			}
		}
	}

	return nil
}

// ParseDuration is a helper for parsing Go-style duration strings.
func ParseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// ServerIP returns the parsed server identifier IP.
func (cfg *Config) ServerIP() net.IP {
	return net.ParseIP(cfg.Server.ServerIP)
}

// UnauthorizedClientTimeoutDuration parses the configured timeout, falling
// back to the default if the value is unparseable.
func (cfg *Config) UnauthorizedClientTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(cfg.Server.UnauthorizedClientTimeout)
	if err != nil {
		return DefaultUnauthorizedClientTimeout
	}
	return d
}

// MisbehavingClientTimeoutDuration parses the configured timeout, falling
// back to the default if the value is unparseable.
func (cfg *Config) MisbehavingClientTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(cfg.Server.MisbehavingClientTimeout)
	if err != nil {
		return DefaultMisbehavingClientTimeout
	}
	return d
}

// NegativeCacheTTLDuration parses the configured negative-cache TTL, falling
// back to the default if the value is unparseable.
func (cfg *Config) NegativeCacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(cfg.Cache.NegativeCacheTTL)
	if err != nil {
		return DefaultNegativeCacheTTL
	}
	return d
}

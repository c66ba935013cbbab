package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[server]
server_ip = "192.168.1.1"
server_port = 67
client_port = 68
allow_local = true
allow_relays = true
allowed_relays = ["10.0.0.1"]
authoritative = true

[cache]
enabled = true
negative_cache = true
negative_cache_ttl = "15s"
`

func TestLoadMinimalConfig(t *testing.T) {
	path := writeTestConfig(t, minimalConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.ServerIP != "192.168.1.1" {
		t.Errorf("ServerIP = %q, want %q", cfg.Server.ServerIP, "192.168.1.1")
	}
	if cfg.Server.ServerPort != 67 {
		t.Errorf("ServerPort = %d, want 67", cfg.Server.ServerPort)
	}
	if !cfg.Server.AllowRelays {
		t.Error("AllowRelays should be true")
	}
	if len(cfg.Server.AllowedRelays) != 1 || cfg.Server.AllowedRelays[0] != "10.0.0.1" {
		t.Errorf("AllowedRelays = %v, want [10.0.0.1]", cfg.Server.AllowedRelays)
	}
	if !cfg.Cache.Enabled || !cfg.Cache.NegativeCache {
		t.Error("cache flags not parsed")
	}
	if cfg.Cache.NegativeCacheTTL != "15s" {
		t.Errorf("NegativeCacheTTL = %q, want %q", cfg.Cache.NegativeCacheTTL, "15s")
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path.toml")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "this is not valid toml {{{{")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoadConfigMissingServerIP(t *testing.T) {
	path := writeTestConfig(t, "[server]\nserver_port = 67\n")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for missing server_ip")
	}
}

func TestValidateInvalidServerIP(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{ServerIP: "not-an-ip"},
	}
	if err := validate(cfg); err == nil {
		t.Error("expected error for invalid server_ip")
	}
}

func TestValidateInvalidAllowedRelay(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			ServerIP:      "192.168.1.1",
			AllowedRelays: []string{"not-an-ip"},
		},
	}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Error("expected error for invalid allowed_relays entry")
	}
}

func TestValidateQTagRange(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			ServerIP:          "192.168.1.1",
			ResponseInterface: "eth1",
			ResponseInterfaceQTags: []QTag{
				{PCP: 9, VID: 10},
			},
		},
	}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Error("expected error for out-of-range pcp")
	}
}

func TestValidateRADIUSRequiresServer(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{ServerIP: "192.168.1.1"},
		Hooks: HooksConfig{
			RADIUS: RADIUSHook{Enabled: true},
		},
	}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Error("expected error for radius enabled without server")
	}
}

func TestValidateWebhookRequiresURL(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{ServerIP: "192.168.1.1"},
		Hooks: HooksConfig{
			Webhooks: []WebhookHook{{Name: "notify"}},
		},
	}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Error("expected error for webhook missing url")
	}
}

func TestServerIP(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{ServerIP: "192.168.1.1"},
	}
	ip := cfg.ServerIP()
	if ip == nil || !ip.Equal(net.IPv4(192, 168, 1, 1)) {
		t.Errorf("ServerIP() = %v, want 192.168.1.1", ip)
	}

	cfg2 := &Config{Server: ServerConfig{ServerIP: ""}}
	if cfg2.ServerIP() != nil {
		t.Error("ServerIP() should return nil for empty server_ip")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Server.ServerPort != DefaultServerPort {
		t.Errorf("default ServerPort = %d, want %d", cfg.Server.ServerPort, DefaultServerPort)
	}
	if cfg.Server.ClientPort != DefaultClientPort {
		t.Errorf("default ClientPort = %d, want %d", cfg.Server.ClientPort, DefaultClientPort)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.Server.SuspendThreshold != DefaultSuspendThreshold {
		t.Errorf("default SuspendThreshold = %d, want %d", cfg.Server.SuspendThreshold, DefaultSuspendThreshold)
	}
}

func TestUnauthorizedClientTimeoutDuration(t *testing.T) {
	cfg := &Config{Server: ServerConfig{UnauthorizedClientTimeout: "90s"}}
	if d := cfg.UnauthorizedClientTimeoutDuration(); d != 90*time.Second {
		t.Errorf("UnauthorizedClientTimeoutDuration() = %v, want 90s", d)
	}

	cfg2 := &Config{Server: ServerConfig{UnauthorizedClientTimeout: "garbage"}}
	if d := cfg2.UnauthorizedClientTimeoutDuration(); d != DefaultUnauthorizedClientTimeout {
		t.Errorf("UnauthorizedClientTimeoutDuration() fallback = %v, want %v", d, DefaultUnauthorizedClientTimeout)
	}
}

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/internal/metrics"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

// ScriptConfig describes a single script hook binding (spec §6.2 Hooks
// config). Unlike the event-bus scripts this is grounded on, the script
// runs synchronously and its stdout is parsed for a decision — the engine
// thread blocks on it, bounded by Timeout.
type ScriptConfig struct {
	Name    string
	Command string
	Timeout time.Duration
}

// scriptRequest is what a script hook receives as JSON on stdin.
type scriptRequest struct {
	Event      string              `json:"event"` // "filter", "unknown_mac", or "load"
	Method     string              `json:"method"`
	MAC        string              `json:"mac"`
	CIAddr     string              `json:"ciaddr,omitempty"`
	GIAddr     string              `json:"giaddr,omitempty"`
	Port       int                 `json:"port"`
	Source     string              `json:"source,omitempty"`
	Definition *backend.Definition `json:"definition,omitempty"`
}

// scriptResponse is what a script hook must print as a single line of JSON
// on stdout.
type scriptResponse struct {
	Decision   string              `json:"decision,omitempty"`   // filter: "accept" | "reject" | "ignore"
	Definition *backend.Definition `json:"definition,omitempty"` // unknown_mac
	Load       *bool               `json:"load,omitempty"`       // load: whether to transmit
}

// ScriptHooks runs an external command for each of the three call sites.
// This is the ONLY permitted use of os/exec in the project — grounded on
// the event-dispatch ScriptRunner, made synchronous since Filter and
// HandleUnknownMAC need a return value the engine can act on immediately.
type ScriptHooks struct {
	FilterScript *ScriptConfig
	UnknownMAC   *ScriptConfig
	LoadScript   *ScriptConfig
	fallback     Hooks
}

// NewScriptHooks wraps fallback (called whenever a stage has no script
// configured) with script-backed overrides.
func NewScriptHooks(fallback Hooks, filter, unknownMAC, load *ScriptConfig) *ScriptHooks {
	if fallback == nil {
		fallback = DefaultHooks{}
	}
	return &ScriptHooks{FilterScript: filter, UnknownMAC: unknownMAC, LoadScript: load, fallback: fallback}
}

func (s *ScriptHooks) Filter(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) FilterDecision {
	if s.FilterScript == nil {
		return s.fallback.Filter(src, method, mac, ciaddr, giaddr, port)
	}
	req := scriptRequest{Event: "filter", Method: method.String(), MAC: mac.String(), CIAddr: ipString(ciaddr), GIAddr: ipString(giaddr), Port: port}
	resp, err := runScript(*s.FilterScript, req)
	if err != nil {
		slog.Error("filter script hook failed", "hook_name", s.FilterScript.Name, "error", err)
		return Reject
	}
	switch resp.Decision {
	case "accept":
		return Accept
	case "ignore":
		return Ignore
	default:
		return Reject
	}
}

func (s *ScriptHooks) HandleUnknownMAC(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) *backend.Definition {
	if s.UnknownMAC == nil {
		return s.fallback.HandleUnknownMAC(src, method, mac, ciaddr, giaddr, port)
	}
	req := scriptRequest{Event: "unknown_mac", Method: method.String(), MAC: mac.String(), CIAddr: ipString(ciaddr), GIAddr: ipString(giaddr), Port: port}
	resp, err := runScript(*s.UnknownMAC, req)
	if err != nil {
		slog.Error("unknown_mac script hook failed", "hook_name", s.UnknownMAC.Name, "error", err)
		return nil
	}
	return resp.Definition
}

func (s *ScriptHooks) Load(resp *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, def *backend.Definition, giaddr net.IP, port int, source dhcpv4.MAC) bool {
	if s.LoadScript == nil {
		return s.fallback.Load(resp, method, mac, def, giaddr, port, source)
	}
	req := scriptRequest{Event: "load", Method: method.String(), MAC: mac.String(), GIAddr: ipString(giaddr), Port: port, Source: source.String(), Definition: def}
	out, err := runScript(*s.LoadScript, req)
	if err != nil {
		slog.Error("load script hook failed", "hook_name", s.LoadScript.Name, "error", err)
		return true
	}
	if out.Load == nil {
		return true
	}
	return *out.Load
}

func runScript(cfg ScriptConfig, req scriptRequest) (scriptResponse, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cfg.Command)
	cmd.Env = append(os.Environ(),
		"RESOLVDHCPD_HOOK_NAME="+cfg.Name,
		"RESOLVDHCPD_EVENT="+req.Event,
		"RESOLVDHCPD_MAC="+req.MAC,
	)

	payload, err := json.Marshal(req)
	if err != nil {
		return scriptResponse{}, fmt.Errorf("marshaling script request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr != nil {
		metrics.HookExecutions.WithLabelValues("script", "error").Inc()
		metrics.HookDuration.WithLabelValues("script").Observe(duration.Seconds())
		if ctx.Err() == context.DeadlineExceeded {
			return scriptResponse{}, fmt.Errorf("script %q timed out after %s", cfg.Command, timeout)
		}
		return scriptResponse{}, fmt.Errorf("script %q failed: %w (stderr: %s)", cfg.Command, runErr, stderr.String())
	}

	metrics.HookExecutions.WithLabelValues("script", "success").Inc()
	metrics.HookDuration.WithLabelValues("script").Observe(duration.Seconds())

	var resp scriptResponse
	if stdout.Len() == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return scriptResponse{}, fmt.Errorf("parsing script response: %w", err)
	}
	return resp, nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

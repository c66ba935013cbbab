package hooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/internal/metrics"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

// WebhookConfig describes a single webhook binding (spec §6.2 Hooks
// config). Grounded on the event-bus WebhookSender, made synchronous: the
// decision comes back in the HTTP response body rather than being
// fire-and-forget.
type WebhookConfig struct {
	Name         string
	URL          string
	Method       string
	Headers      map[string]string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	Secret       string
}

// WebhookHooks runs an HTTP callback for each of the three call sites.
type WebhookHooks struct {
	FilterWebhook     *WebhookConfig
	UnknownMACWebhook *WebhookConfig
	LoadWebhook       *WebhookConfig
	fallback          Hooks
	client            *http.Client
}

// NewWebhookHooks wraps fallback (called whenever a stage has no webhook
// configured) with webhook-backed overrides.
func NewWebhookHooks(fallback Hooks, filter, unknownMAC, load *WebhookConfig) *WebhookHooks {
	if fallback == nil {
		fallback = DefaultHooks{}
	}
	return &WebhookHooks{
		FilterWebhook:     filter,
		UnknownMACWebhook: unknownMAC,
		LoadWebhook:       load,
		fallback:          fallback,
		client:            &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WebhookHooks) Filter(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) FilterDecision {
	if w.FilterWebhook == nil {
		return w.fallback.Filter(src, method, mac, ciaddr, giaddr, port)
	}
	req := scriptRequest{Event: "filter", Method: method.String(), MAC: mac.String(), CIAddr: ipString(ciaddr), GIAddr: ipString(giaddr), Port: port}
	resp, err := w.post(*w.FilterWebhook, req)
	if err != nil {
		slog.Error("filter webhook failed", "hook_name", w.FilterWebhook.Name, "error", err)
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

func (w *WebhookHooks) HandleUnknownMAC(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) *backend.Definition {
	if w.UnknownMACWebhook == nil {
		return w.fallback.HandleUnknownMAC(src, method, mac, ciaddr, giaddr, port)
	}
	req := scriptRequest{Event: "unknown_mac", Method: method.String(), MAC: mac.String(), CIAddr: ipString(ciaddr), GIAddr: ipString(giaddr), Port: port}
	resp, err := w.post(*w.UnknownMACWebhook, req)
	if err != nil {
		slog.Error("unknown_mac webhook failed", "hook_name", w.UnknownMACWebhook.Name, "error", err)
		return nil
	}
	return resp.Definition
}

func (w *WebhookHooks) Load(resp *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, def *backend.Definition, giaddr net.IP, port int, source dhcpv4.MAC) bool {
	if w.LoadWebhook == nil {
		return w.fallback.Load(resp, method, mac, def, giaddr, port, source)
	}
	req := scriptRequest{Event: "load", Method: method.String(), MAC: mac.String(), GIAddr: ipString(giaddr), Port: port, Source: source.String(), Definition: def}
	out, err := w.post(*w.LoadWebhook, req)
	if err != nil {
		slog.Error("load webhook failed", "hook_name", w.LoadWebhook.Name, "error", err)
		return true
	}
	if out.Load == nil {
		return true
	}
	return *out.Load
}

func (w *WebhookHooks) post(cfg WebhookConfig, req scriptRequest) (scriptResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return scriptResponse{}, fmt.Errorf("marshaling webhook request: %w", err)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff * time.Duration(uint(1)<<uint(attempt-1)))
		}
		var resp scriptResponse
		resp, lastErr = w.doRequest(cfg, method, payload)
		if lastErr == nil {
			metrics.HookExecutions.WithLabelValues("webhook", "success").Inc()
			metrics.HookDuration.WithLabelValues("webhook").Observe(time.Since(start).Seconds())
			return resp, nil
		}
	}
	metrics.HookExecutions.WithLabelValues("webhook", "error").Inc()
	metrics.HookDuration.WithLabelValues("webhook").Observe(time.Since(start).Seconds())
	return scriptResponse{}, fmt.Errorf("webhook %s failed after %d attempts: %w", cfg.URL, retries, lastErr)
}

func (w *WebhookHooks) doRequest(cfg WebhookConfig, method string, body []byte) (scriptResponse, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return scriptResponse{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "resolvdhcpd/1.0")
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	if cfg.Secret != "" {
		sig := hmacHex(body, cfg.Secret)
		httpReq.Header.Set("X-Resolvdhcpd-Signature", "sha256="+sig)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return scriptResponse{}, fmt.Errorf("sending request to %s: %w", cfg.URL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return scriptResponse{}, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return scriptResponse{}, fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	if len(respBody) == 0 {
		return scriptResponse{}, nil
	}
	var out scriptResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return scriptResponse{}, fmt.Errorf("parsing webhook response: %w", err)
	}
	return out, nil
}

func hmacHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

package hooks

import (
	"context"
	"log/slog"
	"net"
	"time"

	"layeh.com/radius"
	"layeh.com/radius/rfc2865"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

// RADIUSConfig binds HandleUnknownMAC to a RADIUS Access-Request exchange
// (spec §4.8/§9: "a RADIUS request keyed by MAC" as an unknown-MAC
// resolution strategy). Grounded on the deleted internal/radius/client.go's
// Authenticate flow, repurposed from 802.1X client authorization into a
// definition-synthesis source: the RADIUS reply's attributes become the
// synthesized Definition's fields instead of an accept/reject verdict.
type RADIUSConfig struct {
	Server  string
	Secret  string
	Timeout time.Duration
}

// RADIUSHooks answers HandleUnknownMAC via RADIUS; Filter and Load fall
// through to fallback unconditionally since RADIUS has nothing meaningful
// to say about those two call sites.
type RADIUSHooks struct {
	DefaultHooks
	cfg      RADIUSConfig
	fallback Hooks
}

// NewRADIUSHooks wraps fallback's Filter/Load with RADIUS-backed
// HandleUnknownMAC.
func NewRADIUSHooks(fallback Hooks, cfg RADIUSConfig) *RADIUSHooks {
	if fallback == nil {
		fallback = DefaultHooks{}
	}
	return &RADIUSHooks{cfg: cfg, fallback: fallback}
}

func (r *RADIUSHooks) Filter(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) FilterDecision {
	return r.fallback.Filter(src, method, mac, ciaddr, giaddr, port)
}

func (r *RADIUSHooks) Load(resp *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, def *backend.Definition, giaddr net.IP, port int, source dhcpv4.MAC) bool {
	return r.fallback.Load(resp, method, mac, def, giaddr, port, source)
}

func (r *RADIUSHooks) HandleUnknownMAC(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) *backend.Definition {
	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	packet := radius.New(radius.CodeAccessRequest, []byte(r.cfg.Secret))
	if err := rfc2865.UserName_SetString(packet, mac.String()); err != nil {
		slog.Error("building RADIUS request", "mac", mac.String(), "error", err)
		return r.fallback.HandleUnknownMAC(src, method, mac, ciaddr, giaddr, port)
	}
	if err := rfc2865.UserPassword_SetString(packet, mac.String()); err != nil {
		slog.Error("building RADIUS request", "mac", mac.String(), "error", err)
		return r.fallback.HandleUnknownMAC(src, method, mac, ciaddr, giaddr, port)
	}
	if giaddr != nil && !giaddr.IsUnspecified() {
		rfc2865.CallingStationID_SetString(packet, giaddr.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	resp, err := radius.Exchange(ctx, packet, r.cfg.Server)
	latency := time.Since(start)
	if err != nil {
		slog.Warn("RADIUS exchange failed", "server", r.cfg.Server, "mac", mac.String(), "error", err, "latency", latency)
		return r.fallback.HandleUnknownMAC(src, method, mac, ciaddr, giaddr, port)
	}
	if resp.Code != radius.CodeAccessAccept {
		slog.Debug("RADIUS denied unknown MAC", "mac", mac.String(), "code", resp.Code.String())
		return nil
	}

	framedIP := rfc2865.FramedIPAddress_Get(resp)
	if framedIP == nil {
		slog.Warn("RADIUS Access-Accept missing Framed-IP-Address", "mac", mac.String())
		return nil
	}

	def := &backend.Definition{
		IP:        framedIP,
		LeaseTime: int64(defaultRADIUSLeaseTime.Seconds()),
	}
	if mask := rfc2865.FramedIPNetmask_Get(resp); mask != nil {
		def.SubnetMask = mask
	}
	return def
}

// defaultRADIUSLeaseTime is the lease time of every Definition synthesized
// from an Access-Accept; the reply's Session-Timeout attribute is not read.
const defaultRADIUSLeaseTime = 3600 * time.Second

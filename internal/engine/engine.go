// Package engine implements the per-packet DHCPv4 decision state machine
// (spec §4.7): message-type classification, REQUEST sub-state refinement,
// the known/unknown x message-type response matrix, and the Hooks.Load
// post-decision call. Grounded on staticDHCPd's dhcp.py _handleDHCP* family
// (_handleDHCPDiscover/_handleDHCPRequest_SELECTING/_INIT_REBOOT/
// _RENEW_REBIND/_handleDHCPInform/_handleDHCPDecline/_handleDHCPRelease) and
// the deleted internal/dhcp/handler.go's NewReply+option-filling+NAK-
// building idiom, now driven by a resolver.Resolver+backend.Definition
// instead of handler.go's pool/lease-manager pair.
//
// This lives outside internal/dhcp (rather than as dhcp/engine.go) because
// internal/hooks already imports internal/dhcp for the *dhcp.Packet type in
// its Hooks interface (spec §4.8); an engine inside internal/dhcp that also
// imports internal/hooks would form an import cycle. See DESIGN.md.
package engine

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/internal/hooks"
	"github.com/resolvdhcpd/resolvdhcpd/internal/metrics"
	"github.com/resolvdhcpd/resolvdhcpd/internal/resolver"
	"github.com/resolvdhcpd/resolvdhcpd/internal/suspend"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

// requestSubState refines a REQUEST per spec §4.7 from options 50/54 and ciaddr.
type requestSubState int

const (
	subStateMalformed requestSubState = iota
	subStateSelecting
	subStateInitReboot
	subStateRenewing
	subStateRebinding
)

// Config holds the engine-level policy flags consumed from spec.md §6.2.
type Config struct {
	ServerIP      net.IP
	Authoritative bool
	NAKRenewals   bool
	EnableSuspend bool
}

// Engine ties a Resolver, an optional Suspender, and a Hooks implementation
// together to turn one decoded request into zero or one reply.
type Engine struct {
	cfg       Config
	resolver  *resolver.Resolver
	suspender *suspend.Suspender // nil disables suspension entirely
	hooks     hooks.Hooks
}

// New constructs an Engine. hooks may be nil, in which case DefaultHooks
// (total-allow) is used. suspender may be nil to disable suspension
// regardless of cfg.EnableSuspend.
func New(cfg Config, res *resolver.Resolver, susp *suspend.Suspender, h hooks.Hooks) *Engine {
	if h == nil {
		h = hooks.DefaultHooks{}
	}
	return &Engine{cfg: cfg, resolver: res, suspender: susp, hooks: h}
}

// resolverHooksAdapter lets the engine's single hooks.Hooks value also
// serve as the resolver's narrower Hooks interface, bridging the two
// different call shapes (spec §4.5 vs §4.8).
type resolverHooksAdapter struct {
	h hooks.Hooks
}

// FilterDefinitions has no counterpart in the C8 Hooks surface (§4.8 has no
// disambiguation entry point); per DESIGN.md Open Question #2, >=2
// candidates with nothing to disambiguate them is treated as misbehaving
// and falls through to Unknown.
func (resolverHooksAdapter) FilterDefinitions(defs []*backend.Definition, meta resolver.Meta) *backend.Definition {
	slog.Error("backend returned multiple definitions and the engine hooks provide no disambiguation", "count", len(defs))
	return nil
}

func (a resolverHooksAdapter) HandleUnknownMAC(meta resolver.Meta, mac backend.MAC) *backend.Definition {
	return hooks.SafeHandleUnknownMAC(a.h, meta.Source, dhcpv4.MessageType(meta.MessageType), mac, meta.CIAddr, meta.RelayIP, meta.Port)
}

// NewResolverHooks wraps h so it can be installed as a resolver.Resolver's
// Hooks field, keeping the two sides of the hook surface backed by a
// single user-facing implementation.
func NewResolverHooks(h hooks.Hooks) resolver.Hooks {
	return resolverHooksAdapter{h: h}
}

// Handle processes one decoded request and returns the reply to transmit,
// if any. port distinguishes the server endpoint from the PXE/proxy
// endpoint (spec §9 "multiple DHCP ports"); sourceIP is the packet's UDP
// source address, used as the suspender key when the packet was not
// relayed.
func (e *Engine) Handle(req *dhcp.Packet, port int, sourceIP net.IP) (*dhcp.Packet, bool) {
	method := req.MessageType()
	mac := dhcpv4.MACFromHardwareAddr(req.CHAddr)

	start := time.Now()
	metrics.PacketsReceived.WithLabelValues(method.String()).Inc()
	defer func() {
		metrics.PacketProcessingDuration.WithLabelValues(method.String()).Observe(time.Since(start).Seconds())
	}()

	giaddr := nonZeroIP(req.GIAddr)
	ciaddr := nonZeroIP(req.CIAddr)

	suspendEnabled := e.cfg.EnableSuspend && e.suspender != nil
	var src suspend.Source
	if suspendEnabled {
		src = suspend.NewSource(mac, relayKey(giaddr, sourceIP))
		if state := e.suspender.Check(src); state != suspend.Allowed {
			metrics.PacketsDropped.WithLabelValues("suspended_" + state.String()).Inc()
			return nil, false
		}
	}

	decision := hooks.SafeFilter(e.hooks, req, method, mac, ciaddr, giaddr, port)
	if decision != hooks.Accept {
		metrics.PacketsDropped.WithLabelValues("hook_" + decision.String()).Inc()
		if decision == hooks.Reject && suspendEnabled {
			e.suspender.Block(src, 0)
		}
		return nil, false
	}

	if suspendEnabled {
		if state := e.suspender.RecordRequest(src); state != suspend.Allowed {
			metrics.PacketsDropped.WithLabelValues("suspended_" + state.String()).Inc()
			return nil, false
		}
	}

	var reply *dhcp.Packet
	var def *backend.Definition
	var err error

	switch method {
	case dhcpv4.MessageTypeDiscover:
		reply, def, err = e.handleDiscover(req, mac, port)
	case dhcpv4.MessageTypeRequest:
		reply, def, err = e.handleRequest(req, mac, ciaddr, port)
	case dhcpv4.MessageTypeInform:
		reply, def, err = e.handleInform(req, mac, ciaddr, port)
	case dhcpv4.MessageTypeDecline:
		e.observeReturn(req, mac, ciaddr, port, "DECLINE")
		return nil, false
	case dhcpv4.MessageTypeRelease:
		e.observeReturn(req, mac, ciaddr, port, "RELEASE")
		return nil, false
	default:
		slog.Warn("ignoring packet with unhandled message type", "type", int(method), "mac", mac.String())
		return nil, false
	}

	if err != nil {
		slog.Error("resolving definition", "mac", mac.String(), "type", method.String(), "error", err)
		metrics.PacketErrors.WithLabelValues("resolve").Inc()
		return nil, false
	}
	if reply == nil {
		return nil, false
	}

	if def == nil && suspendEnabled {
		e.suspender.BlockUnauthorized(src)
	}

	if !hooks.SafeLoad(e.hooks, reply, method, mac, def, giaddr, port, mac) {
		metrics.HookExecutions.WithLabelValues("load", "suppressed").Inc()
		return nil, false
	}

	return reply, true
}

// handleDiscover implements spec §4.7's DISCOVER row: OFFER when known,
// otherwise silent — DHCP forbids NAKing a DISCOVER, so authoritative has
// no bearing here, matching dhcp.py's _handleDHCPDiscover raising
// _PacketSourceBlacklist only when non-authoritative (never NAKing either
// way).
func (e *Engine) handleDiscover(req *dhcp.Packet, mac dhcpv4.MAC, port int) (*dhcp.Packet, *backend.Definition, error) {
	def, err := e.resolve(req, mac, req.CIAddr, port)
	if err != nil {
		return nil, nil, err
	}
	if def == nil {
		return nil, nil, nil
	}

	reply := req.NewReply(dhcpv4.MessageTypeOffer, e.cfg.ServerIP)
	reply.YIAddr = def.IP
	e.setOptionsFromDefinition(reply, def, false)
	return reply, def, nil
}

// handleRequest dispatches on the REQUEST sub-state classification of spec
// §4.7, grounded on dhcp.py's _handleDHCPRequest/_SELECTING/_INIT_REBOOT/
// _RENEW_REBIND trio.
func (e *Engine) handleRequest(req *dhcp.Packet, mac dhcpv4.MAC, ciaddr net.IP, port int) (*dhcp.Packet, *backend.Definition, error) {
	switch classifyRequest(req, ciaddr) {
	case subStateSelecting:
		return e.handleSelecting(req, mac, port)
	case subStateInitReboot:
		return e.handleInitReboot(req, mac, port)
	case subStateRenewing:
		return e.handleRenewRebind(req, mac, ciaddr, port, false)
	case subStateRebinding:
		return e.handleRenewRebind(req, mac, ciaddr, port, true)
	default:
		slog.Warn("REQUEST not compliant with DHCP spec, ignoring",
			"sid", req.ServerIdentifier(), "ciaddr", ciaddr, "requested_ip", req.RequestedIP(), "mac", mac.String())
		return nil, nil, nil
	}
}

func classifyRequest(req *dhcp.Packet, ciaddr net.IP) requestSubState {
	sid := req.ServerIdentifier()
	requestedIP := req.RequestedIP()

	switch {
	case sid != nil && ciaddr == nil:
		return subStateSelecting
	case sid == nil && ciaddr == nil && requestedIP != nil:
		return subStateInitReboot
	case sid == nil && ciaddr != nil:
		if req.IsBroadcast() {
			return subStateRebinding
		}
		return subStateRenewing
	default:
		return subStateMalformed
	}
}

func (e *Engine) handleSelecting(req *dhcp.Packet, mac dhcpv4.MAC, port int) (*dhcp.Packet, *backend.Definition, error) {
	if !req.ServerIdentifier().Equal(e.cfg.ServerIP) {
		// Addressed to a different server; not ours to answer.
		return nil, nil, nil
	}

	def, err := e.resolve(req, mac, req.CIAddr, port)
	if err != nil {
		return nil, nil, err
	}

	requestedIP := req.RequestedIP()
	if def != nil && (requestedIP == nil || requestedIP.Equal(def.IP)) {
		reply := req.NewReply(dhcpv4.MessageTypeAck, e.cfg.ServerIP)
		reply.YIAddr = def.IP
		e.setOptionsFromDefinition(reply, def, false)
		return reply, def, nil
	}

	// Known-but-mismatched and entirely-unknown both NAK unconditionally
	// here: a client that SELECTed us has committed to our offer, so we
	// owe it a definitive answer regardless of authoritative (spec §4.7).
	return e.buildNAK(req, "requested address does not match configuration"), def, nil
}

func (e *Engine) handleInitReboot(req *dhcp.Packet, mac dhcpv4.MAC, port int) (*dhcp.Packet, *backend.Definition, error) {
	def, err := e.resolve(req, mac, req.CIAddr, port)
	if err != nil {
		return nil, nil, err
	}

	requestedIP := req.RequestedIP()
	if def != nil && requestedIP != nil && def.IP.Equal(requestedIP) {
		reply := req.NewReply(dhcpv4.MessageTypeAck, e.cfg.ServerIP)
		reply.YIAddr = def.IP
		e.setOptionsFromDefinition(reply, def, false)
		return reply, def, nil
	}

	if !e.cfg.Authoritative {
		return nil, def, nil
	}
	return e.buildNAK(req, "unknown or mismatched client"), def, nil
}

func (e *Engine) handleRenewRebind(req *dhcp.Packet, mac dhcpv4.MAC, ciaddr net.IP, port int, rebinding bool) (*dhcp.Packet, *backend.Definition, error) {
	if e.cfg.NAKRenewals {
		return e.buildNAK(req, "renewals disabled"), nil, nil
	}

	def, err := e.resolve(req, mac, ciaddr, port)
	if err != nil {
		return nil, nil, err
	}

	if def != nil && def.IP.Equal(ciaddr) {
		reply := req.NewReply(dhcpv4.MessageTypeAck, e.cfg.ServerIP)
		reply.YIAddr = ciaddr
		reply.CIAddr = ciaddr
		e.setOptionsFromDefinition(reply, def, false)
		return reply, def, nil
	}

	// RENEWING is unicast directly to us; a mismatch is unconditionally
	// NAK'd (dhcp.py's `renew` branch). REBINDING is a last-resort
	// broadcast that any authoritative server may answer, but a silent
	// server should stay silent rather than NAK on another server's
	// client (spec §4.7).
	if !rebinding || e.cfg.Authoritative {
		return e.buildNAK(req, "unknown or mismatched client"), def, nil
	}
	return nil, def, nil
}

// handleInform implements spec §4.7's INFORM row: configuration-only ACK,
// no lease timing, yiaddr left at 0.
func (e *Engine) handleInform(req *dhcp.Packet, mac dhcpv4.MAC, ciaddr net.IP, port int) (*dhcp.Packet, *backend.Definition, error) {
	if ciaddr == nil {
		slog.Warn("INFORM without ciaddr, ignoring", "mac", mac.String())
		return nil, nil, nil
	}

	def, err := e.resolve(req, mac, ciaddr, port)
	if err != nil {
		return nil, nil, err
	}
	if def == nil {
		return nil, nil, nil
	}

	reply := req.NewReply(dhcpv4.MessageTypeAck, e.cfg.ServerIP)
	reply.CIAddr = ciaddr
	reply.YIAddr = net.IPv4zero
	e.setOptionsFromDefinition(reply, def, true)
	return reply, def, nil
}

// observeReturn implements spec §4.7's DECLINE/RELEASE row: log and
// forward to the filter hook (already run in Handle); no reply is ever
// built, mirroring dhcp.py's _handleDHCPDecline/_handleDHCPRelease.
func (e *Engine) observeReturn(req *dhcp.Packet, mac dhcpv4.MAC, ciaddr net.IP, port int, kind string) {
	sid := req.ServerIdentifier()
	if sid == nil || !sid.Equal(e.cfg.ServerIP) {
		return
	}
	def, err := e.resolve(req, mac, ciaddr, port)
	if err != nil {
		slog.Error("resolving definition for "+kind, "mac", mac.String(), "error", err)
		return
	}
	switch {
	case def != nil && def.IP.Equal(ciaddr):
		slog.Info(kind+" from known client", "mac", mac.String(), "ip", ciaddr)
	case def != nil:
		slog.Warn(kind+" address mismatch", "mac", mac.String(), "claimed", ciaddr, "assigned", def.IP)
	default:
		slog.Warn(kind+" from unknown MAC", "mac", mac.String(), "ip", ciaddr)
	}
}

// resolve wraps resolver.Resolve with the Meta this engine always supplies.
func (e *Engine) resolve(req *dhcp.Packet, mac dhcpv4.MAC, ciaddr net.IP, port int) (*backend.Definition, error) {
	meta := resolver.Meta{
		MessageType: byte(req.MessageType()),
		CIAddr:      ciaddr,
		RelayIP:     nonZeroIP(req.GIAddr),
		Port:        port,
		Source:      req,
	}
	def, err := e.resolver.Resolve(backend.MAC(mac), meta)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", mac.String(), err)
	}
	return def, nil
}

// buildNAK constructs a NAK reply, grounded on the deleted handler.go's
// buildNAK(pkt, reason) idiom.
func (e *Engine) buildNAK(req *dhcp.Packet, reason string) *dhcp.Packet {
	reply := req.NewReply(dhcpv4.MessageTypeNak, e.cfg.ServerIP)
	reply.YIAddr = net.IPv4zero
	reply.CIAddr = net.IPv4zero
	if reason != "" {
		reply.Options.SetString(dhcpv4.OptionMessage, reason)
	}
	return reply
}

// setOptionsFromDefinition fills reply's options directly from a
// Definition's fields, grounded on the deleted handler.go's
// setSubnetOptions — but sourced from the resolved Definition instead of a
// CIDR-matched subnet config, since the externally-resolved model has no
// subnet/pool matching at all. inform suppresses lease-timing options
// (spec §4.7's INFORM row).
func (e *Engine) setOptionsFromDefinition(reply *dhcp.Packet, def *backend.Definition, inform bool) {
	if def.SubnetMask != nil {
		reply.Options.Set(dhcpv4.OptionSubnetMask, dhcpv4.IPToBytes(def.SubnetMask))
	}
	if len(def.Gateways) > 0 {
		reply.Options.Set(dhcpv4.OptionRouter, dhcpv4.IPListToBytes(def.Gateways))
	}
	if len(def.DomainNameServers) > 0 {
		reply.Options.Set(dhcpv4.OptionDomainNameServer, dhcpv4.IPListToBytes(def.DomainNameServers))
	}
	if def.DomainName != "" {
		reply.Options.SetString(dhcpv4.OptionDomainName, def.DomainName)
	}
	if len(def.NTPServers) > 0 {
		reply.Options.Set(dhcpv4.OptionNTPServers, dhcpv4.IPListToBytes(def.NTPServers))
	}
	if def.BroadcastAddress != nil {
		reply.Options.Set(dhcpv4.OptionBroadcastAddress, dhcpv4.IPToBytes(def.BroadcastAddress))
	}
	if def.Hostname != "" {
		reply.Options.SetString(dhcpv4.OptionHostname, def.Hostname)
	}

	if inform {
		reply.Options.Delete(dhcpv4.OptionIPLeaseTime)
		reply.Options.Delete(dhcpv4.OptionRenewalTime)
		reply.Options.Delete(dhcpv4.OptionRebindingTime)
		return
	}

	lease := def.LeaseTime
	t1, t2 := deriveT1T2(lease)
	reply.Options.SetUint32(dhcpv4.OptionIPLeaseTime, uint32(lease))
	reply.Options.SetUint32(dhcpv4.OptionRenewalTime, uint32(t1))
	reply.Options.SetUint32(dhcpv4.OptionRebindingTime, uint32(t2))
}

// deriveT1T2 implements spec §4.7's RFC 2131-recommended defaults:
// T1 = lease/2, T2 = lease*7/8.
func deriveT1T2(lease int64) (t1, t2 int64) {
	return lease / 2, lease * 7 / 8
}

// nonZeroIP normalizes a 0.0.0.0 (or nil) address to nil, so callers can
// treat "absent" and "unspecified" identically (RFC 2131's convention for
// ciaddr/giaddr when a client hasn't yet been assigned one).
func nonZeroIP(ip net.IP) net.IP {
	if ip == nil || ip.Equal(net.IPv4zero) {
		return nil
	}
	return ip
}

// relayKey picks the suspender's per-source relay component: the relay's
// own IP when the packet was relayed, otherwise the packet's direct UDP
// source (spec §4.6 "(MAC xor relay_ip)").
func relayKey(giaddr, sourceIP net.IP) net.IP {
	if giaddr != nil {
		return giaddr
	}
	return sourceIP
}

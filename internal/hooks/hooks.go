// Package hooks defines the three user-callable decision points of the
// engine (spec §4.8): filter, handle-unknown-mac, and load. Grounded on
// dhcp.py's three corresponding call sites in the original staticDHCPd
// source, reimplemented as a single Go interface instead of a
// dynamically-dispatched module-level function triplet.
package hooks

import (
	"net"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

// FilterDecision is the result of the Filter hook.
type FilterDecision int

const (
	Accept FilterDecision = iota
	Reject
	Ignore
)

func (d FilterDecision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Hooks is the full C8 surface. All three methods are called synchronously
// from the engine goroutine handling the request and must not block
// indefinitely; a panic inside any of them is recovered at the call site
// and treated as Reject (Filter), nil (HandleUnknownMAC), or false (Load) —
// spec §4.8/§7.
type Hooks interface {
	Filter(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) FilterDecision
	HandleUnknownMAC(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) *backend.Definition
	Load(resp *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, def *backend.Definition, giaddr net.IP, port int, source dhcpv4.MAC) bool
}

// DefaultHooks is the zero-value, always-allow implementation: Filter
// always Accepts, HandleUnknownMAC never synthesizes, Load never suppresses
// transmission (spec §4.8's stated total defaults).
type DefaultHooks struct{}

func (DefaultHooks) Filter(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, net.IP, net.IP, int) FilterDecision {
	return Accept
}

func (DefaultHooks) HandleUnknownMAC(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, net.IP, net.IP, int) *backend.Definition {
	return nil
}

func (DefaultHooks) Load(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, *backend.Definition, net.IP, int, dhcpv4.MAC) bool {
	return true
}

// Chain runs multiple Hooks in sequence, short-circuiting Filter on the
// first non-Accept and HandleUnknownMAC on the first non-nil result. Load
// runs every member and ANDs the results (any suppression wins), mirroring
// how a script hook and a webhook hook can be bound to the same event in
// the configuration.
type Chain []Hooks

func (c Chain) Filter(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) (decision FilterDecision) {
	decision = Accept
	for _, h := range c {
		decision = SafeFilter(h, src, method, mac, ciaddr, giaddr, port)
		if decision != Accept {
			return decision
		}
	}
	return decision
}

func (c Chain) HandleUnknownMAC(src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) *backend.Definition {
	for _, h := range c {
		if def := SafeHandleUnknownMAC(h, src, method, mac, ciaddr, giaddr, port); def != nil {
			return def
		}
	}
	return nil
}

func (c Chain) Load(resp *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, def *backend.Definition, giaddr net.IP, port int, source dhcpv4.MAC) bool {
	ok := true
	for _, h := range c {
		if !SafeLoad(h, resp, method, mac, def, giaddr, port, source) {
			ok = false
		}
	}
	return ok
}

// SafeFilter calls h.Filter, recovering a panic and treating it as Reject
// per spec §4.8/§7. The engine should always call hooks through these
// wrappers rather than invoking the interface methods directly.
func SafeFilter(h Hooks, src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) (decision FilterDecision) {
	decision = Reject
	defer func() {
		if recover() != nil {
			decision = Reject
		}
	}()
	return h.Filter(src, method, mac, ciaddr, giaddr, port)
}

// SafeHandleUnknownMAC calls h.HandleUnknownMAC, recovering a panic and
// treating it as nil.
func SafeHandleUnknownMAC(h Hooks, src *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, ciaddr, giaddr net.IP, port int) (def *backend.Definition) {
	defer func() {
		if recover() != nil {
			def = nil
		}
	}()
	return h.HandleUnknownMAC(src, method, mac, ciaddr, giaddr, port)
}

// SafeLoad calls h.Load, recovering a panic and treating it as Reject
// (false), matching spec §4.8's "treated as Reject for filter and load".
func SafeLoad(h Hooks, resp *dhcp.Packet, method dhcpv4.MessageType, mac dhcpv4.MAC, def *backend.Definition, giaddr net.IP, port int, source dhcpv4.MAC) (ok bool) {
	ok = false
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return h.Load(resp, method, mac, def, giaddr, port, source)
}

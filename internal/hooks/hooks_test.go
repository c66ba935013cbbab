package hooks

import (
	"net"
	"testing"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

func TestDefaultHooksTotalDefaults(t *testing.T) {
	var h DefaultHooks
	var mac dhcpv4.MAC

	if got := h.Filter(nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67); got != Accept {
		t.Fatalf("expected Accept, got %v", got)
	}
	if got := h.HandleUnknownMAC(nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := h.Load(nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67, mac); got != true {
		t.Fatalf("expected true, got %v", got)
	}
}

type panickingHooks struct{ DefaultHooks }

func (panickingHooks) Filter(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, net.IP, net.IP, int) FilterDecision {
	panic("boom")
}

func (panickingHooks) HandleUnknownMAC(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, net.IP, net.IP, int) *backend.Definition {
	panic("boom")
}

func (panickingHooks) Load(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, *backend.Definition, net.IP, int, dhcpv4.MAC) bool {
	panic("boom")
}

func TestSafeFilterRecoversPanicAsReject(t *testing.T) {
	var mac dhcpv4.MAC
	got := SafeFilter(panickingHooks{}, nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67)
	if got != Reject {
		t.Fatalf("expected Reject after panic recovery, got %v", got)
	}
}

func TestSafeHandleUnknownMACRecoversPanicAsNil(t *testing.T) {
	var mac dhcpv4.MAC
	got := SafeHandleUnknownMAC(panickingHooks{}, nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67)
	if got != nil {
		t.Fatalf("expected nil after panic recovery, got %v", got)
	}
}

func TestSafeLoadRecoversPanicAsFalse(t *testing.T) {
	var mac dhcpv4.MAC
	got := SafeLoad(panickingHooks{}, nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67, mac)
	if got != false {
		t.Fatalf("expected false after panic recovery, got %v", got)
	}
}

type fixedHooks struct {
	DefaultHooks
	decision FilterDecision
	def      *backend.Definition
	load     bool
}

func (f fixedHooks) Filter(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, net.IP, net.IP, int) FilterDecision {
	return f.decision
}

func (f fixedHooks) HandleUnknownMAC(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, net.IP, net.IP, int) *backend.Definition {
	return f.def
}

func (f fixedHooks) Load(*dhcp.Packet, dhcpv4.MessageType, dhcpv4.MAC, *backend.Definition, net.IP, int, dhcpv4.MAC) bool {
	return f.load
}

func TestChainFilterShortCircuitsOnFirstNonAccept(t *testing.T) {
	var mac dhcpv4.MAC
	chain := Chain{
		fixedHooks{decision: Reject, load: true},
		fixedHooks{decision: Accept, load: true},
	}
	got := chain.Filter(nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67)
	if got != Reject {
		t.Fatalf("expected chain to stop at first Reject, got %v", got)
	}
}

func TestChainHandleUnknownMACReturnsFirstNonNil(t *testing.T) {
	var mac dhcpv4.MAC
	want := &backend.Definition{IP: net.IPv4(192, 0, 2, 5), LeaseTime: 3600}
	chain := Chain{
		fixedHooks{def: nil, load: true},
		fixedHooks{def: want, load: true},
	}
	got := chain.HandleUnknownMAC(nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67)
	if got != want {
		t.Fatalf("expected second hook's definition, got %v", got)
	}
}

func TestChainLoadANDsResults(t *testing.T) {
	var mac dhcpv4.MAC
	chain := Chain{
		fixedHooks{decision: Accept, load: true},
		fixedHooks{decision: Accept, load: false},
	}
	if got := chain.Load(nil, dhcpv4.MessageTypeDiscover, mac, nil, nil, 67, mac); got != false {
		t.Fatalf("expected false when any hook suppresses transmission, got %v", got)
	}
}

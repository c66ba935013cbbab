package engine

import (
	"net"
	"testing"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/internal/resolver"
	"github.com/resolvdhcpd/resolvdhcpd/internal/suspend"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

var serverIP = net.IPv4(192, 0, 2, 1)
var testMAC = net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

type fakeBackend struct {
	defs map[dhcpv4.MAC][]*backend.Definition
}

func (b *fakeBackend) Lookup(mac backend.MAC) ([]*backend.Definition, error) {
	return b.defs[mac], nil
}

func (b *fakeBackend) Reinitialise() error { return nil }

func newEngine(t *testing.T, cfg Config, defs map[dhcpv4.MAC][]*backend.Definition) *Engine {
	t.Helper()
	be := &fakeBackend{defs: defs}
	res := resolver.New(be, nil, nil)
	return New(cfg, res, nil, nil)
}

func baseRequest(msgType dhcpv4.MessageType) *dhcp.Packet {
	return &dhcp.Packet{
		Op:      dhcpv4.OpCodeBootRequest,
		HType:   dhcpv4.HardwareTypeEthernet,
		HLen:    6,
		XID:     0x12345678,
		CHAddr:  testMAC,
		CIAddr:  net.IPv4zero,
		YIAddr:  net.IPv4zero,
		GIAddr:  net.IPv4zero,
		Options: dhcp.Options{dhcpv4.OptionDHCPMessageType: {byte(msgType)}},
	}
}

func knownDefinition() *backend.Definition {
	return &backend.Definition{
		IP:                net.IPv4(192, 168, 0, 197),
		SubnetMask:        net.IPv4(255, 255, 255, 0),
		Gateways:          []net.IP{net.IPv4(192, 168, 0, 1)},
		DomainNameServers: []net.IP{net.IPv4(192, 168, 0, 5)},
		LeaseTime:         14400,
	}
}

// TestKnownMACDiscoverReturnsOffer mirrors spec.md §8 concrete scenario 1.
func TestKnownMACDiscoverReturnsOffer(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	e := newEngine(t, Config{ServerIP: serverIP}, map[dhcpv4.MAC][]*backend.Definition{
		mac: {knownDefinition()},
	})

	req := baseRequest(dhcpv4.MessageTypeDiscover)
	reply, ok := e.Handle(req, 67, net.IPv4(0, 0, 0, 0))
	if !ok || reply == nil {
		t.Fatalf("expected an OFFER, got ok=%v reply=%v", ok, reply)
	}
	if reply.MessageType() != dhcpv4.MessageTypeOffer {
		t.Fatalf("message type = %v, want Offer", reply.MessageType())
	}
	if !reply.YIAddr.Equal(net.IPv4(192, 168, 0, 197)) {
		t.Fatalf("yiaddr = %v, want 192.168.0.197", reply.YIAddr)
	}
	if lease, ok := reply.Options.Get(dhcpv4.OptionIPLeaseTime); !ok || len(lease) != 4 {
		t.Fatalf("expected option 51 present, got %v", lease)
	}
	if !reply.ServerIdentifier().Equal(serverIP) {
		t.Fatalf("server identifier = %v, want %v", reply.ServerIdentifier(), serverIP)
	}
}

// TestUnknownMACDiscoverNonAuthoritativeSilent mirrors scenario 2.
func TestUnknownMACDiscoverNonAuthoritativeSilent(t *testing.T) {
	e := newEngine(t, Config{ServerIP: serverIP, Authoritative: false}, nil)

	req := baseRequest(dhcpv4.MessageTypeDiscover)
	reply, ok := e.Handle(req, 67, net.IPv4zero)
	if ok || reply != nil {
		t.Fatalf("expected silence, got ok=%v reply=%v", ok, reply)
	}
}

// TestUnknownMACDiscoverAuthoritativeStillSilent: DHCP forbids NAKing a
// DISCOVER even when authoritative (spec §4.7).
func TestUnknownMACDiscoverAuthoritativeStillSilent(t *testing.T) {
	e := newEngine(t, Config{ServerIP: serverIP, Authoritative: true}, nil)

	req := baseRequest(dhcpv4.MessageTypeDiscover)
	reply, ok := e.Handle(req, 67, net.IPv4zero)
	if ok || reply != nil {
		t.Fatalf("expected silence even when authoritative, got ok=%v reply=%v", ok, reply)
	}
}

// TestUnknownMACRequestAuthoritativeNAKs mirrors scenario 3.
func TestUnknownMACRequestAuthoritativeNAKs(t *testing.T) {
	e := newEngine(t, Config{ServerIP: serverIP, Authoritative: true}, nil)

	req := baseRequest(dhcpv4.MessageTypeRequest)
	req.Options[dhcpv4.OptionRequestedIP] = dhcpv4.IPToBytes(net.IPv4(192, 168, 0, 50))

	reply, ok := e.Handle(req, 67, net.IPv4zero)
	if !ok || reply == nil {
		t.Fatalf("expected a NAK, got ok=%v reply=%v", ok, reply)
	}
	if reply.MessageType() != dhcpv4.MessageTypeNak {
		t.Fatalf("message type = %v, want Nak", reply.MessageType())
	}
	if !reply.YIAddr.Equal(net.IPv4zero) {
		t.Fatalf("NAK yiaddr = %v, want 0.0.0.0", reply.YIAddr)
	}
}

// TestRenewWrongAddressNAKs mirrors scenario 4.
func TestRenewWrongAddressNAKs(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	e := newEngine(t, Config{ServerIP: serverIP, Authoritative: false}, map[dhcpv4.MAC][]*backend.Definition{
		mac: {{IP: net.IPv4(10, 0, 0, 6), SubnetMask: net.IPv4(255, 255, 255, 0), LeaseTime: 3600}},
	})

	req := baseRequest(dhcpv4.MessageTypeRequest)
	req.CIAddr = net.IPv4(10, 0, 0, 5)

	reply, ok := e.Handle(req, 67, net.IPv4(10, 0, 0, 5))
	if !ok || reply == nil {
		t.Fatalf("expected a NAK, got ok=%v reply=%v", ok, reply)
	}
	if reply.MessageType() != dhcpv4.MessageTypeNak {
		t.Fatalf("message type = %v, want Nak", reply.MessageType())
	}
}

func TestSelectingMatchReturnsAck(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	def := knownDefinition()
	e := newEngine(t, Config{ServerIP: serverIP}, map[dhcpv4.MAC][]*backend.Definition{
		mac: {def},
	})

	req := baseRequest(dhcpv4.MessageTypeRequest)
	req.Options[dhcpv4.OptionServerIdentifier] = dhcpv4.IPToBytes(serverIP)
	req.Options[dhcpv4.OptionRequestedIP] = dhcpv4.IPToBytes(def.IP)

	reply, ok := e.Handle(req, 67, net.IPv4zero)
	if !ok || reply == nil {
		t.Fatalf("expected an ACK, got ok=%v reply=%v", ok, reply)
	}
	if reply.MessageType() != dhcpv4.MessageTypeAck {
		t.Fatalf("message type = %v, want Ack", reply.MessageType())
	}
	if !reply.YIAddr.Equal(def.IP) {
		t.Fatalf("yiaddr = %v, want %v", reply.YIAddr, def.IP)
	}
}

func TestSelectingForAnotherServerIsSilent(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	e := newEngine(t, Config{ServerIP: serverIP}, map[dhcpv4.MAC][]*backend.Definition{
		mac: {knownDefinition()},
	})

	req := baseRequest(dhcpv4.MessageTypeRequest)
	req.Options[dhcpv4.OptionServerIdentifier] = dhcpv4.IPToBytes(net.IPv4(192, 0, 2, 99))

	reply, ok := e.Handle(req, 67, net.IPv4zero)
	if ok || reply != nil {
		t.Fatalf("expected silence for another server's SELECTING, got ok=%v reply=%v", ok, reply)
	}
}

func TestInformKnownACKsWithoutLeaseOptions(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	def := knownDefinition()
	e := newEngine(t, Config{ServerIP: serverIP}, map[dhcpv4.MAC][]*backend.Definition{
		mac: {def},
	})

	req := baseRequest(dhcpv4.MessageTypeInform)
	req.CIAddr = def.IP

	reply, ok := e.Handle(req, 67, net.IPv4zero)
	if !ok || reply == nil {
		t.Fatalf("expected an ACK, got ok=%v reply=%v", ok, reply)
	}
	if !reply.YIAddr.Equal(net.IPv4zero) {
		t.Fatalf("INFORM ACK yiaddr = %v, want 0.0.0.0", reply.YIAddr)
	}
	if reply.Options.Has(dhcpv4.OptionIPLeaseTime) {
		t.Fatalf("INFORM ACK must not carry lease_time")
	}
}

func TestInformWithoutCIAddrIsSilent(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	e := newEngine(t, Config{ServerIP: serverIP}, map[dhcpv4.MAC][]*backend.Definition{
		mac: {knownDefinition()},
	})

	req := baseRequest(dhcpv4.MessageTypeInform)
	reply, ok := e.Handle(req, 67, net.IPv4zero)
	if ok || reply != nil {
		t.Fatalf("expected silence, got ok=%v reply=%v", ok, reply)
	}
}

func TestNakRenewalsForcesNakOnRenew(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	def := knownDefinition()
	e := newEngine(t, Config{ServerIP: serverIP, NAKRenewals: true}, map[dhcpv4.MAC][]*backend.Definition{
		mac: {def},
	})

	req := baseRequest(dhcpv4.MessageTypeRequest)
	req.CIAddr = def.IP

	reply, ok := e.Handle(req, 67, def.IP)
	if !ok || reply == nil || reply.MessageType() != dhcpv4.MessageTypeNak {
		t.Fatalf("expected forced NAK, got ok=%v reply=%v", ok, reply)
	}
}

func TestDeclineAndReleaseNeverReply(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	def := knownDefinition()
	e := newEngine(t, Config{ServerIP: serverIP}, map[dhcpv4.MAC][]*backend.Definition{
		mac: {def},
	})

	for _, mt := range []dhcpv4.MessageType{dhcpv4.MessageTypeDecline, dhcpv4.MessageTypeRelease} {
		req := baseRequest(mt)
		req.CIAddr = def.IP
		req.Options[dhcpv4.OptionServerIdentifier] = dhcpv4.IPToBytes(serverIP)

		reply, ok := e.Handle(req, 67, def.IP)
		if ok || reply != nil {
			t.Fatalf("%v: expected no reply, got ok=%v reply=%v", mt, ok, reply)
		}
	}
}

func TestDeriveT1T2(t *testing.T) {
	t1, t2 := deriveT1T2(14400)
	if t1 != 7200 {
		t.Errorf("T1 = %d, want 7200", t1)
	}
	if t2 != 12600 {
		t.Errorf("T2 = %d, want 12600", t2)
	}
}

func TestClassifyRequestSubStates(t *testing.T) {
	selecting := baseRequest(dhcpv4.MessageTypeRequest)
	selecting.Options[dhcpv4.OptionServerIdentifier] = dhcpv4.IPToBytes(serverIP)
	if got := classifyRequest(selecting, nonZeroIP(selecting.CIAddr)); got != subStateSelecting {
		t.Errorf("classify(SELECTING) = %v, want subStateSelecting", got)
	}

	initReboot := baseRequest(dhcpv4.MessageTypeRequest)
	initReboot.Options[dhcpv4.OptionRequestedIP] = dhcpv4.IPToBytes(net.IPv4(10, 0, 0, 5))
	if got := classifyRequest(initReboot, nonZeroIP(initReboot.CIAddr)); got != subStateInitReboot {
		t.Errorf("classify(INIT-REBOOT) = %v, want subStateInitReboot", got)
	}

	renew := baseRequest(dhcpv4.MessageTypeRequest)
	renew.CIAddr = net.IPv4(10, 0, 0, 5)
	if got := classifyRequest(renew, nonZeroIP(renew.CIAddr)); got != subStateRenewing {
		t.Errorf("classify(RENEWING) = %v, want subStateRenewing", got)
	}

	rebind := baseRequest(dhcpv4.MessageTypeRequest)
	rebind.CIAddr = net.IPv4(10, 0, 0, 5)
	rebind.Flags = 0x8000
	if got := classifyRequest(rebind, nonZeroIP(rebind.CIAddr)); got != subStateRebinding {
		t.Errorf("classify(REBINDING) = %v, want subStateRebinding", got)
	}

	malformed := baseRequest(dhcpv4.MessageTypeRequest)
	if got := classifyRequest(malformed, nonZeroIP(malformed.CIAddr)); got != subStateMalformed {
		t.Errorf("classify(malformed) = %v, want subStateMalformed", got)
	}
}

func TestSuspenderBlocksRepeatedFlood(t *testing.T) {
	mac := dhcpv4.MACFromHardwareAddr(testMAC)
	be := &fakeBackend{defs: map[dhcpv4.MAC][]*backend.Definition{mac: {knownDefinition()}}}
	res := resolver.New(be, nil, nil)
	susp := suspend.New(suspend.Config{SuspendThreshold: 2})
	e := New(Config{ServerIP: serverIP, EnableSuspend: true}, res, susp, nil)

	var lastOK bool
	for i := 0; i < 5; i++ {
		req := baseRequest(dhcpv4.MessageTypeDiscover)
		_, lastOK = e.Handle(req, 67, net.IPv4(198, 51, 100, 1))
	}
	if lastOK {
		t.Fatalf("expected the 5th request from a flooding source to be throttled")
	}
}

package rfcopts

import (
	"net"
	"testing"
)

func TestRelayAgentInfoRoundTrip(t *testing.T) {
	want := &RelayAgentInfo{
		CircuitID:  []byte{0x00, 0x01},
		RemoteID:   []byte("switch-1"),
		LinkSelect: net.IPv4(10, 0, 0, 1),
	}
	encoded := EncodeRelayAgentInfo(want)
	got, err := DecodeRelayAgentInfo(encoded)
	if err != nil {
		t.Fatalf("DecodeRelayAgentInfo: %v", err)
	}
	if string(got.CircuitID) != string(want.CircuitID) {
		t.Errorf("CircuitID = %v, want %v", got.CircuitID, want.CircuitID)
	}
	if string(got.RemoteID) != string(want.RemoteID) {
		t.Errorf("RemoteID = %q, want %q", got.RemoteID, want.RemoteID)
	}
	if !got.LinkSelect.Equal(want.LinkSelect) {
		t.Errorf("LinkSelect = %v, want %v", got.LinkSelect, want.LinkSelect)
	}
}

func TestDecodeRelayAgentInfoTruncated(t *testing.T) {
	if _, err := DecodeRelayAgentInfo([]byte{1, 5, 0, 0}); err == nil {
		t.Error("expected error for truncated sub-option")
	}
}

func TestDomainListRoundTrip(t *testing.T) {
	in := "eng.example.com,sales.example.com"
	packed, err := EncodeDomainList(in)
	if err != nil {
		t.Fatalf("EncodeDomainList: %v", err)
	}
	// Packing must produce output; the round trip below checks that the
	// compressed form decodes back to both names.
	if len(packed) == 0 {
		t.Fatal("EncodeDomainList returned empty output")
	}
	got, err := DecodeDomainList(packed)
	if err != nil {
		t.Fatalf("DecodeDomainList: %v", err)
	}
	if got != in {
		t.Errorf("DecodeDomainList round trip = %q, want %q", got, in)
	}
}

func TestSIPServersIPMode(t *testing.T) {
	encoded, err := EncodeSIPServers("192.0.2.1,192.0.2.2")
	if err != nil {
		t.Fatalf("EncodeSIPServers: %v", err)
	}
	got, err := DecodeSIPServers(encoded)
	if err != nil {
		t.Fatalf("DecodeSIPServers: %v", err)
	}
	if len(got.Addresses) != 2 || len(got.Names) != 0 {
		t.Errorf("got %+v, want 2 addresses and 0 names", got)
	}
}

func TestSIPServersDNSMode(t *testing.T) {
	encoded, err := EncodeSIPServers("sip1.example.com,sip2.example.com")
	if err != nil {
		t.Fatalf("EncodeSIPServers: %v", err)
	}
	got, err := DecodeSIPServers(encoded)
	if err != nil {
		t.Fatalf("DecodeSIPServers: %v", err)
	}
	if len(got.Names) != 2 || len(got.Addresses) != 0 {
		t.Errorf("got %+v, want 2 names and 0 addresses", got)
	}
}

func TestSIPServersMixedRejected(t *testing.T) {
	if _, err := EncodeSIPServers("192.0.2.1,sip.example.com"); err == nil {
		t.Error("expected error for mixed IPv4/DNS entries")
	}
}

func TestClasslessStaticRoutesRoundTrip(t *testing.T) {
	routes := []CIDRRoute{
		{Destination: net.IPv4(0, 0, 0, 0), PrefixLen: 0, Gateway: net.IPv4(10, 0, 0, 1)},
		{Destination: net.IPv4(192, 168, 1, 0), PrefixLen: 24, Gateway: net.IPv4(10, 0, 0, 1)},
	}
	encoded := EncodeClasslessStaticRoutes(routes)
	got, err := DecodeClasslessStaticRoutes(encoded)
	if err != nil {
		t.Fatalf("DecodeClasslessStaticRoutes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d routes, want 2", len(got))
	}
	if got[1].PrefixLen != 24 || !got[1].Gateway.Equal(net.IPv4(10, 0, 0, 1)) {
		t.Errorf("route[1] = %+v", got[1])
	}
}

func TestVendorClassRoundTrip(t *testing.T) {
	want := VendorClass{
		9:  []byte("cisco-payload"),
		43: []byte("3com-payload"),
	}
	encoded, err := EncodeVendorClass(want)
	if err != nil {
		t.Fatalf("EncodeVendorClass: %v", err)
	}
	got, err := DecodeVendorClass(encoded)
	if err != nil {
		t.Fatalf("DecodeVendorClass: %v", err)
	}
	if len(got) != 2 || string(got[9]) != "cisco-payload" || string(got[43]) != "3com-payload" {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestVendorSpecificRoundTrip(t *testing.T) {
	want := VendorSpecific{
		9: {1: []byte("alpha"), 2: []byte("beta")},
	}
	encoded, err := EncodeVendorSpecific(want)
	if err != nil {
		t.Fatalf("EncodeVendorSpecific: %v", err)
	}
	got, err := DecodeVendorSpecific(encoded)
	if err != nil {
		t.Fatalf("DecodeVendorSpecific: %v", err)
	}
	if string(got[9][1]) != "alpha" || string(got[9][2]) != "beta" {
		t.Errorf("got %v", got)
	}
}

func TestISNSRoundTrip(t *testing.T) {
	want := ISNS{
		Functions:   1,
		DDAccess:    2,
		AdminFlags:  3,
		Security:    4,
		ServerAddrs: []net.IP{net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2)},
	}
	encoded := EncodeISNS(want)
	got, err := DecodeISNS(encoded)
	if err != nil {
		t.Fatalf("DecodeISNS: %v", err)
	}
	if got.Functions != want.Functions || got.Security != want.Security || len(got.ServerAddrs) != 2 {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestMoSIPAddressRoundTrip(t *testing.T) {
	entries := []MoSEntry{{Code: 1, Value: "10.0.0.1,10.0.0.2"}}
	encoded, err := EncodeMoSIPAddress(entries)
	if err != nil {
		t.Fatalf("EncodeMoSIPAddress: %v", err)
	}
	got, err := DecodeMoSIPAddress(encoded, 2)
	if err != nil {
		t.Fatalf("DecodeMoSIPAddress: %v", err)
	}
	if len(got) != 1 || got[0].Code != 1 || got[0].Value != "10.0.0.1,10.0.0.2" {
		t.Errorf("got %+v", got)
	}
}

func TestMoSFQDNRoundTrip(t *testing.T) {
	entries := []MoSEntry{{Code: 1, Value: "mos.example.com"}}
	encoded, err := EncodeMoSFQDN(entries)
	if err != nil {
		t.Fatalf("EncodeMoSFQDN: %v", err)
	}
	got, err := DecodeMoSFQDN(encoded)
	if err != nil {
		t.Fatalf("DecodeMoSFQDN: %v", err)
	}
	if len(got) != 1 || got[0].Code != 1 || got[0].Value != "mos.example.com" {
		t.Errorf("got %+v", got)
	}
}

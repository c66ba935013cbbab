package boltbackend

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backend.db")
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestLookupMiss(t *testing.T) {
	b := openTestBackend(t)
	var mac backend.MAC
	copy(mac[:], []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})

	defs, err := b.Lookup(mac)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if defs != nil {
		t.Fatalf("expected nil on miss, got %v", defs)
	}
}

func TestPutLookupRoundTrip(t *testing.T) {
	b := openTestBackend(t)
	var mac backend.MAC
	copy(mac[:], []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})

	def := &backend.Definition{
		IP:        net.IPv4(192, 0, 2, 10),
		Hostname:  "host1",
		LeaseTime: 3600,
	}
	if err := b.Put(mac, def); err != nil {
		t.Fatalf("Put: %v", err)
	}

	defs, err := b.Lookup(mac)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if !defs[0].IP.Equal(def.IP) || defs[0].Hostname != def.Hostname {
		t.Fatalf("roundtrip mismatch: got %+v", defs[0])
	}
}

func TestDelete(t *testing.T) {
	b := openTestBackend(t)
	var mac backend.MAC
	copy(mac[:], []byte{1, 2, 3, 4, 5, 6})

	def := &backend.Definition{IP: net.IPv4(192, 0, 2, 20), LeaseTime: 3600}
	if err := b.Put(mac, def); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Delete(mac); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	defs, err := b.Lookup(mac)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if defs != nil {
		t.Fatalf("expected nil after delete, got %v", defs)
	}
}

func TestReinitialiseIsNoop(t *testing.T) {
	b := openTestBackend(t)
	if err := b.Reinitialise(); err != nil {
		t.Fatalf("Reinitialise: %v", err)
	}
}

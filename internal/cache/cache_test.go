package cache

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
)

func testMAC(b byte) backend.MAC {
	var mac backend.MAC
	copy(mac[:], []byte{b, b, b, b, b, b})
	return mac
}

func TestMemoryOnlyStoreAndLookup(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	mac := testMAC(1)
	if _, hit := c.Lookup(mac); hit {
		t.Fatalf("expected miss before Store")
	}

	def := &backend.Definition{IP: net.IPv4(192, 0, 2, 1), LeaseTime: 3600}
	if err := c.Store(mac, def); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, hit := c.Lookup(mac)
	if !hit || got != def {
		t.Fatalf("expected hit returning same definition, got %v hit=%v", got, hit)
	}
}

func TestNegativeCacheDisabledByDefault(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	mac := testMAC(2)
	c.StoreNegative(mac)
	if _, hit := c.Lookup(mac); hit {
		t.Fatalf("expected negative caching to be a no-op when disabled")
	}
}

func TestNegativeCacheTTLExpiry(t *testing.T) {
	c, err := New(Config{NegativeCache: true, NegativeCacheTTL: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	mac := testMAC(3)
	c.StoreNegative(mac)
	def, hit := c.Lookup(mac)
	if !hit || def != nil {
		t.Fatalf("expected immediate negative hit, got def=%v hit=%v", def, hit)
	}

	time.Sleep(20 * time.Millisecond)
	if _, hit := c.Lookup(mac); hit {
		t.Fatalf("expected negative entry to expire")
	}
}

func TestStoreClearsNegative(t *testing.T) {
	c, err := New(Config{NegativeCache: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	mac := testMAC(4)
	c.StoreNegative(mac)
	def := &backend.Definition{IP: net.IPv4(192, 0, 2, 4), LeaseTime: 3600}
	if err := c.Store(mac, def); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, hit := c.Lookup(mac)
	if !hit || got == nil {
		t.Fatalf("expected positive hit after Store clears negative entry")
	}
}

func TestReinitialiseFlushesTable(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	mac := testMAC(5)
	def := &backend.Definition{IP: net.IPv4(192, 0, 2, 5), LeaseTime: 3600}
	if err := c.Store(mac, def); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := c.Reinitialise(); err != nil {
		t.Fatalf("Reinitialise: %v", err)
	}
	if _, hit := c.Lookup(mac); hit {
		t.Fatalf("expected cache to be empty after Reinitialise")
	}
}

func TestOnDiskPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	mac := testMAC(6)
	def := &backend.Definition{IP: net.IPv4(192, 0, 2, 6), Hostname: "persisted", LeaseTime: 3600}

	c1, err := New(Config{OnDisk: true, PersistentPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c1.Store(mac, def); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := New(Config{OnDisk: true, PersistentPath: path})
	if err != nil {
		t.Fatalf("reopen New: %v", err)
	}
	defer c2.Close()

	got, hit := c2.Lookup(mac)
	if !hit || got == nil || got.Hostname != "persisted" {
		t.Fatalf("expected preloaded entry after reopen, got %v hit=%v", got, hit)
	}
}

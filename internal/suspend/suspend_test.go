package suspend

import (
	"testing"
	"time"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
)

func testMAC(b byte) backend.MAC {
	var mac backend.MAC
	copy(mac[:], []byte{b, b, b, b, b, b})
	return mac
}

func TestRecordRequestBelowThresholdStaysAllowed(t *testing.T) {
	s := New(Config{SuspendThreshold: 10})
	src := Source{MAC: testMAC(1)}

	var last State
	for i := 0; i < 10; i++ {
		last = s.RecordRequest(src)
	}
	if last != Allowed {
		t.Fatalf("expected Allowed at score == threshold, got %v", last)
	}
}

func TestRecordRequestAboveThresholdThrottles(t *testing.T) {
	s := New(Config{SuspendThreshold: 10})
	src := Source{MAC: testMAC(2)}

	var last State
	for i := 0; i < 11; i++ {
		last = s.RecordRequest(src)
	}
	if last != Throttled {
		t.Fatalf("expected Throttled once score exceeds threshold, got %v", last)
	}
}

func TestTickDecaysScoreBackToAllowed(t *testing.T) {
	s := New(Config{SuspendThreshold: 10})
	src := Source{MAC: testMAC(3)}

	for i := 0; i < 11; i++ {
		s.RecordRequest(src)
	}
	if got := s.Check(src); got != Throttled {
		t.Fatalf("expected Throttled before decay, got %v", got)
	}

	for i := 0; i < 11; i++ {
		s.Tick()
	}
	if got := s.Check(src); got != Allowed {
		t.Fatalf("expected Allowed after enough ticks decayed the score, got %v", got)
	}
}

func TestBlockHoldsForDuration(t *testing.T) {
	s := New(Config{SuspendThreshold: 10})
	src := Source{MAC: testMAC(4)}

	s.Block(src, 50*time.Millisecond)
	if got := s.Check(src); got != Blocked {
		t.Fatalf("expected Blocked immediately after Block, got %v", got)
	}

	// Ticking alone must not clear an active block before its deadline.
	s.Tick()
	if got := s.Check(src); got != Blocked {
		t.Fatalf("expected still Blocked mid-duration, got %v", got)
	}

	time.Sleep(60 * time.Millisecond)
	if got := s.Check(src); got != Allowed {
		t.Fatalf("expected Allowed after block duration elapsed with zero score, got %v", got)
	}
}

func TestBlockUnauthorizedUsesConfiguredTimeout(t *testing.T) {
	s := New(Config{SuspendThreshold: 10, UnauthorizedClientTimeout: 50 * time.Millisecond})
	src := Source{MAC: testMAC(5)}

	s.BlockUnauthorized(src)
	if got := s.Check(src); got != Blocked {
		t.Fatalf("expected Blocked after BlockUnauthorized, got %v", got)
	}
	time.Sleep(60 * time.Millisecond)
	if got := s.Check(src); got != Allowed {
		t.Fatalf("expected Allowed after unauthorized timeout elapsed, got %v", got)
	}
}

func TestDifferentRelayIPsAreDistinctSources(t *testing.T) {
	s := New(Config{SuspendThreshold: 10})
	mac := testMAC(6)
	srcA := NewSource(mac, []byte{10, 0, 0, 1})
	srcB := NewSource(mac, []byte{10, 0, 0, 2})

	for i := 0; i < 11; i++ {
		s.RecordRequest(srcA)
	}
	if got := s.Check(srcA); got != Throttled {
		t.Fatalf("expected srcA Throttled, got %v", got)
	}
	if got := s.Check(srcB); got != Allowed {
		t.Fatalf("expected srcB unaffected by srcA's score, got %v", got)
	}
}

func TestStatsTracksSourceCount(t *testing.T) {
	s := New(Config{SuspendThreshold: 10})
	if got := s.Stats(); got != 0 {
		t.Fatalf("expected 0 tracked sources initially, got %d", got)
	}
	s.RecordRequest(Source{MAC: testMAC(7)})
	s.RecordRequest(Source{MAC: testMAC(8)})
	if got := s.Stats(); got != 2 {
		t.Fatalf("expected 2 tracked sources, got %d", got)
	}
}

func TestTickPrunesQuiescentSources(t *testing.T) {
	s := New(Config{SuspendThreshold: 10})
	src := Source{MAC: testMAC(9)}
	s.RecordRequest(src)
	if got := s.Stats(); got != 1 {
		t.Fatalf("expected 1 tracked source, got %d", got)
	}
	s.Tick()
	if got := s.Stats(); got != 0 {
		t.Fatalf("expected source pruned after decaying to zero score, got %d", got)
	}
}

func TestNewSourceHandlesIPv4MappedIPv6(t *testing.T) {
	mac := testMAC(10)
	mapped := make([]byte, 16)
	copy(mapped[12:], []byte{192, 0, 2, 1})
	src := NewSource(mac, mapped)
	want := [4]byte{192, 0, 2, 1}
	if src.RelayIP != want {
		t.Fatalf("expected RelayIP %v, got %v", want, src.RelayIP)
	}
}

// Package suspend implements the per-source flood/misbehaviour suppressor
// (spec §4.6): a score per (MAC xor relay_ip) source, decremented by a
// background tick, with ALLOWED/THROTTLED/BLOCKED states. Grounded on
// staticDHCPd's dhcp.py _logDHCPAccess/evaluateAbuse/tick()/
// addToTempBlacklist; the mutex-protected-map-plus-Stats() shape is kept
// from the teacher's ratelimit.go.
package suspend

import (
	"sync"
	"time"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
)

// State is a source's current suspension state.
type State int

const (
	Allowed State = iota
	Throttled
	Blocked
)

func (s State) String() string {
	switch s {
	case Allowed:
		return "allowed"
	case Throttled:
		return "throttled"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Source identifies a suspension tracking key: MAC xor relay IP (spec
// §4.6). Using a fixed-width struct rather than a formatted string keeps
// this allocation-free on the hot path.
type Source struct {
	MAC     backend.MAC
	RelayIP [4]byte
}

type sourceState struct {
	score        int
	blockedUntil time.Time // zero unless State == Blocked
}

// Config holds the two configurable thresholds (spec §4.6/§6.2).
type Config struct {
	SuspendThreshold          int
	MisbehavingTimeout        time.Duration
	UnauthorizedClientTimeout time.Duration
}

// Suspender tracks per-source request scores.
type Suspender struct {
	cfg Config

	mu      sync.Mutex
	sources map[Source]*sourceState
}

// New constructs a Suspender with the given thresholds.
func New(cfg Config) *Suspender {
	if cfg.SuspendThreshold <= 0 {
		cfg.SuspendThreshold = 10
	}
	if cfg.MisbehavingTimeout <= 0 {
		cfg.MisbehavingTimeout = 150 * time.Second
	}
	if cfg.UnauthorizedClientTimeout <= 0 {
		cfg.UnauthorizedClientTimeout = 60 * time.Second
	}
	return &Suspender{cfg: cfg, sources: make(map[Source]*sourceState)}
}

// Check returns the current state for src without recording a request.
func (s *Suspender) Check(src Source) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(src, time.Now())
}

func (s *Suspender) stateLocked(src Source, now time.Time) State {
	st, ok := s.sources[src]
	if !ok {
		return Allowed
	}
	if !st.blockedUntil.IsZero() {
		if now.Before(st.blockedUntil) {
			return Blocked
		}
		// Misbehaving timeout elapsed; re-evaluate against score.
		st.blockedUntil = time.Time{}
	}
	if st.score > s.cfg.SuspendThreshold {
		return Throttled
	}
	return Allowed
}

// RecordRequest increments src's score by 1 (called once per handled
// request, per spec §4.6) and returns the resulting state.
func (s *Suspender) RecordRequest(src Source) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sources[src]
	if !ok {
		st = &sourceState{}
		s.sources[src] = st
	}
	st.score++
	return s.stateLocked(src, time.Now())
}

// Block explicitly marks src BLOCKED for the configured duration (invalid
// packet, failed decode, hook returned None). dur overrides the default
// misbehaving timeout when nonzero — used for the unauthorized-client case,
// which has its own, usually shorter, timeout.
func (s *Suspender) Block(src Source, dur time.Duration) {
	if dur <= 0 {
		dur = s.cfg.MisbehavingTimeout
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sources[src]
	if !ok {
		st = &sourceState{}
		s.sources[src] = st
	}
	st.blockedUntil = time.Now().Add(dur)
}

// BlockUnauthorized marks src BLOCKED for UnauthorizedClientTimeout,
// charged when an unknown-MAC response is sent (spec §4.6).
func (s *Suspender) BlockUnauthorized(src Source) {
	s.Block(src, s.cfg.UnauthorizedClientTimeout)
}

// Tick decrements every nonzero score by 1 (the ~1Hz background tick from
// spec §4.6/§6.3) and prunes sources that have returned to a quiescent,
// unblocked, zero-score state.
func (s *Suspender) Tick() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for src, st := range s.sources {
		if st.score > 0 {
			st.score--
		}
		stillBlocked := !st.blockedUntil.IsZero() && now.Before(st.blockedUntil)
		if !stillBlocked && st.score == 0 {
			delete(s.sources, src)
		}
	}
}

// Stats reports how many sources are currently tracked, mirroring the
// teacher's RateLimiter.Stats() shape.
func (s *Suspender) Stats() (tracked int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// NewSource builds a Source key from a MAC and an optional relay IP
// (nil/unspecified relay IP is encoded as the zero value).
func NewSource(mac backend.MAC, relayIP []byte) Source {
	var src Source
	src.MAC = mac
	if len(relayIP) == 4 {
		copy(src.RelayIP[:], relayIP)
	} else if len(relayIP) == 16 {
		// IPv4-mapped IPv6 form from net.IP; take the last 4 bytes.
		copy(src.RelayIP[:], relayIP[12:16])
	}
	return src
}

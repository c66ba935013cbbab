// Package resolver implements the MAC -> Definition lookup pipeline
// (spec §4.5): cache, then backend, then Hooks.FilterDefinitions for
// disambiguation, then Hooks.HandleUnknownMAC as a last resort. Grounded on
// staticDHCPd's CachingDatabase.lookupMAC and dhcp.py's
// filter_definitions/handle_unknown_mac call sites.
package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/cache"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
)

// Meta carries the request-shape information a hook needs to make a
// decision, independent of the wire packet type (spec §4.5 PacketMeta).
type Meta struct {
	MessageType byte
	CIAddr      net.IP
	RelayIP     net.IP
	Port        int

	// Source is the original wire packet, carried through so a Hooks
	// implementation backed by the full C8 surface (internal/hooks) can
	// call HandleUnknownMAC with its native signature. nil in tests that
	// only exercise FilterDefinitions/HandleUnknownMAC directly.
	Source *dhcp.Packet
}

// Hooks is the subset of the C8 hook surface the resolver calls.
type Hooks interface {
	FilterDefinitions(defs []*backend.Definition, meta Meta) *backend.Definition
	HandleUnknownMAC(meta Meta, mac backend.MAC) *backend.Definition
}

// ErrBadClient is returned when the backend or a hook produced data the
// resolver cannot make sense of (spec §4.5 "BadClient").
var ErrBadClient = errors.New("resolver: bad client")

// Resolver ties a Backend, an optional Cache, and Hooks together.
type Resolver struct {
	Backend backend.Backend
	Cache   *cache.Cache // nil disables caching
	Hooks   Hooks
}

// New constructs a Resolver. cache may be nil.
func New(be backend.Backend, c *cache.Cache, hooks Hooks) *Resolver {
	return &Resolver{Backend: be, Cache: c, Hooks: hooks}
}

// Resolve implements the four-step algorithm from spec §4.5. A nil
// Definition with a nil error means "unknown, no hook produced a binding".
func (r *Resolver) Resolve(mac backend.MAC, meta Meta) (*backend.Definition, error) {
	if r.Cache != nil {
		if def, hit := r.Cache.Lookup(mac); hit {
			return def, nil
		}
	}

	defs, err := r.Backend.Lookup(mac)
	if err != nil {
		// Transient backend failure: degrade to whatever the persistent
		// cache tier knows, rather than failing the request outright
		// (spec §4.4/§7). The check at the top of Resolve already missed,
		// but Store/StoreNegative run concurrently with other requests, so
		// a second look can still turn up an entry written in the interim.
		if r.Cache != nil {
			if def, hit := r.Cache.Lookup(mac); hit {
				slog.Warn("backend lookup failed, serving cached definition", "mac", mac.String(), "error", err)
				return def, nil
			}
		}
		return nil, fmt.Errorf("backend lookup for %s: %w", mac, err)
	}

	def, err := r.disambiguate(defs, meta)
	if err != nil {
		return nil, err
	}

	if def != nil {
		if verr := def.Validate(); verr != nil {
			slog.Error("malformed definition from backend, treating as unknown", "mac", mac.String(), "error", verr)
			def = nil
		}
	}

	if def != nil {
		if r.Cache != nil {
			if serr := r.Cache.Store(mac, def); serr != nil {
				slog.Error("caching definition failed", "mac", mac.String(), "error", serr)
			}
		}
		return def, nil
	}

	// 0 Definitions (or all rejected as malformed): fall back to the
	// unknown-MAC hook.
	if r.Hooks != nil {
		if synthesized := r.Hooks.HandleUnknownMAC(meta, mac); synthesized != nil {
			return synthesized, nil
		}
	}

	if r.Cache != nil {
		r.Cache.StoreNegative(mac)
	}
	return nil, nil
}

// disambiguate reduces defs to at most one Definition. 0 or 1 pass through
// unchanged; >=2 requires Hooks.FilterDefinitions to pick one. Per the
// Open Question in DESIGN.md, a hook that returns >1 candidate's worth of
// ambiguity (nil here, since the interface only allows one) or otherwise
// misbehaves is logged and treated as Unknown.
func (r *Resolver) disambiguate(defs []*backend.Definition, meta Meta) (*backend.Definition, error) {
	switch len(defs) {
	case 0:
		return nil, nil
	case 1:
		return defs[0], nil
	default:
		if r.Hooks == nil {
			slog.Error("backend returned multiple definitions with no FilterDefinitions hook configured", "count", len(defs))
			return nil, nil
		}
		picked := r.Hooks.FilterDefinitions(defs, meta)
		return picked, nil
	}
}

// Reinitialise flushes the cache (if any) and asks the backend to drop any
// state that should not survive a reload.
func (r *Resolver) Reinitialise() error {
	if r.Cache != nil {
		if err := r.Cache.Reinitialise(); err != nil {
			return fmt.Errorf("reinitialising cache: %w", err)
		}
	}
	return r.Backend.Reinitialise()
}

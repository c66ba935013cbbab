// Package backend defines the contract between the resolver and whatever
// external store actually holds client configuration (SQL, key-value,
// flat file, HTTP, or custom). Concrete backends are not part of this
// module; this package is the interface they implement.
package backend

import (
	"errors"
	"fmt"
	"net"

	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

// MAC is re-exported so callers only need to import this package.
type MAC = dhcpv4.MAC

// Definition is the resolver's product for a known client. Immutable once
// constructed; dropped when the request completes.
type Definition struct {
	IP                net.IP
	Hostname          string
	Gateways          []net.IP
	SubnetMask        net.IP
	BroadcastAddress  net.IP
	DomainName        string
	DomainNameServers []net.IP
	NTPServers        []net.IP
	LeaseTime         int64 // seconds
	Subnet            string
	Serial            int64
	Extra             map[string]any
}

// Validate reports whether d is well-formed enough to hand to the engine.
// A malformed Definition from the backend is treated as Unknown (spec §7).
func (d *Definition) Validate() error {
	if d == nil {
		return errors.New("nil definition")
	}
	if d.IP == nil || d.IP.IsUnspecified() {
		return errors.New("definition missing required ip")
	}
	if d.LeaseTime <= 0 {
		return fmt.Errorf("definition has non-positive lease_time %d", d.LeaseTime)
	}
	return nil
}

// Backend is the contract a concrete store implements.
type Backend interface {
	// Lookup resolves a MAC to zero, one, or more candidate Definitions.
	// Returning more than one is legal; the resolver disambiguates via
	// Hooks.FilterDefinitions.
	Lookup(mac MAC) ([]*Definition, error)

	// Reinitialise is called on a control-plane reload; implementations
	// should drop any internal state that should not survive a reload
	// (e.g. a stale file descriptor or connection pool).
	Reinitialise() error
}

// ErrUnavailable is returned by a Backend when it cannot currently serve
// lookups (e.g. the upstream connection is down). The resolver falls back
// to a persistent cache file, if configured, when this is returned.
var ErrUnavailable = errors.New("backend: unavailable")

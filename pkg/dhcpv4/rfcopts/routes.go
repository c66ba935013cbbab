package rfcopts

import dhcpv4 "github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"

// CIDRRoute is re-exported from dhcpv4 so callers of this package never
// need to import both for a single option.
type CIDRRoute = dhcpv4.CIDRRoute

// EncodeClasslessStaticRoutes packs option 121 (RFC 3442) routes. The wire
// format is identical whether the destination is the default route
// (prefix length 0, omitted destination octets) or a concrete subnet, so
// this delegates straight to the shared codec used by the packet layer.
func EncodeClasslessStaticRoutes(routes []CIDRRoute) []byte {
	return dhcpv4.CIDRRoutesToBytes(routes)
}

// DecodeClasslessStaticRoutes unpacks option 121 (RFC 3442).
func DecodeClasslessStaticRoutes(b []byte) ([]CIDRRoute, error) {
	return dhcpv4.BytesToCIDRRoutes(b)
}

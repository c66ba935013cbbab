package rfcopts

import (
	"fmt"
	"net"
	"strings"
)

// SIPServers is the decoded form of option 120 (RFC 3361): either a list of
// IPv4 addresses or a list of FQDNs, never both.
type SIPServers struct {
	Addresses []net.IP
	Names     []string
}

// EncodeSIPServers formats a comma-delimited list of SIP server addresses
// or names into RFC 3361 wire form: a leading mode octet (1 = IPv4s
// follow, 0 = RFC 1035 names follow), then the addresses or names
// themselves. The two forms are mutually exclusive per RFC 3361.
func EncodeSIPServers(commaDelimited string) ([]byte, error) {
	var ipMode, dnsMode bool
	var addrs []net.IP
	var names []string
	for _, raw := range strings.Split(commaDelimited, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		if ip := net.ParseIP(tok); ip != nil && ip.To4() != nil {
			addrs = append(addrs, ip)
			ipMode = true
		} else {
			names = append(names, tok)
			dnsMode = true
		}
	}
	if ipMode == dnsMode {
		return nil, fmt.Errorf("rfc3361: %q contains both IPv4 and DNS-based entries", commaDelimited)
	}

	if ipMode {
		buf := []byte{1}
		for _, ip := range addrs {
			buf = append(buf, ip.To4()...)
		}
		return buf, nil
	}
	encoded, err := EncodeDomainList(strings.Join(names, ","))
	if err != nil {
		return nil, err
	}
	return append([]byte{0}, encoded...), nil
}

// DecodeSIPServers parses RFC 3361 wire form back into SIPServers.
func DecodeSIPServers(b []byte) (*SIPServers, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("rfc3361: empty option")
	}
	mode, rest := b[0], b[1:]
	switch mode {
	case 1:
		if len(rest)%4 != 0 {
			return nil, fmt.Errorf("rfc3361: IPv4 list length %d not a multiple of 4", len(rest))
		}
		out := &SIPServers{}
		for i := 0; i < len(rest); i += 4 {
			out.Addresses = append(out.Addresses, net.IPv4(rest[i], rest[i+1], rest[i+2], rest[i+3]))
		}
		return out, nil
	case 0:
		names, err := DecodeDomainList(rest)
		if err != nil {
			return nil, err
		}
		out := &SIPServers{}
		if names != "" {
			out.Names = strings.Split(names, ",")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("rfc3361: unknown encoding mode %d", mode)
	}
}

package rfcopts

import (
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// MoSEntry pairs a MoS sub-option code (RFC 5678 §4) with its
// comma-delimited address or name list.
type MoSEntry struct {
	Code  byte
	Value string
}

// EncodeMoSIPAddress packs option 139: one or more sub-option-code-plus-
// IPv4-list entries, back to back with no overall length prefix between
// them.
func EncodeMoSIPAddress(entries []MoSEntry) ([]byte, error) {
	var buf []byte
	for _, e := range entries {
		ips, err := parseIPList(e.Value)
		if err != nil {
			return nil, fmt.Errorf("rfc5678: sub-option %d: %w", e.Code, err)
		}
		buf = append(buf, e.Code)
		for _, ip := range ips {
			buf = append(buf, ip.To4()...)
		}
	}
	return buf, nil
}

// DecodeMoSIPAddress unpacks option 139 given the fixed number of IPv4
// addresses carried by each sub-option entry.
func DecodeMoSIPAddress(b []byte, addrCount int) ([]MoSEntry, error) {
	var entries []MoSEntry
	width := addrCount * 4
	i := 0
	for i < len(b) {
		if i+1+width > len(b) {
			return nil, fmt.Errorf("rfc5678: truncated entry at offset %d", i)
		}
		code := b[i]
		i++
		var names []string
		for j := 0; j < width; j += 4 {
			octets := b[i+j : i+j+4]
			names = append(names, net.IPv4(octets[0], octets[1], octets[2], octets[3]).String())
		}
		entries = append(entries, MoSEntry{Code: code, Value: strings.Join(names, ",")})
		i += width
	}
	return entries, nil
}

// EncodeMoSFQDN packs option 140: one or more sub-option-code-plus-RFC1035
// name-sequence entries.
func EncodeMoSFQDN(entries []MoSEntry) ([]byte, error) {
	var buf []byte
	for _, e := range entries {
		packed, err := EncodeDomainList(e.Value)
		if err != nil {
			return nil, fmt.Errorf("rfc5678: sub-option %d: %w", e.Code, err)
		}
		buf = append(buf, e.Code)
		buf = append(buf, packed...)
	}
	return buf, nil
}

// DecodeMoSFQDN unpacks option 140. Each entry is one sub-option code byte
// followed by exactly one RFC 1035 name (self-delimiting via its
// zero-length terminator), so the name's packed length tells us where the
// next entry's code byte begins.
func DecodeMoSFQDN(b []byte) ([]MoSEntry, error) {
	var entries []MoSEntry
	i := 0
	for i < len(b) {
		code := b[i]
		i++
		name, next, err := dns.UnpackDomainName(b, i)
		if err != nil {
			return nil, fmt.Errorf("rfc5678: sub-option %d: %w", code, err)
		}
		entries = append(entries, MoSEntry{Code: code, Value: strings.TrimSuffix(name, ".")})
		i = next
	}
	return entries, nil
}

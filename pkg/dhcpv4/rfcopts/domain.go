package rfcopts

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// EncodeDomainList packs a comma-delimited FQDN list into an RFC 1035
// label sequence with compression, the wire form shared by option 119
// (RFC 3397 domain search), option 88 (RFC 4280 mobility), and option 137
// (RFC 5223 LoST). Each subsequent name may point back into names already
// written, exactly as a real DNS message would compress repeated suffixes.
func EncodeDomainList(commaDelimited string) ([]byte, error) {
	buf := make([]byte, 0, 512)
	buf = append(buf, make([]byte, 512)...)
	off := 0
	compression := map[string]int{}
	for _, raw := range strings.Split(commaDelimited, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if !strings.HasSuffix(name, ".") {
			name += "."
		}
		n, err := dns.PackDomainName(name, buf, off, compression, true)
		if err != nil {
			return nil, fmt.Errorf("rfc1035: packing %q: %w", name, err)
		}
		off = n
	}
	return buf[:off], nil
}

// DecodeDomainList unpacks an RFC 1035 label sequence (with or without
// compression pointers) back into a comma-delimited FQDN list.
func DecodeDomainList(b []byte) (string, error) {
	var names []string
	off := 0
	for off < len(b) {
		name, next, err := dns.UnpackDomainName(b, off)
		if err != nil {
			return "", fmt.Errorf("rfc1035: unpacking at offset %d: %w", off, err)
		}
		names = append(names, strings.TrimSuffix(name, "."))
		if next <= off {
			break
		}
		off = next
	}
	return strings.Join(names, ","), nil
}

package rfcopts

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// ISNS is the decoded form of option 83 (RFC 4174).
type ISNS struct {
	Functions   uint16
	DDAccess    uint16
	AdminFlags  uint16
	Security    uint32
	ServerAddrs []net.IP
}

// EncodeISNS packs an ISNS value: three 16-bit fields, one 32-bit field,
// then a trailing list of IPv4 server addresses.
func EncodeISNS(v ISNS) []byte {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint16(buf[0:2], v.Functions)
	binary.BigEndian.PutUint16(buf[2:4], v.DDAccess)
	binary.BigEndian.PutUint16(buf[4:6], v.AdminFlags)
	binary.BigEndian.PutUint32(buf[6:10], v.Security)
	for _, ip := range v.ServerAddrs {
		ip4 := ip.To4()
		if ip4 == nil {
			continue
		}
		buf = append(buf, ip4...)
	}
	return buf
}

// DecodeISNS unpacks option 83.
func DecodeISNS(b []byte) (*ISNS, error) {
	if len(b) < 10 {
		return nil, fmt.Errorf("rfc4174: option length %d shorter than fixed header of 10", len(b))
	}
	rest := b[10:]
	if len(rest)%4 != 0 {
		return nil, fmt.Errorf("rfc4174: trailing address list length %d not a multiple of 4", len(rest))
	}
	v := &ISNS{
		Functions:  binary.BigEndian.Uint16(b[0:2]),
		DDAccess:   binary.BigEndian.Uint16(b[2:4]),
		AdminFlags: binary.BigEndian.Uint16(b[4:6]),
		Security:   binary.BigEndian.Uint32(b[6:10]),
	}
	for i := 0; i < len(rest); i += 4 {
		v.ServerAddrs = append(v.ServerAddrs, net.IPv4(rest[i], rest[i+1], rest[i+2], rest[i+3]))
	}
	return v, nil
}

func parseIPList(commaDelimited string) ([]net.IP, error) {
	var ips []net.IP
	for _, raw := range strings.Split(commaDelimited, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		ip := net.ParseIP(tok)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("invalid IPv4 address %q", tok)
		}
		ips = append(ips, ip)
	}
	return ips, nil
}

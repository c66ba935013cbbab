// Package rfcopts implements the encode/decode pair for every RFC-specific
// DHCP option sub-codec named by the wire spec: 3046 (82), 3361 (120), 3397
// (119), 3442 (121), 3925 (124, 125), 4174 (83), 4280 (88), 5223 (137), 5678
// (139, 140). Each is a field-for-field port of
// libpydhcpserver.dhcp_types.rfc's equivalent encoder/decoder.
package rfcopts

import (
	"fmt"
	"net"
)

// RelayAgentInfo is the RFC 3046 sub-option set carried in option 82, with
// the RFC 3527 link-selection sub-option folded in since relays that send
// one nearly always send both.
type RelayAgentInfo struct {
	CircuitID  []byte
	RemoteID   []byte
	LinkSelect net.IP // RFC 3527 sub-option 5
	Raw        map[byte][]byte
}

const (
	subOptCircuitID  = 1
	subOptRemoteID   = 2
	subOptLinkSelect = 5
)

// DecodeRelayAgentInfo extracts RFC 3046 sub-options (id, length, value)
// from option 82's raw bytes.
func DecodeRelayAgentInfo(b []byte) (*RelayAgentInfo, error) {
	info := &RelayAgentInfo{Raw: map[byte][]byte{}}
	i := 0
	for i < len(b) {
		if i+2 > len(b) {
			return nil, fmt.Errorf("rfc3046: truncated sub-option header at offset %d", i)
		}
		id := b[i]
		length := int(b[i+1])
		i += 2
		if i+length > len(b) {
			return nil, fmt.Errorf("rfc3046: truncated sub-option %d at offset %d", id, i)
		}
		value := b[i : i+length]
		i += length

		info.Raw[id] = append([]byte(nil), value...)
		switch id {
		case subOptCircuitID:
			info.CircuitID = append([]byte(nil), value...)
		case subOptRemoteID:
			info.RemoteID = append([]byte(nil), value...)
		case subOptLinkSelect:
			if len(value) == 4 {
				info.LinkSelect = net.IPv4(value[0], value[1], value[2], value[3])
			}
		}
	}
	return info, nil
}

// EncodeRelayAgentInfo serializes a RelayAgentInfo back to RFC 3046 wire
// form, circuit-id first, then remote-id, then link-select.
func EncodeRelayAgentInfo(info *RelayAgentInfo) []byte {
	var buf []byte
	if len(info.CircuitID) > 0 {
		buf = append(buf, subOptCircuitID, byte(len(info.CircuitID)))
		buf = append(buf, info.CircuitID...)
	}
	if len(info.RemoteID) > 0 {
		buf = append(buf, subOptRemoteID, byte(len(info.RemoteID)))
		buf = append(buf, info.RemoteID...)
	}
	if ip4 := info.LinkSelect.To4(); ip4 != nil {
		buf = append(buf, subOptLinkSelect, 4)
		buf = append(buf, ip4...)
	}
	return buf
}

package dhcp

import (
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4/rfcopts"
)

// RelayAgentInfo is the Option 82 (RFC 3046) sub-option set, re-exported
// from rfcopts so callers working with a Packet never need the rfcopts
// import directly.
type RelayAgentInfo = rfcopts.RelayAgentInfo

// GetRelayInfo extracts and decodes a packet's Option 82, returning nil if
// the option is absent or malformed.
func GetRelayInfo(pkt *Packet) *RelayAgentInfo {
	data, ok := pkt.Options[dhcpv4.OptionRelayAgentInfo]
	if !ok {
		return nil
	}
	info, err := rfcopts.DecodeRelayAgentInfo(data)
	if err != nil {
		return nil
	}
	return info
}

// SetRelayInfo encodes a RelayAgentInfo into a packet's Option 82.
func SetRelayInfo(pkt *Packet, info *RelayAgentInfo) {
	pkt.Options[dhcpv4.OptionRelayAgentInfo] = rfcopts.EncodeRelayAgentInfo(info)
}

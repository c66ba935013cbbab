// Package dhcp implements the DHCPv4 wire codec (spec §4.1): packet
// decode/encode, BOOTP option-overload handling, and relay-agent-info
// helpers. Transport lives in internal/netlink and decisioning in
// internal/engine.
package dhcp

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

// defaultMTU is the assumed path MTU used to decide whether options need
// to be relocated into sname/file or dropped (RFC 2131 §4.1). 1500 is the
// Ethernet MTU; the 28-byte allowance covers IPv4 + UDP headers.
const defaultMTU = dhcpv4.MaxPacketSize - 28

// minimumRequiredOptions must never be dropped by the MTU fallback: without
// them a client cannot classify the reply at all.
var minimumRequiredOptions = map[dhcpv4.OptionCode]bool{
	dhcpv4.OptionDHCPMessageType:  true,
	dhcpv4.OptionServerIdentifier: true,
	dhcpv4.OptionSubnetMask:       true,
	dhcpv4.OptionIPLeaseTime:      true,
	dhcpv4.OptionRenewalTime:      true,
	dhcpv4.OptionRebindingTime:    true,
}

// Packet represents a decoded DHCPv4 packet (RFC 2131 §2).
type Packet struct {
	Op      dhcpv4.OpCode       // Message op code: 1=BOOTREQUEST, 2=BOOTREPLY
	HType   dhcpv4.HardwareType // Hardware address type (1=Ethernet)
	HLen    byte                // Hardware address length (6 for Ethernet)
	Hops    byte                // Relay hops
	XID     uint32              // Transaction ID
	Secs    uint16              // Seconds elapsed
	Flags   uint16              // Flags (bit 0 = broadcast)
	CIAddr  net.IP              // Client IP address
	YIAddr  net.IP              // 'Your' (client) IP address
	SIAddr  net.IP              // Next server IP address
	GIAddr  net.IP              // Relay agent IP address
	CHAddr  net.HardwareAddr    // Client hardware address
	SName   [64]byte            // Server host name
	File    [128]byte           // Boot file name
	Options Options             // DHCP options

	// ReceivingInterface is set by the server to indicate which network
	// interface this packet arrived on. Not part of the wire format.
	ReceivingInterface string
}

// packetPool reuses packet buffers to reduce allocations in the hot path.
var packetPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, dhcpv4.MaxPacketSize)
	},
}

// GetBuffer returns a buffer from the pool.
func GetBuffer() []byte {
	return packetPool.Get().([]byte)
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(b []byte) {
	// Reset the buffer before returning
	for i := range b {
		b[i] = 0
	}
	packetPool.Put(b)
}

// DecodePacket parses a raw DHCPv4 packet from bytes.
// RFC 2131 §2 — packet format.
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < 240 {
		return nil, fmt.Errorf("packet too short: %d bytes (minimum 240)", len(data))
	}

	p := &Packet{}
	p.Op = dhcpv4.OpCode(data[0])
	p.HType = dhcpv4.HardwareType(data[1])
	p.HLen = data[2]
	p.Hops = data[3]
	p.XID = binary.BigEndian.Uint32(data[4:8])
	p.Secs = binary.BigEndian.Uint16(data[8:10])
	p.Flags = binary.BigEndian.Uint16(data[10:12])
	p.CIAddr = net.IP(make([]byte, 4))
	copy(p.CIAddr, data[12:16])
	p.YIAddr = net.IP(make([]byte, 4))
	copy(p.YIAddr, data[16:20])
	p.SIAddr = net.IP(make([]byte, 4))
	copy(p.SIAddr, data[20:24])
	p.GIAddr = net.IP(make([]byte, 4))
	copy(p.GIAddr, data[24:28])

	// Client hardware address (16 bytes in header, but only HLen are significant)
	chaddr := make([]byte, 16)
	copy(chaddr, data[28:44])
	if p.HLen <= 16 {
		p.CHAddr = net.HardwareAddr(chaddr[:p.HLen])
	} else {
		p.CHAddr = net.HardwareAddr(chaddr[:6])
	}

	copy(p.SName[:], data[44:108])
	copy(p.File[:], data[108:236])

	// Validate magic cookie (RFC 2131 §3)
	if len(data) >= 240 {
		cookie := data[236:240]
		if cookie[0] != 99 || cookie[1] != 130 || cookie[2] != 83 || cookie[3] != 99 {
			return nil, fmt.Errorf("invalid DHCP magic cookie: %v", cookie)
		}
	}

	// Parse options
	if len(data) > 240 {
		opts, err := DecodeOptions(data[240:])
		if err != nil {
			return nil, fmt.Errorf("decoding options: %w", err)
		}
		p.Options = opts
	} else {
		p.Options = make(Options)
	}

	// BOOTP overload (RFC 2131 §4.1, option 52): bit 0 means extra options
	// continue into file, bit 1 means they continue into sname. A claimed
	// region that turns out empty is logged and treated as present-but-
	// empty rather than a decode failure.
	if overload, ok := p.Options[dhcpv4.OptionOverload]; ok && len(overload) == 1 {
		if overload[0]&0x01 != 0 {
			if err := p.mergeOverloadOptions(p.File[:]); err != nil {
				return nil, fmt.Errorf("decoding file-overloaded options: %w", err)
			}
		}
		if overload[0]&0x02 != 0 {
			if err := p.mergeOverloadOptions(p.SName[:]); err != nil {
				return nil, fmt.Errorf("decoding sname-overloaded options: %w", err)
			}
		}
	}

	return p, nil
}

// mergeOverloadOptions decodes a TLV option sequence out of the sname or
// file field and merges it into p.Options, keeping the first occurrence of
// any option code already present.
func (p *Packet) mergeOverloadOptions(region []byte) error {
	extra, err := DecodeOptions(region)
	if err != nil {
		return err
	}
	if len(extra) == 0 {
		slog.Warn("option overload claims a region that holds no options")
	}
	for code, value := range extra {
		if _, exists := p.Options[code]; !exists {
			p.Options[code] = value
		}
	}
	return nil
}

// Encode serializes a DHCPv4 packet to bytes, relocating or dropping
// options as needed to fit within defaultMTU (RFC 2131 §4.1).
func (p *Packet) Encode() ([]byte, error) {
	opts, sname, file := p.optionsForWire()
	optBytes := opts.Encode()
	for 240+len(optBytes) > defaultMTU && len(opts) > 0 {
		if dropped := dropLargestOption(opts); !dropped {
			break
		}
		optBytes = opts.Encode()
	}

	totalLen := 240 + len(optBytes)
	if totalLen < dhcpv4.MinPacketSize {
		totalLen = dhcpv4.MinPacketSize
	}

	buf := make([]byte, totalLen)
	buf[0] = byte(p.Op)
	buf[1] = byte(p.HType)
	buf[2] = p.HLen
	buf[3] = p.Hops
	binary.BigEndian.PutUint32(buf[4:8], p.XID)
	binary.BigEndian.PutUint16(buf[8:10], p.Secs)
	binary.BigEndian.PutUint16(buf[10:12], p.Flags)

	if p.CIAddr != nil {
		copy(buf[12:16], p.CIAddr.To4())
	}
	if p.YIAddr != nil {
		copy(buf[16:20], p.YIAddr.To4())
	}
	if p.SIAddr != nil {
		copy(buf[20:24], p.SIAddr.To4())
	}
	if p.GIAddr != nil {
		copy(buf[24:28], p.GIAddr.To4())
	}
	if p.CHAddr != nil {
		copy(buf[28:44], p.CHAddr)
	}
	copy(buf[44:108], sname[:])
	copy(buf[108:236], file[:])

	// Magic cookie
	copy(buf[236:240], dhcpv4.MagicCookie)

	// Options
	copy(buf[240:], optBytes)

	return buf, nil
}

// optionsForWire returns the option set and sname/file fields to actually
// serialize, relocating options 66/67 into sname/file and setting the
// overload option (52) when the unmodified option set would not fit in
// defaultMTU.
func (p *Packet) optionsForWire() (Options, [64]byte, [128]byte) {
	opts := p.Options.Clone()
	sname := p.SName
	file := p.File

	base := opts.Encode()
	if 240+len(base) <= defaultMTU {
		return opts, sname, file
	}

	var overload byte
	if v, ok := opts[dhcpv4.OptionBootfileName]; ok && len(v) <= len(file) {
		delete(opts, dhcpv4.OptionBootfileName)
		file = [128]byte{}
		copy(file[:], v)
		overload |= 0x01
	}
	if v, ok := opts[dhcpv4.OptionTFTPServerName]; ok && len(v) <= len(sname) {
		delete(opts, dhcpv4.OptionTFTPServerName)
		sname = [64]byte{}
		copy(sname[:], v)
		overload |= 0x02
	}
	if overload != 0 {
		opts[dhcpv4.OptionOverload] = []byte{overload}
	}
	return opts, sname, file
}

// dropLargestOption removes the largest non-essential option from opts to
// make room under the MTU budget, logging what was sacrificed. Returns
// false if nothing could be dropped.
func dropLargestOption(opts Options) bool {
	var largest dhcpv4.OptionCode
	var largestLen = -1
	for code, value := range opts {
		if minimumRequiredOptions[code] || code == dhcpv4.OptionOverload {
			continue
		}
		if len(value) > largestLen {
			largest = code
			largestLen = len(value)
		}
	}
	if largestLen < 0 {
		return false
	}
	slog.Warn("dropping oversized DHCP option to fit MTU", "option", largest, "bytes", largestLen)
	delete(opts, largest)
	return true
}

// MessageType returns the DHCP message type from the packet options.
func (p *Packet) MessageType() dhcpv4.MessageType {
	if data, ok := p.Options[dhcpv4.OptionDHCPMessageType]; ok && len(data) == 1 {
		return dhcpv4.MessageType(data[0])
	}
	return 0
}

// RequestedIP returns the requested IP address from option 50.
func (p *Packet) RequestedIP() net.IP {
	if data, ok := p.Options[dhcpv4.OptionRequestedIP]; ok && len(data) == 4 {
		return net.IP(data)
	}
	return nil
}

// ServerIdentifier returns the server identifier from option 54.
func (p *Packet) ServerIdentifier() net.IP {
	if data, ok := p.Options[dhcpv4.OptionServerIdentifier]; ok && len(data) == 4 {
		return net.IP(data)
	}
	return nil
}

// ClientIdentifier returns the client identifier from option 61.
func (p *Packet) ClientIdentifier() []byte {
	if data, ok := p.Options[dhcpv4.OptionClientIdentifier]; ok {
		return data
	}
	return nil
}

// Hostname returns the hostname from option 12.
func (p *Packet) Hostname() string {
	if data, ok := p.Options[dhcpv4.OptionHostname]; ok {
		return string(data)
	}
	return ""
}

// ParameterRequestList returns the list of requested option codes.
func (p *Packet) ParameterRequestList() []dhcpv4.OptionCode {
	if data, ok := p.Options[dhcpv4.OptionParameterRequestList]; ok {
		codes := make([]dhcpv4.OptionCode, len(data))
		for i, b := range data {
			codes[i] = dhcpv4.OptionCode(b)
		}
		return codes
	}
	return nil
}

// IsBroadcast returns true if the broadcast flag is set.
func (p *Packet) IsBroadcast() bool {
	return p.Flags&0x8000 != 0
}

// IsRelayed returns true if the packet was relayed (GIAddr is non-zero).
func (p *Packet) IsRelayed() bool {
	return p.GIAddr != nil && !p.GIAddr.Equal(net.IPv4zero)
}

// NewReply creates a response packet from a request, with common fields pre-filled.
func (p *Packet) NewReply(msgType dhcpv4.MessageType, serverIP net.IP) *Packet {
	reply := &Packet{
		Op:      dhcpv4.OpCodeBootReply,
		HType:   p.HType,
		HLen:    p.HLen,
		Hops:    0,
		XID:     p.XID,
		Secs:    0,
		Flags:   p.Flags,
		CIAddr:  net.IPv4zero,
		YIAddr:  net.IPv4zero,
		SIAddr:  serverIP,
		GIAddr:  make(net.IP, 4),
		CHAddr:  make(net.HardwareAddr, len(p.CHAddr)),
		Options: make(Options),
	}
	if gi := p.GIAddr.To4(); gi != nil {
		copy(reply.GIAddr, gi)
	} else {
		copy(reply.GIAddr, p.GIAddr)
	}
	copy(reply.CHAddr, p.CHAddr)

	// RFC 2131 §4.3.1 — set message type
	reply.Options[dhcpv4.OptionDHCPMessageType] = []byte{byte(msgType)}
	// RFC 2131 §4.3.1 — set server identifier
	reply.Options[dhcpv4.OptionServerIdentifier] = dhcpv4.IPToBytes(serverIP)

	// RFC 6842 — echo client-id back in responses
	if clientID := p.ClientIdentifier(); clientID != nil {
		reply.Options[dhcpv4.OptionClientIdentifier] = clientID
	}

	return reply
}

// VendorClassID returns the vendor class identifier from option 60.
func (p *Packet) VendorClassID() string {
	if data, ok := p.Options[dhcpv4.OptionVendorClassID]; ok {
		return string(data)
	}
	return ""
}

// UserClassID returns the user class identifier from option 77 (RFC 3004).
func (p *Packet) UserClassID() string {
	if data, ok := p.Options[dhcpv4.OptionUserClass]; ok {
		return string(data)
	}
	return ""
}

// MaxMessageSize returns the maximum DHCP message size from option 57.
func (p *Packet) MaxMessageSize() uint16 {
	if data, ok := p.Options[dhcpv4.OptionMaxDHCPMessageSize]; ok && len(data) == 2 {
		return binary.BigEndian.Uint16(data)
	}
	return 0
}

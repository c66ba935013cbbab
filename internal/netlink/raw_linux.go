//go:build linux

package netlink

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"syscall"
)

// linuxRawSender crafts raw Ethernet+IP+UDP frames over an AF_PACKET
// socket, grounded on pdhcp's raw_linux.go RawConn — the socket/bind
// mechanics are kept, the frame construction is rewritten to build full
// outbound frames (the original only needed framing for reads) and to
// support a nested 802.1Q tag stack (spec §4.2).
type linuxRawSender struct {
	handle int
	conn   *os.File
	ifIdx  int
	mac    net.HardwareAddr
	ip     net.IP
}

func openRawSender(ifaceName string) (rawSender, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("looking up interface %s: %w", ifaceName, err)
	}
	if iface.HardwareAddr == nil {
		return nil, fmt.Errorf("interface %s has no hardware address", ifaceName)
	}

	ethPAll := int(htons(syscall.ETH_P_ALL))
	handle, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_RAW, ethPAll)
	if err != nil {
		return nil, fmt.Errorf("opening AF_PACKET socket: %w", err)
	}
	if err := syscall.SetNonblock(handle, true); err != nil {
		syscall.Close(handle)
		return nil, fmt.Errorf("setting non-blocking: %w", err)
	}
	if err := syscall.Bind(handle, &syscall.SockaddrLinklayer{
		Protocol: uint16(ethPAll),
		Ifindex:  iface.Index,
	}); err != nil {
		syscall.Close(handle)
		return nil, fmt.Errorf("binding to interface %s: %w", ifaceName, err)
	}

	var localIP net.IP
	if addrs, err := iface.Addrs(); err == nil {
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.To4() != nil {
				localIP = ipNet.IP.To4()
				break
			}
		}
	}

	return &linuxRawSender{
		handle: handle,
		conn:   os.NewFile(uintptr(handle), "resolvdhcpd-raw"),
		ifIdx:  iface.Index,
		mac:    iface.HardwareAddr,
		ip:     localIP,
	}, nil
}

func (s *linuxRawSender) Identity() (net.HardwareAddr, net.IP) {
	return s.mac, s.ip
}

func (s *linuxRawSender) Close() error {
	return s.conn.Close()
}

// Send builds an Ethernet (with an optional nested 802.1Q stack) + IPv4 +
// UDP frame and writes it directly to the wire (spec §4.2 transmission
// path 4). EtherType 0x0800 for the innermost frame, 0x8100 per tag layer,
// preserving nested order head-first.
func (s *linuxRawSender) Send(dstMAC, srcMAC net.HardwareAddr, srcIP, dstIP net.IP, srcPort, dstPort int, payload []byte, tags []QTag) error {
	if srcMAC == nil {
		srcMAC = s.mac
	}
	if srcIP == nil {
		srcIP = s.ip
	}

	udp := buildUDP(srcIP, dstIP, srcPort, dstPort, payload)
	ip := buildIPv4(srcIP, dstIP, udp)
	frame := buildEthernet(dstMAC, srcMAC, tags, ip)

	addr := &syscall.SockaddrLinklayer{Ifindex: s.ifIdx, Halen: 6}
	copy(addr.Addr[:6], dstMAC)

	return syscall.Sendto(s.handle, frame, 0, addr)
}

func buildEthernet(dst, src net.HardwareAddr, tags []QTag, payload []byte) []byte {
	out := make([]byte, 0, 14+4*len(tags)+len(payload))
	out = append(out, dst[:6]...)
	out = append(out, src[:6]...)
	for _, t := range tags {
		out = append(out, 0x81, 0x00)
		tci := uint16(t.PCP&0x7)<<13 | uint16(t.VID&0x0fff)
		if t.DEI {
			tci |= 1 << 12
		}
		out = append(out, byte(tci>>8), byte(tci))
	}
	out = append(out, 0x08, 0x00) // EtherType IPv4
	out = append(out, payload...)
	return out
}

func buildIPv4(src, dst net.IP, payload []byte) []byte {
	hdr := make([]byte, 20)
	hdr[0] = 0x45 // version 4, IHL 5
	hdr[1] = 0x00
	totalLen := 20 + len(payload)
	binary.BigEndian.PutUint16(hdr[2:], uint16(totalLen))
	binary.BigEndian.PutUint16(hdr[4:], 0) // identification
	hdr[6] = 0x40                          // don't fragment
	hdr[8] = 64                            // TTL
	hdr[9] = syscall.IPPROTO_UDP
	copy(hdr[12:16], src.To4())
	copy(hdr[16:20], dst.To4())
	binary.BigEndian.PutUint16(hdr[10:], ipv4Checksum(hdr))
	return append(hdr, payload...)
}

func buildUDP(src, dst net.IP, srcPort, dstPort int, payload []byte) []byte {
	hdr := make([]byte, 8)
	binary.BigEndian.PutUint16(hdr[0:], uint16(srcPort))
	binary.BigEndian.PutUint16(hdr[2:], uint16(dstPort))
	binary.BigEndian.PutUint16(hdr[4:], uint16(8+len(payload)))
	seg := append(hdr, payload...)

	// UDP checksum over the IPv4 pseudo-header (source, destination, zero,
	// protocol, UDP length) and the segment, padded to an even length.
	pseudo := make([]byte, 12, 12+len(seg)+1)
	copy(pseudo[0:4], src.To4())
	copy(pseudo[4:8], dst.To4())
	pseudo[9] = syscall.IPPROTO_UDP
	binary.BigEndian.PutUint16(pseudo[10:], uint16(len(seg)))
	pseudo = append(pseudo, seg...)
	if len(pseudo)%2 == 1 {
		pseudo = append(pseudo, 0)
	}
	csum := ipv4Checksum(pseudo)
	if csum == 0 {
		csum = 0xffff // a computed 0 is sent as all ones (RFC 768)
	}
	binary.BigEndian.PutUint16(seg[6:], csum)
	return seg
}

func ipv4Checksum(hdr []byte) uint16 {
	var sum uint32
	for i := 0; i < len(hdr); i += 2 {
		sum += uint32(hdr[i])<<8 | uint32(hdr[i+1])
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}

func htons(v int) uint16 {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(v))
	return binary.LittleEndian.Uint16(b)
}

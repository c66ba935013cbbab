// Package netlink implements the transport layer (spec §4.2): binding the
// server/client/proxy UDP endpoints, admitting inbound packets past the
// unspecified-source filter, and choosing among L3-unicast, L3-broadcast,
// and L2-raw transmission for each response. Grounded on the deleted
// internal/dhcp/server.go's goroutine-per-packet receive loop, generalized
// from one UDP socket to the spec's three-endpoint-plus-optional-L2 model.
package netlink

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/internal/metrics"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
)

// QTag is one 802.1Q tag in a (possibly nested) tag stack.
type QTag struct {
	PCP int
	DEI bool
	VID int
}

// Config describes the endpoints to bind (spec §4.2/§6.2).
type Config struct {
	ServerIP          net.IP
	ServerPort        int // default 67
	ClientPort        int // default 68, send-only
	ProxyPort         int // 0 disables the PXE/ProxyDHCP endpoint
	ResponseInterface string
	ResponseQTags     []QTag
}

// Received is one admitted inbound datagram (spec §4.2 "Reception").
type Received struct {
	Data          []byte
	SourceIP      net.IP
	SourcePort    int
	ReceivedOn    int // the local port the packet arrived on (server or proxy)
	ReceivedOnPXE bool
}

// Handler processes one Received packet and optionally returns a reply to
// transmit back via Send.
type Handler func(ctx context.Context, r Received) (*dhcp.Packet, bool)

// NetLink owns the bound sockets and the optional raw L2 sender.
type NetLink struct {
	cfg Config

	serverConn *net.UDPConn
	proxyConn  *net.UDPConn
	raw        rawSender // nil if ResponseInterface is unset or unsupported

	wg   sync.WaitGroup
	done chan struct{}
}

// rawSender is the L2 transmission path (spec §4.2 path 4), implemented
// per-platform; see raw_linux.go / raw_other.go.
type rawSender interface {
	Send(dstMAC net.HardwareAddr, srcMAC net.HardwareAddr, srcIP, dstIP net.IP, srcPort, dstPort int, payload []byte, tags []QTag) error
	// Identity returns the interface's own MAC and IP, used to fill in the
	// frame's Ethernet source and IP source when not explicitly provided.
	Identity() (mac net.HardwareAddr, ip net.IP)
	Close() error
}

// Open binds the server endpoint, the optional proxy endpoint, and the
// optional raw L2 socket.
func Open(cfg Config) (*NetLink, error) {
	if cfg.ServerPort == 0 {
		cfg.ServerPort = dhcpv4.ServerPort
	}
	if cfg.ClientPort == 0 {
		cfg.ClientPort = dhcpv4.ClientPort
	}

	nl := &NetLink{cfg: cfg, done: make(chan struct{})}

	serverAddr := &net.UDPAddr{IP: cfg.ServerIP, Port: cfg.ServerPort}
	conn, err := net.ListenUDP("udp4", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("binding server port %d: %w", cfg.ServerPort, err)
	}
	nl.serverConn = conn

	if cfg.ProxyPort != 0 {
		proxyAddr := &net.UDPAddr{IP: cfg.ServerIP, Port: cfg.ProxyPort}
		pconn, err := net.ListenUDP("udp4", proxyAddr)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("binding proxy port %d: %w", cfg.ProxyPort, err)
		}
		nl.proxyConn = pconn
	}

	if cfg.ResponseInterface != "" {
		raw, err := openRawSender(cfg.ResponseInterface)
		if err != nil {
			nl.Close()
			return nil, fmt.Errorf("opening raw L2 socket on %s: %w", cfg.ResponseInterface, err)
		}
		nl.raw = raw
	}

	return nl, nil
}

// Close releases every bound socket.
func (nl *NetLink) Close() error {
	close(nl.done)
	if nl.serverConn != nil {
		nl.serverConn.Close()
	}
	if nl.proxyConn != nil {
		nl.proxyConn.Close()
	}
	if nl.raw != nil {
		nl.raw.Close()
	}
	nl.wg.Wait()
	return nil
}

// Serve runs the receive loops (one goroutine per bound socket, per spec
// §5's "one thread per bound socket reads packets") until ctx is canceled
// or Close is called. handler is invoked once per admitted packet.
func (nl *NetLink) Serve(ctx context.Context, handler Handler) {
	nl.wg.Add(1)
	go nl.receiveLoop(ctx, nl.serverConn, nl.cfg.ServerPort, false, handler)

	if nl.proxyConn != nil {
		nl.wg.Add(1)
		go nl.receiveLoop(ctx, nl.proxyConn, nl.cfg.ProxyPort, true, handler)
	}
}

func (nl *NetLink) receiveLoop(ctx context.Context, conn *net.UDPConn, localPort int, isPXE bool, handler Handler) {
	defer nl.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-nl.done:
			return
		default:
		}

		buf := dhcp.GetBuffer()
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			dhcp.PutBuffer(buf)
			select {
			case <-nl.done:
				return
			case <-ctx.Done():
				return
			default:
			}
			slog.Error("reading UDP packet", "port", localPort, "error", err)
			continue
		}

		if !admitted(src.IP) {
			dhcp.PutBuffer(buf)
			metrics.PacketsDropped.WithLabelValues("unspecified_source").Inc()
			continue
		}

		nl.wg.Add(1)
		go func(data []byte, length int, src *net.UDPAddr) {
			defer nl.wg.Done()
			defer dhcp.PutBuffer(data)

			r := Received{
				Data:          data[:length],
				SourceIP:      src.IP,
				SourcePort:    src.Port,
				ReceivedOn:    localPort,
				ReceivedOnPXE: isPXE,
			}
			reply, ok := handler(ctx, r)
			if !ok || reply == nil {
				return
			}
			if err := nl.Send(reply, isPXE); err != nil {
				slog.Error("sending reply", "error", err, "mac", reply.CHAddr.String())
			}
		}(buf, n, src)
	}
}

// admitted implements IP_UNSPECIFIED_FILTER (spec §4.2): only
// 255.255.255.255 is rejected as a source address; 0.0.0.0 is admitted,
// since a client still in INIT legitimately sends from it.
func admitted(src net.IP) bool {
	return !src.Equal(net.IPv4bcast)
}

// Send implements the four-path transmission choice of spec §4.2. fromPXE
// selects the proxy port as the source port instead of the server port,
// per "on PXE/proxy ports the rules are identical except the source port
// is the proxy port".
func (nl *NetLink) Send(reply *dhcp.Packet, fromPXE bool) error {
	srcPort := nl.cfg.ServerPort
	if fromPXE {
		srcPort = nl.cfg.ProxyPort
	}

	payload, err := reply.Encode()
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}

	conn := nl.serverConn
	if fromPXE && nl.proxyConn != nil {
		conn = nl.proxyConn
	}

	switch {
	case reply.GIAddr != nil && !reply.GIAddr.Equal(net.IPv4zero):
		return nl.sendL3(conn, payload, reply.GIAddr, nl.cfg.ServerPort, reply)

	case canUnicastToCIAddr(reply) && reply.CIAddr != nil && !reply.CIAddr.Equal(net.IPv4zero):
		return nl.sendL3(conn, payload, reply.CIAddr, nl.cfg.ClientPort, reply)

	case reply.IsBroadcast() || reply.YIAddr == nil || reply.YIAddr.Equal(net.IPv4zero):
		return nl.sendL3(conn, payload, net.IPv4bcast, nl.cfg.ClientPort, reply)

	default:
		if nl.raw == nil {
			return nl.sendL3(conn, payload, net.IPv4bcast, nl.cfg.ClientPort, reply)
		}
		dstMAC := reply.CHAddr
		srcMAC, srcIP := nl.raw.Identity()
		if err := nl.raw.Send(dstMAC, srcMAC, srcIP, reply.YIAddr, srcPort, nl.cfg.ClientPort, payload, nl.cfg.ResponseQTags); err != nil {
			slog.Warn("raw L2 send failed, falling back to L3 broadcast", "error", err)
			return nl.sendL3(conn, payload, net.IPv4bcast, nl.cfg.ClientPort, reply)
		}
		return nil
	}
}

// canUnicastToCIAddr reports whether the RFC permits unicasting this reply
// to the client's ciaddr (ACK to RENEW, ACK to INFORM — spec §4.2 path 2).
func canUnicastToCIAddr(reply *dhcp.Packet) bool {
	return reply.MessageType() == dhcpv4.MessageTypeAck
}

// sendL3 transmits payload and retries once on failure (spec §7: "socket
// send failure -> retry once").
func (nl *NetLink) sendL3(conn *net.UDPConn, payload []byte, ip net.IP, port int, reply *dhcp.Packet) error {
	dst := &net.UDPAddr{IP: ip, Port: port}
	_, err := conn.WriteToUDP(payload, dst)
	if err != nil {
		_, err = conn.WriteToUDP(payload, dst)
	}
	if err != nil {
		metrics.PacketErrors.WithLabelValues("send").Inc()
		return fmt.Errorf("writing to %s: %w", dst, err)
	}
	metrics.PacketsSent.WithLabelValues(reply.MessageType().String()).Inc()
	return nil
}

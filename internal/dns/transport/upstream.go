// Package transport binds the resolver's two UDP sockets (spec §5): one
// upstream socket used for every authoritative-server hop, and one
// client-facing socket that serializes incoming client datagrams.
package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/haloarc/iterdns/internal/dns/common/log"
)

// dnsPort is the standard port authoritative DNS servers listen on.
const dnsPort = "53"

// UDPUpstream sends a query to a single upstream server and waits up to
// timeout for a reply. It satisfies resolver.Upstreamer. A single
// PacketConn is opened by NewUDPUpstream and reused across hops and across client
// queries: spec §5 binds exactly one upstream socket for the process's
// lifetime, relying on the at-most-one-in-flight invariant rather than
// per-hop sockets or transaction-ID matching.
type UDPUpstream struct {
	conn   net.PacketConn
	port   string
	logger log.Logger
}

// NewUDPUpstream opens the upstream-facing UDP socket. The local address
// is chosen by the kernel; only the destination varies per Query call.
func NewUDPUpstream(logger log.Logger) (*UDPUpstream, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("opening upstream socket: %w", err)
	}
	return &UDPUpstream{conn: conn, port: dnsPort, logger: logger}, nil
}

// Query writes payload to serverIP:53 and waits up to timeout for a
// reply datagram. Per spec §5, ordering is trusted: the single reply
// received is assumed to answer the query just sent, since at most one
// client query is ever in flight.
func (u *UDPUpstream) Query(serverIP string, payload []byte, timeout time.Duration) ([]byte, error) {
	dst, err := net.ResolveUDPAddr("udp", net.JoinHostPort(serverIP, u.port))
	if err != nil {
		return nil, fmt.Errorf("resolving upstream address %s: %w", serverIP, err)
	}
	if err := u.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("setting upstream deadline: %w", err)
	}
	if _, err := u.conn.WriteTo(payload, dst); err != nil {
		return nil, fmt.Errorf("writing to upstream %s: %w", serverIP, err)
	}
	buf := make([]byte, 512)
	n, _, err := u.conn.ReadFrom(buf)
	if err != nil {
		return nil, fmt.Errorf("reading from upstream %s: %w", serverIP, err)
	}
	reply := make([]byte, n)
	copy(reply, buf[:n])
	return reply, nil
}

// Close releases the upstream socket.
func (u *UDPUpstream) Close() error {
	return u.conn.Close()
}

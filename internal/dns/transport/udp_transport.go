package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/haloarc/iterdns/internal/dns/common/log"
)

// ClientHandler answers one client datagram's worth of resolution work.
// resolver.Resolver satisfies this via HandleClientQuery.
type ClientHandler interface {
	HandleClientQuery(clientAddr string, payload []byte) []byte
}

// UDPTransport binds the client-facing UDP socket. Unlike a concurrent
// authoritative server, the iterative resolver serializes: the listen
// loop blocks on ClientHandler for the whole referral chase before it
// reads the next client datagram, so at most one client query is ever
// in flight (spec §4.3/§8 invariant 6). No goroutine is spawned per
// packet.
type UDPTransport struct {
	addr   string
	conn   *net.UDPConn
	logger log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(addr string, logger log.Logger) *UDPTransport {
	return &UDPTransport{
		addr:   addr,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins listening for client UDP datagrams on the configured
// address.
func (t *UDPTransport) Start(ctx context.Context, handler ClientHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "client transport started")

	go t.listenLoop(ctx, handler)

	return nil
}

// Stop gracefully shuts down the UDP transport.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stopCh)

	var closeErr error
	if t.conn != nil {
		closeErr = t.conn.Close()
		if closeErr != nil {
			t.logger.Warn(map[string]any{
				"error": closeErr.Error(),
			}, "error closing UDP connection")
		}
	}

	t.running = false

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "client transport stopped")

	return closeErr
}

// Address returns the network address the transport is bound to.
func (t *UDPTransport) Address() string {
	return t.addr
}

// listenLoop reads one client datagram, resolves it fully, and writes
// the reply before reading the next one. This serialization is the
// transport-layer half of the at-most-one-in-flight invariant; the
// other half is that HandleClientQuery itself never returns early while
// a referral chase is still in progress.
func (t *UDPTransport) listenLoop(ctx context.Context, handler ClientHandler) {
	buffer := make([]byte, 512)

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug(nil, "client transport stopping due to context cancellation")
			return
		case <-t.stopCh:
			t.logger.Debug(nil, "client transport stopping due to stop signal")
			return
		default:
			n, clientAddr, err := t.conn.ReadFromUDP(buffer)
			if err != nil {
				t.mu.RLock()
				running := t.running
				t.mu.RUnlock()

				if !running {
					return
				}

				t.logger.Warn(map[string]any{
					"error": err.Error(),
				}, "failed to read UDP packet")
				continue
			}

			payload := make([]byte, n)
			copy(payload, buffer[:n])
			t.handleDatagram(payload, clientAddr, handler)
		}
	}
}

// handleDatagram runs the full resolution synchronously in the listen
// loop's goroutine and writes the reply back to the client. It is never
// invoked concurrently with itself.
func (t *UDPTransport) handleDatagram(payload []byte, clientAddr *net.UDPAddr, handler ClientHandler) {
	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(payload),
	}, "received client query")

	reply := handler.HandleClientQuery(clientAddr.String(), payload)

	if _, err := t.conn.WriteToUDP(reply, clientAddr); err != nil {
		t.logger.Error(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "failed to send reply to client")
		return
	}

	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(reply),
	}, "sent reply to client")
}

// Package broadcast manages the UDP broadcast leg of marker rendezvous.
// A host transmits its current payload to the local segment at a fixed
// interval; a client listens and surfaces every received datagram.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	// DefaultPort is the UDP port used for rendezvous broadcasts.
	DefaultPort = 50417
	// DefaultInterval is how often a host repeats its payload.
	DefaultInterval = 1 * time.Second
	// MaxDatagramSize bounds reads; payloads are tiny token strings.
	MaxDatagramSize = 512

	readDeadline = 1 * time.Second
)

var (
	// ErrNotInitialized is returned by StartServer before Initialize.
	ErrNotInitialized = errors.New("broadcast: transport not initialized")
	// ErrAlreadyStarted is returned when the transport is already running.
	ErrAlreadyStarted = errors.New("broadcast: transport already started")
)

// Packet is a single received broadcast datagram.
type Packet struct {
	Addr string // source address, host:port
	Data string
}

// Transport is the discovery-transport contract the rendezvous state
// machine depends on. Stop blocks until the transport's goroutines have
// actually exited, so callers never race an in-flight stop.
type Transport interface {
	Initialize(payload string) error
	StartServer() error
	StartClient() error
	Stop(ctx context.Context) error
	Packets() <-chan Packet
}

// UDPTransport implements Transport over a real UDP socket.
type UDPTransport struct {
	port     int
	interval time.Duration

	mu          sync.Mutex
	payload     string
	initialized bool
	running     bool
	conn        *net.UDPConn
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	packets chan Packet
}

// NewUDPTransport creates a transport broadcasting and listening on the
// given port. Zero values select the package defaults.
func NewUDPTransport(port int, interval time.Duration) *UDPTransport {
	if port == 0 {
		port = DefaultPort
	}
	if interval == 0 {
		interval = DefaultInterval
	}
	return &UDPTransport{
		port:     port,
		interval: interval,
		packets:  make(chan Packet, 16),
	}
}

// Initialize records the payload that StartServer will broadcast.
func (t *UDPTransport) Initialize(payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.payload = payload
	t.initialized = true
	return nil
}

// StartServer begins periodic broadcast of the initialized payload.
func (t *UDPTransport) StartServer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return ErrNotInitialized
	}
	if t.running {
		return ErrAlreadyStarted
	}

	// Sending binds an ephemeral port; only listeners own the
	// rendezvous port.
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return fmt.Errorf("broadcast: bind send socket: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.conn = conn
	t.cancel = cancel
	t.running = true

	t.wg.Add(1)
	go t.sendLoop(ctx, conn, &net.UDPAddr{IP: net.IPv4bcast, Port: t.port})
	return nil
}

// StartClient begins listening for broadcasts on the rendezvous port.
func (t *UDPTransport) StartClient() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrAlreadyStarted
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: t.port})
	if err != nil {
		return fmt.Errorf("broadcast: bind port %d: %w", t.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.conn = conn
	t.cancel = cancel
	t.running = true

	t.wg.Add(1)
	go t.recvLoop(ctx, conn)
	return nil
}

// Stop halts transmission or listening. It returns once the transport's
// goroutines have exited, or earlier with the context's error. Stopping
// an idle transport is a no-op.
func (t *UDPTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	t.cancel()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if err := conn.Close(); err != nil {
		slog.Warn("Failed to close broadcast socket", "error", err)
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("broadcast: stop: %w", ctx.Err())
	}
}

// Packets returns the stream of received datagrams. The channel stays
// open across stop/start cycles of the same transport.
func (t *UDPTransport) Packets() <-chan Packet {
	return t.packets
}

func (t *UDPTransport) sendLoop(ctx context.Context, conn *net.UDPConn, dst *net.UDPAddr) {
	defer t.wg.Done()

	// First datagram goes out immediately so a listening client does
	// not wait a full interval after a restart.
	t.sendOnce(ctx, conn, dst)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sendOnce(ctx, conn, dst)
		}
	}
}

func (t *UDPTransport) sendOnce(ctx context.Context, conn *net.UDPConn, dst *net.UDPAddr) {
	t.mu.Lock()
	payload := t.payload
	t.mu.Unlock()

	if _, err := conn.WriteToUDP([]byte(payload), dst); err != nil {
		// Broadcast failures are common on some networks; keep quiet
		// unless we are supposed to be running.
		if ctx.Err() == nil {
			slog.Debug("Broadcast send failed", "error", err)
		}
	}
}

func (t *UDPTransport) recvLoop(ctx context.Context, conn *net.UDPConn) {
	defer t.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return
		}
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Broadcast read failed", "error", err)
			continue
		}

		pkt := Packet{Addr: addr.String(), Data: string(buf[:n])}
		select {
		case t.packets <- pkt:
		default:
			// Broadcasts repeat; dropping under backpressure is safe.
			slog.Debug("Dropping broadcast packet, receiver is slow", "from", pkt.Addr)
		}
	}
}

package rendezvous

import (
	"context"
	"errors"
	"sync"

	"github.com/nlev27/holoLink/pkg/broadcast"
)

// fakeTransport records the call sequence the state machine issues and
// can hold a Stop in flight to exercise the single-flight guard.
type fakeTransport struct {
	mu           sync.Mutex
	calls        []string
	initialized  []string
	serverStarts int
	clientStarts int
	stops        int
	stopGate     chan struct{} // non-nil: Stop blocks until closed

	// onServerStart simulates the network: it runs with the payload the
	// server would broadcast after each StartServer.
	onServerStart func(payload string)

	packets chan broadcast.Packet
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{packets: make(chan broadcast.Packet, 16)}
}

func (t *fakeTransport) Initialize(payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, "initialize")
	t.initialized = append(t.initialized, payload)
	return nil
}

func (t *fakeTransport) StartServer() error {
	t.mu.Lock()
	t.calls = append(t.calls, "start_server")
	t.serverStarts++
	var current string
	if len(t.initialized) > 0 {
		current = t.initialized[len(t.initialized)-1]
	}
	hook := t.onServerStart
	t.mu.Unlock()

	if hook != nil {
		hook(current)
	}
	return nil
}

func (t *fakeTransport) StartClient() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, "start_client")
	t.clientStarts++
	return nil
}

func (t *fakeTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	gate := t.stopGate
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, "stop")
	t.stops++
	return nil
}

func (t *fakeTransport) Packets() <-chan broadcast.Packet {
	return t.packets
}

func (t *fakeTransport) snapshot() (calls []string, initialized []string, serverStarts int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...), append([]string(nil), t.initialized...), t.serverStarts
}

// fakeSession satisfies Session without a real peer connection.
type fakeSession struct {
	remote string
}

func (s *fakeSession) RemoteAddr() string { return s.remote }

func (s *fakeSession) Close() error { return nil }

var _ broadcast.Transport = (*fakeTransport)(nil)

// fakeConnector records connect attempts and can be programmed to fail.
type fakeConnector struct {
	mu       sync.Mutex
	attempts []string
	failures int // fail this many attempts before succeeding
}

func (c *fakeConnector) Connect(_ context.Context, addr string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, addr)
	if c.failures > 0 {
		c.failures--
		return nil, errors.New("connection refused")
	}
	return &fakeSession{remote: addr}, nil
}

func (c *fakeConnector) attemptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.attempts)
}

package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nlev27/holoLink/pkg/broadcast"
	"github.com/nlev27/holoLink/pkg/concurrency"
	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/payload"
)

const (
	// DefaultStartDelay gives the host's networking a head start before
	// the client begins listening. Tolerates host-not-yet-ready races;
	// not a correctness requirement.
	DefaultStartDelay = 3 * time.Second
	// DefaultConnectTimeout bounds the outbound connection attempt. A
	// timed-out attempt fails the cycle and the client resumes
	// listening for the next periodic broadcast.
	DefaultConnectTimeout = 15 * time.Second
)

// Session is the established peer session as the client sees it.
// *session.Session satisfies it.
type Session interface {
	RemoteAddr() string
	Close() error
}

// Connector issues the outbound connection once a broadcast matches.
type Connector interface {
	Connect(ctx context.Context, addr string) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, addr string) (Session, error)

func (f ConnectorFunc) Connect(ctx context.Context, addr string) (Session, error) {
	return f(ctx, addr)
}

// ClientConfig configures a client-side rendezvous instance.
type ClientConfig struct {
	// AutoStart enables the machine; when false Run returns
	// immediately without touching the transport.
	AutoStart bool
	// MarkerID is the marker this client has rendered; only broadcasts
	// carrying its token are a match.
	MarkerID marker.ID
	// StartDelay defers listening after Run. Zero selects the default.
	StartDelay time.Duration
	// ConnectTimeout bounds each connect attempt. Zero selects the
	// default.
	ConnectTimeout time.Duration
}

// Client drives the listening side of a rendezvous: it decodes every
// received broadcast, and on a token match stops listening and connects
// back to the broadcast's source. Failed attempts return the client to
// listening; broadcasts repeat, so the match retries on its own.
type Client struct {
	transport broadcast.Transport
	connector Connector
	guard     *concurrency.ConcurrencyGuard
	cfg       ClientConfig

	mu             sync.Mutex
	state          DiscoveryState
	session        Session
	onState        []func(DiscoveryState)
	onSessionFound []func()
}

// NewClient creates a client instance. Both collaborators are required;
// absence is a configuration error surfaced at construction.
func NewClient(transport broadcast.Transport, connector Connector, cfg ClientConfig) (*Client, error) {
	if transport == nil {
		return nil, errors.New("rendezvous: client requires a broadcast transport")
	}
	if connector == nil {
		return nil, errors.New("rendezvous: client requires a session connector")
	}
	if cfg.StartDelay == 0 {
		cfg.StartDelay = DefaultStartDelay
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Client{
		transport: transport,
		connector: connector,
		guard:     concurrency.NewConcurrencyGuard(),
		cfg:       cfg,
		state:     StateIdle,
	}, nil
}

// OnSessionFound registers an observer notified exactly once per
// successful match, before the connect attempt begins.
func (c *Client) OnSessionFound(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSessionFound = append(c.onSessionFound, f)
}

// OnStateChange registers an observer for state transitions.
func (c *Client) OnStateChange(f func(DiscoveryState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = append(c.onState, f)
}

// State returns the current discovery state.
func (c *Client) State() DiscoveryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the established session, or nil before a successful
// connect.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Run starts listening after the configured delay and processes
// broadcasts until the context is cancelled. Packets are handled one at
// a time; a connect cycle completes before the next packet is read.
func (c *Client) Run(ctx context.Context) error {
	if !c.cfg.AutoStart {
		slog.Info("Client rendezvous disabled, autostart is off")
		return nil
	}

	select {
	case <-time.After(c.cfg.StartDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.transport.StartClient(); err != nil {
		return fmt.Errorf("rendezvous: start listening: %w", err)
	}
	c.setState(StateListening)
	slog.Info("Listening for marker broadcasts", "marker", int(c.cfg.MarkerID))

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.transport.Stop(stopCtx); err != nil {
			slog.Warn("Failed to stop broadcast listener", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt := <-c.transport.Packets():
			c.handleBroadcast(ctx, pkt)
		}
	}
}

// handleBroadcast applies the match condition to one received datagram
// and, on a match, runs the stop/connect cycle.
func (c *Client) handleBroadcast(ctx context.Context, pkt broadcast.Packet) {
	token, err := payload.Decode(pkt.Data)
	if err != nil {
		slog.Debug("Ignoring malformed broadcast", "from", pkt.Addr, "data", pkt.Data)
		return
	}

	// All three must hold: token matches our rendered marker, no cycle
	// is already stopping the listener, and no session exists yet.
	// Broadcasts are periodic; a dropped one is retried by the next.
	if token != int(c.cfg.MarkerID) || c.guard.Busy() || c.Session() != nil {
		return
	}

	c.notifySessionFound()

	err = c.guard.ExecuteWithContext(ctx, func(ctx context.Context) error {
		return c.connect(ctx, pkt.Addr)
	})
	if err != nil && !errors.Is(err, concurrency.ErrBusy) {
		slog.Error("Connect cycle failed", "host", pkt.Addr, "error", err)
	}
}

// connect stops the listener and dials the host, bounded by the
// configured timeout. Failure resumes listening for a retry.
func (c *Client) connect(ctx context.Context, addr string) error {
	c.setState(StateStopping)
	if err := c.transport.Stop(ctx); err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("rendezvous: stop listener: %w", err)
	}

	c.setState(StateConnecting)
	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	sess, err := c.connector.Connect(connectCtx, addr)
	if err != nil {
		c.setState(StateFailed)
		if resumeErr := c.resumeListening(); resumeErr != nil {
			return errors.Join(fmt.Errorf("rendezvous: connect to %s: %w", addr, err), resumeErr)
		}
		c.setState(StateListening)
		return fmt.Errorf("rendezvous: connect to %s: %w", addr, err)
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.setState(StateConnected)
	slog.Info("Rendezvous complete", "host", addr)
	return nil
}

func (c *Client) resumeListening() error {
	if err := c.transport.StartClient(); err != nil {
		return fmt.Errorf("rendezvous: resume listening: %w", err)
	}
	return nil
}

func (c *Client) notifySessionFound() {
	c.mu.Lock()
	observers := make([]func(), len(c.onSessionFound))
	copy(observers, c.onSessionFound)
	c.mu.Unlock()

	slog.Info("Matching session found", "marker", int(c.cfg.MarkerID))
	for _, f := range observers {
		f()
	}
}

func (c *Client) setState(s DiscoveryState) {
	c.mu.Lock()
	c.state = s
	observers := make([]func(DiscoveryState), len(c.onState))
	copy(observers, c.onState)
	c.mu.Unlock()

	for _, f := range observers {
		f(s)
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pion/webrtc/v4"
)

const exchangeTimeout = 30 * time.Second

// Answerer is the host-side listener: it accepts one signaling exchange
// at a time on a TCP port and emits established sessions.
type Answerer struct {
	api      *API
	config   Config
	listener net.Listener
	sessions chan *Session
}

func NewAnswerer(api *API, config Config) *Answerer {
	return &Answerer{
		api:      api,
		config:   config,
		sessions: make(chan *Session, 1),
	}
}

// Listen binds the signaling port. Port 0 picks an ephemeral one.
func (a *Answerer) Listen(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("session: listen on signaling port %d: %w", port, err)
	}
	a.listener = ln
	return nil
}

// Port returns the bound signaling port. Valid after Listen.
func (a *Answerer) Port() int {
	return a.listener.Addr().(*net.TCPAddr).Port
}

// Sessions returns the stream of established inbound sessions.
func (a *Answerer) Sessions() <-chan *Session {
	return a.sessions
}

// Run accepts signaling connections until the context is cancelled.
// Exchanges are handled sequentially; concurrent pairing attempts wait
// in the accept backlog.
func (a *Answerer) Run(ctx context.Context) error {
	if a.listener == nil {
		return errors.New("session: answerer is not listening")
	}

	go func() {
		<-ctx.Done()
		_ = a.listener.Close()
	}()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("session: accept signaling connection: %w", err)
		}
		if err := a.handle(ctx, conn); err != nil {
			slog.Warn("Signaling exchange failed", "remote", conn.RemoteAddr().String(), "error", err)
		}
		_ = conn.Close()
	}
}

func (a *Answerer) handle(ctx context.Context, conn net.Conn) error {
	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	if deadline, ok := exchangeCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	sc := newSignalingConn(conn)
	first, err := sc.read()
	if err != nil {
		return fmt.Errorf("session: read offer: %w", err)
	}
	if first.Type != frameOffer || first.SDP == nil {
		return fmt.Errorf("session: expected offer frame, got %q", first.Type)
	}

	pc, err := a.api.newPeerConnection(a.config)
	if err != nil {
		return fmt.Errorf("session: create peer connection: %w", err)
	}

	opened := make(chan *Session, 1)
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ControlChannelLabel {
			return
		}
		dc.OnOpen(func() {
			opened <- &Session{pc: pc, dc: dc, remoteAddr: conn.RemoteAddr().String()}
		})
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		if err := sc.write(frame{Type: frameCandidate, Exchange: first.Exchange, Candidate: &init}); err != nil {
			slog.Debug("Failed to send ICE candidate", "error", err)
		}
	})

	if err := pc.SetRemoteDescription(*first.SDP); err != nil {
		_ = pc.Close()
		return fmt.Errorf("session: set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("session: create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return fmt.Errorf("session: set local description: %w", err)
	}
	if err := sc.write(frame{Type: frameAnswer, Exchange: first.Exchange, SDP: &answer}); err != nil {
		_ = pc.Close()
		return err
	}

	// Drain the dialer's trickled candidates until the channel opens,
	// the peer hangs up, or the exchange times out.
	readErr := make(chan error, 1)
	go func() {
		for {
			f, err := sc.read()
			if err != nil {
				readErr <- err
				return
			}
			if f.Type == frameCandidate && f.Candidate != nil {
				if err := pc.AddICECandidate(*f.Candidate); err != nil {
					slog.Warn("Failed to add remote ICE candidate", "error", err)
				}
			}
		}
	}()

	for {
		select {
		case sess := <-opened:
			slog.Info("Inbound peer session established", "remote", sess.RemoteAddr())
			a.sessions <- sess
			return nil
		case err := <-readErr:
			// The dialer closes its end as soon as its channel opens,
			// which can beat our own OnOpen by a moment. Give the
			// channel a grace period before declaring the exchange
			// failed.
			grace := time.NewTimer(2 * time.Second)
			select {
			case sess := <-opened:
				grace.Stop()
				slog.Info("Inbound peer session established", "remote", sess.RemoteAddr())
				a.sessions <- sess
				return nil
			case <-grace.C:
			case <-exchangeCtx.Done():
				grace.Stop()
			}
			_ = pc.Close()
			return fmt.Errorf("session: signaling ended before channel open: %w", err)
		case <-exchangeCtx.Done():
			_ = pc.Close()
			return fmt.Errorf("session: exchange: %w", exchangeCtx.Err())
		}
	}
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// WebRTCConnector is the outbound half of session establishment: it
// dials the host's signaling port and drives the offer side of the
// exchange. Connect blocks until the control channel is open or the
// context expires.
type WebRTCConnector struct {
	api           *API
	config        Config
	signalingPort int
}

func NewWebRTCConnector(api *API, config Config, signalingPort int) *WebRTCConnector {
	if signalingPort == 0 {
		signalingPort = DefaultSignalingPort
	}
	return &WebRTCConnector{api: api, config: config, signalingPort: signalingPort}
}

// Connect establishes a session with the host behind addr. addr is the
// source address of a broadcast datagram; only its host part is used,
// the signaling port is the connector's own configuration.
func (c *WebRTCConnector) Connect(ctx context.Context, addr string) (*Session, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	target := net.JoinHostPort(host, strconv.Itoa(c.signalingPort))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("session: dial signaling %s: %w", target, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			slog.Warn("Failed to set signaling deadline", "error", err)
		}
	}

	pc, err := c.api.newPeerConnection(c.config)
	if err != nil {
		return nil, fmt.Errorf("session: create peer connection: %w", err)
	}

	sess, err := c.exchange(ctx, pc, conn, target)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	return sess, nil
}

func (c *WebRTCConnector) exchange(ctx context.Context, pc *webrtc.PeerConnection, conn net.Conn, target string) (*Session, error) {
	sc := newSignalingConn(conn)
	exchangeID := uuid.New().String()

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		if err := sc.write(frame{Type: frameCandidate, Exchange: exchangeID, Candidate: &init}); err != nil {
			slog.Debug("Failed to send ICE candidate", "error", err)
		}
	})

	dc, err := pc.CreateDataChannel(ControlChannelLabel, nil)
	if err != nil {
		return nil, fmt.Errorf("session: create control channel: %w", err)
	}
	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })

	failed := make(chan error, 1)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed {
			select {
			case failed <- fmt.Errorf("session: peer connection failed"):
			default:
			}
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("session: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("session: set local description: %w", err)
	}
	if err := sc.write(frame{Type: frameOffer, Exchange: exchangeID, SDP: &offer}); err != nil {
		return nil, err
	}

	go func() {
		for {
			f, err := sc.read()
			if err != nil {
				// EOF after the channel opens is the normal end of
				// signaling; any earlier error surfaces via failed.
				select {
				case failed <- fmt.Errorf("session: signaling read: %w", err):
				default:
				}
				return
			}
			switch f.Type {
			case frameAnswer:
				if f.SDP == nil {
					continue
				}
				if err := pc.SetRemoteDescription(*f.SDP); err != nil {
					slog.Warn("Failed to apply answer", "error", err)
				}
			case frameCandidate:
				if f.Candidate == nil {
					continue
				}
				if err := pc.AddICECandidate(*f.Candidate); err != nil {
					slog.Warn("Failed to add remote ICE candidate", "error", err)
				}
			}
		}
	}()

	select {
	case <-opened:
		slog.Info("Peer session established", "remote", target)
		return &Session{pc: pc, dc: dc, remoteAddr: target}, nil
	case err := <-failed:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("session: connect: %w", ctx.Err())
	}
}

// Package session establishes the direct peer session that follows a
// successful marker rendezvous. The client dials the host's signaling
// port, the peers exchange an offer/answer over a line-framed JSON
// channel, and the session is up once the control data channel opens.
package session

import (
	"fmt"
	"log/slog"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"
)

const (
	// DefaultSignalingPort is the TCP port the host answers on.
	DefaultSignalingPort = 50418
	// ControlChannelLabel names the session's control data channel.
	ControlChannelLabel = "holo-control"

	mtu uint = 1400
)

// Config holds connection options shared by both peers.
type Config struct {
	ICEServers []webrtc.ICEServer
}

// API wraps a shared webrtc.API so all peer connections of a process
// use one settings engine.
type API struct {
	api *webrtc.API
}

func NewAPI() *API {
	settings := webrtc.SettingEngine{}
	settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	settings.SetReceiveMTU(mtu)

	return &API{api: webrtc.NewAPI(webrtc.WithSettingEngine(settings))}
}

func (a *API) newPeerConnection(config Config) (*webrtc.PeerConnection, error) {
	if len(config.ICEServers) == 0 {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs: []string{"stun:stun.l.google.com:19302"},
		})
	}
	return a.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
}

// Session is an established peer session: a live peer connection plus
// its control data channel.
type Session struct {
	pc         *webrtc.PeerConnection
	dc         *webrtc.DataChannel
	remoteAddr string
}

// RemoteAddr returns the signaling address of the remote peer.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// State returns the current peer connection state.
func (s *Session) State() webrtc.PeerConnectionState {
	return s.pc.ConnectionState()
}

// Send transmits a message on the control channel.
func (s *Session) Send(data []byte) error {
	if err := s.dc.Send(data); err != nil {
		return fmt.Errorf("session: send on control channel: %w", err)
	}
	return nil
}

// OnMessage registers a handler for inbound control messages.
func (s *Session) OnMessage(f func(data []byte)) {
	s.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f(msg.Data)
	})
}

// Close tears down the peer connection.
func (s *Session) Close() error {
	slog.Debug("Closing peer session", "remote", s.remoteAddr)
	return s.pc.Close()
}

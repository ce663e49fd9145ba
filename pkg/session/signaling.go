package session

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Signaling wire format: newline-delimited JSON frames over a single
// TCP connection. The dialer sends an offer, the listener replies with
// an answer, and both sides stream ICE candidates until the session is
// up or the connection closes.

type frameType string

const (
	frameOffer     frameType = "offer"
	frameAnswer    frameType = "answer"
	frameCandidate frameType = "candidate"
)

type frame struct {
	Type      frameType                  `json:"type"`
	Exchange  string                     `json:"exchange"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// signalingConn frames webrtc signaling messages over an io.ReadWriter.
// Writes are serialized: ICE candidate callbacks fire from pion's
// goroutines while the exchange goroutine writes the offer or answer.
type signalingConn struct {
	mu  sync.Mutex
	enc *json.Encoder
	dec *json.Decoder
}

func newSignalingConn(rw io.ReadWriter) *signalingConn {
	return &signalingConn{
		enc: json.NewEncoder(rw),
		dec: json.NewDecoder(rw),
	}
}

func (c *signalingConn) write(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enc.Encode(f); err != nil {
		return fmt.Errorf("session: write %s frame: %w", f.Type, err)
	}
	return nil
}

func (c *signalingConn) read() (frame, error) {
	var f frame
	if err := c.dec.Decode(&f); err != nil {
		return frame{}, err
	}
	return f, nil
}

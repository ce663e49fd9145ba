package client

import (
	"github.com/nlev27/holoLink/pkg/rendezvous"
)

// --- UI Messages (from App to TUI) ---

// StateChangedMsg mirrors every discovery state transition.
type StateChangedMsg struct {
	State rendezvous.DiscoveryState
}

// SessionFoundMsg fires once per matched broadcast, before connecting.
type SessionFoundMsg struct{}

// ConnectedMsg reports the established session.
type ConnectedMsg struct {
	Remote string
}

// StatusUpdateMsg carries free-form progress lines.
type StatusUpdateMsg struct {
	Message string
}

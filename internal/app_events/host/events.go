package host

import (
	appevents "github.com/nlev27/holoLink/internal/app_events"
	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/rendezvous"
)

// --- App Events (from TUI to App) ---

// MarkerDetectedEvent simulates the vision collaborator from the bench
// TUI: the user reports which marker the headset is looking at.
type MarkerDetectedEvent struct {
	appevents.Event
	Detection marker.Detection
}

var _ appevents.AppEvent = (*MarkerDetectedEvent)(nil)

// --- UI Messages (from App to TUI) ---

// StateChangedMsg mirrors every discovery state transition.
type StateChangedMsg struct {
	State rendezvous.DiscoveryState
}

// BroadcastingMsg reports the payload currently on the air.
type BroadcastingMsg struct {
	Payload string
}

// SessionEstablishedMsg reports an inbound client session.
type SessionEstablishedMsg struct {
	Remote string
}

// StatusUpdateMsg carries free-form progress lines.
type StatusUpdateMsg struct {
	Message string
}

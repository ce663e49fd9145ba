// Package rendezvous implements the discovery state machine that pairs
// an AR host with a mobile client over unreliable broadcast datagrams.
// The host broadcasts the token of its last detected marker; a client
// that rendered the matching marker connects back to the host.
package rendezvous

// Role distinguishes the two sides of a rendezvous. It is fixed for the
// lifetime of a session.
type Role int

const (
	RoleHost Role = iota
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// DiscoveryState is the observable state of a rendezvous instance.
// Transitions are serialized per instance.
type DiscoveryState int

const (
	// StateIdle: not started, or host between restart cycles.
	StateIdle DiscoveryState = iota
	// StateBroadcasting: host is transmitting its payload.
	StateBroadcasting
	// StateListening: client is receiving broadcasts.
	StateListening
	// StateStopping: a stop/restart or stop/connect cycle is in flight.
	StateStopping
	// StateConnecting: client is establishing the peer session.
	StateConnecting
	// StateConnected: client holds an established session.
	StateConnected
	// StateFailed: the last connect attempt failed; the client returns
	// to listening and retries on the next matching broadcast.
	StateFailed
)

func (s DiscoveryState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBroadcasting:
		return "broadcasting"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

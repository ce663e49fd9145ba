package rendezvous

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlev27/holoLink/pkg/broadcast"
	"github.com/nlev27/holoLink/pkg/marker"
)

// TestHostClientRendezvous walks the whole flow: the host detects
// marker 7 and starts broadcasting |7|...; the client, which rendered
// marker 7, hears the broadcast, fires session-found, and connects back
// to the host's address.
func TestHostClientRendezvous(t *testing.T) {
	const hostAddr = "192.168.1.20:50417"

	hostTr := newFakeTransport()
	clientTr := newFakeTransport()

	// Simulated network: whatever the host broadcasts arrives at the
	// listening client, attributed to the host's address.
	hostTr.onServerStart = func(payload string) {
		clientTr.packets <- broadcast.Packet{Addr: hostAddr, Data: payload}
	}

	h, err := NewHost(hostTr, HostConfig{AutoStart: true, InstanceID: "hmd-1"})
	require.NoError(t, err)
	h.Start()

	conn := &fakeConnector{}
	c, err := NewClient(clientTr, conn, ClientConfig{
		AutoStart:      true,
		MarkerID:       7,
		StartDelay:     time.Millisecond,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)

	found := make(chan struct{}, 1)
	c.OnSessionFound(func() { found <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()
	waitForState(t, c.State, StateListening)

	require.NoError(t, h.OnMarkerDetected(ctx, marker.Detection{ID: 7}))

	select {
	case <-found:
	case <-time.After(2 * time.Second):
		t.Fatal("session-found was never fired")
	}
	waitForState(t, c.State, StateConnected)

	require.NotNil(t, c.Session())
	assert.Equal(t, hostAddr, c.Session().RemoteAddr())
	assert.False(t, c.guard.Busy(), "stopping flag must clear after connect")
	assert.Equal(t, StateBroadcasting, h.State())

	cancel()
	assert.ErrorIs(t, <-runDone, context.Canceled)
}

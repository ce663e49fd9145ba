package rendezvous

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/payload"
)

func newTestHost(t *testing.T, tr *fakeTransport) *Host {
	t.Helper()
	h, err := NewHost(tr, HostConfig{AutoStart: true, InstanceID: "test-host"})
	require.NoError(t, err)
	h.Start()
	return h
}

func TestNewHostRequiresTransport(t *testing.T) {
	_, err := NewHost(nil, HostConfig{})
	require.Error(t, err)
}

func TestHostIgnoresDetectionsBeforeStart(t *testing.T) {
	tr := newFakeTransport()
	h, err := NewHost(tr, HostConfig{AutoStart: true})
	require.NoError(t, err)

	require.NoError(t, h.OnMarkerDetected(context.Background(), marker.Detection{ID: 7}))
	calls, _, _ := tr.snapshot()
	assert.Empty(t, calls)
	assert.Equal(t, StateIdle, h.State())
}

func TestAutoStartOffDisablesHost(t *testing.T) {
	tr := newFakeTransport()
	h, err := NewHost(tr, HostConfig{AutoStart: false})
	require.NoError(t, err)
	h.Start()

	require.NoError(t, h.OnMarkerDetected(context.Background(), marker.Detection{ID: 7}))
	calls, _, _ := tr.snapshot()
	assert.Empty(t, calls)
}

func TestMarkerDetectionCyclesBroadcast(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHost(t, tr)

	require.NoError(t, h.OnMarkerDetected(context.Background(), marker.Detection{ID: 7}))

	calls, initialized, serverStarts := tr.snapshot()
	assert.Equal(t, []string{"stop", "initialize", "start_server"}, calls)
	require.Len(t, initialized, 1)
	token, err := payload.Decode(initialized[0])
	require.NoError(t, err)
	assert.Equal(t, 7, token)
	assert.Equal(t, 1, serverStarts)
	assert.Equal(t, StateBroadcasting, h.State())
}

func TestDuplicateMarkerIsIdempotent(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHost(t, tr)
	ctx := context.Background()

	require.NoError(t, h.OnMarkerDetected(ctx, marker.Detection{ID: 7}))
	require.NoError(t, h.OnMarkerDetected(ctx, marker.Detection{ID: 7}))

	_, initialized, serverStarts := tr.snapshot()
	assert.Len(t, initialized, 1, "payload must change once")
	assert.Equal(t, 1, serverStarts, "start_as_server must be called once")
}

func TestSameMarkerDuringRestartIsDropped(t *testing.T) {
	tr := newFakeTransport()
	tr.stopGate = make(chan struct{})
	h := newTestHost(t, tr)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.OnMarkerDetected(ctx, marker.Detection{ID: 7}) }()

	waitForState(t, h.State, StateStopping)
	require.NoError(t, h.OnMarkerDetected(ctx, marker.Detection{ID: 7}))

	close(tr.stopGate)
	require.NoError(t, <-done)

	_, initialized, serverStarts := tr.snapshot()
	assert.Len(t, initialized, 1)
	assert.Equal(t, 1, serverStarts)
}

func TestNewMarkerDuringRestartIsDroppedNotQueued(t *testing.T) {
	tr := newFakeTransport()
	tr.stopGate = make(chan struct{})
	h := newTestHost(t, tr)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.OnMarkerDetected(ctx, marker.Detection{ID: 7}) }()

	waitForState(t, h.State, StateStopping)
	// A different marker while the restart is stopping: dropped, no
	// second cycle queued behind the first.
	require.NoError(t, h.OnMarkerDetected(ctx, marker.Detection{ID: 9}))

	close(tr.stopGate)
	require.NoError(t, <-done)

	_, initialized, serverStarts := tr.snapshot()
	require.Len(t, initialized, 1)
	token, err := payload.Decode(initialized[0])
	require.NoError(t, err)
	assert.Equal(t, 7, token)
	assert.Equal(t, 1, serverStarts)
}

func TestNewMarkerAfterRestartCyclesAgain(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHost(t, tr)
	ctx := context.Background()

	require.NoError(t, h.OnMarkerDetected(ctx, marker.Detection{ID: 7}))
	require.NoError(t, h.OnMarkerDetected(ctx, marker.Detection{ID: 9}))

	_, initialized, serverStarts := tr.snapshot()
	require.Len(t, initialized, 2)
	token, err := payload.Decode(initialized[1])
	require.NoError(t, err)
	assert.Equal(t, 9, token)
	assert.Equal(t, 2, serverStarts)
}

func TestHostStopReturnsToIdle(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHost(t, tr)
	ctx := context.Background()

	require.NoError(t, h.OnMarkerDetected(ctx, marker.Detection{ID: 7}))
	require.NoError(t, h.Stop(ctx))
	assert.Equal(t, StateIdle, h.State())
	assert.Empty(t, h.Payload())
}

func waitForState(t *testing.T, current func() DiscoveryState, want DiscoveryState) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if current() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for state %v, at %v", want, current())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

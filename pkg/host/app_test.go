package host

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hostevents "github.com/nlev27/holoLink/internal/app_events/host"
	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/rendezvous"
)

type stubSource struct {
	ch chan marker.Detection
}

func (s *stubSource) Detections() <-chan marker.Detection { return s.ch }

func collectUIMessages(t *testing.T, app *App, n int) []tea.Msg {
	t.Helper()
	msgs := make([]tea.Msg, 0, n)
	for len(msgs) < n {
		select {
		case msg := <-app.UIMessages():
			msgs = append(msgs, msg)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out, got %d of %d messages: %v", len(msgs), n, msgs)
		}
	}
	return msgs
}

func TestHostAppBroadcastsOnMarkerDetection(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping socket test in short mode")
	}

	app, err := NewApp(Config{
		AutoStart:         true,
		BroadcastPort:     53191,
		BroadcastInterval: 50 * time.Millisecond,
		InstanceID:        "hmd-test",
	})
	require.NoError(t, err)
	app.machine.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = app.machine.Stop(stopCtx)
	}()

	app.OnMarkerDetected(context.Background(), marker.Detection{ID: 7})

	// Two state transitions plus the payload report.
	msgs := collectUIMessages(t, app, 3)
	assert.Equal(t, hostevents.StateChangedMsg{State: rendezvous.StateStopping}, msgs[0])
	assert.Equal(t, hostevents.StateChangedMsg{State: rendezvous.StateBroadcasting}, msgs[1])
	payloadMsg, ok := msgs[2].(hostevents.BroadcastingMsg)
	require.True(t, ok, "expected BroadcastingMsg, got %T", msgs[2])
	assert.Contains(t, payloadMsg.Payload, "|7|")
}

func TestHostAppConsumesMarkerSource(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping socket test in short mode")
	}

	source := &stubSource{ch: make(chan marker.Detection, 1)}
	app, err := NewApp(Config{
		AutoStart:         true,
		BroadcastPort:     53192,
		SignalingPort:     0, // ephemeral
		BroadcastInterval: 50 * time.Millisecond,
		MarkerSource:      source,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- app.Run(ctx) }()

	source.ch <- marker.Detection{ID: 42}

	msgs := collectUIMessages(t, app, 3)
	payloadMsg, ok := msgs[2].(hostevents.BroadcastingMsg)
	require.True(t, ok, "expected BroadcastingMsg, got %T", msgs[2])
	assert.Contains(t, payloadMsg.Payload, "|42|")

	cancel()
	require.NoError(t, <-runDone)
}

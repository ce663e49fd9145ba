package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nlev27/holoLink/pkg/broadcast"
	"github.com/nlev27/holoLink/pkg/concurrency"
	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/payload"
)

// HostConfig configures a host-side rendezvous instance.
type HostConfig struct {
	// AutoStart enables the machine. When false, Start is a no-op
	// escape hatch and marker detections are ignored.
	AutoStart bool
	// InstanceID tags broadcasts with the host's identity. Defaults to
	// a fresh uuid.
	InstanceID string
}

// Host drives the broadcast side of a rendezvous: every marker
// detection rotates the transmitted payload through a stop/initialize/
// start cycle on the transport. At most one restart cycle is in flight
// at a time; duplicate requests are dropped, never queued.
type Host struct {
	transport  broadcast.Transport
	guard      *concurrency.ConcurrencyGuard
	instanceID string
	autoStart  bool

	mu      sync.Mutex
	started bool
	state   DiscoveryState
	payload string
	onState []func(DiscoveryState)
}

// NewHost creates a host instance. The transport collaborator is
// required; its absence is a configuration error, not a runtime skip.
func NewHost(transport broadcast.Transport, cfg HostConfig) (*Host, error) {
	if transport == nil {
		return nil, errors.New("rendezvous: host requires a broadcast transport")
	}
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	return &Host{
		transport:  transport,
		guard:      concurrency.NewConcurrencyGuard(),
		instanceID: instanceID,
		autoStart:  cfg.AutoStart,
		state:      StateIdle,
	}, nil
}

// OnStateChange registers an observer for state transitions. Observers
// run on the transition's goroutine; keep them short.
func (h *Host) OnStateChange(f func(DiscoveryState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onState = append(h.onState, f)
}

// State returns the current discovery state.
func (h *Host) State() DiscoveryState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Payload returns the payload currently offered to the transport.
func (h *Host) Payload() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload
}

// Start arms the host. Broadcasting begins with the first marker
// detection, not here; there is no payload to transmit yet.
func (h *Host) Start() {
	if !h.autoStart {
		slog.Info("Host rendezvous disabled, autostart is off")
		return
	}
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
	slog.Info("Host rendezvous armed", "instance", h.instanceID)
}

// OnMarkerDetected is the vision collaborator's entry point. It encodes
// a payload for the detected marker and, when the payload actually
// changed and no restart is in flight, cycles the transport onto it.
func (h *Host) OnMarkerDetected(ctx context.Context, det marker.Detection) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		slog.Debug("Dropping marker detection, host not started", "marker", int(det.ID))
		return nil
	}
	next := payload.EncodeWithInstance(int(det.ID), h.instanceID)
	if next == h.payload {
		h.mu.Unlock()
		slog.Debug("Dropping marker detection, payload unchanged", "marker", int(det.ID))
		return nil
	}
	h.mu.Unlock()

	err := h.guard.ExecuteWithContext(ctx, func(ctx context.Context) error {
		return h.restart(ctx, next)
	})
	if errors.Is(err, concurrency.ErrBusy) {
		// A restart is already stopping the transport; this request is
		// dropped, not queued. The next detection retries.
		slog.Debug("Dropping marker detection, restart in flight", "marker", int(det.ID))
		return nil
	}
	return err
}

// restart performs the stop/initialize/start cycle. The transport's
// Stop blocks until its goroutines have exited, so the payload swap
// never races an in-flight stop.
func (h *Host) restart(ctx context.Context, next string) error {
	h.setState(StateStopping)

	if err := h.transport.Stop(ctx); err != nil {
		h.setState(StateIdle)
		return fmt.Errorf("rendezvous: stop broadcast: %w", err)
	}

	h.mu.Lock()
	h.payload = next
	h.mu.Unlock()

	if err := h.transport.Initialize(next); err != nil {
		h.clearPayload()
		h.setState(StateIdle)
		return fmt.Errorf("rendezvous: initialize broadcast: %w", err)
	}
	if err := h.transport.StartServer(); err != nil {
		h.clearPayload()
		h.setState(StateIdle)
		return fmt.Errorf("rendezvous: start broadcast: %w", err)
	}

	h.setState(StateBroadcasting)
	slog.Info("Broadcasting marker payload", "payload", next)
	return nil
}

// Stop halts broadcasting and returns the host to idle.
func (h *Host) Stop(ctx context.Context) error {
	err := h.transport.Stop(ctx)
	h.clearPayload()
	h.setState(StateIdle)
	return err
}

func (h *Host) clearPayload() {
	h.mu.Lock()
	h.payload = ""
	h.mu.Unlock()
}

func (h *Host) setState(s DiscoveryState) {
	h.mu.Lock()
	h.state = s
	observers := make([]func(DiscoveryState), len(h.onState))
	copy(observers, h.onState)
	h.mu.Unlock()

	for _, f := range observers {
		f(s)
	}
}

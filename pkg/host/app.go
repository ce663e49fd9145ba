// Package host wires the host-side collaborators together: the UDP
// broadcast transport, the rendezvous state machine, the session
// answerer, and the optional mDNS announcement.
package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	dnssdlog "github.com/brutella/dnssd/log"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appevents "github.com/nlev27/holoLink/internal/app_events"
	hostevents "github.com/nlev27/holoLink/internal/app_events/host"
	"github.com/nlev27/holoLink/pkg/broadcast"
	"github.com/nlev27/holoLink/pkg/discovery"
	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/rendezvous"
	"github.com/nlev27/holoLink/pkg/session"
)

// Config holds the host application's settings.
type Config struct {
	AutoStart         bool
	BroadcastPort     int
	SignalingPort     int
	BroadcastInterval time.Duration
	InstanceID        string
	Announce          bool // advertise the session service over mDNS

	// MarkerSource is the vision collaborator. Optional: the bench TUI
	// feeds detections through MarkerDetectedEvent instead.
	MarkerSource marker.Source
}

// App is the main application logic controller for the host role.
type App struct {
	cfg        Config
	instanceID string
	machine    *rendezvous.Host
	answerer   *session.Answerer
	announcer  discovery.Adapter
	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
}

// NewApp creates a host application instance.
func NewApp(cfg Config) (*App, error) {
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}

	transport := broadcast.NewUDPTransport(cfg.BroadcastPort, cfg.BroadcastInterval)
	machine, err := rendezvous.NewHost(transport, rendezvous.HostConfig{
		AutoStart:  cfg.AutoStart,
		InstanceID: instanceID,
	})
	if err != nil {
		return nil, err
	}

	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)

	a := &App{
		cfg:        cfg,
		instanceID: instanceID,
		machine:    machine,
		answerer:   session.NewAnswerer(session.NewAPI(), session.Config{}),
		announcer:  &discovery.MDNSAdapter{},
		uiMessages: make(chan tea.Msg, 10),
		appEvents:  make(chan appevents.AppEvent),
	}
	machine.OnStateChange(func(s rendezvous.DiscoveryState) {
		a.uiMessages <- hostevents.StateChangedMsg{State: s}
	})
	return a, nil
}

// UIMessages returns the channel the UI listens on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// OnMarkerDetected is the vision collaborator's entry point; the bench
// TUI reaches it through a MarkerDetectedEvent.
func (a *App) OnMarkerDetected(ctx context.Context, det marker.Detection) {
	if err := a.machine.OnMarkerDetected(ctx, det); err != nil {
		a.sendAndLogError("Failed to rotate broadcast payload", err)
		return
	}
	if payload := a.machine.Payload(); payload != "" {
		a.uiMessages <- hostevents.BroadcastingMsg{Payload: payload}
	}
}

// Run starts the answerer, the optional announcement, and the event
// loop. It blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.answerer.Listen(a.cfg.SignalingPort); err != nil {
		a.sendAndLogError("Failed to open signaling port", err)
		return err
	}
	a.machine.Start()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.answerer.Run(ctx)
	})
	if a.cfg.Announce {
		g.Go(func() error {
			return a.runAnnounce(ctx)
		})
	}
	if a.cfg.MarkerSource != nil {
		g.Go(func() error {
			return a.runMarkerSource(ctx)
		})
	}
	g.Go(func() error {
		return a.eventLoop(ctx)
	})
	return g.Wait()
}

func (a *App) eventLoop(ctx context.Context) error {
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.machine.Stop(stopCtx); err != nil {
			slog.Warn("Failed to stop broadcast on shutdown", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sess := <-a.answerer.Sessions():
			a.uiMessages <- hostevents.SessionEstablishedMsg{Remote: sess.RemoteAddr()}
		case event := <-a.appEvents:
			switch e := event.(type) {
			case hostevents.MarkerDetectedEvent:
				a.OnMarkerDetected(ctx, e.Detection)
			case appevents.UIErrorEvent:
				slog.Error("UI error", "error", e.Err)
			}
		}
	}
}

// runMarkerSource forwards detections from the vision collaborator.
func (a *App) runMarkerSource(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case det, ok := <-a.cfg.MarkerSource.Detections():
			if !ok {
				return nil
			}
			a.OnMarkerDetected(ctx, det)
		}
	}
}

func (a *App) runAnnounce(ctx context.Context) error {
	info := discovery.ServiceInfo{
		Name:     fmt.Sprintf("holo-%.8s", a.instanceID),
		Type:     discovery.DefaultServiceType,
		Domain:   discovery.DefaultDomain,
		Port:     a.answerer.Port(),
		Instance: a.instanceID,
	}
	if err := a.announcer.Announce(ctx, info); err != nil {
		a.sendAndLogError("mDNS announcement failed", err)
		return err
	}
	return nil
}

// sendAndLogError both logs an error and forwards it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.uiMessages <- appevents.AppErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)}
}

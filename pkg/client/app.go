// Package client wires the client-side collaborators together: the
// broadcast listener, the rendezvous state machine, and the outbound
// session connector.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	appevents "github.com/nlev27/holoLink/internal/app_events"
	clientevents "github.com/nlev27/holoLink/internal/app_events/client"
	"github.com/nlev27/holoLink/pkg/broadcast"
	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/rendezvous"
	"github.com/nlev27/holoLink/pkg/session"
)

// Config holds the client application's settings.
type Config struct {
	AutoStart      bool
	BroadcastPort  int
	SignalingPort  int
	MarkerID       marker.ID
	StartDelay     time.Duration
	ConnectTimeout time.Duration
}

// App is the main application logic controller for the client role.
type App struct {
	cfg        Config
	machine    *rendezvous.Client
	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
}

// NewApp creates a client application instance.
func NewApp(cfg Config) (*App, error) {
	transport := broadcast.NewUDPTransport(cfg.BroadcastPort, 0)
	connector := session.NewWebRTCConnector(session.NewAPI(), session.Config{}, cfg.SignalingPort)

	machine, err := rendezvous.NewClient(
		transport,
		rendezvous.ConnectorFunc(func(ctx context.Context, addr string) (rendezvous.Session, error) {
			return connector.Connect(ctx, addr)
		}),
		rendezvous.ClientConfig{
			AutoStart:      cfg.AutoStart,
			MarkerID:       cfg.MarkerID,
			StartDelay:     cfg.StartDelay,
			ConnectTimeout: cfg.ConnectTimeout,
		},
	)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		machine:    machine,
		uiMessages: make(chan tea.Msg, 10),
		appEvents:  make(chan appevents.AppEvent),
	}
	machine.OnSessionFound(func() {
		a.uiMessages <- clientevents.SessionFoundMsg{}
	})
	machine.OnStateChange(func(s rendezvous.DiscoveryState) {
		a.uiMessages <- clientevents.StateChangedMsg{State: s}
		if s == rendezvous.StateConnected {
			if sess := machine.Session(); sess != nil {
				a.uiMessages <- clientevents.ConnectedMsg{Remote: sess.RemoteAddr()}
			}
		}
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

// Session returns the established session, nil before rendezvous.
func (a *App) Session() rendezvous.Session {
	return a.machine.Session()
}

// Run drives the rendezvous loop until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.machine.Run(ctx); err != nil && ctx.Err() == nil {
			a.sendAndLogError("Rendezvous loop failed", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				if sess := a.machine.Session(); sess != nil {
					if err := sess.Close(); err != nil {
						slog.Warn("Failed to close session", "error", err)
					}
				}
				return nil
			case event := <-a.appEvents:
				if e, ok := event.(appevents.UIErrorEvent); ok {
					slog.Error("UI error", "error", e.Err)
				}
			}
		}
	})
	return g.Wait()
}

// sendAndLogError both logs an error and forwards it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.uiMessages <- appevents.AppErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)}
}

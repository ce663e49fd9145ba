// Package ui is the bench TUI for holoLink: a status view per role plus
// a keyboard stand-in for the vision collaborator on the host side.
package ui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/nlev27/holoLink/internal/app_events"
	clientApp "github.com/nlev27/holoLink/pkg/client"
	hostApp "github.com/nlev27/holoLink/pkg/host"
	"github.com/nlev27/holoLink/pkg/rendezvous"
)

// AppController is the contract between the TUI and a role app.
type AppController interface {
	Run(ctx context.Context) error
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
}

// Options carries the per-role configuration into InitialModel.
type Options struct {
	Host   hostApp.Config
	Client clientApp.Config
}

type model struct {
	role          rendezvous.Role
	appController AppController
	width         int
	lastErr       error
	host          hostModel
	client        clientModel
}

// InitialModel builds the TUI model and its app controller.
func InitialModel(role rendezvous.Role, opts Options) (tea.Model, error) {
	var appController AppController
	var hostM hostModel
	var clientM clientModel
	var err error

	switch role {
	case rendezvous.RoleHost:
		appController, err = hostApp.NewApp(opts.Host)
		hostM = initHostModel()
	case rendezvous.RoleClient:
		appController, err = clientApp.NewApp(opts.Client)
		clientM = initClientModel(opts.Client)
	}
	if err != nil {
		return nil, err
	}

	return model{
		role:          role,
		appController: appController,
		host:          hostM,
		client:        clientM,
	}, nil
}

func (m model) Init() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		if err := m.appController.Run(ctx); err != nil {
			slog.Error("App controller exited", "error", err)
		}
	}()

	switch m.role {
	case rendezvous.RoleHost:
		return m.initHost()
	case rendezvous.RoleClient:
		return m.initClient()
	default:
		return nil
	}
}

// listenForAppMessages pumps one message from the app controller into
// the bubbletea loop; handlers re-issue it to keep the pump running.
func (m *model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.appController.UIMessages()
	}
}

func (m model) View() string {
	var s string
	switch m.role {
	case rendezvous.RoleHost:
		s = m.hostView()
	case rendezvous.RoleClient:
		s = m.clientView()
	default:
		return ""
	}
	s += "\nPress ctrl + c to quit"
	return s
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case appevents.AppErrorMsg:
		m.lastErr = msg.Err
		return m, m.listenForAppMessages()
	}

	switch m.role {
	case rendezvous.RoleHost:
		return m.updateHost(msg)
	case rendezvous.RoleClient:
		return m.updateClient(msg)
	}
	return m, nil
}

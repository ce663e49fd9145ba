package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	clientevents "github.com/nlev27/holoLink/internal/app_events/client"
	"github.com/nlev27/holoLink/internal/style"
	clientApp "github.com/nlev27/holoLink/pkg/client"
	"github.com/nlev27/holoLink/pkg/rendezvous"
)

type clientModel struct {
	spinner  spinner.Model
	markerID int
	state    rendezvous.DiscoveryState
	found    bool
	remote   string
}

func initClientModel(cfg clientApp.Config) clientModel {
	return clientModel{
		spinner:  style.NewSpinner(),
		markerID: int(cfg.MarkerID),
		state:    rendezvous.StateIdle,
	}
}

func (m *model) initClient() tea.Cmd {
	return tea.Batch(m.client.spinner.Tick, m.listenForAppMessages())
}

func (m model) updateClient(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case clientevents.StateChangedMsg:
		m.client.state = msg.State
		return m, m.listenForAppMessages()
	case clientevents.SessionFoundMsg:
		m.client.found = true
		return m, m.listenForAppMessages()
	case clientevents.ConnectedMsg:
		m.client.remote = msg.Remote
		return m, m.listenForAppMessages()
	case clientevents.StatusUpdateMsg:
		return m, m.listenForAppMessages()
	}

	var spinCmd tea.Cmd
	m.client.spinner, spinCmd = m.client.spinner.Update(msg)
	return m, spinCmd
}

func (m model) clientView() string {
	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("holoLink client") + "\n\n")
	b.WriteString(fmt.Sprintf("Rendered marker: %d\n", m.client.markerID))

	switch m.client.state {
	case rendezvous.StateConnected:
		b.WriteString(style.ConnectedStyle.Render("connected to "+m.truncate(m.client.remote)) + "\n")
	case rendezvous.StateIdle:
		b.WriteString(style.StateStyle.Render("waiting to start") + "\n")
	default:
		b.WriteString(fmt.Sprintf("%s %s\n", m.client.spinner.View(),
			style.StateStyle.Render(m.client.state.String())))
	}

	if m.client.found && m.client.state != rendezvous.StateConnected {
		b.WriteString("session found, connecting…\n")
	}
	if m.lastErr != nil {
		b.WriteString(style.ErrorStyle.Render(m.truncate(m.lastErr.Error())) + "\n")
	}
	return b.String()
}

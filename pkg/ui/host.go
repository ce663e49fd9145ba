package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	hostevents "github.com/nlev27/holoLink/internal/app_events/host"
	"github.com/nlev27/holoLink/internal/style"
	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/rendezvous"
)

type hostModel struct {
	spinner  spinner.Model
	input    textinput.Model
	state    rendezvous.DiscoveryState
	payload  string
	sessions []string
	inputErr string
}

func initHostModel() hostModel {
	ti := textinput.New()
	ti.Placeholder = "marker id"
	ti.CharLimit = 12
	ti.Width = 16
	ti.Focus()

	return hostModel{
		spinner: style.NewSpinner(),
		input:   ti,
		state:   rendezvous.StateIdle,
	}
}

func (m *model) initHost() tea.Cmd {
	return tea.Batch(m.host.spinner.Tick, textinput.Blink, m.listenForAppMessages())
}

func (m model) updateHost(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, handled := m.handleHostAppMessage(msg); handled {
		return m, cmd
	}

	var cmds []tea.Cmd
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		m.submitMarker()
	} else {
		var cmd tea.Cmd
		m.host.input, cmd = m.host.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var spinCmd tea.Cmd
	m.host.spinner, spinCmd = m.host.spinner.Update(msg)
	return m, tea.Batch(append(cmds, spinCmd)...)
}

// submitMarker feeds the typed marker ID to the app as a simulated
// detection.
func (m *model) submitMarker() {
	raw := strings.TrimSpace(m.host.input.Value())
	if raw == "" {
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		m.host.inputErr = fmt.Sprintf("%q is not a marker id", raw)
		return
	}
	m.host.inputErr = ""
	m.host.input.Reset()
	m.appController.AppEvents() <- hostevents.MarkerDetectedEvent{
		Detection: marker.Detection{ID: marker.ID(id)},
	}
}

func (m *model) handleHostAppMessage(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case hostevents.StateChangedMsg:
		m.host.state = msg.State
		return m.listenForAppMessages(), true
	case hostevents.BroadcastingMsg:
		m.host.payload = msg.Payload
		return m.listenForAppMessages(), true
	case hostevents.SessionEstablishedMsg:
		m.host.sessions = append(m.host.sessions, msg.Remote)
		return m.listenForAppMessages(), true
	case hostevents.StatusUpdateMsg:
		return m.listenForAppMessages(), true
	}
	return nil, false
}

func (m model) hostView() string {
	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("holoLink host") + "\n\n")

	switch m.host.state {
	case rendezvous.StateBroadcasting:
		b.WriteString(fmt.Sprintf("%s %s\n", m.host.spinner.View(),
			style.StateStyle.Render("broadcasting "+m.truncate(m.host.payload))))
	default:
		b.WriteString(style.StateStyle.Render(m.host.state.String()) + "\n")
	}

	for _, remote := range m.host.sessions {
		b.WriteString(style.ConnectedStyle.Render("client connected: "+m.truncate(remote)) + "\n")
	}

	b.WriteString("\nDetected marker id: " + m.host.input.View() + "\n")
	if m.host.inputErr != "" {
		b.WriteString(style.ErrorStyle.Render(m.host.inputErr) + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(style.ErrorStyle.Render(m.truncate(m.lastErr.Error())) + "\n")
	}
	b.WriteString(style.HelpStyle.Render("enter: simulate a marker detection"))
	return b.String()
}

// truncate keeps single-line output within the terminal width.
func (m model) truncate(s string) string {
	if m.width <= 4 {
		return s
	}
	return runewidth.Truncate(s, m.width-4, "…")
}

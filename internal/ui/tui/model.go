package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// maxLogLines is how many recent log lines the dashboard keeps.
const maxLogLines = 6

// PhaseRow is a control plane phase as displayed.
type PhaseRow struct {
	Name   string
	Done   bool
	Active bool
	Err    error
}

// NodeRow is a node as displayed.
type NodeRow struct {
	Name      string
	State     string
	Attempts  int
	LastError string
	Since     time.Time
}

// Model is the Bubble Tea model for the bootstrap dashboard.
type Model struct {
	ClusterName  string
	ControlPlane string

	// Phases and nodes appear in the order they are first reported.
	Phases []PhaseRow
	Nodes  []NodeRow
	Logs   []string

	StartTime    time.Time
	SpinnerFrame int

	Width  int
	Height int
	Err    error
	Done   bool
}

// NewBootstrapModel creates the dashboard for clusterName, whose control
// plane node is named controlPlane.
func NewBootstrapModel(clusterName, controlPlane string) Model {
	return Model{
		ClusterName:  clusterName,
		ControlPlane: controlPlane,
		StartTime:    time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case PhaseMsg:
		m.updatePhase(msg)

	case NodeStateMsg:
		row := m.node(msg.Node)
		if row.State != msg.State {
			row.Since = time.Now()
		}
		row.State = msg.State

	case JoinAttemptMsg:
		row := m.node(msg.Node)
		row.Attempts++
		row.LastError = msg.Message

	case LogMsg:
		m.Logs = append(m.Logs, msg.Line)
		if len(m.Logs) > maxLogLines {
			m.Logs = m.Logs[len(m.Logs)-maxLogLines:]
		}

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) updatePhase(msg PhaseMsg) {
	idx := -1
	for i, phase := range m.Phases {
		if phase.Name == msg.Phase {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.Phases = append(m.Phases, PhaseRow{Name: msg.Phase})
		idx = len(m.Phases) - 1
	}

	// Phases run in sequence, so every earlier one has finished.
	for i := 0; i < idx; i++ {
		m.Phases[i].Active = false
		if m.Phases[i].Err == nil {
			m.Phases[i].Done = true
		}
	}

	phase := &m.Phases[idx]
	phase.Active = !msg.Done
	phase.Done = msg.Done
	if msg.Err != nil {
		phase.Err = msg.Err
	}
}

// node returns the row for name, adding it when unseen.
func (m *Model) node(name string) *NodeRow {
	for i := range m.Nodes {
		if m.Nodes[i].Name == name {
			return &m.Nodes[i]
		}
	}
	m.Nodes = append(m.Nodes, NodeRow{Name: name, Since: time.Now()})
	return &m.Nodes[len(m.Nodes)-1]
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}

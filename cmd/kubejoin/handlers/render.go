package handlers

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/imamik/kubejoin/internal/bootstrap"
	"github.com/imamik/kubejoin/internal/k8s"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Colors matching internal/ui/tui/styles.go palette.
var (
	renderColorGreen  = lipgloss.Color("#22c55e")
	renderColorRed    = lipgloss.Color("#ef4444")
	renderColorYellow = lipgloss.Color("#eab308")
	renderColorBlue   = lipgloss.Color("#3b82f6")
	renderColorDim    = lipgloss.Color("#6b7280")
	renderColorWhite  = lipgloss.Color("#f9fafb")
)

var (
	renderTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(renderColorWhite)

	renderSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(renderColorBlue)

	renderDimStyle = lipgloss.NewStyle().
			Foreground(renderColorDim)

	renderGreenStyle = lipgloss.NewStyle().
				Foreground(renderColorGreen)

	renderRedStyle = lipgloss.NewStyle().
			Foreground(renderColorRed)

	renderYellowStyle = lipgloss.NewStyle().
				Foreground(renderColorYellow)
)

// isInteractiveTTY reports whether stdout is a terminal. Replaced in tests.
var isInteractiveTTY = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// painter applies a style only when output is styled.
type painter bool

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p {
		return s
	}
	return style.Render(s)
}

// renderJoinSummary lists the bootstrap state of every node the coordinator saw.
func renderJoinSummary(clusterName string, statuses []bootstrap.NodeStatus, styled bool) string {
	p := painter(styled)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(p.paint(renderTitleStyle, fmt.Sprintf("  kubejoin: %s", clusterName)))
	b.WriteString("\n")
	b.WriteString(p.paint(renderDimStyle, "  "+strings.Repeat("─", 60)))
	b.WriteString("\n")

	for _, s := range statuses {
		state := string(s.State)
		switch s.State {
		case bootstrap.StateJoined, bootstrap.StateInitialized:
			state = p.paint(renderGreenStyle, state)
		case bootstrap.StateJoinFailed, bootstrap.StateInitFailed:
			state = p.paint(renderRedStyle, state)
		default:
			state = p.paint(renderYellowStyle, state)
		}
		fmt.Fprintf(&b, "    %-28s %-14s %s", s.Node, s.Role, state)
		if s.Attempts > 0 {
			fmt.Fprintf(&b, " (attempts: %d)", s.Attempts)
		}
		b.WriteString("\n")
		if s.LastError != "" {
			b.WriteString(p.paint(renderDimStyle, "      "+truncateLine(s.LastError, 100)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderClusterNodes lists the nodes registered with the API server.
func renderClusterNodes(clusterName string, nodes []k8s.NodeInfo, styled bool) string {
	p := painter(styled)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(p.paint(renderTitleStyle, fmt.Sprintf("  kubejoin status: %s", clusterName)))
	b.WriteString("\n")
	b.WriteString(p.paint(renderDimStyle, "  "+strings.Repeat("─", 60)))
	b.WriteString("\n")

	ready := 0
	for _, n := range nodes {
		if n.Ready {
			ready++
		}
	}
	b.WriteString(p.paint(renderSectionStyle, fmt.Sprintf("  Nodes (%d/%d ready)", ready, len(nodes))))
	b.WriteString("\n")

	for _, n := range nodes {
		status := p.paint(renderGreenStyle, fmt.Sprintf("%-10s", "Ready"))
		if !n.Ready {
			status = p.paint(renderRedStyle, fmt.Sprintf("%-10s", "NotReady"))
		}
		fmt.Fprintf(&b, "    %-28s %-14s %s %-16s %-10s %s\n",
			n.Name, n.Role, status, n.InternalIP, n.KubeletVersion, formatAge(n.Age))
	}
	return b.String()
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatAge(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

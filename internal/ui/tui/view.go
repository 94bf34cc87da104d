package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/kubejoin/internal/bootstrap"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)

	if len(m.Phases) > 0 {
		renderPhases(&b, m)
	}
	if len(m.Nodes) > 0 {
		renderNodes(&b, m)
	}
	if len(m.Logs) > 0 {
		renderLogs(&b, m)
	}

	renderFooter(&b, m)
	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render(fmt.Sprintf("kubejoin: %s", m.ClusterName)))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done:
		status += readyStyle.Render("Bootstrapped")
	default:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") + warningStyle.Render(currentActivity(m))
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := calculateProgress(m)
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = max(m.Width-30, 10)
	}
	filled := min(int(float64(barWidth)*progress), barWidth)

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))
	fmt.Fprintf(b, "  %s %d%%\n", bar, int(progress*100))
}

func renderPhases(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Control plane"))
	b.WriteString("\n")

	for _, phase := range m.Phases {
		var icon string
		var style styleFunc
		switch {
		case phase.Err != nil:
			icon = crossMark
			style = sf(failedStyle)
		case phase.Done:
			icon = checkMark
			style = sf(readyStyle)
		case phase.Active:
			icon = currentSpinner(m.SpinnerFrame)
			style = sf(activeStyle)
		default:
			icon = pending
			style = sf(dimStyle)
		}
		line := fmt.Sprintf("    %s %s", style(icon), style(phase.Name))
		if phase.Err != nil {
			line += " " + dimStyle.Render(phase.Err.Error())
		}
		b.WriteString(line + "\n")
	}
}

func renderNodes(b *strings.Builder, m Model) {
	joined, total := joinedWorkers(m)
	b.WriteString(sectionStyle.Render(fmt.Sprintf("  Nodes (%d/%d workers joined)", joined, total)))
	b.WriteString("\n")

	for _, node := range m.Nodes {
		icon, style := nodeStateIcon(node.State, m.SpinnerFrame)
		extra := dimStyle.Render(formatDuration(time.Since(node.Since)))
		if node.Attempts > 0 && !isTerminal(node.State) {
			extra += warningStyle.Render(fmt.Sprintf("  retry %d", node.Attempts))
		}
		fmt.Fprintf(b, "    %s %-24s %-22s %s\n", style(icon), node.Name, style(node.State), extra)
		if node.LastError != "" && node.State == string(bootstrap.StateJoinFailed) {
			fmt.Fprintf(b, "      %s\n", dimStyle.Render(truncate(node.LastError, 100)))
		}
	}
}

func renderLogs(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Log"))
	b.WriteString("\n")
	for _, line := range m.Logs {
		fmt.Fprintf(b, "    %s\n", dimStyle.Render(truncate(line, 120)))
	}
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed: %s  |  q: quit", elapsed)))
	b.WriteString("\n")
}

// Helper functions

func nodeStateIcon(state string, frame int) (string, styleFunc) {
	switch bootstrap.NodeState(state) {
	case bootstrap.StateJoined, bootstrap.StateInitialized:
		return checkMark, sf(readyStyle)
	case bootstrap.StateJoinFailed, bootstrap.StateInitFailed:
		return crossMark, sf(failedStyle)
	case bootstrap.StateJoinRequested:
		return currentSpinner(frame), sf(activeStyle)
	case "":
		return pending, sf(dimStyle)
	default:
		return warnMark, sf(warningStyle)
	}
}

func isTerminal(state string) bool {
	switch bootstrap.NodeState(state) {
	case bootstrap.StateJoined, bootstrap.StateJoinFailed, bootstrap.StateInitialized, bootstrap.StateInitFailed:
		return true
	}
	return false
}

// currentActivity names what the bootstrap is doing right now.
func currentActivity(m Model) string {
	for _, p := range m.Phases {
		if p.Active {
			return p.Name
		}
	}
	if _, total := joinedWorkers(m); total > 0 {
		return "joining workers"
	}
	return "starting"
}

// joinedWorkers counts every node row except the control plane.
func joinedWorkers(m Model) (joined, total int) {
	for _, n := range m.Nodes {
		if n.Name == m.ControlPlane {
			continue
		}
		total++
		if n.State == string(bootstrap.StateJoined) {
			joined++
		}
	}
	return joined, total
}

func currentSpinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

// calculateProgress weighs control plane phases at 40% and worker joins at 60%.
func calculateProgress(m Model) float64 {
	if m.Done {
		return 1.0
	}

	var progress float64
	if len(m.Phases) > 0 {
		done := 0
		for _, p := range m.Phases {
			if p.Done && p.Err == nil {
				done++
			}
		}
		progress = float64(done) / float64(len(m.Phases)) * 0.4
	}

	failed := 0
	joined, total := joinedWorkers(m)
	for _, n := range m.Nodes {
		if n.Name != m.ControlPlane && n.State == string(bootstrap.StateJoinFailed) {
			failed++
		}
	}
	if total > 0 {
		progress += float64(joined+failed) / float64(total) * 0.6
	}
	return min(progress, 1.0)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

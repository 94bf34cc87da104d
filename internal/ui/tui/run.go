package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/kubejoin/internal/provisioning"
)

// ErrAborted is returned when the user quits the dashboard before the
// bootstrap finished.
var ErrAborted = errors.New("dashboard closed before bootstrap finished")

// RunBootstrapTUI runs fn behind a Bubble Tea dashboard. fn receives an
// observer that renders its events. Quitting the dashboard cancels the
// context passed to fn.
func RunBootstrapTUI(
	ctx context.Context,
	clusterName, controlPlane string,
	fn func(ctx context.Context, observer provisioning.Observer) error,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewBootstrapModel(clusterName, controlPlane)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	result := make(chan error, 1)
	go func() {
		err := fn(ctx, NewObserver(p))
		result <- err
		if err != nil {
			p.Send(ErrMsg{Err: err})
			return
		}
		p.Send(DoneMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}

	fm, _ := finalModel.(Model)
	if !fm.Done && fm.Err == nil {
		cancel()
		<-result
		return ErrAborted
	}
	return <-result
}

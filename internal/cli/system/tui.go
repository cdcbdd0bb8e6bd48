package system

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	// Perform automatic backup on TUI startup (after successful load)
	ctx.PerformAutomaticBackup()

	p := tea.NewProgram(tui.NewModel(ctx.Tracker, ctx.Coordinator), tea.WithAltScreen())
	_, err := p.Run()

	// A dispense confirmed just before quitting still has to land.
	ctx.Coordinator.Wait()

	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

package system

import (
	"fmt"

	"github.com/julianstephens/pillbox/internal/cli"
)

type ValidateCmd struct {
	Strict bool `help:"Exit with an error when conflicts are found."`
}

func (c *ValidateCmd) Run(ctx *cli.Context) error {
	result, err := ctx.Tracker.Conflicts()
	if err != nil {
		return fmt.Errorf("failed to validate medicines: %w", err)
	}

	fmt.Print(result.FormatReport())
	if !result.HasConflicts() {
		fmt.Println()
		return nil
	}
	if c.Strict {
		return fmt.Errorf("%d conflict(s) found", len(result.Conflicts))
	}
	return nil
}

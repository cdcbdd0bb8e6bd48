package settings

import (
	"fmt"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/errors"
)

// EmergencyCmd shows who to call. Without a saved phone number it fails so
// scripts wrapping it notice.
type EmergencyCmd struct{}

func (c *EmergencyCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	contact := settings.EmergencyContact
	if !contact.Callable() {
		fmt.Println("⚠ No emergency contact phone number saved.")
		return errors.WithHint(
			fmt.Errorf("no emergency contact saved"),
			fmt.Sprintf("save one with '%s settings --emergency-name NAME --emergency-phone NUMBER'", constants.AppName),
		)
	}

	fmt.Println("Emergency contact:")
	if contact.Name != "" {
		fmt.Printf("  Name:   %s\n", contact.Name)
	}
	fmt.Printf("  Phone:  %s\n", contact.Phone)
	if contact.Email != "" {
		fmt.Printf("  Email:  %s\n", contact.Email)
	}
	if settings.Profile.Name != "" {
		fmt.Printf("\nCalling on behalf of %s.\n", settings.Profile.Name)
	}
	return nil
}

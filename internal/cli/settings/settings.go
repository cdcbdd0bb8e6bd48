package settings

import (
	"fmt"
	"strings"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/utils"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	Timezone          *string `help:"IANA timezone used to decide today's date, or 'Local'."`
	TimeFormat        *string `help:"Display clock: 12h or 24h." enum:"12h,24h"`
	ReminderBeforeMin *int    `help:"Minutes before a dose it is shown as due soon."`
	DeviceTimeoutSec  *int    `help:"Seconds to wait for the dispenser before giving up."`
	MissedGraceMin    *int    `help:"Minutes past schedule before a sweep marks a dose missed."`
	LowBatteryPercent *int    `help:"Battery level at or below which the device is reported low."`

	ProfileName    *string `help:"Name of the person taking the medicines."`
	ProfileEmail   *string `help:"Email of the person taking the medicines."`
	EmergencyName  *string `help:"Emergency contact name. Pass an empty value to clear."`
	EmergencyPhone *string `help:"Emergency contact phone number."`
	EmergencyEmail *string `help:"Emergency contact email."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if c.List {
		fmt.Println("Current Settings:")
		fmt.Printf("  Timezone:            %s\n", settings.Timezone)
		fmt.Printf("  Time Format:         %s\n", settings.TimeFormat)
		fmt.Printf("  Reminder Lead:       %d min\n", settings.ReminderBeforeMin)
		fmt.Printf("  Missed Grace:        %d min\n", settings.MissedGraceMin)
		fmt.Println("\nDevice Settings:")
		fmt.Printf("  Device Timeout:      %d s\n", settings.DeviceTimeoutSec)
		fmt.Printf("  Low Battery:         %d%%\n", settings.LowBatteryPercent)
		fmt.Println("\nProfile:")
		fmt.Printf("  Name:                %s\n", orNone(settings.Profile.Name))
		fmt.Printf("  Email:               %s\n", orNone(settings.Profile.Email))
		fmt.Println("\nEmergency Contact:")
		fmt.Printf("  Name:                %s\n", orNone(settings.EmergencyContact.Name))
		fmt.Printf("  Phone:               %s\n", orNone(settings.EmergencyContact.Phone))
		fmt.Printf("  Email:               %s\n", orNone(settings.EmergencyContact.Email))
		return nil
	}

	updated := false
	if c.Timezone != nil {
		if !utils.ValidateTimezone(*c.Timezone) {
			return fmt.Errorf("invalid timezone: %q", *c.Timezone)
		}
		settings.Timezone = *c.Timezone
		updated = true
	}
	if c.TimeFormat != nil {
		if *c.TimeFormat != constants.ClockFormat12h && *c.TimeFormat != constants.ClockFormat24h {
			return fmt.Errorf("invalid time format: %q (expected 12h or 24h)", *c.TimeFormat)
		}
		settings.TimeFormat = *c.TimeFormat
		updated = true
	}
	if c.ReminderBeforeMin != nil {
		if *c.ReminderBeforeMin < 0 {
			return fmt.Errorf("reminder lead must not be negative")
		}
		settings.ReminderBeforeMin = *c.ReminderBeforeMin
		updated = true
	}
	if c.DeviceTimeoutSec != nil {
		if *c.DeviceTimeoutSec <= 0 {
			return fmt.Errorf("device timeout must be positive")
		}
		settings.DeviceTimeoutSec = *c.DeviceTimeoutSec
		updated = true
	}
	if c.MissedGraceMin != nil {
		if *c.MissedGraceMin < 0 {
			return fmt.Errorf("missed grace must not be negative")
		}
		settings.MissedGraceMin = *c.MissedGraceMin
		updated = true
	}
	if c.LowBatteryPercent != nil {
		if *c.LowBatteryPercent < 0 || *c.LowBatteryPercent > 100 {
			return fmt.Errorf("low battery percent must be between 0 and 100")
		}
		settings.LowBatteryPercent = *c.LowBatteryPercent
		updated = true
	}

	if c.applyContact(&settings) {
		updated = true
	}

	if updated {
		if err := ctx.Tracker.SaveSettings(settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Println("Settings updated successfully.")
	} else {
		fmt.Println("No changes specified. Use --list to view settings or flags to update them.")
	}

	return nil
}

// applyContact copies the profile and emergency contact flags that were set.
func (c *SettingsCmd) applyContact(settings *models.Settings) bool {
	fields := []struct {
		flag *string
		dst  *string
	}{
		{c.ProfileName, &settings.Profile.Name},
		{c.ProfileEmail, &settings.Profile.Email},
		{c.EmergencyName, &settings.EmergencyContact.Name},
		{c.EmergencyPhone, &settings.EmergencyContact.Phone},
		{c.EmergencyEmail, &settings.EmergencyContact.Email},
	}
	changed := false
	for _, f := range fields {
		if f.flag != nil {
			*f.dst = strings.TrimSpace(*f.flag)
			changed = true
		}
	}
	return changed
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

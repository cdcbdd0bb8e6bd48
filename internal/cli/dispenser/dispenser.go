package dispenser

import (
	"context"
	"fmt"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
)

type StatusCmd struct {
	Cached bool `help:"Show the last known snapshot without contacting the device."`
}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	if c.Cached {
		snap, ok, err := ctx.Tracker.Device()
		if err != nil {
			return fmt.Errorf("failed to read device snapshot: %w", err)
		}
		if !ok {
			fmt.Printf("Device has not been contacted yet. Run '%s device status'.\n", constants.AppName)
			return nil
		}
		return printSnapshot(ctx, snap)
	}

	snap, err := ctx.Coordinator.CheckStatus(context.Background())
	if err != nil {
		fmt.Println("❌ Device: offline")
		return fmt.Errorf("%s: %w", constants.DeviceUnreachableReason, err)
	}
	return printSnapshot(ctx, snap)
}

func printSnapshot(ctx *cli.Context, snap models.DeviceSnapshot) error {
	settings, err := ctx.Tracker.Settings()
	if err != nil {
		return err
	}

	online := "offline"
	if snap.IsOnline {
		online = "online"
	}
	fmt.Printf("Device:    %s\n", online)
	fmt.Printf("Battery:   %d%% (%s)\n", snap.BatteryPercent, snap.BatteryBand())
	if snap.LastSyncedAt.IsZero() {
		fmt.Println("Last sync: never")
	} else {
		fmt.Printf("Last sync: %s\n", snap.LastSyncedAt.Format(constants.DisplayDateTimeFormat))
	}
	if snap.BatteryPercent <= settings.LowBatteryPercent {
		fmt.Printf("⚠ Battery is low (%d%% or less). Charge the dispenser soon.\n", settings.LowBatteryPercent)
	}
	return nil
}

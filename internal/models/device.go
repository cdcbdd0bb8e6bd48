package models

import (
	"time"

	"github.com/julianstephens/pillbox/internal/constants"
)

// DeviceSnapshot is the current belief about the dispenser. It is replaced
// wholesale on every status check or dispense attempt.
type DeviceSnapshot struct {
	IsOnline       bool      `json:"is_online"`
	BatteryPercent int       `json:"battery_percent"`
	LastSyncedAt   time.Time `json:"last_synced_at"`
}

// BatteryBand classifies the battery level for display.
func (d DeviceSnapshot) BatteryBand() string {
	switch {
	case d.BatteryPercent <= constants.BatteryLowThreshold:
		return "low"
	case d.BatteryPercent <= constants.BatteryMediumThreshold:
		return "medium"
	default:
		return "good"
	}
}

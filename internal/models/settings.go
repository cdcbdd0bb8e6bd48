package models

// Settings represents application-wide settings
type Settings struct {
	Timezone          string `json:"timezone"`            // IANA timezone name (e.g. "America/New_York", or "Local" for system timezone)
	TimeFormat        string `json:"time_format"`         // "12h" or "24h" display clock
	ReminderBeforeMin int    `json:"reminder_before_min"` // minutes before a dose it is flagged as due soon
	DeviceTimeoutSec  int    `json:"device_timeout_sec"`  // upper bound on a single device call
	MissedGraceMin    int    `json:"missed_grace_min"`    // minutes past schedule before a sweep marks a dose missed
	LowBatteryPercent int    `json:"low_battery_percent"` // battery level at or below which the device is reported low

	Profile          Profile          `json:"profile"`
	EmergencyContact EmergencyContact `json:"emergency_contact"`
}

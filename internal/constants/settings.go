package constants

const (
	// Setting keys
	SettingTimezone          = "timezone"
	SettingTimeFormat        = "time_format"
	SettingReminderBeforeMin = "reminder_before_min"
	SettingDeviceTimeoutSec  = "device_timeout_sec"
	SettingMissedGraceMin    = "missed_grace_min"
	SettingLowBatteryPercent = "low_battery_percent"
	SettingProfileName       = "profile_name"
	SettingProfileEmail      = "profile_email"
	SettingEmergencyName     = "emergency_contact_name"
	SettingEmergencyPhone    = "emergency_contact_phone"
	SettingEmergencyEmail    = "emergency_contact_email"

	// Time format values
	ClockFormat12h = "12h"
	ClockFormat24h = "24h"

	// Default Settings Values
	DefaultTimezone          = "Local" // Use system local timezone by default
	DefaultTimeFormat        = ClockFormat12h
	DefaultReminderBeforeMin = 15
	DefaultDeviceTimeoutSec  = 10
	DefaultMissedGraceMin    = 60
	DefaultLowBatteryPercent = BatteryLowThreshold
)

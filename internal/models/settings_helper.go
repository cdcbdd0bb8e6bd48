package models

import (
	"fmt"
	"strconv"

	"github.com/julianstephens/pillbox/internal/constants"
)

// MapToSettings converts a map of key-value pairs to a Settings struct.
func MapToSettings(data map[string]string) (Settings, error) {
	settings := Settings{}

	for key, value := range data {
		switch key {
		case constants.SettingTimezone:
			settings.Timezone = value
		case constants.SettingTimeFormat:
			settings.TimeFormat = value
		case constants.SettingReminderBeforeMin:
			if _, err := fmt.Sscanf(value, "%d", &settings.ReminderBeforeMin); err != nil {
				return Settings{}, fmt.Errorf("parsing reminder_before_min: %w", err)
			}
		case constants.SettingDeviceTimeoutSec:
			if _, err := fmt.Sscanf(value, "%d", &settings.DeviceTimeoutSec); err != nil {
				return Settings{}, fmt.Errorf("parsing device_timeout_sec: %w", err)
			}
		case constants.SettingMissedGraceMin:
			if _, err := fmt.Sscanf(value, "%d", &settings.MissedGraceMin); err != nil {
				return Settings{}, fmt.Errorf("parsing missed_grace_min: %w", err)
			}
		case constants.SettingLowBatteryPercent:
			if _, err := fmt.Sscanf(value, "%d", &settings.LowBatteryPercent); err != nil {
				return Settings{}, fmt.Errorf("parsing low_battery_percent: %w", err)
			}
		case constants.SettingProfileName:
			settings.Profile.Name = value
		case constants.SettingProfileEmail:
			settings.Profile.Email = value
		case constants.SettingEmergencyName:
			settings.EmergencyContact.Name = value
		case constants.SettingEmergencyPhone:
			settings.EmergencyContact.Phone = value
		case constants.SettingEmergencyEmail:
			settings.EmergencyContact.Email = value
		}
	}
	return settings, nil
}

// SettingsToMap converts a Settings struct to a map of key-value pairs.
func SettingsToMap(settings Settings) map[string]string {
	return map[string]string{
		constants.SettingTimezone:          settings.Timezone,
		constants.SettingTimeFormat:        settings.TimeFormat,
		constants.SettingReminderBeforeMin: strconv.Itoa(settings.ReminderBeforeMin),
		constants.SettingDeviceTimeoutSec:  strconv.Itoa(settings.DeviceTimeoutSec),
		constants.SettingMissedGraceMin:    strconv.Itoa(settings.MissedGraceMin),
		constants.SettingLowBatteryPercent: strconv.Itoa(settings.LowBatteryPercent),
		constants.SettingProfileName:       settings.Profile.Name,
		constants.SettingProfileEmail:      settings.Profile.Email,
		constants.SettingEmergencyName:     settings.EmergencyContact.Name,
		constants.SettingEmergencyPhone:    settings.EmergencyContact.Phone,
		constants.SettingEmergencyEmail:    settings.EmergencyContact.Email,
	}
}

// DefaultSettings returns the settings written by a fresh init.
func DefaultSettings() Settings {
	s := Settings{}
	ApplyDefaultSettings(&s)
	return s
}

// ApplyDefaultSettings applies default values to missing settings.
func ApplyDefaultSettings(settings *Settings) {
	if settings.Timezone == "" {
		settings.Timezone = constants.DefaultTimezone
	}
	if settings.TimeFormat == "" {
		settings.TimeFormat = constants.DefaultTimeFormat
	}
	if settings.ReminderBeforeMin == 0 {
		settings.ReminderBeforeMin = constants.DefaultReminderBeforeMin
	}
	if settings.DeviceTimeoutSec == 0 {
		settings.DeviceTimeoutSec = constants.DefaultDeviceTimeoutSec
	}
	if settings.MissedGraceMin == 0 {
		settings.MissedGraceMin = constants.DefaultMissedGraceMin
	}
	if settings.LowBatteryPercent == 0 {
		settings.LowBatteryPercent = constants.DefaultLowBatteryPercent
	}
}

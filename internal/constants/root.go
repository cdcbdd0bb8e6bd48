package constants

import "time"

// DoseStatus represents where a dose instance is in its lifecycle
type DoseStatus string

// Outcome represents the settled result recorded in the history ledger
type Outcome string

// SessionState represents the current state of the TUI application
type SessionState int

const (
	AppName            = "pillbox"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/pillbox/pillbox.db"
	Version            = "v0.2.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// DisplayTimeFormat12h is the display format used when settings select 12-hour clocks
	DisplayTimeFormat12h = "3:04 PM"
	// DisplayDateTimeFormat renders timestamps such as the last device sync
	DisplayDateTimeFormat = "2006-01-02 15:04"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "pillbox-"
	BackupFileSuffix = ".db"

	// Medicine constraints
	MinCompartment = 1
	MaxCompartment = 20

	// Dose status constants
	DoseStatusUpcoming  DoseStatus = "upcoming"
	DoseStatusDispensed DoseStatus = "dispensed"
	DoseStatusMissed    DoseStatus = "missed"

	// History outcome constants
	OutcomeDispensed Outcome = "dispensed"
	OutcomeMissed    Outcome = "missed"

	// Device constants
	DeviceLockfileName      = "pillbox-bridge.lock"
	DeviceBridgeExecutable  = "pillbox-bridge"
	DeviceSecretHeader      = "X-Pillbox-Secret"
	DefaultDeviceTimeout    = 10 * time.Second
	SimulatedMinLatency     = 1500 * time.Millisecond
	SimulatedMaxLatency     = 2000 * time.Millisecond
	SimulatedSuccessRate    = 0.9
	SimulatedMinBattery     = 20
	BatteryLowThreshold     = 20
	BatteryMediumThreshold  = 50
	DispenseSuccessMessage  = "Medicine dispensed successfully."
	DispenseFailureMessage  = "Dispensing failed. Please check the device."
	DeviceUnreachableReason = "Failed to communicate with device"

	// Watch daemon
	WatchLockfileName      = "pillbox-watch.lock"
	DefaultStatusPollSpec  = "@every 5m"
	DefaultRolloverSpec    = "0 0 * * *"
	DefaultSweepSpec       = "*/5 * * * *"
	MetricsNamespace       = "pillbox"
	DefaultMetricsEndpoint = "/metrics"
)

// Session States
const (
	StateDoses SessionState = iota
	StateConfirmDispense
	StateDispensing
	StateAddMedicine
)

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/pillbox/internal/backup"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/dispense"
	"github.com/julianstephens/pillbox/internal/keyring"
	"github.com/julianstephens/pillbox/internal/logger"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
	"github.com/julianstephens/pillbox/internal/tracker"
	"github.com/julianstephens/pillbox/internal/utils"
)

// Device backends selectable with --device.
const (
	DeviceSimulator = "simulator"
	DeviceBridge    = "bridge"
)

type Context struct {
	Store       storage.Provider
	Tracker     *tracker.Tracker
	Coordinator *dispense.Coordinator
	ConfigDir   string
}

// NewContext wires the tracker and dispense coordinator over store. Device
// calls are bounded by timeout.
func NewContext(store storage.Provider, gateway device.Gateway, timeout time.Duration) *Context {
	t := tracker.New(store)
	return &Context{
		Store:       store,
		Tracker:     t,
		Coordinator: dispense.New(t, gateway, dispense.WithTimeout(timeout)),
	}
}

// NewGateway returns the device backend named by kind.
func NewGateway(kind string) (device.Gateway, error) {
	switch kind {
	case "", DeviceSimulator:
		return device.NewSimulator(), nil
	case DeviceBridge:
		return device.NewBridge(device.WithSecretSource(func() (string, error) {
			return keyring.Get(keyring.BridgeSecret)
		}))
	default:
		return nil, fmt.Errorf("unknown device %q (expected %s or %s)", kind, DeviceSimulator, DeviceBridge)
	}
}

// DeviceTimeout reads the configured device timeout, falling back to the
// default when settings are unavailable.
func DeviceTimeout(store storage.Provider) time.Duration {
	settings, err := store.GetSettings()
	if err != nil || settings.DeviceTimeoutSec <= 0 {
		return constants.DefaultDeviceTimeout
	}
	return time.Duration(settings.DeviceTimeoutSec) * time.Second
}

// IsSQLite reports whether backups and file-level checks apply to the store.
func (c *Context) IsSQLite() bool {
	_, ok := c.Store.(*sqlite.Store)
	return ok
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	if !c.IsSQLite() {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.CreateBackup(); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// Clock formats an HH:MM value using the configured 12h/24h display format.
func (c *Context) Clock(hhmm string) string {
	settings, err := c.Tracker.Settings()
	if err != nil {
		return hhmm
	}
	return utils.FormatClock(hhmm, settings.TimeFormat)
}

// ParseDate accepts YYYY-MM-DD, "today" or "yesterday" relative to the
// configured timezone.
func (c *Context) ParseDate(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return c.Tracker.TodayDate()
	case "yesterday":
		now, err := c.Tracker.Now()
		if err != nil {
			return "", err
		}
		return now.AddDate(0, 0, -1).Format(constants.DateFormat), nil
	}
	if _, err := time.Parse(constants.DateFormat, s); err != nil {
		return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD, today or yesterday)", s)
	}
	return s, nil
}

// FindDose resolves a dose id, or with next set the first upcoming dose today.
func (c *Context) FindDose(id string, next bool) (models.Dose, error) {
	if next {
		doses, err := c.Tracker.Today()
		if err != nil {
			return models.Dose{}, err
		}
		dose, ok := models.NextUpcoming(doses)
		if !ok {
			return models.Dose{}, fmt.Errorf("no upcoming doses today")
		}
		return dose, nil
	}
	if id == "" {
		return models.Dose{}, fmt.Errorf("a dose id or --next is required")
	}
	return c.Tracker.Dose(id)
}

// FormatStatus renders a dose status for terminal output.
func FormatStatus(d models.Dose) string {
	switch d.Status {
	case constants.DoseStatusDispensed:
		return "✓ dispensed"
	case constants.DoseStatusMissed:
		return "✗ missed"
	default:
		return "○ upcoming"
	}
}

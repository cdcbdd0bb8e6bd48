package storage

import "github.com/julianstephens/pillbox/internal/models"

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Settings
	GetSettings() (models.Settings, error)
	SaveSettings(models.Settings) error

	// Medicines
	AddMedicine(models.Medicine) error
	GetMedicine(id string) (models.Medicine, error)
	GetAllMedicines(includeDeleted bool) ([]models.Medicine, error)
	DeleteMedicine(id string) error
	RestoreMedicine(id string) error

	// Doses
	GetDose(id string) (models.Dose, error)
	GetDosesForDate(date string) ([]models.Dose, error)
	// SaveDoses inserts doses whose id is not stored yet. Stored doses are
	// never overwritten, so a concurrently recorded outcome always survives.
	SaveDoses([]models.Dose) error
	// ApplyOutcome moves an upcoming dose to the record's outcome and appends
	// the record to the history ledger in a single transaction. It returns
	// ErrNotUpcoming (and writes nothing) if the dose was already settled.
	ApplyOutcome(doseID string, record models.HistoryRecord) error

	// History
	GetHistory(filter models.HistoryFilter) ([]models.HistoryRecord, error)

	// Device
	GetDeviceSnapshot() (models.DeviceSnapshot, error)
	SaveDeviceSnapshot(models.DeviceSnapshot) error

	// Utils
	GetConfigPath() string
}

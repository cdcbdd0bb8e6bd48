// Package tracker is the state container for medicines, doses, the history
// ledger and the device snapshot. Every mutation goes through a Tracker
// method; callers never write to storage directly.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/logger"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/scheduler"
	"github.com/julianstephens/pillbox/internal/storage"
	"github.com/julianstephens/pillbox/internal/utils"
	"github.com/julianstephens/pillbox/internal/validation"
)

// Tracker serializes in-process mutations with a mutex. Cross-process safety
// comes from the storage layer: SaveDoses never overwrites and ApplyOutcome
// only settles upcoming doses.
type Tracker struct {
	mu        sync.Mutex
	store     storage.Provider
	scheduler *scheduler.Scheduler
	validator *validation.Validator
	clock     func() time.Time
	log       *log.Logger
}

type Option func(*Tracker)

// WithClock replaces time.Now. The returned time is converted to the
// configured timezone before use.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) { t.clock = clock }
}

func New(store storage.Provider, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		scheduler: scheduler.New(),
		validator: validation.New(),
		clock:     time.Now,
		log:       logger.Named("tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MedicineInput is the data needed to register a medicine.
type MedicineInput struct {
	Name        string
	Dosage      string
	Compartment int
	Times       []string
	ActiveFrom  string
	ActiveUntil string
}

func (in MedicineInput) medicine() models.Medicine {
	return models.Medicine{
		Name:        in.Name,
		Dosage:      in.Dosage,
		Compartment: in.Compartment,
		Times:       append([]string(nil), in.Times...),
		ActiveFrom:  in.ActiveFrom,
		ActiveUntil: in.ActiveUntil,
	}
}

func (t *Tracker) Settings() (models.Settings, error) {
	return t.store.GetSettings()
}

// SaveSettings stores settings after checking the profile and emergency
// contact.
func (t *Tracker) SaveSettings(settings models.Settings) error {
	if err := settings.Profile.Validate(); err != nil {
		return err
	}
	if err := settings.EmergencyContact.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.SaveSettings(settings)
}

// Now returns the current time in the configured timezone.
func (t *Tracker) Now() (time.Time, error) {
	settings, err := t.store.GetSettings()
	if err != nil {
		return time.Time{}, err
	}
	return utils.NowInTimezone(settings.Timezone, t.clock)
}

// TodayDate returns today's date (YYYY-MM-DD) in the configured timezone.
func (t *Tracker) TodayDate() (string, error) {
	settings, err := t.store.GetSettings()
	if err != nil {
		return "", err
	}
	return utils.TodayFromSettings(settings, t.clock)
}

// PrepareMedicine normalizes and validates input without storing it.
func (t *Tracker) PrepareMedicine(in MedicineInput) (models.Medicine, error) {
	m := in.medicine()
	if err := m.Normalize(); err != nil {
		return models.Medicine{}, err
	}
	if err := m.Validate(); err != nil {
		return models.Medicine{}, err
	}
	return m, nil
}

// CheckMedicine reports the registry conflicts in would introduce. Conflicts
// are warnings; AddMedicine accepts them.
func (t *Tracker) CheckMedicine(in MedicineInput) (validation.ValidationResult, error) {
	m, err := t.PrepareMedicine(in)
	if err != nil {
		return validation.ValidationResult{}, err
	}
	existing, err := t.store.GetAllMedicines(false)
	if err != nil {
		return validation.ValidationResult{}, err
	}
	return t.validator.ValidateCandidate(existing, m), nil
}

// AddMedicine validates and stores a new medicine, then re-derives today so
// its doses appear immediately. It returns the generated id.
func (t *Tracker) AddMedicine(in MedicineInput) (string, error) {
	m, err := t.PrepareMedicine(in)
	if err != nil {
		return "", err
	}

	now, err := t.Now()
	if err != nil {
		return "", err
	}
	m.ID = uuid.New().String()
	m.CreatedAt = now

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.AddMedicine(m); err != nil {
		return "", err
	}
	t.log.Info("medicine added", "id", m.ID, "name", m.Name, "compartment", m.Compartment)

	if _, err := t.refreshLocked(now.Format(constants.DateFormat)); err != nil {
		return m.ID, fmt.Errorf("medicine added but today's schedule was not refreshed: %w", err)
	}
	return m.ID, nil
}

// RemoveMedicine soft-deletes a medicine. Doses already derived for it are
// kept.
func (t *Tracker) RemoveMedicine(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.DeleteMedicine(id); err != nil {
		return err
	}
	t.log.Info("medicine removed", "id", id)
	return nil
}

// RestoreMedicine undoes a removal and re-derives today.
func (t *Tracker) RestoreMedicine(id string) error {
	today, err := t.TodayDate()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.RestoreMedicine(id); err != nil {
		return err
	}
	t.log.Info("medicine restored", "id", id)
	_, err = t.refreshLocked(today)
	return err
}

func (t *Tracker) Medicines(includeDeleted bool) ([]models.Medicine, error) {
	return t.store.GetAllMedicines(includeDeleted)
}

// Conflicts validates the whole registry.
func (t *Tracker) Conflicts() (validation.ValidationResult, error) {
	medicines, err := t.store.GetAllMedicines(false)
	if err != nil {
		return validation.ValidationResult{}, err
	}
	return t.validator.ValidateMedicines(medicines), nil
}

// Refresh re-derives today's doses.
func (t *Tracker) Refresh(ctx context.Context) ([]models.Dose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	today, err := t.TodayDate()
	if err != nil {
		return nil, err
	}
	return t.RefreshFor(today)
}

// RefreshFor derives the doses for date, merging with what is stored, and
// returns the stored list afterwards.
func (t *Tracker) RefreshFor(date string) ([]models.Dose, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshLocked(date)
}

func (t *Tracker) refreshLocked(date string) ([]models.Dose, error) {
	medicines, err := t.store.GetAllMedicines(false)
	if err != nil {
		return nil, err
	}
	previous, err := t.store.GetDosesForDate(date)
	if err != nil {
		return nil, err
	}

	derived := t.scheduler.Derive(medicines, date, previous)
	if len(derived) > len(previous) {
		if err := t.store.SaveDoses(derived); err != nil {
			return nil, err
		}
		t.log.Debug("doses derived", "date", date, "new", len(derived)-len(previous))
	}

	// Re-read so an outcome written by another process since the read above
	// is reflected.
	return t.store.GetDosesForDate(date)
}

// Today re-derives and returns today's doses ordered by scheduled time.
func (t *Tracker) Today() ([]models.Dose, error) {
	return t.Refresh(context.Background())
}

// DosesFor returns the stored doses for date without deriving.
func (t *Tracker) DosesFor(date string) ([]models.Dose, error) {
	return t.store.GetDosesForDate(date)
}

func (t *Tracker) Dose(id string) (models.Dose, error) {
	return t.store.GetDose(id)
}

// Settle moves an upcoming dose to outcome and appends the matching history
// record, stamped with the current date and time, in one transaction.
func (t *Tracker) Settle(doseID string, outcome constants.Outcome) (models.HistoryRecord, error) {
	now, err := t.Now()
	if err != nil {
		return models.HistoryRecord{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dose, err := t.store.GetDose(doseID)
	if err != nil {
		return models.HistoryRecord{}, err
	}
	if !dose.IsUpcoming() {
		return models.HistoryRecord{}, fmt.Errorf("dose %s is %s: %w", doseID, dose.Status, storage.ErrNotUpcoming)
	}

	record := models.HistoryRecord{
		ID:           uuid.New().String(),
		DoseID:       dose.ID,
		Date:         now.Format(constants.DateFormat),
		Time:         now.Format(constants.TimeFormat),
		MedicineName: dose.MedicineName,
		Dosage:       dose.Dosage,
		Compartment:  dose.Compartment,
		Outcome:      outcome,
	}
	if err := t.store.ApplyOutcome(doseID, record); err != nil {
		return models.HistoryRecord{}, err
	}
	t.log.Info("dose settled", "dose", doseID, "outcome", outcome)
	return record, nil
}

func (t *Tracker) History(filter models.HistoryFilter) ([]models.HistoryRecord, error) {
	return t.store.GetHistory(filter)
}

// Device returns the last known device snapshot. ok is false if the device
// has never been contacted.
func (t *Tracker) Device() (snap models.DeviceSnapshot, ok bool, err error) {
	snap, err = t.store.GetDeviceSnapshot()
	if errors.Is(err, storage.ErrNotFound) {
		return models.DeviceSnapshot{}, false, nil
	}
	if err != nil {
		return models.DeviceSnapshot{}, false, err
	}
	return snap, true, nil
}

// UpdateDevice replaces the snapshot with fn applied to the current one (the
// zero snapshot if none is stored).
func (t *Tracker) UpdateDevice(fn func(models.DeviceSnapshot) models.DeviceSnapshot) (models.DeviceSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.store.GetDeviceSnapshot()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.DeviceSnapshot{}, err
	}
	next := fn(current)
	if err := t.store.SaveDeviceSnapshot(next); err != nil {
		return models.DeviceSnapshot{}, err
	}
	return next, nil
}

// Package dispense runs the confirm-then-dispense transaction: one device
// call per dose, and on success one status transition plus one ledger record.
package dispense

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/logger"
	"github.com/julianstephens/pillbox/internal/metrics"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage"
	"github.com/julianstephens/pillbox/internal/tracker"
	"github.com/julianstephens/pillbox/internal/utils"
)

var (
	// ErrInFlight is returned when a dose already has a device call pending.
	ErrInFlight = errors.New("a dispense is already in progress for this dose")
	// ErrNotUpcoming is returned for doses that are already dispensed or missed.
	ErrNotUpcoming = storage.ErrNotUpcoming
)

// Result describes a settled dispense request.
type Result struct {
	Dose    models.Dose
	Record  models.HistoryRecord // zero unless the dose was dispensed
	Message string               // device or failure message for the user
}

// Coordinator is the only writer of the upcoming -> dispensed transition.
type Coordinator struct {
	tracker *tracker.Tracker
	gateway device.Gateway
	log     *log.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup

	onSettled func(Result, error)
}

type Option func(*Coordinator)

// WithTimeout bounds each device call; expiry counts as a communication
// failure.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.gateway = device.WithTimeout(c.gateway, d) }
}

// WithSettledHook is called after every device-backed request settles,
// including requests whose caller stopped waiting.
func WithSettledHook(fn func(Result, error)) Option {
	return func(c *Coordinator) { c.onSettled = fn }
}

func New(t *tracker.Tracker, g device.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		tracker:  t,
		gateway:  g,
		log:      logger.Named("dispense"),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InFlight reports whether doseID has a pending device call.
func (c *Coordinator) InFlight(doseID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[doseID]
	return ok
}

func (c *Coordinator) acquire(doseID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[doseID]; busy {
		return false
	}
	c.inFlight[doseID] = struct{}{}
	return true
}

func (c *Coordinator) release(doseID string) {
	c.mu.Lock()
	delete(c.inFlight, doseID)
	c.mu.Unlock()
}

// RequestDispense asks the device to release the dose's compartment. On
// success the dose becomes dispensed and exactly one history record is
// appended. A refusal or communication failure changes nothing and may be
// retried by calling again. A refusal still records that the device answered.
//
// The device call is detached from ctx: if ctx ends first, RequestDispense
// returns ctx's error but the call keeps running and its result is still
// applied. Use Wait to block until detached calls settle.
func (c *Coordinator) RequestDispense(ctx context.Context, doseID string) (Result, error) {
	dose, err := c.tracker.Dose(doseID)
	if err != nil {
		return Result{}, err
	}
	if !dose.IsUpcoming() {
		metrics.RecordDispense(metrics.OutcomeRejected, 0)
		return Result{Dose: dose}, fmt.Errorf("dose %s is %s: %w", doseID, dose.Status, ErrNotUpcoming)
	}
	if !c.acquire(doseID) {
		metrics.RecordDispense(metrics.OutcomeRejected, 0)
		return Result{Dose: dose}, ErrInFlight
	}
	// The first read may predate a request that settled the dose before the
	// guard was taken.
	dose, err = c.tracker.Dose(doseID)
	if err != nil {
		c.release(doseID)
		return Result{}, err
	}
	if !dose.IsUpcoming() {
		c.release(doseID)
		metrics.RecordDispense(metrics.OutcomeRejected, 0)
		return Result{Dose: dose}, fmt.Errorf("dose %s is %s: %w", doseID, dose.Status, ErrNotUpcoming)
	}

	type settled struct {
		res Result
		err error
	}
	done := make(chan settled, 1)
	detached := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		res, err := c.dispense(detached, dose)
		// The guard is cleared before the result is published.
		c.release(doseID)
		if c.onSettled != nil {
			c.onSettled(res, err)
		}
		done <- settled{res, err}
	}()

	select {
	case s := <-done:
		return s.res, s.err
	case <-ctx.Done():
		c.log.Info("caller stopped waiting; dispense continues", "dose", doseID)
		return Result{Dose: dose}, ctx.Err()
	}
}

func (c *Coordinator) dispense(ctx context.Context, dose models.Dose) (Result, error) {
	finished := metrics.DispenseStarted()
	start := time.Now()
	out, err := c.gateway.Dispense(ctx, dose.Compartment)
	elapsed := time.Since(start)
	finished()

	if err != nil {
		if device.IsRefused(err) {
			var refused *device.RefusedError
			errors.As(err, &refused)
			metrics.RecordDispense(metrics.OutcomeRefused, elapsed)
			c.log.Warn("device refused dispense", "dose", dose.ID, "compartment", dose.Compartment, "reason", refused.Reason)
			c.markReachable()
			return Result{Dose: dose, Message: refused.Reason}, err
		}
		if !errors.Is(err, device.ErrCommunication) {
			err = fmt.Errorf("%w: %v", device.ErrCommunication, err)
		}
		metrics.RecordDispense(metrics.OutcomeUnreachable, elapsed)
		c.log.Warn("device unreachable", "dose", dose.ID, "compartment", dose.Compartment, "error", err)
		c.markOffline()
		return Result{Dose: dose, Message: constants.DeviceUnreachableReason}, err
	}

	record, err := c.tracker.Settle(dose.ID, constants.OutcomeDispensed)
	if err != nil {
		// The device released the pills but the ledger refused the write,
		// e.g. another process settled the dose first.
		metrics.RecordDispense(metrics.OutcomeLedgerFailed, elapsed)
		c.log.Error("dispensed but not recorded", "dose", dose.ID, "error", err)
		return Result{Dose: dose, Message: out.Message}, fmt.Errorf("dispensed but failed to record dose %s: %w", dose.ID, err)
	}
	metrics.RecordDispense(metrics.OutcomeDispensed, elapsed)
	c.log.Info("dose dispensed", "dose", dose.ID, "compartment", dose.Compartment, "elapsed", elapsed)
	c.markReachable()

	dose.Status = constants.DoseStatusDispensed
	return Result{Dose: dose, Record: record, Message: out.Message}, nil
}

// markReachable records that the device answered.
func (c *Coordinator) markReachable() {
	now, err := c.tracker.Now()
	if err != nil {
		now = time.Now()
	}
	snap, err := c.tracker.UpdateDevice(func(prev models.DeviceSnapshot) models.DeviceSnapshot {
		prev.IsOnline = true
		prev.LastSyncedAt = now
		return prev
	})
	if err != nil {
		c.log.Error("failed to save device snapshot", "error", err)
		return
	}
	metrics.RecordDevice(true, snap.BatteryPercent)
}

// markOffline keeps the last battery reading and sync time.
func (c *Coordinator) markOffline() {
	if _, err := c.tracker.UpdateDevice(func(prev models.DeviceSnapshot) models.DeviceSnapshot {
		prev.IsOnline = false
		return prev
	}); err != nil {
		c.log.Error("failed to save device snapshot", "error", err)
	}
	metrics.RecordDevice(false, 0)
}

// Wait blocks until every device call started by RequestDispense settles.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// MarkMissed is the hook for moving an upcoming dose to missed. It fails with
// ErrInFlight while a dispense for the dose is pending.
func (c *Coordinator) MarkMissed(doseID string) (models.HistoryRecord, error) {
	if !c.acquire(doseID) {
		return models.HistoryRecord{}, ErrInFlight
	}
	defer c.release(doseID)

	record, err := c.tracker.Settle(doseID, constants.OutcomeMissed)
	if err != nil {
		return models.HistoryRecord{}, err
	}
	metrics.RecordMissed(1)
	return record, nil
}

// SweepOverdue marks missed every upcoming dose for today or yesterday whose
// scheduled time plus the configured grace period is before now. Doses with a
// pending dispense are skipped. It is never run implicitly.
func (c *Coordinator) SweepOverdue(ctx context.Context, now time.Time) ([]models.HistoryRecord, error) {
	settings, err := c.tracker.Settings()
	if err != nil {
		return nil, err
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, err
	}
	now = now.In(loc)
	grace := time.Duration(settings.MissedGraceMin) * time.Minute

	var swept []models.HistoryRecord
	for _, date := range []string{now.AddDate(0, 0, -1).Format(constants.DateFormat), now.Format(constants.DateFormat)} {
		doses, err := c.tracker.DosesFor(date)
		if err != nil {
			return swept, err
		}
		for _, d := range doses {
			if err := ctx.Err(); err != nil {
				return swept, err
			}
			if !d.IsUpcoming() {
				continue
			}
			overdue, err := utils.IsOverdue(d.ForDate, d.ScheduledTime, grace, now)
			if err != nil || !overdue {
				continue
			}
			record, err := c.MarkMissed(d.ID)
			switch {
			case errors.Is(err, ErrInFlight), errors.Is(err, storage.ErrNotUpcoming):
				continue
			case err != nil:
				return swept, err
			}
			swept = append(swept, record)
		}
	}
	if len(swept) > 0 {
		c.log.Info("overdue doses marked missed", "count", len(swept))
	}
	return swept, nil
}

// CheckStatus polls the device and stores the new snapshot. A communication
// failure marks the device offline and is returned; doses are never touched.
func (c *Coordinator) CheckStatus(ctx context.Context) (models.DeviceSnapshot, error) {
	status, err := c.gateway.CheckStatus(ctx)
	if err != nil {
		c.log.Warn("device status check failed", "error", err)
		c.markOffline()
		snap, _, _ := c.tracker.Device()
		return snap, err
	}

	now, err := c.tracker.Now()
	if err != nil {
		return models.DeviceSnapshot{}, err
	}
	snap, err := c.tracker.UpdateDevice(func(models.DeviceSnapshot) models.DeviceSnapshot {
		return models.DeviceSnapshot{IsOnline: status.IsOnline, BatteryPercent: status.BatteryPercent, LastSyncedAt: now}
	})
	if err != nil {
		return models.DeviceSnapshot{}, err
	}
	metrics.RecordDevice(snap.IsOnline, snap.BatteryPercent)
	c.log.Debug("device status", "online", snap.IsOnline, "battery", snap.BatteryPercent)
	return snap, nil
}

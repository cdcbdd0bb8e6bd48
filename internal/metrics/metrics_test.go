package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDispense(t *testing.T) {
	before := testutil.ToFloat64(dispenseAttempts.WithLabelValues(OutcomeRefused))
	RecordDispense(OutcomeRefused, 1500*time.Millisecond)
	RecordDispense(OutcomeRefused, 0)

	if got := testutil.ToFloat64(dispenseAttempts.WithLabelValues(OutcomeRefused)) - before; got != 2 {
		t.Errorf("refused attempts delta = %v, want 2", got)
	}
}

func TestDispenseStarted(t *testing.T) {
	base := testutil.ToFloat64(dispenseInFlight)
	doneA := DispenseStarted()
	doneB := DispenseStarted()
	if got := testutil.ToFloat64(dispenseInFlight) - base; got != 2 {
		t.Errorf("in flight = %v, want 2", got)
	}
	doneA()
	doneB()
	if got := testutil.ToFloat64(dispenseInFlight); got != base {
		t.Errorf("in flight after completion = %v, want %v", got, base)
	}
}

func TestRecordDevice(t *testing.T) {
	RecordDevice(true, 64)
	if testutil.ToFloat64(deviceOnline) != 1 || testutil.ToFloat64(batteryPercent) != 64 {
		t.Error("online reading not recorded")
	}

	// Offline keeps the last known battery level.
	RecordDevice(false, 0)
	if testutil.ToFloat64(deviceOnline) != 0 || testutil.ToFloat64(batteryPercent) != 64 {
		t.Error("offline reading should only clear the online gauge")
	}
}

func TestRecordMissed(t *testing.T) {
	before := testutil.ToFloat64(markedMissed)
	RecordMissed(3)
	RecordMissed(0)
	if got := testutil.ToFloat64(markedMissed) - before; got != 3 {
		t.Errorf("missed delta = %v, want 3", got)
	}
}

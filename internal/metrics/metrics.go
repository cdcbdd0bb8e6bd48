// Package metrics exposes dispenser activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/julianstephens/pillbox/internal/constants"
)

// Dispense attempt outcomes.
const (
	OutcomeDispensed    = "dispensed"
	OutcomeRefused      = "refused"
	OutcomeUnreachable  = "unreachable"
	OutcomeRejected     = "rejected" // dose not upcoming or already in flight
	OutcomeLedgerFailed = "ledger_failed"
)

var (
	dispenseAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: constants.MetricsNamespace,
		Name:      "dispense_attempts_total",
		Help:      "Dispense requests by outcome.",
	}, []string{"outcome"})

	dispenseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: constants.MetricsNamespace,
		Name:      "dispense_duration_seconds",
		Help:      "Time spent waiting on the device for a dispense.",
		Buckets:   []float64{0.25, 0.5, 1, 1.5, 2, 3, 5, 10, 30},
	})

	dispenseInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: constants.MetricsNamespace,
		Name:      "dispense_in_flight",
		Help:      "Dispense calls currently waiting on the device.",
	})

	batteryPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: constants.MetricsNamespace,
		Name:      "device_battery_percent",
		Help:      "Last reported dispenser battery level.",
	})

	deviceOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: constants.MetricsNamespace,
		Name:      "device_online",
		Help:      "1 if the last device contact succeeded, 0 otherwise.",
	})

	markedMissed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: constants.MetricsNamespace,
		Name:      "doses_marked_missed_total",
		Help:      "Doses moved from upcoming to missed.",
	})
)

func init() {
	prometheus.MustRegister(dispenseAttempts, dispenseDuration, dispenseInFlight, batteryPercent, deviceOnline, markedMissed)
}

// RecordDispense counts one settled dispense request.
func RecordDispense(outcome string, elapsed time.Duration) {
	dispenseAttempts.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		dispenseDuration.Observe(elapsed.Seconds())
	}
}

// DispenseStarted marks a device call in flight and returns its completion func.
func DispenseStarted() func() {
	dispenseInFlight.Inc()
	return dispenseInFlight.Dec
}

// RecordDevice publishes the latest device belief.
func RecordDevice(online bool, battery int) {
	if online {
		deviceOnline.Set(1)
		batteryPercent.Set(float64(battery))
		return
	}
	deviceOnline.Set(0)
}

// RecordMissed counts doses marked missed.
func RecordMissed(n int) {
	if n > 0 {
		markedMissed.Add(float64(n))
	}
}

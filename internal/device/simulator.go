package device

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/julianstephens/pillbox/internal/constants"
)

// Simulator stands in for real hardware: every call takes a random latency
// and a fixed share of dispenses are refused.
type Simulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	minLatency  time.Duration
	maxLatency  time.Duration
	successRate float64
}

type SimulatorOption func(*Simulator)

// WithSeed makes outcomes and battery readings reproducible.
func WithSeed(seed int64) SimulatorOption {
	return func(s *Simulator) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithLatency sets the latency window. Tests use zero to run instantly.
func WithLatency(min, max time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if max < min {
			max = min
		}
		s.minLatency, s.maxLatency = min, max
	}
}

// WithSuccessRate sets the share of dispenses the device confirms, in [0,1].
func WithSuccessRate(rate float64) SimulatorOption {
	return func(s *Simulator) { s.successRate = rate }
}

func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		minLatency:  constants.SimulatedMinLatency,
		maxLatency:  constants.SimulatedMaxLatency,
		successRate: constants.SimulatedSuccessRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Dispense(ctx context.Context, compartment int) (Outcome, error) {
	if err := s.wait(ctx); err != nil {
		return Outcome{}, err
	}
	s.mu.Lock()
	ok := s.rng.Float64() < s.successRate
	s.mu.Unlock()

	if !ok {
		return Outcome{}, &RefusedError{Reason: constants.DispenseFailureMessage}
	}
	return Outcome{Message: constants.DispenseSuccessMessage}, nil
}

func (s *Simulator) CheckStatus(ctx context.Context) (Status, error) {
	if err := s.wait(ctx); err != nil {
		return Status{}, err
	}
	s.mu.Lock()
	battery := constants.SimulatedMinBattery + s.rng.Intn(100-constants.SimulatedMinBattery+1)
	s.mu.Unlock()
	return Status{IsOnline: true, BatteryPercent: battery}, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	s.mu.Lock()
	latency := s.minLatency
	if spread := s.maxLatency - s.minLatency; spread > 0 {
		latency += time.Duration(s.rng.Int63n(int64(spread)))
	}
	s.mu.Unlock()

	if latency <= 0 {
		if err := ctx.Err(); err != nil {
			return communicationError(err)
		}
		return nil
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return communicationError(ctx.Err())
	}
}

// Package device models the pill dispenser as an injected, unreliable and
// slow capability.
package device

import (
	"context"
	"errors"
	"fmt"
)

// ErrCommunication reports that the device did not answer: it is unreachable,
// the transport failed or the call timed out. It is distinct from a device
// that answered and declined.
var ErrCommunication = errors.New("device communication failure")

// RefusedError is returned when the device answered but declined to dispense.
type RefusedError struct {
	Reason string
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("device refused: %s", e.Reason)
}

// Outcome is a successful dispense confirmation.
type Outcome struct {
	Message string
}

// Status is a fresh reading of the device.
type Status struct {
	IsOnline       bool
	BatteryPercent int
}

// Gateway is the dispenser capability. Both calls may block for seconds and
// should honour ctx.
type Gateway interface {
	// Dispense releases the contents of compartment (>= 1). A nil error means
	// the device confirmed the release.
	Dispense(ctx context.Context, compartment int) (Outcome, error)
	CheckStatus(ctx context.Context) (Status, error)
}

// IsRefused reports whether err carries a RefusedError.
func IsRefused(err error) bool {
	var refused *RefusedError
	return errors.As(err, &refused)
}

// communicationError wraps cause as an ErrCommunication.
func communicationError(cause error) error {
	if cause == nil {
		return ErrCommunication
	}
	return fmt.Errorf("%w: %v", ErrCommunication, cause)
}

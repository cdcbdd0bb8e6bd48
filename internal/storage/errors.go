package storage

import (
	"errors"

	"github.com/julianstephens/pillbox/internal/constants"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotUpcoming is returned when an outcome is applied to a dose that is
	// no longer upcoming
	ErrNotUpcoming = errors.New("dose is not upcoming")
)

// StatusForOutcome maps a ledger outcome to the dose status it settles into.
func StatusForOutcome(outcome constants.Outcome) (constants.DoseStatus, error) {
	switch outcome {
	case constants.OutcomeDispensed:
		return constants.DoseStatusDispensed, nil
	case constants.OutcomeMissed:
		return constants.DoseStatusMissed, nil
	default:
		return "", errors.New("unknown outcome: " + string(outcome))
	}
}

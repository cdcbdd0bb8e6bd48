package models

import (
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/pillbox/internal/constants"
)

// Medicine is a recurring medicine definition. It is created by the registry
// and never edited in place; removal is a soft delete.
type Medicine struct {
	ID          string     `json:"id" yaml:"-"`
	Name        string     `json:"name" yaml:"name"`
	Dosage      string     `json:"dosage" yaml:"dosage"`
	Compartment int        `json:"compartment" yaml:"compartment"`
	Times       []string   `json:"times" yaml:"times"`             // HH:MM, ascending, unique
	ActiveFrom  string     `json:"active_from" yaml:"active_from"` // YYYY-MM-DD
	ActiveUntil string     `json:"active_until" yaml:"active_until"`
	CreatedAt   time.Time  `json:"created_at" yaml:"-"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" yaml:"-"`
}

// ActiveOn reports whether the medicine should be taken on date (YYYY-MM-DD).
// Dates are fixed width so lexical comparison matches calendar order.
func (m Medicine) ActiveOn(date string) bool {
	return m.ActiveFrom <= date && date <= m.ActiveUntil
}

// IsDeleted reports whether the medicine was removed from the registry.
func (m Medicine) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Normalize trims text fields and rewrites Times as sorted, de-duplicated,
// zero-padded HH:MM values. It returns a ValidationError for unparseable times.
func (m *Medicine) Normalize() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Dosage = strings.TrimSpace(m.Dosage)
	m.ActiveFrom = strings.TrimSpace(m.ActiveFrom)
	m.ActiveUntil = strings.TrimSpace(m.ActiveUntil)

	times, err := NormalizeTimes(m.Times)
	if err != nil {
		return err
	}
	m.Times = times
	return nil
}

// Validate checks the invariants of a medicine definition.
func (m Medicine) Validate() error {
	if m.Name == "" {
		return invalid("name", "is required")
	}
	if m.Dosage == "" {
		return invalid("dosage", "is required")
	}
	if m.Compartment < constants.MinCompartment || m.Compartment > constants.MaxCompartment {
		return invalid("compartment", "must be between %d and %d, got %d", constants.MinCompartment, constants.MaxCompartment, m.Compartment)
	}
	if len(m.Times) == 0 {
		return invalid("times", "must contain at least one time of day")
	}
	for _, t := range m.Times {
		if _, err := time.Parse(constants.TimeFormat, t); err != nil {
			return invalid("times", "contains invalid time %q (expected HH:MM)", t)
		}
	}
	from, err := time.Parse(constants.DateFormat, m.ActiveFrom)
	if err != nil {
		return invalid("active_from", "must be a date in YYYY-MM-DD format")
	}
	until, err := time.Parse(constants.DateFormat, m.ActiveUntil)
	if err != nil {
		return invalid("active_until", "must be a date in YYYY-MM-DD format")
	}
	if from.After(until) {
		return invalid("active_from", "must not be after active_until")
	}
	return nil
}

// NormalizeTimes parses each entry as a time of day and returns the set in
// ascending order formatted as HH:MM.
func NormalizeTimes(times []string) ([]string, error) {
	seen := make(map[string]bool, len(times))
	out := make([]string, 0, len(times))
	for _, raw := range times {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, invalid("times", "contains an empty time slot")
		}
		t, err := time.Parse(constants.TimeFormat, raw)
		if err != nil {
			return nil, invalid("times", "contains invalid time %q (expected HH:MM)", raw)
		}
		formatted := t.Format(constants.TimeFormat)
		if seen[formatted] {
			continue
		}
		seen[formatted] = true
		out = append(out, formatted)
	}
	sort.Strings(out)
	return out, nil
}

// SplitTimes turns a comma or space separated list such as "08:00, 20:00"
// into its entries. It does not validate them.
func SplitTimes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

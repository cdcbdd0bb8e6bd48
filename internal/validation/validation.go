package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/pillbox/internal/models"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictSharedCompartment     ConflictType = "shared_compartment"
	ConflictDuplicateMedicineName ConflictType = "duplicate_medicine_name"
	ConflictInvalidMedicine       ConflictType = "invalid_medicine"
)

// Conflict represents a detected problem in the medicine registry. Conflicts
// are advisory; the registry still accepts the medicines involved.
type Conflict struct {
	Type        ConflictType
	Description string
	Items       []string // medicine names involved
	MedicineIDs []string
	Compartment int    // set for compartment conflicts
	DateRange   string // overlapping window, "YYYY-MM-DD..YYYY-MM-DD"
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", c.Description)
	}
	return b.String()
}

// Validator checks a set of medicines for conflicts
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateMedicines checks active (non-deleted) medicines for malformed
// definitions, duplicate names and compartments shared across overlapping
// date ranges. Results are ordered deterministically.
func (v *Validator) ValidateMedicines(medicines []models.Medicine) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	var live []models.Medicine
	for _, m := range medicines {
		if m.IsDeleted() {
			continue
		}
		if err := m.Validate(); err != nil {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidMedicine,
				Description: fmt.Sprintf("Medicine %q is invalid: %v", m.Name, err),
				Items:       []string{m.Name},
				MedicineIDs: []string{m.ID},
			})
			continue
		}
		live = append(live, m)
	}

	result.Conflicts = append(result.Conflicts, duplicateNames(live)...)
	result.Conflicts = append(result.Conflicts, sharedCompartments(live)...)
	return result
}

// ValidateCandidate reports the conflicts a new medicine would introduce
// against the existing registry. Conflicts among existing medicines are not
// repeated.
func (v *Validator) ValidateCandidate(existing []models.Medicine, candidate models.Medicine) ValidationResult {
	before := v.ValidateMedicines(existing)
	after := v.ValidateMedicines(append(append([]models.Medicine{}, existing...), candidate))

	seen := make(map[string]bool, len(before.Conflicts))
	for _, c := range before.Conflicts {
		seen[c.Description] = true
	}
	result := ValidationResult{Conflicts: []Conflict{}}
	for _, c := range after.Conflicts {
		if !seen[c.Description] {
			result.Conflicts = append(result.Conflicts, c)
		}
	}
	return result
}

func duplicateNames(medicines []models.Medicine) []Conflict {
	byName := make(map[string][]models.Medicine)
	var keys []string
	for _, m := range medicines {
		key := strings.ToLower(m.Name)
		if _, ok := byName[key]; !ok {
			keys = append(keys, key)
		}
		byName[key] = append(byName[key], m)
	}
	sort.Strings(keys)

	var conflicts []Conflict
	for _, key := range keys {
		group := byName[key]
		if len(group) < 2 {
			continue
		}
		ids := make([]string, len(group))
		for i, m := range group {
			ids[i] = m.ID
		}
		conflicts = append(conflicts, Conflict{
			Type:        ConflictDuplicateMedicineName,
			Description: fmt.Sprintf("Duplicate medicine name: %q (IDs: %v)", group[0].Name, ids),
			Items:       []string{group[0].Name},
			MedicineIDs: ids,
		})
	}
	return conflicts
}

func sharedCompartments(medicines []models.Medicine) []Conflict {
	sorted := append([]models.Medicine{}, medicines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Compartment != sorted[j].Compartment {
			return sorted[i].Compartment < sorted[j].Compartment
		}
		return sorted[i].ActiveFrom < sorted[j].ActiveFrom
	})

	var conflicts []Conflict
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted) && sorted[j].Compartment == sorted[i].Compartment; j++ {
			a, b := sorted[i], sorted[j]
			from, until, ok := overlap(a, b)
			if !ok {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Type: ConflictSharedCompartment,
				Description: fmt.Sprintf("Compartment %d is shared by %q and %q between %s and %s",
					a.Compartment, a.Name, b.Name, from, until),
				Items:       []string{a.Name, b.Name},
				MedicineIDs: []string{a.ID, b.ID},
				Compartment: a.Compartment,
				DateRange:   from + ".." + until,
			})
		}
	}
	return conflicts
}

// overlap returns the intersection of two inclusive date ranges.
func overlap(a, b models.Medicine) (string, string, bool) {
	from := a.ActiveFrom
	if b.ActiveFrom > from {
		from = b.ActiveFrom
	}
	until := a.ActiveUntil
	if b.ActiveUntil < until {
		until = b.ActiveUntil
	}
	return from, until, from <= until
}

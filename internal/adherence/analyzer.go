// Package adherence turns the history ledger into per-medicine adherence
// statistics and flags regimens that are regularly missed.
package adherence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
)

// FindingType represents the kind of adherence problem detected
type FindingType string

const (
	FindingFrequentlyMissed FindingType = "frequently_missed"
	FindingMissedSlot       FindingType = "missed_slot"
)

const (
	// MinSamples is the number of settled doses needed before a medicine is judged.
	MinSamples = 5
	// MissedRateThreshold is the missed percentage above which a medicine is flagged.
	MissedRateThreshold = 30.0
	// SlotMissThreshold is the missed percentage above which a single time slot is flagged.
	SlotMissThreshold = 50.0
	minSlotMisses     = 3
)

// Source is the read side of the store the analyzer needs.
type Source interface {
	GetAllMedicines(includeDeleted bool) ([]models.Medicine, error)
	GetHistory(filter models.HistoryFilter) ([]models.HistoryRecord, error)
}

// Stats counts the settled doses of one medicine.
type Stats struct {
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	Dispensed    int    `json:"dispensed"`
	Missed       int    `json:"missed"`
}

func (s Stats) Total() int { return s.Dispensed + s.Missed }

// MissedPercent is 0 when nothing has been settled.
func (s Stats) MissedPercent() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Missed) / float64(s.Total()) * 100
}

// Finding is an advisory observation about a medicine.
type Finding struct {
	MedicineID   string      `json:"medicine_id"`
	MedicineName string      `json:"medicine_name"`
	Type         FindingType `json:"type"`
	Slot         string      `json:"slot,omitempty"` // HH:MM, set for slot findings
	Reason       string      `json:"reason"`
}

// Report is the result of analyzing the ledger.
type Report struct {
	Stats    []Stats
	Findings []Finding
}

type Analyzer struct {
	store Source
}

func NewAnalyzer(store Source) *Analyzer {
	return &Analyzer{store: store}
}

// slotOf splits a dose id (<medicine-id>/<YYYY-MM-DD>/<HH:MM>) into its
// medicine id and time slot.
func slotOf(doseID string) (medicineID, slot string, ok bool) {
	parts := strings.Split(doseID, "/")
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[0], parts[2], true
}

// AnalyzeMedicine summarizes records belonging to m.
func AnalyzeMedicine(m models.Medicine, records []models.HistoryRecord) (Stats, []Finding) {
	stats := Stats{MedicineID: m.ID, MedicineName: m.Name}
	type slotCount struct{ total, missed int }
	slots := make(map[string]*slotCount)

	for _, r := range records {
		medicineID, slot, ok := slotOf(r.DoseID)
		if !ok || medicineID != m.ID {
			continue
		}
		sc := slots[slot]
		if sc == nil {
			sc = &slotCount{}
			slots[slot] = sc
		}
		sc.total++
		switch r.Outcome {
		case constants.OutcomeDispensed:
			stats.Dispensed++
		case constants.OutcomeMissed:
			stats.Missed++
			sc.missed++
		}
	}

	if stats.Total() < MinSamples {
		return stats, nil
	}

	var findings []Finding
	if pct := stats.MissedPercent(); pct > MissedRateThreshold {
		findings = append(findings, Finding{
			MedicineID:   m.ID,
			MedicineName: m.Name,
			Type:         FindingFrequentlyMissed,
			Reason:       fmt.Sprintf("%.0f%% of recent %s doses were missed (%d of %d)", pct, m.Name, stats.Missed, stats.Total()),
		})
	}

	keys := make([]string, 0, len(slots))
	for slot := range slots {
		keys = append(keys, slot)
	}
	sort.Strings(keys)
	for _, slot := range keys {
		sc := slots[slot]
		pct := float64(sc.missed) / float64(sc.total) * 100
		if sc.missed >= minSlotMisses && pct > SlotMissThreshold {
			findings = append(findings, Finding{
				MedicineID:   m.ID,
				MedicineName: m.Name,
				Type:         FindingMissedSlot,
				Slot:         slot,
				Reason:       fmt.Sprintf("the %s dose of %s is missed %.0f%% of the time; consider another time of day", slot, m.Name, pct),
			})
		}
	}
	return stats, findings
}

// Analyze reports on every medicine, including removed ones, using ledger
// records on or after since (YYYY-MM-DD, empty for all).
func (a *Analyzer) Analyze(since string) (Report, error) {
	medicines, err := a.store.GetAllMedicines(true)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get medicines: %w", err)
	}
	records, err := a.store.GetHistory(models.HistoryFilter{Since: since})
	if err != nil {
		return Report{}, fmt.Errorf("failed to get history: %w", err)
	}

	var report Report
	for _, m := range medicines {
		stats, findings := AnalyzeMedicine(m, records)
		if stats.Total() == 0 {
			continue
		}
		report.Stats = append(report.Stats, stats)
		report.Findings = append(report.Findings, findings...)
	}
	return report, nil
}

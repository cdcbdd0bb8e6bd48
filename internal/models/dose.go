package models

import "github.com/julianstephens/pillbox/internal/constants"

// Dose is one concrete occurrence of a medicine on a specific date and time.
// ForDate is fixed at creation; only Status ever changes.
type Dose struct {
	ID            string               `json:"id"`
	MedicineID    string               `json:"medicine_id"`
	MedicineName  string               `json:"medicine_name"`
	Dosage        string               `json:"dosage"`
	Compartment   int                  `json:"compartment"`
	ScheduledTime string               `json:"scheduled_time"` // HH:MM
	ForDate       string               `json:"for_date"`       // YYYY-MM-DD
	Status        constants.DoseStatus `json:"status"`
}

func (d Dose) IsUpcoming() bool {
	return d.Status == constants.DoseStatusUpcoming
}

// DoseSummary counts today's doses by status.
type DoseSummary struct {
	Upcoming  int
	Dispensed int
	Missed    int
}

// Summarize tallies doses by status.
func Summarize(doses []Dose) DoseSummary {
	var s DoseSummary
	for _, d := range doses {
		switch d.Status {
		case constants.DoseStatusUpcoming:
			s.Upcoming++
		case constants.DoseStatusDispensed:
			s.Dispensed++
		case constants.DoseStatusMissed:
			s.Missed++
		}
	}
	return s
}

// NextUpcoming returns the first upcoming dose of an ordered list.
func NextUpcoming(doses []Dose) (Dose, bool) {
	for _, d := range doses {
		if d.IsUpcoming() {
			return d, true
		}
	}
	return Dose{}, false
}

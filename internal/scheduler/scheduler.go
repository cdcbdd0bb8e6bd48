package scheduler

import (
	"fmt"
	"sort"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
)

type Scheduler struct{}

func New() *Scheduler {
	return &Scheduler{}
}

// DoseID returns the identity of the dose of medicineID on date at timeOfDay.
// Date and time are fixed width, so the key cannot collide across triples.
func DoseID(medicineID, date, timeOfDay string) string {
	return fmt.Sprintf("%s/%s/%s", medicineID, date, timeOfDay)
}

// Derive expands every medicine active on date into one dose per configured
// time of day and merges the result with previous. A previous dose sharing an
// id wins in full, so re-deriving never resets a recorded outcome. Doses in
// previous that no medicine produces any more are kept. The result is sorted
// by scheduled time.
//
// Derive never consults the clock: a dose whose time has passed is still
// created as upcoming.
func (s *Scheduler) Derive(medicines []models.Medicine, date string, previous []models.Dose) []models.Dose {
	existing := make(map[string]models.Dose, len(previous))
	for _, d := range previous {
		if d.ForDate != date {
			continue
		}
		existing[d.ID] = d
	}

	seen := make(map[string]bool, len(existing))
	doses := make([]models.Dose, 0, len(existing))

	for _, med := range medicines {
		if med.IsDeleted() || !med.ActiveOn(date) {
			continue
		}
		for _, tod := range med.Times {
			id := DoseID(med.ID, date, tod)
			if seen[id] {
				continue
			}
			seen[id] = true

			if prev, ok := existing[id]; ok {
				doses = append(doses, prev)
				continue
			}
			doses = append(doses, models.Dose{
				ID:            id,
				MedicineID:    med.ID,
				MedicineName:  med.Name,
				Dosage:        med.Dosage,
				Compartment:   med.Compartment,
				ScheduledTime: tod,
				ForDate:       date,
				Status:        constants.DoseStatusUpcoming,
			})
		}
	}

	// No pruning: doses already derived for this date survive removal of
	// their medicine.
	for _, d := range previous {
		if d.ForDate != date || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		doses = append(doses, d)
	}

	sort.SliceStable(doses, func(i, j int) bool {
		if doses[i].ScheduledTime != doses[j].ScheduledTime {
			return doses[i].ScheduledTime < doses[j].ScheduledTime
		}
		return doses[i].ID < doses[j].ID
	})

	return doses
}

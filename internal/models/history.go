package models

import "github.com/julianstephens/pillbox/internal/constants"

// HistoryRecord is an immutable ledger entry settling one dose.
type HistoryRecord struct {
	ID           string            `json:"id"`
	DoseID       string            `json:"dose_id"`
	Date         string            `json:"date"` // YYYY-MM-DD
	Time         string            `json:"time"` // HH:MM
	MedicineName string            `json:"medicine_name"`
	Dosage       string            `json:"dosage"`
	Compartment  int               `json:"compartment"`
	Outcome      constants.Outcome `json:"outcome"`
}

// HistoryFilter narrows a ledger query. Zero values match everything.
type HistoryFilter struct {
	Outcome constants.Outcome
	Since   string // YYYY-MM-DD inclusive
	Limit   int
}

// GroupByDate buckets records by date while keeping their relative order.
// The returned keys follow first appearance.
func GroupByDate(records []HistoryRecord) ([]string, map[string][]HistoryRecord) {
	var keys []string
	groups := make(map[string][]HistoryRecord)
	for _, r := range records {
		if _, ok := groups[r.Date]; !ok {
			keys = append(keys, r.Date)
		}
		groups[r.Date] = append(groups[r.Date], r)
	}
	return keys, groups
}

package sqlite

import (
	"strings"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
)

// GetHistory returns ledger records newest first.
func (s *Store) GetHistory(filter models.HistoryFilter) ([]models.HistoryRecord, error) {
	var where []string
	var args []interface{}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Since != "" {
		where = append(where, "date >= ?")
		args = append(args, filter.Since)
	}

	query := "SELECT id, dose_id, date, time, medicine_name, dosage, compartment, outcome FROM history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		var r models.HistoryRecord
		var outcome string
		if err := rows.Scan(&r.ID, &r.DoseID, &r.Date, &r.Time, &r.MedicineName, &r.Dosage, &r.Compartment, &outcome); err != nil {
			return nil, err
		}
		r.Outcome = constants.Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

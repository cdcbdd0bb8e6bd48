package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage"
)

const doseColumns = "id, medicine_id, medicine_name, dosage, compartment, scheduled_time, for_date, status"

func scanDose(row rowScanner) (models.Dose, error) {
	var d models.Dose
	var status string
	if err := row.Scan(&d.ID, &d.MedicineID, &d.MedicineName, &d.Dosage, &d.Compartment, &d.ScheduledTime, &d.ForDate, &status); err != nil {
		return models.Dose{}, err
	}
	d.Status = constants.DoseStatus(status)
	return d, nil
}

func (s *Store) GetDose(id string) (models.Dose, error) {
	d, err := scanDose(s.db.QueryRow("SELECT "+doseColumns+" FROM doses WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Dose{}, fmt.Errorf("dose %s: %w", id, storage.ErrNotFound)
	}
	return d, err
}

func (s *Store) GetDosesForDate(date string) ([]models.Dose, error) {
	rows, err := s.db.Query("SELECT "+doseColumns+" FROM doses WHERE for_date = $1 ORDER BY scheduled_time, id", date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doses []models.Dose
	for rows.Next() {
		d, err := scanDose(rows)
		if err != nil {
			return nil, err
		}
		doses = append(doses, d)
	}
	return doses, rows.Err()
}

func (s *Store) SaveDoses(doses []models.Dose) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO doses (` + doseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range doses {
		if _, err := stmt.Exec(d.ID, d.MedicineID, d.MedicineName, d.Dosage, d.Compartment, d.ScheduledTime, d.ForDate, string(d.Status)); err != nil {
			return fmt.Errorf("failed to save dose %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) ApplyOutcome(doseID string, record models.HistoryRecord) error {
	status, err := storage.StatusForOutcome(record.Outcome)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE doses SET status = $1 WHERE id = $2 AND status = $3",
		string(status), doseID, string(constants.DoseStatusUpcoming))
	if err != nil {
		return fmt.Errorf("failed to update dose %s: %w", doseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var current string
		err := tx.QueryRow("SELECT status FROM doses WHERE id = $1", doseID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("dose %s: %w", doseID, storage.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("dose %s is %s: %w", doseID, current, storage.ErrNotUpcoming)
	}

	_, err = tx.Exec(`
		INSERT INTO history (id, dose_id, date, time, medicine_name, dosage, compartment, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, doseID, record.Date, record.Time, record.MedicineName, record.Dosage, record.Compartment, string(record.Outcome),
	)
	if err != nil {
		return fmt.Errorf("failed to append history for dose %s: %w", doseID, err)
	}

	return tx.Commit()
}

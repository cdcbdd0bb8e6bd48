package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage"
)

const medicineColumns = "id, name, dosage, compartment, times, active_from, active_until, created_at, deleted_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMedicine(row rowScanner) (models.Medicine, error) {
	var m models.Medicine
	var times string
	var deletedAt sql.NullTime

	if err := row.Scan(&m.ID, &m.Name, &m.Dosage, &m.Compartment, &times, &m.ActiveFrom, &m.ActiveUntil, &m.CreatedAt, &deletedAt); err != nil {
		return models.Medicine{}, err
	}
	if err := json.Unmarshal([]byte(times), &m.Times); err != nil {
		return models.Medicine{}, fmt.Errorf("failed to parse times for medicine %s: %w", m.ID, err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}
	return m, nil
}

func (s *Store) AddMedicine(m models.Medicine) error {
	times, err := json.Marshal(m.Times)
	if err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err = s.db.Exec(`
		INSERT INTO medicines (id, name, dosage, compartment, times, active_from, active_until, created_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)`,
		m.ID, m.Name, m.Dosage, m.Compartment, string(times), m.ActiveFrom, m.ActiveUntil, m.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to add medicine: %w", err)
	}
	return nil
}

func (s *Store) GetMedicine(id string) (models.Medicine, error) {
	m, err := scanMedicine(s.db.QueryRow("SELECT "+medicineColumns+" FROM medicines WHERE id = $1 AND deleted_at IS NULL", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Medicine{}, fmt.Errorf("medicine %s: %w", id, storage.ErrNotFound)
	}
	return m, err
}

func (s *Store) GetAllMedicines(includeDeleted bool) ([]models.Medicine, error) {
	query := "SELECT " + medicineColumns + " FROM medicines"
	if !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var medicines []models.Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		medicines = append(medicines, m)
	}
	return medicines, rows.Err()
}

func (s *Store) DeleteMedicine(id string) error {
	res, err := s.db.Exec("UPDATE medicines SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL", time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res, "medicine", id)
}

func (s *Store) RestoreMedicine(id string) error {
	res, err := s.db.Exec("UPDATE medicines SET deleted_at = NULL WHERE id = $1 AND deleted_at IS NOT NULL", id)
	if err != nil {
		return err
	}
	return requireRow(res, "deleted medicine", id)
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

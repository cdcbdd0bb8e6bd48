package sqlite

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
	var times, createdAt string
	var deletedAt sql.NullString

	if err := row.Scan(&m.ID, &m.Name, &m.Dosage, &m.Compartment, &times, &m.ActiveFrom, &m.ActiveUntil, &createdAt, &deletedAt); err != nil {
		return models.Medicine{}, err
	}

	if err := json.Unmarshal([]byte(times), &m.Times); err != nil {
		return models.Medicine{}, fmt.Errorf("failed to parse times for medicine %s: %w", m.ID, err)
	}

	var err error
	m.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return models.Medicine{}, fmt.Errorf("failed to parse created_at for medicine %s: %w", m.ID, err)
	}
	if deletedAt.Valid {
		t, err := time.Parse(time.RFC3339, deletedAt.String)
		if err != nil {
			return models.Medicine{}, fmt.Errorf("failed to parse deleted_at for medicine %s: %w", m.ID, err)
		}
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		m.ID, m.Name, m.Dosage, m.Compartment, string(times), m.ActiveFrom, m.ActiveUntil,
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to add medicine: %w", err)
	}
	return nil
}

func (s *Store) GetMedicine(id string) (models.Medicine, error) {
	row := s.db.QueryRow("SELECT "+medicineColumns+" FROM medicines WHERE id = ? AND deleted_at IS NULL", id)
	m, err := scanMedicine(row)
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
	res, err := s.db.Exec("UPDATE medicines SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res, "medicine", id)
}

func (s *Store) RestoreMedicine(id string) error {
	res, err := s.db.Exec("UPDATE medicines SET deleted_at = NULL WHERE id = ? AND deleted_at IS NOT NULL", id)
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

package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage"
)

func (s *Store) GetDeviceSnapshot() (models.DeviceSnapshot, error) {
	var snap models.DeviceSnapshot
	err := s.db.QueryRow("SELECT is_online, battery_percent, last_synced_at FROM device WHERE id = 1").
		Scan(&snap.IsOnline, &snap.BatteryPercent, &snap.LastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeviceSnapshot{}, fmt.Errorf("device snapshot: %w", storage.ErrNotFound)
	}
	return snap, err
}

func (s *Store) SaveDeviceSnapshot(snap models.DeviceSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO device (id, is_online, battery_percent, last_synced_at) VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			is_online = EXCLUDED.is_online,
			battery_percent = EXCLUDED.battery_percent,
			last_synced_at = EXCLUDED.last_synced_at`,
		snap.IsOnline, snap.BatteryPercent, snap.LastSyncedAt.UTC(),
	)
	return err
}
